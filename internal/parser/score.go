package parser

import "strings"

// Score computes the priority score for notification ordering.
// Pure and deterministic; never negative, maximum 16. The score is used
// only for sorting and batch truncation, never for filtering.
func Score(attrs *Attributes, title, description string) int {
	score := 0

	if attrs.Specs.ModelNumber != "" {
		score += 5
	}
	if attrs.HasOVP {
		score += 3
	}
	if attrs.HasInvoice {
		score += 3
	}
	if attrs.ShippingAvailable {
		score += 2
	}
	if attrs.Specs.Manufacturer != "" && attrs.Specs.Capacity != "" &&
		attrs.Specs.Speed != "" && attrs.Specs.Latency != "" {
		score += 2
	}
	if attrs.Specs.Color != "" {
		score += 1
	}

	if containsAny(strings.ToLower(title+" "+description), defectKeywords) {
		score -= 2
	}

	if score < 0 {
		return 0
	}
	return score
}
