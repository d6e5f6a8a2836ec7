// Package parser extracts RAM attributes from free-text listing titles
// and descriptions. Extraction is two-tiered: manufacturer-specific model
// number patterns first, independent keyword fallbacks second.
package parser

import (
	"strings"
	"time"

	"kleinanzeigen-hunter/internal/utils"
)

// Specs holds the extracted RAM specifications. Empty string means
// "not found", which is a common and valid state.
type Specs struct {
	ModelNumber  string `json:"model_number,omitempty"`
	Manufacturer string `json:"manufacturer,omitempty"`
	Capacity     string `json:"capacity,omitempty"`
	Speed        string `json:"speed,omitempty"`
	Latency      string `json:"latency,omitempty"`
	Color        string `json:"color,omitempty"`
}

// Attributes is the full parse result for one listing.
type Attributes struct {
	Specs             Specs     `json:"specs"`
	HasOVP            bool      `json:"has_ovp"`
	HasInvoice        bool      `json:"has_invoice"`
	ShippingAvailable bool      `json:"shipping_available"`
	PostedAt          time.Time `json:"posted_at"`
	PriorityScore     int       `json:"priority_score"`
}

// IsDDR5 reports whether the listing text mentions DDR5 in any of its
// common spellings. Listings without the marker are out of domain.
func IsDDR5(title, description string) bool {
	return ddr5Re.MatchString(title + " " + description)
}

// ExtractModelNumber scans text for a known model number pattern.
// The matching pattern determines the manufacturer as well; the two are
// never set independently from this tier.
func ExtractModelNumber(text string) (model, manufacturer string) {
	upper := strings.ToUpper(text)

	for _, entry := range modelPatterns {
		for _, re := range entry.Patterns {
			if m := re.FindString(upper); m != "" {
				return m, entry.Manufacturer
			}
		}
	}
	return "", ""
}

// ExtractManufacturer is the keyword fallback used when no model number matched.
func ExtractManufacturer(text string) string {
	lower := strings.ToLower(text)
	for _, entry := range manufacturerKeywords {
		for _, kw := range entry.Keywords {
			if strings.Contains(lower, kw) {
				return entry.Manufacturer
			}
		}
	}
	return ""
}

// ExtractCapacity finds capacity strings like "32GB" or "2x16GB".
func ExtractCapacity(text string) string {
	return strings.ToUpper(capacityRe.FindString(text))
}

// ExtractSpeed finds clock speed strings like "5200 MHz" or "6000MT/s".
func ExtractSpeed(text string) string {
	return speedRe.FindString(text)
}

// ExtractLatency finds CAS latency, normalized to "CL<n>".
// Bare "C40"-style suffixes (common inside model numbers) count too.
func ExtractLatency(text string) string {
	if m := latencyRe.FindStringSubmatch(text); m != nil {
		return "CL" + m[1]
	}
	if m := latencyCRe.FindStringSubmatch(strings.ToUpper(text)); m != nil {
		return "CL" + m[1]
	}
	return ""
}

// ExtractColor finds a color keyword in the text.
func ExtractColor(text string) string {
	lower := strings.ToLower(text)
	for _, entry := range colorKeywords {
		for _, kw := range entry.Keywords {
			if strings.Contains(lower, kw) {
				return entry.Color
			}
		}
	}
	return ""
}

// extractMetadata derives the boolean flags from keyword presence.
func extractMetadata(text string) (hasOVP, hasInvoice, shippingAvailable bool) {
	lower := strings.ToLower(text)

	hasOVP = containsAny(lower, ovpKeywords)
	hasInvoice = containsAny(lower, invoiceKeywords)
	shippingAvailable = containsAny(lower, shippingKeywords) && !containsAny(lower, noShippingKeywords)
	return
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

// Parse runs the full two-tier extraction over title+description.
// The second return value is the domain gate: false when the text
// carries no DDR5 marker. Attributes are computed either way so callers
// with broader searches can still use metadata and scoring.
//
// A result with zero extracted specs is still valid; absence of
// attributes is not an error state.
func Parse(title, description, postedTime string, now time.Time) (*Attributes, bool) {
	fullText := strings.TrimSpace(title + " " + description)

	attrs := &Attributes{}
	attrs.Specs.ModelNumber, attrs.Specs.Manufacturer = ExtractModelNumber(fullText)

	if attrs.Specs.Manufacturer == "" {
		attrs.Specs.Manufacturer = ExtractManufacturer(fullText)
	}

	// Models alone do not encode every spec, so these are always attempted.
	attrs.Specs.Capacity = ExtractCapacity(fullText)
	attrs.Specs.Speed = ExtractSpeed(fullText)
	attrs.Specs.Latency = ExtractLatency(fullText)
	attrs.Specs.Color = ExtractColor(fullText)

	attrs.HasOVP, attrs.HasInvoice, attrs.ShippingAvailable = extractMetadata(fullText)

	attrs.PostedAt = utils.ParseRelativeTime(postedTime, now)
	attrs.PriorityScore = Score(attrs, title, description)

	return attrs, IsDDR5(title, description)
}
