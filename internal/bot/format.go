package bot

import (
	"fmt"
	"strings"

	"kleinanzeigen-hunter/internal/database"
	"kleinanzeigen-hunter/internal/kafka"
)

func formatPrice(price *float64) string {
	if price == nil {
		return "VB"
	}
	return fmt.Sprintf("%.2f €", *price)
}

func formatListing(listing kafka.ScoredListing) string {
	var sb strings.Builder

	score := listing.Attributes.PriorityScore
	marker := "📦"
	if score >= 8 {
		marker = "🔥"
	} else if score >= 4 {
		marker = "⭐"
	}

	sb.WriteString(fmt.Sprintf("%s *%s*\n", marker, listing.Title))
	sb.WriteString(fmt.Sprintf("💰 %s", formatPrice(listing.Price)))
	if listing.Location != "" {
		sb.WriteString(fmt.Sprintf(" | 📍 %s", listing.Location))
	}
	sb.WriteString("\n")

	specs := listing.Attributes.Specs
	var specParts []string
	if specs.ModelNumber != "" {
		specParts = append(specParts, specs.ModelNumber)
	} else if specs.Manufacturer != "" {
		specParts = append(specParts, specs.Manufacturer)
	}
	if specs.Capacity != "" {
		specParts = append(specParts, specs.Capacity)
	}
	if specs.Speed != "" {
		specParts = append(specParts, specs.Speed)
	}
	if specs.Latency != "" {
		specParts = append(specParts, specs.Latency)
	}
	if len(specParts) > 0 {
		sb.WriteString(fmt.Sprintf("🧩 %s\n", strings.Join(specParts, " | ")))
	}

	var flags []string
	if listing.Attributes.HasOVP {
		flags = append(flags, "OVP ✅")
	}
	if listing.Attributes.HasInvoice {
		flags = append(flags, "Rechnung ✅")
	}
	if listing.Attributes.ShippingAvailable {
		flags = append(flags, "Versand ✅")
	}
	if len(flags) > 0 {
		sb.WriteString(fmt.Sprintf("📋 %s\n", strings.Join(flags, " | ")))
	}

	sb.WriteString(fmt.Sprintf("🎯 Score: %d\n", score))
	sb.WriteString(fmt.Sprintf("🔗 %s", listing.Link))

	return sb.String()
}

func formatSeenAd(ad *database.SeenAd) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("📦 *%s*\n", ad.Title))
	sb.WriteString(fmt.Sprintf("💰 %s", formatPrice(ad.Price)))
	if ad.Location != "" {
		sb.WriteString(fmt.Sprintf(" | 📍 %s", ad.Location))
	}
	sb.WriteString("\n")

	if ad.ComparisonPrice != nil {
		sb.WriteString(fmt.Sprintf("🏷 Neupreis: %.2f € (%s)\n", *ad.ComparisonPrice, ad.ComparisonModel))
	}

	sb.WriteString(fmt.Sprintf("🎯 Score: %d\n", ad.PriorityScore))
	sb.WriteString(fmt.Sprintf("🔗 %s", ad.Link))

	return sb.String()
}

func formatSearch(index int, search *database.Search) string {
	status := "🟢"
	if !search.Active {
		status = "🔴"
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s *%d.* %s\n", status, index, search.Keyword))

	if search.PriceMin != nil || search.PriceMax != nil {
		switch {
		case search.PriceMin != nil && search.PriceMax != nil:
			sb.WriteString(fmt.Sprintf("   💰 %.0f - %.0f €\n", *search.PriceMin, *search.PriceMax))
		case search.PriceMin != nil:
			sb.WriteString(fmt.Sprintf("   💰 ab %.0f €\n", *search.PriceMin))
		default:
			sb.WriteString(fmt.Sprintf("   💰 bis %.0f €\n", *search.PriceMax))
		}
	}

	sb.WriteString(fmt.Sprintf("   ⏱ Intervall: %ds", search.IntervalSeconds))
	if search.ShippingPreference != "" && search.ShippingPreference != "both" {
		sb.WriteString(fmt.Sprintf(" | 🚚 %s", search.ShippingPreference))
	}
	sb.WriteString("\n")

	if excludes := search.ExcludeKeywordList(); len(excludes) > 0 {
		sb.WriteString(fmt.Sprintf("   🚫 %s\n", strings.Join(excludes, ", ")))
	}

	return sb.String()
}
