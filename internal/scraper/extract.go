package scraper

import (
	"log"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const maxImages = 3

var (
	adIDSlugRe = regexp.MustCompile(`/s-anzeige/[^/]+/(\d+)`)
	adIDBareRe = regexp.MustCompile(`/s-anzeige/(\d+)`)
	priceRe    = regexp.MustCompile(`[\d.]+`)
	spaceRe    = regexp.MustCompile(`\s+`)
)

// priceSelectors are tried in order; the markup shifts between layouts.
var priceSelectors = []string{
	".aditem-main--middle--price-shipping--price",
	".aditem-main--middle--price",
	".aditem-details--top--price",
}

var requestKeywords = []string{"suche", "gesuch", "sucht", "wanted"}

// ExtractCard converts one ad card subtree into a Listing. The second
// return value is false when no resolvable link or ID exists — the
// fragment is then "not a listing", which is not an error.
func ExtractCard(card *goquery.Selection, baseURL string) (listing *Listing, ok bool) {
	// A malformed fragment must never abort the enclosing batch.
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Recovered while extracting ad card: %v", r)
			listing, ok = nil, false
		}
	}()

	link, anchor := resolveLink(card, baseURL)
	if link == "" {
		return nil, false
	}

	id := extractAdID(link)
	if id == "" {
		return nil, false
	}

	// A missing title keeps the record with a placeholder; only a
	// missing link/ID rejects it.
	title := ""
	if anchor != nil {
		title = cleanText(anchor.Text())
	}
	if title == "" {
		title = cleanText(card.Find("h2").First().Text())
	}
	if title == "" {
		title = "Kein Titel"
	}

	listing = &Listing{
		ID:           id,
		Title:        title,
		Price:        extractPrice(card),
		Location:     cleanText(card.Find(".aditem-main--top--left").First().Text()),
		Link:         link,
		PostedTime:   cleanText(card.Find(".aditem-main--top--right").First().Text()),
		ShippingType: extractShippingType(card),
		Description:  cleanText(card.Find(".aditem-main--middle--description").First().Text()),
		IsRequest:    isRequest(card, title),
		ImageURLs:    extractImages(card, baseURL),
	}
	return listing, true
}

// resolveLink tries a prioritized sequence of strategies and stops at
// the first success. The returned anchor (may be nil) is the element the
// title should be read from.
func resolveLink(card *goquery.Selection, baseURL string) (string, *goquery.Selection) {
	if href, exists := card.Attr("data-href"); exists && href != "" {
		return absoluteURL(href, baseURL), nil
	}

	if a := card.Find(`a[href*="/s-anzeige/"]`).First(); a.Length() > 0 {
		if href, exists := a.Attr("href"); exists && href != "" {
			return absoluteURL(href, baseURL), a
		}
	}

	if a := card.Find("h2 a").First(); a.Length() > 0 {
		if href, exists := a.Attr("href"); exists && href != "" {
			return absoluteURL(href, baseURL), a
		}
	}

	return "", nil
}

func extractAdID(link string) string {
	if m := adIDSlugRe.FindStringSubmatch(link); m != nil {
		return m[1]
	}
	if m := adIDBareRe.FindStringSubmatch(link); m != nil {
		return m[1]
	}
	return ""
}

func extractPrice(card *goquery.Selection) *float64 {
	for _, sel := range priceSelectors {
		text := cleanText(card.Find(sel).First().Text())
		if text == "" {
			continue
		}
		if price := ParsePrice(text); price != nil {
			return price
		}
	}
	return nil
}

// ParsePrice converts a German price string like "1.150,00 €" to a float.
// Missing or unparseable prices yield nil, never zero.
func ParsePrice(text string) *float64 {
	// Thousands dots out, decimal comma to point.
	normalized := strings.ReplaceAll(text, ".", "")
	normalized = strings.ReplaceAll(normalized, ",", ".")

	m := priceRe.FindString(normalized)
	if m == "" {
		return nil
	}

	price, err := strconv.ParseFloat(m, 64)
	if err != nil || price <= 0 {
		return nil
	}
	return &price
}

// extractShippingType joins the delivery markers found in the card text.
func extractShippingType(card *goquery.Selection) string {
	text := card.Text()

	var parts []string
	if strings.Contains(text, "Versand") {
		parts = append(parts, "Versand")
	}
	if strings.Contains(text, "Abholung") {
		parts = append(parts, "Abholung")
	}
	return strings.Join(parts, " & ")
}

func isRequest(card *goquery.Selection, title string) bool {
	lower := strings.ToLower(title)
	for _, kw := range requestKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}

	// Structural marker: request ads carry a "Gesuch" tag on the card.
	marked := false
	card.Find(".simpletag").EachWithBreak(func(_ int, tag *goquery.Selection) bool {
		if cleanText(tag.Text()) == "Gesuch" {
			marked = true
			return false
		}
		return true
	})
	return marked
}

func extractImages(card *goquery.Selection, baseURL string) []string {
	var urls []string
	card.Find("img").EachWithBreak(func(_ int, img *goquery.Selection) bool {
		src, exists := img.Attr("src")
		if !exists || src == "" {
			src, _ = img.Attr("data-src")
		}
		if src == "" {
			return true
		}
		// Skip icon and placeholder assets.
		if strings.Contains(src, "icon") || strings.Contains(src, "placeholder") {
			return true
		}
		urls = append(urls, absoluteURL(src, baseURL))
		return len(urls) < maxImages
	})
	return urls
}

// absoluteURL normalizes protocol-relative and root-relative URLs.
func absoluteURL(href, baseURL string) string {
	if strings.HasPrefix(href, "//") {
		return "https:" + href
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}

func cleanText(text string) string {
	return strings.TrimSpace(spaceRe.ReplaceAllString(text, " "))
}
