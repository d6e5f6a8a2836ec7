// Package scraper fetches marketplace result pages and extracts
// normalized listing records from the ad cards.
package scraper

import (
	"fmt"
	"log"
	"time"

	"github.com/gocolly/colly/v2"

	"kleinanzeigen-hunter/internal/utils"
)

// Fetcher is what the orchestrator needs from a scrape transport.
type Fetcher interface {
	FetchListings(keyword, category string) ([]Listing, error)
}

// KleinanzeigenScraper scrapes search result pages via colly.
type KleinanzeigenScraper struct {
	baseURL    string
	timeout    time.Duration
	maxRetries int
}

// NewKleinanzeigenScraper creates a scraper against the given base URL.
func NewKleinanzeigenScraper(baseURL string, timeoutSeconds, maxRetries int) *KleinanzeigenScraper {
	return &KleinanzeigenScraper{
		baseURL:    baseURL,
		timeout:    time.Duration(timeoutSeconds) * time.Second,
		maxRetries: maxRetries,
	}
}

// FetchListings scrapes one result page for the keyword/category and
// returns the listings in page order (newest first on the source side).
func (s *KleinanzeigenScraper) FetchListings(keyword, category string) ([]Listing, error) {
	searchURL := s.buildSearchURL(keyword, category)

	var lastErr error
	for attempt := 1; attempt <= s.maxRetries; attempt++ {
		if attempt > 1 {
			backoff := time.Duration(attempt*attempt) * time.Second
			log.Printf("Retrying scrape (attempt %d/%d) after %v...", attempt, s.maxRetries, backoff)
			time.Sleep(backoff)
		}

		listings, err := s.scrapePage(searchURL)
		if err != nil {
			lastErr = err
			log.Printf("Scrape attempt %d failed: %v", attempt, err)
			continue
		}
		return listings, nil
	}

	return nil, fmt.Errorf("all %d scrape attempts failed: %w", s.maxRetries, lastErr)
}

func (s *KleinanzeigenScraper) scrapePage(searchURL string) ([]Listing, error) {
	c := colly.NewCollector(
		colly.UserAgent(utils.RandomUserAgent()),
	)
	c.SetRequestTimeout(s.timeout)

	seen := make(map[string]bool)
	var listings []Listing

	c.OnHTML("article.aditem, li.ad-listitem, div.ad-listitem", func(e *colly.HTMLElement) {
		listing, ok := ExtractCard(e.DOM, s.baseURL)
		if !ok {
			return
		}

		if !seen[listing.ID] {
			seen[listing.ID] = true
			listings = append(listings, *listing)
		}
	})

	c.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept-Language", "de-DE,de;q=0.9,en;q=0.8")
	})

	if err := c.Visit(searchURL); err != nil {
		return nil, err
	}

	return listings, nil
}

func (s *KleinanzeigenScraper) buildSearchURL(keyword, category string) string {
	keywordSlug := slugify(keyword)

	categorySlug := "anzeigen"
	if category == "c225" {
		categorySlug = "pc-zubehoer-software"
	}

	// Newest-first sorting keeps the dedup window small.
	return fmt.Sprintf("%s/s-%s/%s/k0%s?sortingField=SORTING_DATE",
		s.baseURL, categorySlug, keywordSlug, category)
}

func slugify(keyword string) string {
	slug := make([]rune, 0, len(keyword))
	for _, r := range keyword {
		switch {
		case r == ' ':
			slug = append(slug, '-')
		case r >= 'A' && r <= 'Z':
			slug = append(slug, r+('a'-'A'))
		default:
			slug = append(slug, r)
		}
	}
	return string(slug)
}
