// Package hunter drives the scrape-filter-notify cycle for all saved
// searches. It owns the ordering guarantees: filters run before dedup,
// and every listing is marked seen before its notification is published
// so a crash can drop a notification but never repeat one.
package hunter

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"kleinanzeigen-hunter/internal/database"
	"kleinanzeigen-hunter/internal/kafka"
	"kleinanzeigen-hunter/internal/parser"
	"kleinanzeigen-hunter/internal/pricecheck"
	"kleinanzeigen-hunter/internal/scraper"
)

// Store is the persistence surface the hunter needs.
type Store interface {
	GetActiveSearches() ([]*database.Search, error)
	UpdateSearchLastCheck(searchID uint) error
	IsNewAd(adID string, searchID uint) bool
	MarkAsSeen(ad *database.SeenAd) error
}

// Publisher delivers batches of new listings for notification.
type Publisher interface {
	PublishNewListings(event kafka.NewListingsEvent) error
}

// PriceComparer enriches a listing with a new-price reference.
// A nil comparer disables enrichment; lookups never block a cycle.
type PriceComparer interface {
	SearchProduct(query string) (*pricecheck.Match, error)
}

type Hunter struct {
	store     Store
	fetcher   scraper.Fetcher
	publisher Publisher
	comparer  PriceComparer
	maxNotify int
}

func New(store Store, fetcher scraper.Fetcher, publisher Publisher, comparer PriceComparer, maxNotify int) *Hunter {
	if maxNotify < 1 {
		maxNotify = 10
	}
	return &Hunter{
		store:     store,
		fetcher:   fetcher,
		publisher: publisher,
		comparer:  comparer,
		maxNotify: maxNotify,
	}
}

// RunCycle executes all due searches once. Per-search failures are
// logged and do not abort the cycle; only context cancellation does.
func (h *Hunter) RunCycle(ctx context.Context) error {
	searches, err := h.store.GetActiveSearches()
	if err != nil {
		return fmt.Errorf("failed to load active searches: %w", err)
	}

	now := time.Now()
	for _, search := range searches {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if !isDue(search, now) {
			continue
		}

		if err := h.ExecuteSearch(search); err != nil {
			log.Printf("Search %d ('%s') failed: %v", search.ID, search.Keyword, err)
		}
	}
	return nil
}

// isDue applies the per-search interval. A search that has never run is
// always due.
func isDue(search *database.Search, now time.Time) bool {
	if search.LastCheck == nil {
		return true
	}
	return now.Sub(*search.LastCheck) >= time.Duration(search.IntervalSeconds)*time.Second
}

// ExecuteSearch runs one full fetch-filter-dedup-notify pass for a
// single search. last_check is advanced even on failure so a
// permanently broken search cannot hot-loop.
func (h *Hunter) ExecuteSearch(search *database.Search) error {
	defer func() {
		if err := h.store.UpdateSearchLastCheck(search.ID); err != nil {
			log.Printf("Error updating last_check for search %d: %v", search.ID, err)
		}
	}()

	listings, err := h.fetcher.FetchListings(search.Keyword, search.Category)
	if err != nil {
		return fmt.Errorf("fetch failed: %w", err)
	}

	now := time.Now()
	candidates := FilterListings(listings, search, now)

	var fresh []kafka.ScoredListing
	for _, candidate := range candidates {
		if !h.store.IsNewAd(candidate.ID, search.ID) {
			continue
		}

		// Mark before notify: a crash between the two costs one
		// notification, never duplicates one. A failed write is only
		// logged — the notification still goes out and the ad stays
		// eligible for reprocessing next cycle.
		seen := toSeenAd(&candidate.Listing, &candidate.Attributes, search.ID)
		if err := h.store.MarkAsSeen(seen); err != nil {
			log.Printf("Error marking ad %s seen for search %d: %v", candidate.ID, search.ID, err)
		} else {
			h.enrich(candidate, seen)
		}
		fresh = append(fresh, *candidate)
	}

	if len(fresh) == 0 {
		log.Printf("Search %d ('%s'): %d listings, nothing new", search.ID, search.Keyword, len(listings))
		return nil
	}

	// The page lists newest first; reversing makes delivery read
	// oldest-discovered-first within a batch, score ties included.
	for i, j := 0, len(fresh)-1; i < j; i, j = i+1, j-1 {
		fresh[i], fresh[j] = fresh[j], fresh[i]
	}
	sort.SliceStable(fresh, func(i, j int) bool {
		return fresh[i].Attributes.PriorityScore > fresh[j].Attributes.PriorityScore
	})
	if len(fresh) > h.maxNotify {
		fresh = fresh[:h.maxNotify]
	}

	event := kafka.NewListingsEvent{
		SearchID: search.ID,
		ChatID:   search.User.TelegramID,
		Keyword:  search.Keyword,
		Listings: fresh,
		FoundAt:  now,
	}
	if err := h.publisher.PublishNewListings(event); err != nil {
		return fmt.Errorf("failed to publish %d new listings: %w", len(fresh), err)
	}

	log.Printf("Search %d ('%s'): %d new of %d scraped", search.ID, search.Keyword, len(fresh), len(listings))
	return nil
}

// enrich attaches a price comparison when a model number is known. Any
// failure leaves the listing unenriched; the seen row is re-upserted on
// success so history queries show the reference price too.
func (h *Hunter) enrich(candidate *kafka.ScoredListing, seen *database.SeenAd) {
	if h.comparer == nil || candidate.Attributes.Specs.ModelNumber == "" {
		return
	}

	match, err := h.comparer.SearchProduct(candidate.Attributes.Specs.ModelNumber)
	if err != nil || match == nil {
		return
	}

	seen.ComparisonModel = match.Model
	seen.ComparisonPrice = match.Price
	seen.ComparisonLink = match.Link
	if err := h.store.MarkAsSeen(seen); err != nil {
		log.Printf("Error storing price comparison for ad %s: %v", candidate.ID, err)
	}
}

// FilterListings applies a search's criteria in a fixed order and parses
// attributes for the survivors. Listings without a price pass the price
// filter: "price on request" ads stay visible.
func FilterListings(listings []scraper.Listing, search *database.Search, now time.Time) []*kafka.ScoredListing {
	excludes := search.ExcludeKeywordList()
	ramSearch := parser.IsDDR5(search.Keyword, "")

	var out []*kafka.ScoredListing
	for _, listing := range listings {
		if listing.Price != nil {
			if search.PriceMin != nil && *listing.Price < *search.PriceMin {
				continue
			}
			if search.PriceMax != nil && *listing.Price > *search.PriceMax {
				continue
			}
		}

		if listing.IsRequest {
			continue
		}

		if matchesExclude(listing.Title, excludes) {
			continue
		}

		if !matchesShipping(&listing, search.ShippingPreference) {
			continue
		}

		attrs, isRAM := parser.Parse(listing.Title, listing.Description, listing.PostedTime, now)
		if ramSearch && !isRAM {
			continue
		}

		out = append(out, &kafka.ScoredListing{Listing: listing, Attributes: *attrs})
	}
	return out
}

func matchesExclude(title string, excludes []string) bool {
	if len(excludes) == 0 {
		return false
	}
	lower := strings.ToLower(title)
	for _, kw := range excludes {
		if kw != "" && strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

// matchesShipping checks the listing's shipping capability against the
// search preference. "both" (or empty) accepts everything; preference
// "shipping" requires the parsed flag or an explicit shipping type,
// "pickup" requires the shipping type to mention pickup.
func matchesShipping(listing *scraper.Listing, preference string) bool {
	switch preference {
	case "shipping":
		lowerType := strings.ToLower(listing.ShippingType)
		return strings.Contains(lowerType, "versand") ||
			containsShippingKeyword(listing.Title+" "+listing.Description)
	case "pickup":
		lowerType := strings.ToLower(listing.ShippingType)
		return lowerType == "" || strings.Contains(lowerType, "abholung")
	default:
		return true
	}
}

func containsShippingKeyword(text string) bool {
	lower := strings.ToLower(text)
	return strings.Contains(lower, "versand") && !strings.Contains(lower, "kein versand")
}

func toSeenAd(listing *scraper.Listing, attrs *parser.Attributes, searchID uint) *database.SeenAd {
	return &database.SeenAd{
		AdID:     listing.ID,
		SearchID: searchID,

		Title:        listing.Title,
		Price:        listing.Price,
		Link:         listing.Link,
		Location:     listing.Location,
		ShippingType: listing.ShippingType,
		PostedTime:   listing.PostedTime,

		ModelNumber:       attrs.Specs.ModelNumber,
		Manufacturer:      attrs.Specs.Manufacturer,
		Capacity:          attrs.Specs.Capacity,
		Speed:             attrs.Specs.Speed,
		Latency:           attrs.Specs.Latency,
		Color:             attrs.Specs.Color,
		HasOVP:            attrs.HasOVP,
		HasInvoice:        attrs.HasInvoice,
		ShippingAvailable: attrs.ShippingAvailable,
		PriorityScore:     attrs.PriorityScore,
	}
}
