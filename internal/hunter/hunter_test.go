package hunter

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"kleinanzeigen-hunter/internal/database"
	"kleinanzeigen-hunter/internal/kafka"
	"kleinanzeigen-hunter/internal/scraper"
)

type fakeStore struct {
	searches   []*database.Search
	seen       map[string]bool
	marked     []*database.SeenAd
	lastChecks []uint
	markErr    error
}

func newFakeStore(searches ...*database.Search) *fakeStore {
	return &fakeStore{searches: searches, seen: make(map[string]bool)}
}

func seenKey(adID string, searchID uint) string {
	return fmt.Sprintf("%s|%d", adID, searchID)
}

func (s *fakeStore) GetActiveSearches() ([]*database.Search, error) {
	return s.searches, nil
}

func (s *fakeStore) UpdateSearchLastCheck(searchID uint) error {
	s.lastChecks = append(s.lastChecks, searchID)
	return nil
}

func (s *fakeStore) IsNewAd(adID string, searchID uint) bool {
	return !s.seen[seenKey(adID, searchID)]
}

func (s *fakeStore) MarkAsSeen(ad *database.SeenAd) error {
	if s.markErr != nil {
		return s.markErr
	}
	s.seen[seenKey(ad.AdID, ad.SearchID)] = true
	s.marked = append(s.marked, ad)
	return nil
}

type fakeFetcher struct {
	listings []scraper.Listing
	err      error
}

func (f *fakeFetcher) FetchListings(keyword, category string) ([]scraper.Listing, error) {
	return f.listings, f.err
}

type fakePublisher struct {
	events []kafka.NewListingsEvent
}

func (p *fakePublisher) PublishNewListings(event kafka.NewListingsEvent) error {
	p.events = append(p.events, event)
	return nil
}

func testSearch(id uint, keyword string) *database.Search {
	return &database.Search{
		ID:              id,
		UserID:          1,
		Keyword:         keyword,
		Category:        "c225",
		IntervalSeconds: 300,
		Active:          true,
		User:            database.User{TelegramID: 1000 + int64(id)},
	}
}

func offer(id, title string, price float64) scraper.Listing {
	return scraper.Listing{
		ID:          id,
		Title:       title,
		Price:       &price,
		Link:        "https://www.kleinanzeigen.de/s-anzeige/x/" + id,
		Description: "Versand möglich",
	}
}

func TestExecuteSearchNotifiesOncePerAd(t *testing.T) {
	store := newFakeStore()
	fetcher := &fakeFetcher{listings: []scraper.Listing{
		offer("111", "DDR5 RAM Corsair 32GB", 100),
		offer("222", "DDR5 RAM Kingston 16GB", 50),
	}}
	publisher := &fakePublisher{}
	h := New(store, fetcher, publisher, nil, 10)

	search := testSearch(1, "DDR5 RAM")

	if err := h.ExecuteSearch(search); err != nil {
		t.Fatal("First run failed:", err)
	}
	if len(publisher.events) != 1 {
		t.Fatalf("Wanted 1 event after first run, got %d", len(publisher.events))
	}
	if got := len(publisher.events[0].Listings); got != 2 {
		t.Errorf("Wanted 2 listings in first event, got %d", got)
	}
	if publisher.events[0].ChatID != search.User.TelegramID {
		t.Errorf("Event routed to chat %d, want %d", publisher.events[0].ChatID, search.User.TelegramID)
	}

	// Second run sees the same page again: nothing new, no event.
	if err := h.ExecuteSearch(search); err != nil {
		t.Fatal("Second run failed:", err)
	}
	if len(publisher.events) != 1 {
		t.Errorf("Duplicate notification: %d events after second run", len(publisher.events))
	}

	if len(store.lastChecks) != 2 {
		t.Errorf("last_check should be updated per run, got %d updates", len(store.lastChecks))
	}
}

func TestExecuteSearchScopesDedupPerSearch(t *testing.T) {
	store := newFakeStore()
	fetcher := &fakeFetcher{listings: []scraper.Listing{
		offer("111", "DDR5 RAM Corsair 32GB", 100),
	}}
	publisher := &fakePublisher{}
	h := New(store, fetcher, publisher, nil, 10)

	if err := h.ExecuteSearch(testSearch(1, "DDR5 RAM")); err != nil {
		t.Fatal(err)
	}
	if err := h.ExecuteSearch(testSearch(2, "DDR5")); err != nil {
		t.Fatal(err)
	}

	// The same ad matches both searches and each scope notifies once.
	if len(publisher.events) != 2 {
		t.Fatalf("Wanted one event per search scope, got %d", len(publisher.events))
	}
}

func TestExecuteSearchNotifiesDespiteMarkFailure(t *testing.T) {
	store := newFakeStore()
	store.markErr = errors.New("db down")
	fetcher := &fakeFetcher{listings: []scraper.Listing{
		offer("111", "DDR5 RAM Corsair 32GB", 100),
	}}
	publisher := &fakePublisher{}
	h := New(store, fetcher, publisher, nil, 10)

	search := testSearch(1, "DDR5 RAM")

	// A failed seen-write is logged, not fatal: the notification must
	// still be delivered.
	if err := h.ExecuteSearch(search); err != nil {
		t.Fatal(err)
	}
	if len(publisher.events) != 1 {
		t.Fatalf("Wanted 1 event despite mark failure, got %d", len(publisher.events))
	}
	if got := len(publisher.events[0].Listings); got != 1 {
		t.Errorf("Wanted the unmarkable ad in the batch, got %d listings", got)
	}

	// Nothing was recorded, so the ad stays eligible next cycle: a
	// duplicate is the accepted cost of the fail-open policy.
	if len(store.marked) != 0 {
		t.Fatalf("Mark failure should leave no seen rows, got %d", len(store.marked))
	}
	if err := h.ExecuteSearch(search); err != nil {
		t.Fatal(err)
	}
	if len(publisher.events) != 2 {
		t.Errorf("Unmarked ad should be re-notified next cycle, got %d events", len(publisher.events))
	}
}

func TestExecuteSearchFetchFailureStillAdvancesLastCheck(t *testing.T) {
	store := newFakeStore()
	fetcher := &fakeFetcher{err: errors.New("blocked")}
	h := New(store, fetcher, &fakePublisher{}, nil, 10)

	if err := h.ExecuteSearch(testSearch(1, "DDR5 RAM")); err == nil {
		t.Error("Fetch failure should surface as an error")
	}
	if len(store.lastChecks) != 1 {
		t.Error("last_check must advance even on failure")
	}
}

func TestExecuteSearchTruncatesByScore(t *testing.T) {
	listings := []scraper.Listing{
		offer("1", "DDR5 RAM 32GB", 100),
		offer("2", "DDR5 RAM Corsair CMK32GX5M2B5200C40 OVP", 100),
		offer("3", "DDR5 RAM 16GB", 100),
	}

	store := newFakeStore()
	publisher := &fakePublisher{}
	h := New(store, &fakeFetcher{listings: listings}, publisher, nil, 2)

	if err := h.ExecuteSearch(testSearch(1, "DDR5 RAM")); err != nil {
		t.Fatal(err)
	}

	got := publisher.events[0].Listings
	if len(got) != 2 {
		t.Fatalf("Wanted batch truncated to 2, got %d", len(got))
	}
	if got[0].ID != "2" {
		t.Errorf("Highest scored listing should come first, got ID %q", got[0].ID)
	}
	// Ties deliver oldest-discovered first: the page is newest-first, so
	// the later card "3" precedes "1" after the batch reversal.
	if got[1].ID != "3" {
		t.Errorf("Tied scores should order oldest-first, got ID %q", got[1].ID)
	}

	// All three were marked seen, including the one cut from the batch.
	if len(store.marked) != 3 {
		t.Errorf("All new ads must be marked seen, got %d", len(store.marked))
	}
}

func TestFilterListingsPriceBounds(t *testing.T) {
	min, max := 50.0, 150.0
	search := testSearch(1, "DDR5 RAM")
	search.PriceMin = &min
	search.PriceMax = &max

	noPrice := scraper.Listing{ID: "np", Title: "DDR5 RAM VB", Link: "l"}
	listings := []scraper.Listing{
		offer("low", "DDR5 RAM", 49.99),
		offer("minEdge", "DDR5 RAM", 50),
		offer("maxEdge", "DDR5 RAM", 150),
		offer("high", "DDR5 RAM", 150.01),
		noPrice,
	}

	got := FilterListings(listings, search, time.Now())

	wantIDs := map[string]bool{"minEdge": true, "maxEdge": true, "np": true}
	if len(got) != len(wantIDs) {
		t.Fatalf("Wanted %d survivors, got %d", len(wantIDs), len(got))
	}
	for _, l := range got {
		if !wantIDs[l.ID] {
			t.Errorf("Listing %q should have been filtered out", l.ID)
		}
	}
}

func TestFilterListingsInvertedRangeMatchesNothing(t *testing.T) {
	min, max := 200.0, 100.0
	search := testSearch(1, "DDR5 RAM")
	search.PriceMin = &min
	search.PriceMax = &max

	got := FilterListings([]scraper.Listing{offer("1", "DDR5 RAM", 150)}, search, time.Now())
	if len(got) != 0 {
		t.Errorf("Inverted price range must match no priced listing, got %d", len(got))
	}
}

func TestFilterListingsDropsRequests(t *testing.T) {
	request := offer("1", "Suche DDR5 RAM", 100)
	request.IsRequest = true

	got := FilterListings([]scraper.Listing{request}, testSearch(1, "DDR5 RAM"), time.Now())
	if len(got) != 0 {
		t.Error("Request ads must always be dropped")
	}
}

func TestFilterListingsExcludeKeywords(t *testing.T) {
	search := testSearch(1, "DDR5 RAM")
	search.ExcludeKeywords = `["defekt","SODIMM"]`

	listings := []scraper.Listing{
		offer("1", "DDR5 RAM Defekt als Ersatzteil", 20),
		offer("2", "DDR5 RAM SoDimm Laptop", 60),
		offer("3", "DDR5 RAM Desktop", 80),
	}

	got := FilterListings(listings, search, time.Now())
	if len(got) != 1 || got[0].ID != "3" {
		t.Errorf("Exclude keywords should match case-insensitively, got %v", got)
	}
}

func TestFilterListingsShippingPreference(t *testing.T) {
	search := testSearch(1, "DDR5 RAM")
	search.ShippingPreference = "shipping"

	pickupOnly := offer("1", "DDR5 RAM", 100)
	pickupOnly.Description = "Nur Abholung"
	pickupOnly.ShippingType = "Abholung"

	shipped := offer("2", "DDR5 RAM", 100)
	shipped.ShippingType = "Versand"

	got := FilterListings([]scraper.Listing{pickupOnly, shipped}, search, time.Now())
	if len(got) != 1 || got[0].ID != "2" {
		t.Errorf("Shipping preference should keep only shippable listings, got %v", got)
	}
}

func TestFilterListingsRAMGate(t *testing.T) {
	ramSearch := testSearch(1, "DDR5 RAM")
	broadSearch := testSearch(2, "Grafikkarte")

	offTopic := offer("1", "RTX 4070 Grafikkarte", 400)

	if got := FilterListings([]scraper.Listing{offTopic}, ramSearch, time.Now()); len(got) != 0 {
		t.Error("RAM-focused search should drop listings without a DDR5 marker")
	}
	if got := FilterListings([]scraper.Listing{offTopic}, broadSearch, time.Now()); len(got) != 1 {
		t.Error("Broad search should keep listings without a DDR5 marker")
	}
}

func TestRunCycleHonorsIntervals(t *testing.T) {
	recent := time.Now().Add(-10 * time.Second)
	due := testSearch(1, "DDR5 RAM")
	notDue := testSearch(2, "DDR5")
	notDue.LastCheck = &recent

	store := newFakeStore(due, notDue)
	fetcher := &fakeFetcher{listings: []scraper.Listing{offer("1", "DDR5 RAM", 100)}}
	publisher := &fakePublisher{}
	h := New(store, fetcher, publisher, nil, 10)

	if err := h.RunCycle(context.Background()); err != nil {
		t.Fatal(err)
	}

	if len(store.lastChecks) != 1 || store.lastChecks[0] != due.ID {
		t.Errorf("Only the due search should run, last_check updates: %v", store.lastChecks)
	}
}

func TestRunCycleStopsOnCancel(t *testing.T) {
	store := newFakeStore(testSearch(1, "DDR5 RAM"), testSearch(2, "DDR5"))
	h := New(store, &fakeFetcher{}, &fakePublisher{}, nil, 10)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := h.RunCycle(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Wanted context.Canceled, got %v", err)
	}
	if len(store.lastChecks) != 0 {
		t.Error("No search should run after cancellation")
	}
}
