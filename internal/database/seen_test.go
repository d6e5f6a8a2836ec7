package database

import (
	"testing"
	"time"
)

func createTestSearch(t *testing.T, db *DB, telegramID int64) *Search {
	user := createTestUser(t, db, telegramID)
	search, err := db.AddSearch(user.ID, "DDR5 RAM", "c225", nil, nil, 300, "both", nil)
	if err != nil {
		t.Fatal("Error creating search:", err)
	}
	t.Cleanup(func() {
		db.Where("search_id = ?", search.ID).Delete(&SeenAd{})
	})
	return search
}

func TestMarkAsSeenIdempotent(t *testing.T) {
	db := setupTestDB(t)
	search := createTestSearch(t, db, 660000111)

	first := &SeenAd{AdID: "800100200", SearchID: search.ID, Title: "DDR5 RAM", PriorityScore: 5}
	if err := db.MarkAsSeen(first); err != nil {
		t.Fatal("First mark failed:", err)
	}

	// Same key again, now with enrichment. Must upsert, not fail.
	price := 239.90
	second := &SeenAd{
		AdID: "800100200", SearchID: search.ID, Title: "DDR5 RAM",
		PriorityScore: 5, ComparisonPrice: &price, ComparisonModel: "CMK32GX5M2B5200C40",
	}
	if err := db.MarkAsSeen(second); err != nil {
		t.Fatal("Re-mark failed:", err)
	}

	var count int64
	db.Model(&SeenAd{}).Where("ad_id = ? AND search_id = ?", "800100200", search.ID).Count(&count)
	if count != 1 {
		t.Errorf("Upsert must keep one row, got %d", count)
	}

	var loaded SeenAd
	if err := db.Where("ad_id = ? AND search_id = ?", "800100200", search.ID).First(&loaded).Error; err != nil {
		t.Fatal("Error loading seen ad:", err)
	}
	if loaded.ComparisonPrice == nil || *loaded.ComparisonPrice != 239.90 {
		t.Errorf("Enrichment not stored: %v", loaded.ComparisonPrice)
	}
}

func TestIsNewAdScopedPerSearch(t *testing.T) {
	db := setupTestDB(t)
	searchA := createTestSearch(t, db, 660000222)
	searchB := createTestSearch(t, db, 660000333)

	if !db.IsNewAd("800300400", searchA.ID) {
		t.Fatal("Unseen ad reported as seen")
	}

	err := db.MarkAsSeen(&SeenAd{AdID: "800300400", SearchID: searchA.ID, Title: "DDR5 RAM"})
	if err != nil {
		t.Fatal("Error marking ad seen:", err)
	}

	if db.IsNewAd("800300400", searchA.ID) {
		t.Error("Ad should be seen within its own search scope")
	}
	if !db.IsNewAd("800300400", searchB.ID) {
		t.Error("Seen state must not leak into another search scope")
	}
}

func TestGetNewestAndLastAds(t *testing.T) {
	db := setupTestDB(t)
	search := createTestSearch(t, db, 660000444)

	base := time.Now().Add(-1 * time.Hour)
	for i, id := range []string{"801", "802", "803"} {
		err := db.MarkAsSeen(&SeenAd{
			AdID: id, SearchID: search.ID, Title: "DDR5 RAM",
			FetchedAt: base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatal("Error marking ad seen:", err)
		}
	}

	newest, err := db.GetNewestAds(search.ID, 2)
	if err != nil {
		t.Fatal("Error loading newest ads:", err)
	}
	if len(newest) != 2 || newest[0].AdID != "803" {
		t.Errorf("Newest-first order wrong: %+v", newest)
	}

	last, err := db.GetLastAds(search.ID, 2)
	if err != nil {
		t.Fatal("Error loading last ads:", err)
	}
	if len(last) != 2 || last[0].AdID != "801" {
		t.Errorf("Oldest-first order wrong: %+v", last)
	}

	// Limits outside 1..100 are clamped, not rejected.
	clamped, err := db.GetNewestAds(search.ID, -5)
	if err != nil {
		t.Fatal("Error with clamped limit:", err)
	}
	if len(clamped) != 1 {
		t.Errorf("Limit below 1 should clamp to 1, got %d rows", len(clamped))
	}
}

func TestUserAdQueriesIsolatePerUser(t *testing.T) {
	db := setupTestDB(t)
	searchA := createTestSearch(t, db, 660000777)
	searchB := createTestSearch(t, db, 660000888)

	if err := db.MarkAsSeen(&SeenAd{AdID: "810", SearchID: searchA.ID, Title: "DDR5 RAM"}); err != nil {
		t.Fatal("Error marking ad for user A:", err)
	}
	if err := db.MarkAsSeen(&SeenAd{AdID: "811", SearchID: searchB.ID, Title: "DDR5 RAM"}); err != nil {
		t.Fatal("Error marking ad for user B:", err)
	}

	ads, err := db.GetNewestAdsForUser(searchA.UserID, 50)
	if err != nil {
		t.Fatal("Error loading user ads:", err)
	}

	for _, ad := range ads {
		if ad.SearchID == searchB.ID {
			t.Errorf("History leaked across users: found ad %s from search %d", ad.AdID, ad.SearchID)
		}
	}

	found := false
	for _, ad := range ads {
		if ad.AdID == "810" {
			found = true
		}
	}
	if !found {
		t.Error("User's own ad missing from history")
	}

	oldest, err := db.GetLastAdsForUser(searchA.UserID, 50)
	if err != nil {
		t.Fatal("Error loading user ads oldest-first:", err)
	}
	for _, ad := range oldest {
		if ad.SearchID == searchB.ID {
			t.Errorf("History leaked across users: found ad %s from search %d", ad.AdID, ad.SearchID)
		}
	}
}

func TestCleanupOldEntries(t *testing.T) {
	db := setupTestDB(t)
	search := createTestSearch(t, db, 660000555)

	old := &SeenAd{
		AdID: "804", SearchID: search.ID, Title: "DDR5 RAM",
		FetchedAt: time.Now().AddDate(0, 0, -40),
	}
	recent := &SeenAd{AdID: "805", SearchID: search.ID, Title: "DDR5 RAM"}

	if err := db.MarkAsSeen(old); err != nil {
		t.Fatal("Error marking old ad:", err)
	}
	if err := db.MarkAsSeen(recent); err != nil {
		t.Fatal("Error marking recent ad:", err)
	}

	if _, err := db.CleanupOldEntries(30); err != nil {
		t.Fatal("Cleanup failed:", err)
	}

	if !db.IsNewAd("804", search.ID) {
		t.Error("Old entry should have been pruned")
	}
	if db.IsNewAd("805", search.ID) {
		t.Error("Recent entry must survive the prune")
	}
}

func TestGetStats(t *testing.T) {
	db := setupTestDB(t)
	search := createTestSearch(t, db, 660000666)

	before, err := db.GetStats(7)
	if err != nil {
		t.Fatal("Error loading stats:", err)
	}

	if err := db.MarkAsSeen(&SeenAd{AdID: "806", SearchID: search.ID, Title: "DDR5 RAM"}); err != nil {
		t.Fatal("Error marking ad seen:", err)
	}

	after, err := db.GetStats(7)
	if err != nil {
		t.Fatal("Error loading stats:", err)
	}

	if after.Total != before.Total+1 {
		t.Errorf("Total should grow by 1: before=%d after=%d", before.Total, after.Total)
	}
	if after.Recent != before.Recent+1 {
		t.Errorf("Recent should grow by 1: before=%d after=%d", before.Recent, after.Recent)
	}
}
