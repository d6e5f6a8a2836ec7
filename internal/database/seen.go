package database

import (
	"log"
	"time"

	"gorm.io/gorm/clause"
)

// maxAdQueryLimit caps the on-demand history queries.
const maxAdQueryLimit = 100

// IsNewAd reports whether an ad has not been processed yet within the
// given search scope. Storage failures fail open: a duplicate
// notification is preferred over a silently dropped new listing.
func (db *DB) IsNewAd(adID string, searchID uint) bool {
	var count int64
	err := db.Model(&SeenAd{}).
		Where("ad_id = ? AND search_id = ?", adID, searchID).
		Count(&count).Error
	if err != nil {
		log.Printf("Error checking ad %s (search %d), treating as new: %v", adID, searchID, err)
		return true
	}
	return count == 0
}

// MarkAsSeen records an ad as processed for its search scope. The write
// is an idempotent upsert so later enrichment can overwrite the row.
func (db *DB) MarkAsSeen(ad *SeenAd) error {
	if ad.FetchedAt.IsZero() {
		ad.FetchedAt = time.Now()
	}

	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "ad_id"}, {Name: "search_id"}},
		UpdateAll: true,
	}).Create(ad).Error
}

// GetLastAds returns up to limit seen ads for a search, oldest first.
func (db *DB) GetLastAds(searchID uint, limit int) ([]*SeenAd, error) {
	return db.queryAds(searchID, limit, "fetched_at asc")
}

// GetNewestAds returns up to limit seen ads for a search, newest first.
func (db *DB) GetNewestAds(searchID uint, limit int) ([]*SeenAd, error) {
	return db.queryAds(searchID, limit, "fetched_at desc")
}

func (db *DB) queryAds(searchID uint, limit int, order string) ([]*SeenAd, error) {
	var ads []*SeenAd
	err := db.Model(&SeenAd{}).
		Where("search_id = ?", searchID).
		Order(order).
		Limit(clampLimit(limit)).
		Find(&ads).Error
	return ads, err
}

// GetLastAdsForUser returns up to limit seen ads across all of one
// user's searches, oldest first. History queries are per user: one
// user's command must never surface another user's finds.
func (db *DB) GetLastAdsForUser(userID uint, limit int) ([]*SeenAd, error) {
	return db.queryUserAds(userID, limit, "fetched_at asc")
}

// GetNewestAdsForUser is GetLastAdsForUser with newest-first order.
func (db *DB) GetNewestAdsForUser(userID uint, limit int) ([]*SeenAd, error) {
	return db.queryUserAds(userID, limit, "fetched_at desc")
}

func (db *DB) queryUserAds(userID uint, limit int, order string) ([]*SeenAd, error) {
	searchIDs := db.Model(&Search{}).Select("id").Where("user_id = ?", userID)

	var ads []*SeenAd
	err := db.Model(&SeenAd{}).
		Where("search_id IN (?)", searchIDs).
		Order(order).
		Limit(clampLimit(limit)).
		Find(&ads).Error
	return ads, err
}

func clampLimit(limit int) int {
	if limit < 1 {
		return 1
	}
	if limit > maxAdQueryLimit {
		return maxAdQueryLimit
	}
	return limit
}

// CleanupOldEntries deletes seen ads older than the given number of days
// and returns how many rows were removed.
func (db *DB) CleanupOldEntries(days int) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -days)

	result := db.Where("fetched_at < ?", cutoff).Delete(&SeenAd{})
	if result.Error != nil {
		return 0, result.Error
	}

	if result.RowsAffected > 0 {
		log.Printf("Pruned %d seen ads older than %d days", result.RowsAffected, days)
	}
	return result.RowsAffected, nil
}

// Stats is an aggregate view over the seen-ad history.
type Stats struct {
	Total  int64
	Recent int64
}

// GetStats counts all seen ads plus those within the last N days.
func (db *DB) GetStats(days int) (Stats, error) {
	var stats Stats

	if err := db.Model(&SeenAd{}).Count(&stats.Total).Error; err != nil {
		return stats, err
	}

	cutoff := time.Now().AddDate(0, 0, -days)
	err := db.Model(&SeenAd{}).
		Where("fetched_at >= ?", cutoff).
		Count(&stats.Recent).Error
	return stats, err
}
