package database

import (
	"encoding/json"

	"gorm.io/gorm"
)

func (db *DB) CreateOrUpdateUser(telegramID int64, username, firstName string) (*User, error) {
	user := &User{}

	result := db.Where("telegram_id = ?", telegramID).First(user)

	if result.Error == gorm.ErrRecordNotFound {
		user = &User{
			TelegramID: telegramID,
			Username:   username,
			FirstName:  firstName,
			Allowed:    true,
		}
		err := db.Create(user).Error
		return user, err
	}

	user.Username = username
	user.FirstName = firstName
	err := db.Save(user).Error
	return user, err
}

func (db *DB) GetUserByTelegramID(telegramID int64) (*User, error) {
	var user User
	err := db.Where("telegram_id = ?", telegramID).First(&user).Error

	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}

	return &user, err
}

func (db *DB) IsUserAllowed(telegramID int64) bool {
	user, err := db.GetUserByTelegramID(telegramID)
	if err != nil || user == nil {
		return false
	}
	return user.Allowed
}

func (db *DB) AddSearch(userID uint, keyword, category string, priceMin, priceMax *float64,
	intervalSeconds int, shippingPreference string, excludeKeywords []string) (*Search, error) {

	excludeJSON := ""
	if len(excludeKeywords) > 0 {
		data, err := json.Marshal(excludeKeywords)
		if err != nil {
			return nil, err
		}
		excludeJSON = string(data)
	}

	search := &Search{
		UserID:             userID,
		Keyword:            keyword,
		Category:           category,
		PriceMin:           priceMin,
		PriceMax:           priceMax,
		IntervalSeconds:    intervalSeconds,
		ShippingPreference: shippingPreference,
		ExcludeKeywords:    excludeJSON,
		Active:             true,
	}

	err := db.Create(search).Error
	return search, err
}

func (db *DB) GetActiveSearches() ([]*Search, error) {
	var searches []*Search
	err := db.Where("active = ?", true).Preload("User").Order("id").Find(&searches).Error
	return searches, err
}

func (db *DB) GetUserSearches(userID uint) ([]*Search, error) {
	var searches []*Search
	err := db.Where("user_id = ?", userID).Order("created_at desc").Find(&searches).Error
	return searches, err
}

func (db *DB) GetSearchByID(searchID, userID uint) (*Search, error) {
	var search Search
	err := db.Where("id = ? AND user_id = ?", searchID, userID).First(&search).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	return &search, err
}

// PauseSearch deactivates a search. Returns false when the search does
// not exist or belongs to another user.
func (db *DB) PauseSearch(searchID, userID uint) (bool, error) {
	result := db.Model(&Search{}).
		Where("id = ? AND user_id = ?", searchID, userID).
		Update("active", false)
	return result.RowsAffected > 0, result.Error
}

func (db *DB) ResumeSearch(searchID, userID uint) (bool, error) {
	result := db.Model(&Search{}).
		Where("id = ? AND user_id = ?", searchID, userID).
		Update("active", true)
	return result.RowsAffected > 0, result.Error
}

// DeleteSearch removes a search and all of its seen-ad history in one
// transaction. Leftover orphaned history must never resurface under a
// reused search id.
func (db *DB) DeleteSearch(searchID, userID uint) (bool, error) {
	deleted := false
	err := db.Transaction(func(tx *gorm.DB) error {
		result := tx.Where("id = ? AND user_id = ?", searchID, userID).Delete(&Search{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return nil
		}

		if err := tx.Where("search_id = ?", searchID).Delete(&SeenAd{}).Error; err != nil {
			return err
		}
		deleted = true
		return nil
	})
	return deleted, err
}

// updatableSearchFields is the allow-list for UpdateSearch.
var updatableSearchFields = map[string]bool{
	"keyword":             true,
	"category":            true,
	"price_min":           true,
	"price_max":           true,
	"interval_seconds":    true,
	"shipping_preference": true,
	"exclude_keywords":    true,
}

func (db *DB) UpdateSearch(searchID, userID uint, fields map[string]interface{}) (bool, error) {
	updates := make(map[string]interface{})
	for field, value := range fields {
		if !updatableSearchFields[field] {
			continue
		}
		if field == "exclude_keywords" {
			if keywords, ok := value.([]string); ok {
				data, err := json.Marshal(keywords)
				if err != nil {
					return false, err
				}
				value = string(data)
			}
		}
		updates[field] = value
	}

	if len(updates) == 0 {
		return false, nil
	}

	result := db.Model(&Search{}).
		Where("id = ? AND user_id = ?", searchID, userID).
		Updates(updates)
	return result.RowsAffected > 0, result.Error
}

func (db *DB) UpdateSearchLastCheck(searchID uint) error {
	return db.Model(&Search{}).
		Where("id = ?", searchID).
		Update("last_check", gorm.Expr("NOW()")).Error
}
