package database

import (
	"encoding/json"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type User struct {
	ID         uint      `json:"id" gorm:"primaryKey"`
	TelegramID int64     `json:"telegram_id" gorm:"uniqueIndex;not null"`
	Username   string    `json:"username" gorm:"size:50"`
	FirstName  string    `json:"first_name" gorm:"size:100"`
	Allowed    bool      `json:"allowed" gorm:"default:true"`
	CreatedAt  time.Time `json:"created_at"`

	Searches []Search `json:"searches" gorm:"foreignKey:UserID"`
}

type Search struct {
	ID                 uint       `json:"id" gorm:"primaryKey"`
	UserID             uint       `json:"user_id" gorm:"not null"`
	Keyword            string     `json:"keyword" gorm:"size:100;not null"`
	Category           string     `json:"category" gorm:"size:20;default:c225"`
	PriceMin           *float64   `json:"price_min"`
	PriceMax           *float64   `json:"price_max"`
	IntervalSeconds    int        `json:"interval_seconds" gorm:"default:300"`
	ShippingPreference string     `json:"shipping_preference" gorm:"size:10;default:both"`
	ExcludeKeywords    string     `json:"exclude_keywords"` // JSON array in a text column
	Active             bool       `json:"active" gorm:"default:true"`
	LastCheck          *time.Time `json:"last_check"`
	CreatedAt          time.Time  `json:"created_at"`

	User User `json:"user"`
}

// ExcludeKeywordList decodes the persisted exclude-keywords column.
func (s *Search) ExcludeKeywordList() []string {
	if s.ExcludeKeywords == "" {
		return nil
	}
	var keywords []string
	if err := json.Unmarshal([]byte(s.ExcludeKeywords), &keywords); err != nil {
		return nil
	}
	return keywords
}

// SeenAd is one already-processed listing, scoped per search: the same
// marketplace ad can legitimately match several saved searches and each
// scope gets its own one-time notification.
type SeenAd struct {
	AdID     string `json:"ad_id" gorm:"primaryKey;size:20"`
	SearchID uint   `json:"search_id" gorm:"primaryKey"`

	// Snapshot of the listing at time of first sight.
	Title        string   `json:"title" gorm:"not null"`
	Price        *float64 `json:"price"`
	Link         string   `json:"link"`
	Location     string   `json:"location"`
	ShippingType string   `json:"shipping_type" gorm:"size:50"`
	PostedTime   string   `json:"posted_time" gorm:"size:50"`

	// Extracted attributes.
	ModelNumber       string `json:"model_number" gorm:"size:50"`
	Manufacturer      string `json:"manufacturer" gorm:"size:50"`
	Capacity          string `json:"capacity" gorm:"size:20"`
	Speed             string `json:"speed" gorm:"size:20"`
	Latency           string `json:"latency" gorm:"size:10"`
	Color             string `json:"color" gorm:"size:20"`
	HasOVP            bool   `json:"has_ovp"`
	HasInvoice        bool   `json:"has_invoice"`
	ShippingAvailable bool   `json:"shipping_available"`
	PriorityScore     int    `json:"priority_score"`

	// Optional enrichment, filled by a later re-insert.
	ComparisonModel string   `json:"comparison_model" gorm:"size:100"`
	ComparisonPrice *float64 `json:"comparison_price"`
	ComparisonLink  string   `json:"comparison_link"`

	FetchedAt time.Time `json:"fetched_at" gorm:"index"`

	Search Search `json:"-" gorm:"constraint:OnDelete:CASCADE"`
}

type DB struct {
	*gorm.DB
}

func Connect(dsn string) (*DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(&User{}, &Search{}, &SeenAd{}); err != nil {
		return nil, err
	}

	return &DB{db}, nil
}
