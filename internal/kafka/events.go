package kafka

import (
	"time"

	"kleinanzeigen-hunter/internal/parser"
	"kleinanzeigen-hunter/internal/scraper"
)

const (
	EventSearchCreated = "search_created"
	EventScrapeRequest = "scrape_request"
	EventNewListings   = "new_listings"
)

// ScoredListing is a listing together with its extracted attributes,
// as carried in new_listings events.
type ScoredListing struct {
	scraper.Listing
	Attributes parser.Attributes `json:"attributes"`
}

type SearchCreatedEvent struct {
	EventType string    `json:"event_type"`
	SearchID  uint      `json:"search_id"`
	UserID    uint      `json:"user_id"`
	ChatID    int64     `json:"chat_id"`
	Keyword   string    `json:"keyword"`
	CreatedAt time.Time `json:"created_at"`
}

type ScrapeRequestEvent struct {
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

type NewListingsEvent struct {
	EventType string          `json:"event_type"`
	SearchID  uint            `json:"search_id"`
	ChatID    int64           `json:"chat_id"`
	Keyword   string          `json:"keyword"`
	Listings  []ScoredListing `json:"listings"`
	FoundAt   time.Time       `json:"found_at"`
}
