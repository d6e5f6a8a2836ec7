package scraper

// Listing is one normalized marketplace ad as scraped from a result page.
// Optional string fields default to "" so downstream formatting never
// needs nil checks; Price is a pointer because a missing price means
// "price on request", not zero.
type Listing struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	Price        *float64 `json:"price,omitempty"`
	Location     string   `json:"location"`
	Link         string   `json:"link"`
	PostedTime   string   `json:"posted_time"`
	ShippingType string   `json:"shipping_type"`
	Description  string   `json:"description"`
	IsRequest    bool     `json:"is_request"`
	ImageURLs    []string `json:"image_urls,omitempty"`
}
