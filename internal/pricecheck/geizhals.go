// Package pricecheck looks up new-price references on the Geizhals
// price comparison site. Lookups are best-effort enrichment: any failure
// yields a nil match, never an error that stops the pipeline.
package pricecheck

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"

	"kleinanzeigen-hunter/internal/utils"
)

const baseURL = "https://geizhals.de"

// Match is one price comparison result.
type Match struct {
	Model     string   `json:"model"`
	Price     *float64 `json:"price"`
	Link      string   `json:"link"`
	ArticleNr string   `json:"article_nr"`
}

var articleNrPatterns = []*regexp.Regexp{
	regexp.MustCompile(`KF\d{3}C\d{2}[A-Z]{2,4}\d?-\d{2,3}`),
	regexp.MustCompile(`F\d-\d{4}[A-Z]\d{2}-\d{2}[A-Z]{2}`),
	regexp.MustCompile(`CMK\d{2}GX\dM\dA\d{4}C\d{2}`),
	regexp.MustCompile(`CMT\d{2}GX\dM\dA\d{4}C\d{2}`),
	regexp.MustCompile(`BLS\d{1,2}G\d[A-Z]\d{3,4}[A-Z]\d`),
	regexp.MustCompile(`TF\d{2}D\d{2}[A-Z]\d{4}C\d{2}`),
}

var priceDigitsRe = regexp.MustCompile(`[\d.]+`)

type Client struct {
	timeout time.Duration
}

func NewClient(timeoutSeconds int) *Client {
	return &Client{timeout: time.Duration(timeoutSeconds) * time.Second}
}

// SearchProduct scrapes the first Geizhals result for the query.
// Returns nil when nothing was found or the site was unreachable.
func (c *Client) SearchProduct(query string) (*Match, error) {
	collector := colly.NewCollector(
		colly.UserAgent(utils.RandomUserAgent()),
	)
	collector.SetRequestTimeout(c.timeout)

	var match *Match

	collector.OnHTML("div.listview__item", func(e *colly.HTMLElement) {
		if match != nil {
			return
		}

		model := strings.TrimSpace(e.DOM.Find("a.listview__name").First().Text())
		if model == "" {
			return
		}

		link := e.DOM.Find("a.listview__name").First().AttrOr("href", "")
		if link != "" && !strings.HasPrefix(link, "http") {
			link = baseURL + link
		}

		match = &Match{
			Model:     model,
			Price:     parsePrice(e.DOM.Find("span.gh_price").First().Text()),
			Link:      link,
			ArticleNr: ExtractArticleNr(model),
		}
	})

	searchURL := fmt.Sprintf("%s/?fs=%s&in=", baseURL, url.QueryEscape(query))
	if err := collector.Visit(searchURL); err != nil {
		return nil, err
	}

	return match, nil
}

// ExtractArticleNr matches a vendor article number inside a product title.
func ExtractArticleNr(title string) string {
	upper := strings.ToUpper(title)
	for _, re := range articleNrPatterns {
		if m := re.FindString(upper); m != "" {
			return m
		}
	}
	return ""
}

func parsePrice(text string) *float64 {
	normalized := strings.ReplaceAll(strings.TrimSpace(text), ",", ".")
	m := priceDigitsRe.FindString(normalized)
	if m == "" {
		return nil
	}
	price, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return nil
	}
	return &price
}
