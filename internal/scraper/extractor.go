package scraper

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/nzaharov305-rgb/telegram-bot/internal/model"
)

// Extractor turns a fetched page into listings.
type Extractor interface {
	Extract(page []byte) ([]model.Listing, error)
}

// Selectors describes where listing fields live on a search results page.
// Bump Version when the site markup changes.
type Selectors struct {
	Version     int
	Card        string
	Title       string
	Price       string
	Complex     string
	Description string
}

var DefaultSelectors = Selectors{
	Version:     1,
	Card:        "div.a-card",
	Title:       "a.a-card__title",
	Price:       "div.a-card__price",
	Complex:     "div.a-card__subtitle a, a.a-card__complex-link",
	Description: "div.a-card__text-preview",
}

var ownerMarkers = []string{"от хозяина", "собственник"}

// KrishaExtractor parses search result cards.
type KrishaExtractor struct {
	BaseURL   string
	Selectors Selectors
}

func NewKrishaExtractor(baseURL string) *KrishaExtractor {
	return &KrishaExtractor{BaseURL: strings.TrimRight(baseURL, "/"), Selectors: DefaultSelectors}
}

// Extract returns the cards that carry both a title and a price; other cards
// are skipped.
func (e *KrishaExtractor) Extract(page []byte) ([]model.Listing, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("parse page: %w", err)
	}
	sel := e.Selectors
	var out []model.Listing
	doc.Find(sel.Card).Each(func(_ int, card *goquery.Selection) {
		title := card.Find(sel.Title).First()
		price := card.Find(sel.Price).First()
		titleText := cleanText(title.Text())
		priceText := cleanText(price.Text())
		if title.Length() == 0 || price.Length() == 0 || titleText == "" || priceText == "" {
			return
		}
		href, _ := title.Attr("href")
		link := e.absolute(href)

		text := strings.ToLower(card.Text())
		fromOwner := false
		for _, m := range ownerMarkers {
			if strings.Contains(text, m) {
				fromOwner = true
				break
			}
		}

		out = append(out, model.Listing{
			ID:                 ListingID(link),
			Title:              titleText,
			Price:              priceText,
			URL:                link,
			FromOwner:          fromOwner,
			ResidentialComplex: cleanText(card.Find(sel.Complex).First().Text()),
			Description:        cleanText(card.Find(sel.Description).First().Text()),
		})
	})
	return out, nil
}

func (e *KrishaExtractor) absolute(href string) string {
	href = strings.TrimSpace(href)
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	if !strings.HasPrefix(href, "/") {
		href = "/" + href
	}
	return e.BaseURL + href
}

// ListingID takes the leading numeric token of the last path segment
// ("/a/show/681234567" or "/a/show/681234567-2-komn"). When there is none the
// whole URL is the id, which can collapse distinct listings that share it.
func ListingID(link string) string {
	path := link
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	path = strings.TrimRight(path, "/")
	seg := path[strings.LastIndex(path, "/")+1:]
	token, _, _ := strings.Cut(seg, "-")
	if token != "" && isDigits(token) {
		return token
	}
	return link
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
