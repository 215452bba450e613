package scraper

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/nzaharov305-rgb/telegram-bot/internal/model"
)

// Scraper runs one search: build the URL, fetch it and extract listings.
type Scraper struct {
	fetcher   *Fetcher
	extractor Extractor
	baseURL   string
	city      string
	log       *zap.Logger
}

func New(fetcher *Fetcher, extractor Extractor, baseURL, city string, log *zap.Logger) *Scraper {
	return &Scraper{
		fetcher:   fetcher,
		extractor: extractor,
		baseURL:   strings.TrimRight(baseURL, "/"),
		city:      city,
		log:       log,
	}
}

// BuildURL returns the search page for the key.
func BuildURL(baseURL, city string, key model.SearchKey) string {
	section := "arenda"
	if key.Mode == model.ModeSale {
		section = "prodazha"
	}
	q := url.Values{}
	q.Set("das[live.rooms]", fmt.Sprint(max(key.Rooms, 1)))
	if key.FromOwnerOnly {
		q.Set("das[who]", "1")
	}
	return fmt.Sprintf("%s/%s/kvartiry/%s-%s/?%s", strings.TrimRight(baseURL, "/"), section, city, key.District, q.Encode())
}

// Search never fails hard: when fetching is exhausted it returns an empty
// slice together with the *FetchError so the caller can log it and move on.
func (s *Scraper) Search(ctx context.Context, key model.SearchKey) ([]model.Listing, error) {
	pageURL := BuildURL(s.baseURL, s.city, key)
	page, err := s.fetcher.Fetch(ctx, pageURL)
	if err != nil {
		s.log.Error("search failed", zap.Stringer("key", key), zap.Error(err))
		return []model.Listing{}, err
	}
	listings, err := s.extractor.Extract(page)
	if err != nil {
		return []model.Listing{}, fmt.Errorf("extract %s: %w", pageURL, err)
	}
	s.log.Debug("search done", zap.Stringer("key", key), zap.Int("listings", len(listings)))
	return listings, nil
}
