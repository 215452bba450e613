package model

import (
	"strings"
	"time"
)

// Tier is a subscription class.
type Tier string

const (
	TierFree     Tier = "free"
	TierStandard Tier = "standard"
	TierPro      Tier = "pro"
)

// Tiers lists every tier, highest first.
var Tiers = []Tier{TierPro, TierStandard, TierFree}

// Priority orders outbound delivery; lower is sent first.
func (t Tier) Priority() int {
	switch t {
	case TierPro:
		return 0
	case TierStandard:
		return 1
	default:
		return 2
	}
}

func (t Tier) Valid() bool {
	return t == TierFree || t == TierStandard || t == TierPro
}

// Subscriber is the per-tick snapshot of a user eligible for notifications.
type Subscriber struct {
	UserID               int64    `json:"user_id"`
	Username             string   `json:"username"`
	Tier                 Tier     `json:"tier"`
	Mode                 Mode     `json:"mode"`
	Rooms                int      `json:"rooms"`
	Districts            []string `json:"districts"`
	FromOwnerOnly        bool     `json:"from_owner"`
	NotificationsEnabled bool     `json:"notifications_enabled"`
	// ResidentialComplexes is only honoured for the pro tier.
	ResidentialComplexes []string `json:"residential_complexes,omitempty"`
}

// SearchKeys returns one key per configured district, without duplicates.
func (s Subscriber) SearchKeys() []SearchKey {
	rooms := s.Rooms
	if rooms <= 0 {
		rooms = 1
	}
	mode := s.Mode
	if mode == "" {
		mode = ModeRent
	}
	seen := map[string]bool{}
	keys := make([]SearchKey, 0, len(s.Districts))
	for _, d := range s.Districts {
		slug := DistrictSlug(d)
		if slug == "" || seen[slug] {
			continue
		}
		seen[slug] = true
		keys = append(keys, SearchKey{Mode: mode, Rooms: rooms, District: slug, FromOwnerOnly: s.FromOwnerOnly})
	}
	return keys
}

// WantsComplex reports whether the listing passes the subscriber's
// residential-complex filter. An empty filter accepts everything.
func (s Subscriber) WantsComplex(l Listing) bool {
	if len(s.ResidentialComplexes) == 0 {
		return true
	}
	haystack := strings.ToLower(l.ResidentialComplex + " " + l.Title)
	for _, c := range s.ResidentialComplexes {
		c = strings.ToLower(strings.TrimSpace(c))
		if c != "" && strings.Contains(haystack, c) {
			return true
		}
	}
	return false
}

// DeliveryRecord marks a listing as delivered to a user.
type DeliveryRecord struct {
	UserID    int64     `json:"user_id"`
	ListingID string    `json:"listing_id"`
	SentAt    time.Time `json:"sent_at"`
}
