package model

import (
	"fmt"
	"strings"
)

// Listing is a single scraped advert.
type Listing struct {
	ID                 string `json:"id"`
	Title              string `json:"title"`
	Price              string `json:"price"`
	URL                string `json:"url"`
	FromOwner          bool   `json:"from_owner"`
	ResidentialComplex string `json:"residential_complex,omitempty"`
	Description        string `json:"description,omitempty"`
}

// Mode is the deal type a subscriber searches for.
type Mode string

const (
	ModeRent Mode = "rent"
	ModeSale Mode = "sale"
)

// ParseMode falls back to rent for unknown or empty values.
func ParseMode(s string) Mode {
	if Mode(strings.ToLower(strings.TrimSpace(s))) == ModeSale {
		return ModeSale
	}
	return ModeRent
}

// SearchKey identifies one distinct scrape target. It is comparable so a
// tick can reuse search results per key.
type SearchKey struct {
	Mode          Mode
	Rooms         int
	District      string // site slug
	FromOwnerOnly bool
}

func (k SearchKey) String() string {
	return fmt.Sprintf("%s/%d/%s/owner=%t", k.Mode, k.Rooms, k.District, k.FromOwnerOnly)
}
