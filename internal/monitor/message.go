package monitor

import (
	"strings"

	"github.com/nzaharov305-rgb/telegram-bot/internal/model"
)

// FormatMessage renders the notification text for a listing.
func FormatMessage(l model.Listing, annotation string) string {
	var b strings.Builder
	b.WriteString("🏠 " + l.Title + "\n")
	b.WriteString("💰 " + l.Price + "\n")
	b.WriteString("🔗 " + l.URL)
	if l.ResidentialComplex != "" {
		b.WriteString("\n🏢 " + l.ResidentialComplex)
	}
	if annotation != "" {
		b.WriteString("\n\n🤖 " + annotation)
	}
	return b.String()
}
