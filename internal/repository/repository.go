package repository

import (
	"context"
	"time"

	"github.com/nzaharov305-rgb/telegram-bot/internal/model"
)

// SubscriberDirectory is the read-only view of users eligible for a tier.
type SubscriberDirectory interface {
	// ListEligible returns subscribers of the tier with notifications
	// enabled, an unexpired entitlement and at least one district.
	ListEligible(ctx context.Context, tier model.Tier) ([]model.Subscriber, error)
}

// Ledger records which listings were delivered to which users. All methods
// are safe for concurrent use.
type Ledger interface {
	WasDelivered(ctx context.Context, userID int64, listingID string) (bool, error)
	// MarkDelivered is idempotent. It reports whether this call created the
	// record; only the creator may deliver the listing.
	MarkDelivered(ctx context.Context, userID int64, listingID string) (bool, error)
	CountDeliveredInWindow(ctx context.Context, userID int64, window time.Duration) (int, error)
}

// StatsRecorder keeps the aggregate delivery counter.
type StatsRecorder interface {
	CountEventsToday(ctx context.Context) (int, error)
	IncrementEventCount(ctx context.Context, n int) error
}

// ComplexSource lists the residential complexes each user selected.
type ComplexSource interface {
	SelectedComplexes(ctx context.Context) (map[int64][]string, error)
}
