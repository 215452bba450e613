package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nzaharov305-rgb/telegram-bot/internal/model"
)

// PostgresSubscribers reads eligible subscribers from the users table.
type PostgresSubscribers struct {
	pool *pgxpool.Pool
}

func NewPostgresSubscribers(pool *pgxpool.Pool) *PostgresSubscribers {
	return &PostgresSubscribers{pool: pool}
}

const subscriberColumns = `user_id, username, subscription_type, mode, rooms, district, districts, from_owner, notifications_enabled`

func (r *PostgresSubscribers) ListEligible(ctx context.Context, tier model.Tier) ([]model.Subscriber, error) {
	entitlement := `subscription_until > NOW()`
	if tier == model.TierFree {
		entitlement = `(trial_until IS NULL OR trial_until > NOW())`
	}
	q := `SELECT ` + subscriberColumns + ` FROM users
		WHERE subscription_type = $1 AND notifications_enabled = TRUE
		AND (district IS NOT NULL OR cardinality(districts) > 0)
		AND ` + entitlement + `
		ORDER BY id`

	rows, err := r.pool.Query(ctx, q, string(tier))
	if err != nil {
		return nil, fmt.Errorf("list eligible %s: %w", tier, err)
	}
	subs, err := pgx.CollectRows(rows, scanSubscriber)
	if err != nil {
		return nil, fmt.Errorf("scan eligible %s: %w", tier, err)
	}

	out := subs[:0]
	for _, s := range subs {
		if len(s.Districts) > 0 {
			out = append(out, s)
		}
	}
	return out, nil
}

func scanSubscriber(row pgx.CollectableRow) (model.Subscriber, error) {
	var (
		s         model.Subscriber
		username  *string
		tier      string
		mode      *string
		rooms     *int
		district  *string
		districts []string
		fromOwner *bool
	)
	if err := row.Scan(&s.UserID, &username, &tier, &mode, &rooms, &district, &districts, &fromOwner, &s.NotificationsEnabled); err != nil {
		return s, err
	}
	s.Tier = model.Tier(tier)
	if username != nil {
		s.Username = *username
	}
	s.Mode = model.ModeRent
	if mode != nil {
		s.Mode = model.ParseMode(*mode)
	}
	s.Rooms = 1
	if rooms != nil && *rooms > 0 {
		s.Rooms = *rooms
	}
	if fromOwner != nil {
		s.FromOwnerOnly = *fromOwner
	}
	s.Districts = mergeDistricts(district, districts)
	return s, nil
}

// mergeDistricts joins the legacy single district column with the list.
func mergeDistricts(single *string, list []string) []string {
	out := make([]string, 0, len(list)+1)
	seen := map[string]bool{}
	add := func(d string) {
		if d == "" || seen[d] {
			return
		}
		seen[d] = true
		out = append(out, d)
	}
	if single != nil {
		add(*single)
	}
	for _, d := range list {
		add(d)
	}
	return out
}
