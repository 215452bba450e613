package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresLedger stores delivery records in sent_listings. Uniqueness of
// (user_id, listing_id) is enforced by the database, so concurrent callers
// need no extra locking.
type PostgresLedger struct {
	pool *pgxpool.Pool
}

func NewPostgresLedger(pool *pgxpool.Pool) *PostgresLedger {
	return &PostgresLedger{pool: pool}
}

func (r *PostgresLedger) WasDelivered(ctx context.Context, userID int64, listingID string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM sent_listings WHERE user_id = $1 AND listing_id = $2)`,
		userID, listingID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("was delivered: %w", err)
	}
	return exists, nil
}

func (r *PostgresLedger) MarkDelivered(ctx context.Context, userID int64, listingID string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		INSERT INTO sent_listings (user_id, listing_id)
		VALUES ($1, $2)
		ON CONFLICT (user_id, listing_id) DO NOTHING`,
		userID, listingID)
	if err != nil {
		return false, fmt.Errorf("mark delivered: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *PostgresLedger) CountDeliveredInWindow(ctx context.Context, userID int64, window time.Duration) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM sent_listings
		WHERE user_id = $1 AND sent_at > NOW() - make_interval(secs => $2)`,
		userID, window.Seconds()).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count delivered: %w", err)
	}
	return n, nil
}

// PostgresStats keeps the daily messages_sent counter.
type PostgresStats struct {
	pool *pgxpool.Pool
}

func NewPostgresStats(pool *pgxpool.Pool) *PostgresStats {
	return &PostgresStats{pool: pool}
}

func (r *PostgresStats) CountEventsToday(ctx context.Context) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx,
		`SELECT COALESCE((SELECT messages_sent FROM stats WHERE date = CURRENT_DATE), 0)`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count events today: %w", err)
	}
	return n, nil
}

func (r *PostgresStats) IncrementEventCount(ctx context.Context, n int) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO stats (date, messages_sent)
		VALUES (CURRENT_DATE, $1)
		ON CONFLICT (date) DO UPDATE SET
			messages_sent = stats.messages_sent + EXCLUDED.messages_sent`, n)
	if err != nil {
		return fmt.Errorf("increment events: %w", err)
	}
	return nil
}
