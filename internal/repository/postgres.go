package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Connect opens a pool and waits until the database answers. A DSN that
// goes through PgBouncer (port 6432) is switched to the simple protocol.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse dsn: %w", err)
	}
	if cfg.ConnConfig.Port == 6432 {
		cfg.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}

	for i := 0; i < 10; i++ {
		if err = pool.Ping(ctx); err == nil {
			break
		}
		select {
		case <-ctx.Done():
			pool.Close()
			return nil, ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping failed after retries: %w", err)
	}
	return pool, nil
}

// Migrate creates the tables owned by the monitor. The users and complex
// tables belong to the bot front end and are not touched here.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS sent_listings (
			id         SERIAL PRIMARY KEY,
			user_id    BIGINT      NOT NULL,
			listing_id TEXT        NOT NULL,
			sent_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE UNIQUE INDEX IF NOT EXISTS idx_sent_listings_unique ON sent_listings(user_id, listing_id);
		CREATE INDEX IF NOT EXISTS idx_sent_listings_user_time ON sent_listings(user_id, sent_at);

		CREATE TABLE IF NOT EXISTS stats (
			date          DATE PRIMARY KEY,
			new_users     INTEGER DEFAULT 0,
			active_users  INTEGER DEFAULT 0,
			messages_sent INTEGER DEFAULT 0
		);
	`)
	if err != nil {
		return fmt.Errorf("postgres: migrate: %w", err)
	}
	return nil
}
