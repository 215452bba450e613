package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresComplexes reads the residential complexes selected by users.
type PostgresComplexes struct {
	pool *pgxpool.Pool
}

func NewPostgresComplexes(pool *pgxpool.Pool) *PostgresComplexes {
	return &PostgresComplexes{pool: pool}
}

func (r *PostgresComplexes) SelectedComplexes(ctx context.Context) (map[int64][]string, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT urc.user_id, rc.name
		FROM user_residential_complexes urc
		JOIN residential_complexes rc ON rc.id = urc.complex_id
		WHERE rc.is_active = TRUE
		ORDER BY urc.user_id, urc.created_at`)
	if err != nil {
		return nil, fmt.Errorf("selected complexes: %w", err)
	}
	defer rows.Close()

	out := map[int64][]string{}
	for rows.Next() {
		var (
			userID int64
			name   string
		)
		if err := rows.Scan(&userID, &name); err != nil {
			return nil, fmt.Errorf("scan complex: %w", err)
		}
		out[userID] = append(out[userID], name)
	}
	return out, rows.Err()
}
