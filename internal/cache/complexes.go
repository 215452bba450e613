package cache

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/nzaharov305-rgb/telegram-bot/internal/repository"
)

// ComplexFilters is a periodically refreshed snapshot of the residential
// complexes each user selected.
type ComplexFilters struct {
	src repository.ComplexSource
	log *zap.Logger

	mu     sync.RWMutex
	byUser map[int64][]string
}

func NewComplexFilters(src repository.ComplexSource, log *zap.Logger) *ComplexFilters {
	return &ComplexFilters{src: src, log: log, byUser: map[int64][]string{}}
}

// Refresh replaces the snapshot. On error the previous snapshot is kept.
func (c *ComplexFilters) Refresh(ctx context.Context) error {
	data, err := c.src.SelectedComplexes(ctx)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.byUser = data
	c.mu.Unlock()
	return nil
}

// Run refreshes the snapshot every interval until ctx is done.
func (c *ComplexFilters) Run(ctx context.Context, interval time.Duration) {
	if err := c.Refresh(ctx); err != nil {
		c.log.Warn("complex filters: initial refresh failed", zap.Error(err))
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.Refresh(ctx); err != nil {
				c.log.Warn("complex filters: refresh failed", zap.Error(err))
				continue
			}
			c.log.Debug("complex filters refreshed", zap.Int("users", c.Users()))
		}
	}
}

// For returns the complexes selected by userID.
func (c *ComplexFilters) For(userID int64) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]string(nil), c.byUser[userID]...)
}

// Users returns how many users have a non-empty selection.
func (c *ComplexFilters) Users() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.byUser)
}
