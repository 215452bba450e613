package scraper

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// RetryPolicy describes how many attempts a fetch gets and how long to wait
// before each one.
type RetryPolicy struct {
	MaxAttempts int
	DelayMin    time.Duration
	DelayMax    time.Duration
	// Backoff returns the multiplier applied to the random draw for the given
	// 1-based attempt. Nil means doubling per retry.
	Backoff func(attempt int) float64

	mu   sync.Mutex
	rand func() float64
}

func doubling(attempt int) float64 {
	return float64(uint(1) << uint(attempt-1))
}

// jitter draws uniformly from [DelayMin, DelayMax].
func (p *RetryPolicy) jitter() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	r := rand.Float64
	if p.rand != nil {
		r = p.rand
	}
	span := p.DelayMax - p.DelayMin
	if span <= 0 {
		return p.DelayMin
	}
	return p.DelayMin + time.Duration(r()*float64(span))
}

// Delay returns the wait before the given 1-based attempt. It never returns
// less than prev, so consecutive waits are non-decreasing.
func (p *RetryPolicy) Delay(attempt int, prev time.Duration) time.Duration {
	backoff := p.Backoff
	if backoff == nil {
		backoff = doubling
	}
	d := time.Duration(float64(p.jitter()) * backoff(attempt))
	return max(d, prev)
}

func (p *RetryPolicy) attempts() int {
	return max(p.MaxAttempts, 1)
}

// sleepCtx waits for d or until ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
