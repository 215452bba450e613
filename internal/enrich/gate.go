package enrich

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/nzaharov305-rgb/telegram-bot/internal/cache"
	"github.com/nzaharov305-rgb/telegram-bot/internal/model"
)

// Annotator produces a short free-text assessment of a listing.
type Annotator interface {
	Annotate(ctx context.Context, l model.Listing) (string, error)
}

// Gate bounds concurrent annotator calls and caches their results. Enrich
// never fails: any problem yields an empty annotation.
type Gate struct {
	ann     Annotator
	store   cache.Store
	sem     *semaphore.Weighted
	ttl     time.Duration
	timeout time.Duration
	log     *zap.Logger
}

func NewGate(ann Annotator, store cache.Store, concurrency int, ttl time.Duration, log *zap.Logger) *Gate {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Gate{
		ann:     ann,
		store:   store,
		sem:     semaphore.NewWeighted(int64(concurrency)),
		ttl:     ttl,
		timeout: 30 * time.Second,
		log:     log,
	}
}

func cacheKey(listingID string) string {
	return "ai:" + listingID
}

func (g *Gate) Enrich(ctx context.Context, l model.Listing) string {
	if l.ID == "" {
		return ""
	}
	log := g.log.With(zap.String("listing_id", l.ID))
	key := cacheKey(l.ID)
	if v, ok, err := g.store.Get(ctx, key); err != nil {
		log.Warn("enrich: cache read failed", zap.Error(err))
	} else if ok {
		return v
	}

	if err := g.sem.Acquire(ctx, 1); err != nil {
		return ""
	}
	defer g.sem.Release(1)

	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	text, err := g.ann.Annotate(callCtx, l)
	if err != nil {
		log.Warn("enrich: annotate failed", zap.Error(err))
		return ""
	}
	if text == "" {
		return ""
	}
	if err := g.store.Set(ctx, key, text, g.ttl); err != nil {
		log.Warn("enrich: cache write failed", zap.Error(err))
	}
	return text
}
