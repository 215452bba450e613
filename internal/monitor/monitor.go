package monitor

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/nzaharov305-rgb/telegram-bot/internal/cache"
	"github.com/nzaharov305-rgb/telegram-bot/internal/config"
	"github.com/nzaharov305-rgb/telegram-bot/internal/dispatch"
	"github.com/nzaharov305-rgb/telegram-bot/internal/model"
	"github.com/nzaharov305-rgb/telegram-bot/internal/repository"
)

// capWindow is the trailing window the free-tier daily cap is counted over.
const capWindow = 24 * time.Hour

// Searcher returns the current listings for a search key. On failure it
// returns an empty slice together with the error.
type Searcher interface {
	Search(ctx context.Context, key model.SearchKey) ([]model.Listing, error)
}

// Enricher annotates a listing, returning "" when no annotation is available.
type Enricher interface {
	Enrich(ctx context.Context, l model.Listing) string
}

// Enqueuer accepts outbound items without blocking.
type Enqueuer interface {
	Push(it dispatch.Item) *dispatch.Item
}

// ComplexLookup returns the residential complexes a user selected.
type ComplexLookup interface {
	For(userID int64) []string
}

// Monitor runs one polling loop per tier and turns fresh listings into
// queued notifications.
type Monitor struct {
	dir    repository.SubscriberDirectory
	ledger repository.Ledger
	search Searcher
	queue  Enqueuer
	tiers  map[model.Tier]config.Tier
	log    *zap.Logger

	seen      cache.Store
	seenTTL   time.Duration
	enricher  Enricher
	complexes ComplexLookup

	newTickID func() string
}

// Option configures optional Monitor collaborators.
type Option func(*Monitor)

// WithSeenCache lets the monitor skip the per-user ledger lookup for
// listings no one in this process claimed within ttl.
func WithSeenCache(store cache.Store, ttl time.Duration) Option {
	return func(m *Monitor) {
		m.seen = store
		m.seenTTL = ttl
	}
}

// WithEnricher enables annotations for tiers that have enrichment on.
func WithEnricher(e Enricher) Option {
	return func(m *Monitor) { m.enricher = e }
}

// WithComplexes supplies complex filters for tiers that honour them.
func WithComplexes(c ComplexLookup) Option {
	return func(m *Monitor) { m.complexes = c }
}

func New(dir repository.SubscriberDirectory, ledger repository.Ledger, search Searcher, queue Enqueuer, tiers map[model.Tier]config.Tier, log *zap.Logger, opts ...Option) *Monitor {
	m := &Monitor{
		dir:       dir,
		ledger:    ledger,
		search:    search,
		queue:     queue,
		tiers:     tiers,
		log:       log,
		newTickID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Run starts a loop for every configured tier and blocks until ctx is done
// and all loops have returned.
func (m *Monitor) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, tier := range model.Tiers {
		cfg, ok := m.tiers[tier]
		if !ok {
			continue
		}
		wg.Add(1)
		go func(tier model.Tier, interval time.Duration) {
			defer wg.Done()
			m.RunTier(ctx, tier, interval)
		}(tier, cfg.Interval())
	}
	wg.Wait()
}

// RunTier ticks, then sleeps interval, until ctx is done. A failing or
// panicking tick never ends the loop.
func (m *Monitor) RunTier(ctx context.Context, tier model.Tier, interval time.Duration) {
	m.log.Info("tier loop started", zap.String("tier", string(tier)), zap.Duration("interval", interval))
	for {
		m.safeTick(ctx, tier)
		select {
		case <-ctx.Done():
			m.log.Info("tier loop stopped", zap.String("tier", string(tier)))
			return
		case <-time.After(interval):
		}
	}
}

func (m *Monitor) safeTick(ctx context.Context, tier model.Tier) {
	defer func() {
		if r := recover(); r != nil {
			m.log.Error("tick panicked",
				zap.String("tier", string(tier)),
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()))
		}
	}()
	if _, err := m.Tick(ctx, tier); err != nil {
		m.log.Error("tick failed", zap.String("tier", string(tier)), zap.Error(err))
	}
}

// TickResult summarises one pass over a tier.
type TickResult struct {
	Subscribers int
	Searches    int
	Enqueued    int
}

// Tick runs one pass over every eligible subscriber of tier. It only
// returns an error when the subscriber list cannot be read; per-subscriber
// failures are logged and skipped.
func (m *Monitor) Tick(ctx context.Context, tier model.Tier) (TickResult, error) {
	var res TickResult
	tickID := m.newTickID()
	log := m.log.With(zap.String("tier", string(tier)), zap.String("tick", tickID))

	subs, err := m.dir.ListEligible(ctx, tier)
	if err != nil {
		return res, fmt.Errorf("list eligible: %w", err)
	}
	res.Subscribers = len(subs)

	t := &tick{
		Monitor: m,
		tier:    tier,
		cfg:     m.tiers[tier],
		log:     log,
		results: map[model.SearchKey][]model.Listing{},
	}
	for _, sub := range subs {
		if ctx.Err() != nil {
			break
		}
		n, err := t.processSubscriber(ctx, sub)
		res.Enqueued += n
		if err != nil {
			log.Warn("subscriber skipped", zap.Int64("user_id", sub.UserID), zap.Error(err))
		}
	}
	res.Searches = t.searches

	log.Debug("tick done",
		zap.Int("subscribers", res.Subscribers),
		zap.Int("searches", res.Searches),
		zap.Int("enqueued", res.Enqueued))
	return res, nil
}

// tick holds the state of a single Tick call.
type tick struct {
	*Monitor
	tier     model.Tier
	cfg      config.Tier
	log      *zap.Logger
	results  map[model.SearchKey][]model.Listing
	searches int
}

func (t *tick) listings(ctx context.Context, key model.SearchKey) []model.Listing {
	if ls, ok := t.results[key]; ok {
		return ls
	}
	t.searches++
	ls, err := t.search.Search(ctx, key)
	if err != nil {
		t.log.Warn("search failed", zap.String("key", key.String()), zap.Error(err))
	}
	t.results[key] = ls
	return ls
}

func (t *tick) processSubscriber(ctx context.Context, sub model.Subscriber) (int, error) {
	switch {
	case !t.cfg.ComplexFilter:
		sub.ResidentialComplexes = nil
	case t.complexes != nil:
		merged := append([]string(nil), sub.ResidentialComplexes...)
		sub.ResidentialComplexes = append(merged, t.complexes.For(sub.UserID)...)
	}

	var claimed []model.Listing
	for _, key := range sub.SearchKeys() {
		for _, l := range t.listings(ctx, key) {
			ok, err := t.admit(ctx, sub, l)
			if err != nil {
				return t.enqueue(ctx, sub, claimed), fmt.Errorf("listing %s: %w", l.ID, err)
			}
			if ok {
				claimed = append(claimed, l)
			}
		}
	}
	return t.enqueue(ctx, sub, claimed), nil
}

// admit applies the filters in order and claims the listing for sub.
func (t *tick) admit(ctx context.Context, sub model.Subscriber, l model.Listing) (bool, error) {
	if sub.FromOwnerOnly && !l.FromOwner {
		return false, nil
	}
	if !sub.WantsComplex(l) {
		return false, nil
	}

	delivered, err := t.wasDelivered(ctx, sub.UserID, l.ID)
	if err != nil {
		return false, err
	}
	if delivered {
		return false, nil
	}

	if t.cfg.DailyCap > 0 {
		n, err := t.ledger.CountDeliveredInWindow(ctx, sub.UserID, capWindow)
		if err != nil {
			return false, err
		}
		if n >= t.cfg.DailyCap {
			return false, nil
		}
	}

	created, err := t.ledger.MarkDelivered(ctx, sub.UserID, l.ID)
	if err != nil {
		return false, err
	}
	if !created {
		return false, nil
	}
	if t.seen != nil {
		if err := t.seen.Set(ctx, seenKey(l.ID), "1", t.seenTTL); err != nil {
			t.log.Debug("seen cache write failed", zap.Error(err))
		}
	}
	return true, nil
}

func seenKey(listingID string) string {
	return "seen:" + listingID
}

// wasDelivered consults the ledger unless the seen cache proves no claim
// for the listing was made recently.
func (t *tick) wasDelivered(ctx context.Context, userID int64, listingID string) (bool, error) {
	if t.seen != nil {
		_, hit, err := t.seen.Get(ctx, seenKey(listingID))
		if err == nil && !hit {
			return false, nil
		}
	}
	return t.ledger.WasDelivered(ctx, userID, listingID)
}

func (t *tick) enqueue(ctx context.Context, sub model.Subscriber, listings []model.Listing) int {
	if len(listings) == 0 {
		return 0
	}
	notes := make([]string, len(listings))
	if t.cfg.Enrichment && t.enricher != nil {
		g, gctx := errgroup.WithContext(ctx)
		for i, l := range listings {
			i, l := i, l
			g.Go(func() error {
				notes[i] = t.enricher.Enrich(gctx, l)
				return nil
			})
		}
		g.Wait()
	}

	for i, l := range listings {
		dropped := t.queue.Push(dispatch.Item{
			UserID:    sub.UserID,
			ListingID: l.ID,
			Tier:      t.tier,
			Text:      FormatMessage(l, notes[i]),
		})
		if dropped != nil {
			t.log.Warn("queue full, item dropped",
				zap.Int64("user_id", dropped.UserID),
				zap.String("listing_id", dropped.ListingID),
				zap.String("dropped_tier", string(dropped.Tier)))
		}
	}
	return len(listings)
}
