package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/nzaharov305-rgb/telegram-bot/internal/cache"
	"github.com/nzaharov305-rgb/telegram-bot/internal/config"
	"github.com/nzaharov305-rgb/telegram-bot/internal/dispatch"
	"github.com/nzaharov305-rgb/telegram-bot/internal/enrich"
	"github.com/nzaharov305-rgb/telegram-bot/internal/httpapi"
	"github.com/nzaharov305-rgb/telegram-bot/internal/monitor"
	"github.com/nzaharov305-rgb/telegram-bot/internal/repository"
	"github.com/nzaharov305-rgb/telegram-bot/internal/scraper"
	"github.com/nzaharov305-rgb/telegram-bot/pkg/openai"
	"github.com/nzaharov305-rgb/telegram-bot/pkg/telegram"
)

// Storage groups the persistent views the app needs.
type Storage struct {
	Directory repository.SubscriberDirectory
	Ledger    repository.Ledger
	Stats     repository.StatsRecorder
	Complexes repository.ComplexSource
}

// Bot is the delivery channel used by the dispatcher.
type Bot interface {
	dispatch.Sender
	GetMe(ctx context.Context) (*telegram.User, error)
}

// App wires the monitor, the dispatcher and their collaborators.
type App struct {
	cfg   *config.Config
	log   *zap.Logger
	store Storage
	cache cache.Store
	bot   Bot
}

func New(cfg *config.Config, log *zap.Logger, store Storage, kv cache.Store) *App {
	return &App{
		cfg:   cfg,
		log:   log,
		store: store,
		cache: kv,
		bot:   telegram.NewClient(cfg.TelegramToken),
	}
}

// WithBot replaces the Telegram client.
func (a *App) WithBot(b Bot) *App {
	a.bot = b
	return a
}

func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	me, err := a.bot.GetMe(ctx)
	if err != nil {
		return fmt.Errorf("telegram getMe: %w", err)
	}
	a.log.Info("bot authorized", zap.String("username", me.Username))

	queue := dispatch.NewQueue(a.cfg.Dispatch.Capacity)
	dispatcher := dispatch.NewDispatcher(queue, a.bot, dispatch.Config{
		RatePerSecond: a.cfg.Dispatch.RatePerSecond,
		RetryCount:    a.cfg.Dispatch.RetryCount,
		ShutdownGrace: a.cfg.Dispatch.ShutdownGrace,
	}, a.log.Named("dispatch"))
	dispatcher.OnDelivered = func(ctx context.Context, it dispatch.Item) {
		if err := a.store.Stats.IncrementEventCount(ctx, 1); err != nil {
			a.log.Warn("increment stats", zap.Error(err))
		}
	}

	complexes := cache.NewComplexFilters(a.store.Complexes, a.log.Named("complexes"))
	mon := monitor.New(a.store.Directory, a.store.Ledger, a.newScraper(), queue, a.cfg.Tiers, a.log.Named("monitor"), a.monitorOptions(complexes)...)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		dispatcher.Run(ctx)
	}()

	if mem, ok := a.cache.(*cache.Memory); ok {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sweepEvery(ctx, mem, 10*time.Minute)
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		complexes.Run(ctx, a.cfg.ComplexRefreshInterval)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		mon.Run(ctx)
	}()

	if a.cfg.HTTPAddr != "" {
		srv := httpapi.NewServer(a.cfg.HTTPAddr, queue, dispatcher, a.store.Stats, a.log.Named("http"))
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := srv.Run(ctx); err != nil {
				a.log.Error("ops server", zap.Error(err))
			}
		}()
	}

	<-ctx.Done()
	a.log.Info("shutting down")
	wg.Wait()
	delivered, dropped := dispatcher.Stats()
	a.log.Info("stopped", zap.Int64("delivered", delivered), zap.Int64("dropped", dropped))
	return nil
}

func (a *App) newScraper() *scraper.Scraper {
	p := a.cfg.Parser
	var loader scraper.PageLoader = scraper.NewHTTPLoader()
	if p.Backend == "browser" {
		loader = &scraper.BrowserLoader{ExecPath: p.ChromePath}
	}
	policy := &scraper.RetryPolicy{MaxAttempts: p.RetryCount, DelayMin: p.DelayMin, DelayMax: p.DelayMax}
	fetcher := scraper.NewFetcher(loader, policy, p.Timeout, p.Proxies, a.log.Named("fetcher"))
	return scraper.New(fetcher, scraper.NewKrishaExtractor(p.BaseURL), p.BaseURL, p.City, a.log.Named("scraper"))
}

func (a *App) monitorOptions(complexes *cache.ComplexFilters) []monitor.Option {
	opts := []monitor.Option{
		monitor.WithSeenCache(a.cache, a.cfg.SeenCacheTTL),
		monitor.WithComplexes(complexes),
	}
	if a.cfg.OpenAIToken != "" {
		ai := openai.NewClient(a.cfg.OpenAIToken, a.cfg.OpenAIBaseURL, a.cfg.OpenAIModel)
		gate := enrich.NewGate(enrich.NewOpenAIAnnotator(ai), a.cache, a.cfg.Enrichment.Concurrency, a.cfg.Enrichment.CacheTTL, a.log.Named("enrich"))
		opts = append(opts, monitor.WithEnricher(gate))
	} else {
		a.log.Info("OPENAI_TOKEN not set, annotations disabled")
	}
	return opts
}

// sweepEvery drops expired entries of a process-local cache.
func sweepEvery(ctx context.Context, m *cache.Memory, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep()
		}
	}
}
