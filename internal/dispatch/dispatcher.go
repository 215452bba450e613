package dispatch

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Sender delivers a text message to a chat.
type Sender interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
}

// Config tunes a Dispatcher.
type Config struct {
	RatePerSecond float64
	RetryCount    int
	ShutdownGrace time.Duration
	// PollInterval bounds how long the consumer sleeps on an empty queue.
	PollInterval time.Duration
	// RetryBase is the first retry delay; it doubles per attempt.
	RetryBase time.Duration
}

// Dispatcher is the single consumer of a Queue. Sends across the process
// never exceed RatePerSecond.
type Dispatcher struct {
	queue   *Queue
	sender  Sender
	limiter *rate.Limiter
	cfg     Config
	log     *zap.Logger

	// OnDelivered runs once per successfully sent item.
	OnDelivered func(ctx context.Context, it Item)

	delivered atomic.Int64
	dropped   atomic.Int64

	sleep func(ctx context.Context, d time.Duration) error
}

func NewDispatcher(q *Queue, sender Sender, cfg Config, log *zap.Logger) *Dispatcher {
	if cfg.RetryCount < 1 {
		cfg.RetryCount = 1
	}
	if cfg.ShutdownGrace <= 0 {
		cfg.ShutdownGrace = 10 * time.Second
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = time.Second
	}
	return &Dispatcher{
		queue:   q,
		sender:  sender,
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSecond), 1),
		cfg:     cfg,
		log:     log,
		sleep:   sleepCtx,
	}
}

// Run consumes the queue until ctx is done. Items still queued at that
// point are abandoned.
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			if n := d.queue.Len(); n > 0 {
				d.log.Warn("dispatcher stopped with queued items", zap.Int("abandoned", n))
			}
			return
		}
		if !d.queue.Wait(ctx, d.cfg.PollInterval) {
			continue
		}
		if err := d.limiter.Wait(ctx); err != nil {
			continue
		}
		it, ok := d.queue.Pop()
		if !ok {
			continue
		}
		d.deliver(ctx, it)
	}
}

func (d *Dispatcher) deliver(ctx context.Context, it Item) {
	log := d.log.With(zap.Int64("user_id", it.UserID), zap.String("listing_id", it.ListingID), zap.String("tier", string(it.Tier)))
	for attempt := 1; ; attempt++ {
		err := d.send(ctx, it)
		if err == nil {
			d.delivered.Add(1)
			if d.OnDelivered != nil {
				d.OnDelivered(context.WithoutCancel(ctx), it)
			}
			return
		}
		if IsPermanent(err) {
			d.dropped.Add(1)
			log.Warn("delivery failed permanently", zap.Error(err))
			return
		}
		if attempt >= d.cfg.RetryCount {
			d.dropped.Add(1)
			log.Error("delivery failed, retries exhausted", zap.Int("attempts", attempt), zap.Error(err))
			return
		}

		wait := d.cfg.RetryBase << (attempt - 1)
		if ra := retryAfter(err); ra > wait {
			wait = ra
		}
		log.Warn("delivery failed, retrying", zap.Int("attempt", attempt), zap.Duration("wait", wait), zap.Error(err))
		if d.sleep(ctx, wait) != nil || d.limiter.Wait(ctx) != nil {
			d.dropped.Add(1)
			log.Warn("delivery abandoned on shutdown")
			return
		}
	}
}

// send detaches from ctx so an in-flight request survives shutdown for at
// most ShutdownGrace.
func (d *Dispatcher) send(ctx context.Context, it Item) error {
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.cfg.ShutdownGrace)
	defer cancel()
	return d.sender.SendMessage(sendCtx, it.UserID, it.Text)
}

// Stats returns the number of delivered and dropped items so far.
func (d *Dispatcher) Stats() (delivered, dropped int64) {
	return d.delivered.Load(), d.dropped.Load()
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
