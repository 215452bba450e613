package repository

import (
	"context"
	"os"
	"strconv"
	"sync"
	"testing"
	"time"
)

// Runs against a real database when TEST_DATABASE_URL is set.
func requireDB(t *testing.T) context.Context {
	t.Helper()
	if os.Getenv("TEST_DATABASE_URL") == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	return context.Background()
}

func TestPostgresLedger(t *testing.T) {
	ctx := requireDB(t)
	pool, err := Connect(ctx, os.Getenv("TEST_DATABASE_URL"))
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer pool.Close()
	if err := Migrate(ctx, pool); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	userID := time.Now().UnixNano()
	t.Cleanup(func() {
		pool.Exec(context.Background(), `DELETE FROM sent_listings WHERE user_id = $1`, userID)
	})

	l := NewPostgresLedger(pool)
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := l.MarkDelivered(ctx, userID, "L1")
			if err != nil {
				t.Errorf("mark: %v", err)
				return
			}
			if ok {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if winners != 1 {
		t.Fatalf("expected one winner, got %d", winners)
	}

	for i := 0; i < 3; i++ {
		l.MarkDelivered(ctx, userID, "L"+strconv.Itoa(i+2))
	}
	n, err := l.CountDeliveredInWindow(ctx, userID, 24*time.Hour)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 4 {
		t.Fatalf("expected 4 records, got %d", n)
	}
	seen, err := l.WasDelivered(ctx, userID, "L1")
	if err != nil || !seen {
		t.Fatalf("was delivered: %v %v", seen, err)
	}

	stats := NewPostgresStats(pool)
	before, err := stats.CountEventsToday(ctx)
	if err != nil {
		t.Fatalf("count events: %v", err)
	}
	if err := stats.IncrementEventCount(ctx, 2); err != nil {
		t.Fatalf("increment: %v", err)
	}
	after, _ := stats.CountEventsToday(ctx)
	if after-before != 2 {
		t.Fatalf("expected +2, got %d -> %d", before, after)
	}
}
