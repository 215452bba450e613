package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/nzaharov305-rgb/telegram-bot/internal/repository"
)

func TestMemory_Expiry(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	m.Set(ctx, "a", "1", time.Minute)
	m.Set(ctx, "b", "2", 0)
	if v, ok, _ := m.Get(ctx, "a"); !ok || v != "1" {
		t.Fatalf("expected hit, got %q %v", v, ok)
	}

	now = now.Add(time.Minute)
	if _, ok, _ := m.Get(ctx, "a"); ok {
		t.Fatalf("entry should have expired")
	}
	if v, ok, _ := m.Get(ctx, "b"); !ok || v != "2" {
		t.Fatalf("entry without ttl should stay")
	}
}

func TestMemory_Sweep(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	now := time.Now()
	m.now = func() time.Time { return now }
	m.Set(ctx, "a", "1", time.Second)
	m.Set(ctx, "b", "1", time.Hour)
	now = now.Add(time.Minute)
	if n := m.Sweep(); n != 1 {
		t.Fatalf("expected 1 swept, got %d", n)
	}
}

type failingSource struct{ calls int }

func (f *failingSource) SelectedComplexes(ctx context.Context) (map[int64][]string, error) {
	f.calls++
	if f.calls > 1 {
		return nil, errors.New("db down")
	}
	return map[int64][]string{1: {"Esentai City"}}, nil
}

func TestComplexFilters_Refresh(t *testing.T) {
	ctx := context.Background()
	c := NewComplexFilters(repository.MemoryComplexes{1: {"Nurly Tau"}, 2: {"A", "B"}}, zap.NewNop())
	if err := c.Refresh(ctx); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if got := c.For(2); len(got) != 2 {
		t.Fatalf("unexpected complexes: %v", got)
	}
	if got := c.For(3); len(got) != 0 {
		t.Fatalf("unknown user should have none: %v", got)
	}
	if c.Users() != 2 {
		t.Fatalf("expected 2 users")
	}
}

func TestComplexFilters_KeepsSnapshotOnError(t *testing.T) {
	ctx := context.Background()
	src := &failingSource{}
	c := NewComplexFilters(src, zap.NewNop())
	if err := c.Refresh(ctx); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if err := c.Refresh(ctx); err == nil {
		t.Fatalf("expected error")
	}
	if got := c.For(1); len(got) != 1 || got[0] != "Esentai City" {
		t.Fatalf("snapshot lost: %v", got)
	}
}
