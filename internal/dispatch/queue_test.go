package dispatch

import (
	"context"
	"testing"
	"time"

	"github.com/nzaharov305-rgb/telegram-bot/internal/model"
)

func TestQueue_PriorityThenFIFO(t *testing.T) {
	q := NewQueue(0)
	q.Push(Item{UserID: 1, ListingID: "f1", Tier: model.TierFree})
	q.Push(Item{UserID: 2, ListingID: "s1", Tier: model.TierStandard})
	q.Push(Item{UserID: 3, ListingID: "p1", Tier: model.TierPro})
	q.Push(Item{UserID: 4, ListingID: "f2", Tier: model.TierFree})
	q.Push(Item{UserID: 5, ListingID: "p2", Tier: model.TierPro})

	want := []string{"p1", "p2", "s1", "f1", "f2"}
	for i, id := range want {
		it, ok := q.Pop()
		if !ok {
			t.Fatalf("pop %d: queue empty", i)
		}
		if it.ListingID != id {
			t.Fatalf("pop %d: got %s, want %s", i, it.ListingID, id)
		}
	}
	if _, ok := q.Pop(); ok {
		t.Fatalf("expected empty queue")
	}
}

func TestQueue_CapacityEvictsOldestLowest(t *testing.T) {
	q := NewQueue(3)
	q.Push(Item{ListingID: "f1", Tier: model.TierFree})
	q.Push(Item{ListingID: "f2", Tier: model.TierFree})
	q.Push(Item{ListingID: "s1", Tier: model.TierStandard})

	dropped := q.Push(Item{ListingID: "p1", Tier: model.TierPro})
	if dropped == nil || dropped.ListingID != "f1" {
		t.Fatalf("expected f1 evicted, got %+v", dropped)
	}
	if q.Len() != 3 {
		t.Fatalf("expected len 3, got %d", q.Len())
	}

	// a new free item is lower than nothing queued except f2, so f2 goes
	dropped = q.Push(Item{ListingID: "f3", Tier: model.TierFree})
	if dropped == nil || dropped.ListingID != "f2" {
		t.Fatalf("expected f2 evicted, got %+v", dropped)
	}

	q2 := NewQueue(1)
	q2.Push(Item{ListingID: "p1", Tier: model.TierPro})
	dropped = q2.Push(Item{ListingID: "f1", Tier: model.TierFree})
	if dropped == nil || dropped.ListingID != "f1" {
		t.Fatalf("lower-priority newcomer should be dropped, got %+v", dropped)
	}
	if it, _ := q2.Pop(); it.ListingID != "p1" {
		t.Fatalf("pro item lost")
	}
}

func TestQueue_WaitWakesOnPush(t *testing.T) {
	q := NewQueue(0)
	go func() {
		time.Sleep(20 * time.Millisecond)
		q.Push(Item{ListingID: "x", Tier: model.TierPro})
	}()
	if !q.Wait(context.Background(), 2*time.Second) {
		t.Fatalf("expected wake up on push")
	}
}

func TestQueue_WaitTimesOut(t *testing.T) {
	q := NewQueue(0)
	start := time.Now()
	if q.Wait(context.Background(), 30*time.Millisecond) {
		t.Fatalf("empty queue reported ready")
	}
	if time.Since(start) < 30*time.Millisecond {
		t.Fatalf("returned before timeout")
	}
}
