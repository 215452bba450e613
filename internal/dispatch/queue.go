package dispatch

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"github.com/nzaharov305-rgb/telegram-bot/internal/model"
)

// Item is one outbound notification.
type Item struct {
	UserID    int64
	ListingID string
	Tier      model.Tier
	Text      string

	seq   uint64
	index int
}

type itemHeap []*Item

func (h itemHeap) Len() int { return len(h) }

func (h itemHeap) Less(i, j int) bool {
	pi, pj := h[i].Tier.Priority(), h[j].Tier.Priority()
	if pi != pj {
		return pi < pj
	}
	return h[i].seq < h[j].seq
}

func (h itemHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *itemHeap) Push(x any) {
	it := x.(*Item)
	it.index = len(*h)
	*h = append(*h, it)
}

func (h *itemHeap) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	it.index = -1
	*h = old[:n-1]
	return it
}

// Queue orders items by tier priority, then by insertion order. It is safe
// for concurrent producers and a single consumer.
type Queue struct {
	mu       sync.Mutex
	items    itemHeap
	seq      uint64
	capacity int
	ready    chan struct{}
}

// NewQueue creates a queue. capacity <= 0 means unbounded.
func NewQueue(capacity int) *Queue {
	return &Queue{capacity: capacity, ready: make(chan struct{}, 1)}
}

// Push adds it without blocking. When the queue is full the oldest item of
// the lowest priority present is dropped and returned; if it itself is of
// lower priority than everything queued, it is the one dropped.
func (q *Queue) Push(it Item) (dropped *Item) {
	q.mu.Lock()
	q.seq++
	it.seq = q.seq
	if q.capacity > 0 && len(q.items) >= q.capacity {
		victim := q.victimLocked()
		if it.Tier.Priority() > victim.Tier.Priority() {
			q.mu.Unlock()
			return &it
		}
		heap.Remove(&q.items, victim.index)
		dropped = victim
	}
	heap.Push(&q.items, &it)
	q.mu.Unlock()

	select {
	case q.ready <- struct{}{}:
	default:
	}
	return dropped
}

func (q *Queue) victimLocked() *Item {
	var victim *Item
	for _, it := range q.items {
		if victim == nil {
			victim = it
			continue
		}
		p, vp := it.Tier.Priority(), victim.Tier.Priority()
		if p > vp || (p == vp && it.seq < victim.seq) {
			victim = it
		}
	}
	return victim
}

// Pop removes the highest-priority item.
func (q *Queue) Pop() (Item, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return Item{}, false
	}
	it := heap.Pop(&q.items).(*Item)
	return *it, true
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Wait blocks until the queue is non-empty, ctx is done or timeout elapses.
// It reports whether an item is available.
func (q *Queue) Wait(ctx context.Context, timeout time.Duration) bool {
	if q.Len() > 0 {
		return true
	}
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
	case <-q.ready:
	}
	return q.Len() > 0
}
