package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/nzaharov305-rgb/telegram-bot/internal/model"
)

type deliveryKey struct {
	userID    int64
	listingID string
}

// MemoryLedger keeps delivery records in memory. It also counts daily events
// so it can stand in for the stats table.
type MemoryLedger struct {
	mu      sync.Mutex
	records map[deliveryKey]time.Time
	events  map[string]int
	now     func() time.Time
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		records: map[deliveryKey]time.Time{},
		events:  map[string]int{},
		now:     time.Now,
	}
}

// SetClock replaces the time source used for new records and window counts.
func (r *MemoryLedger) SetClock(now func() time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.now = now
}

func (r *MemoryLedger) WasDelivered(ctx context.Context, userID int64, listingID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.records[deliveryKey{userID, listingID}]
	return ok, nil
}

func (r *MemoryLedger) MarkDelivered(ctx context.Context, userID int64, listingID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := deliveryKey{userID, listingID}
	if _, ok := r.records[k]; ok {
		return false, nil
	}
	r.records[k] = r.now()
	return true, nil
}

func (r *MemoryLedger) CountDeliveredInWindow(ctx context.Context, userID int64, window time.Duration) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	since := r.now().Add(-window)
	n := 0
	for k, at := range r.records {
		if k.userID == userID && at.After(since) {
			n++
		}
	}
	return n, nil
}

// Records returns a copy of every delivery record.
func (r *MemoryLedger) Records() []model.DeliveryRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	res := make([]model.DeliveryRecord, 0, len(r.records))
	for k, at := range r.records {
		res = append(res, model.DeliveryRecord{UserID: k.userID, ListingID: k.listingID, SentAt: at})
	}
	return res
}

func (r *MemoryLedger) CountEventsToday(ctx context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[r.now().Format(time.DateOnly)], nil
}

func (r *MemoryLedger) IncrementEventCount(ctx context.Context, n int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events[r.now().Format(time.DateOnly)] += n
	return nil
}

// MemoryDirectory serves subscribers ordered by user id and applies the same
// eligibility rules as the users table query, minus entitlement dates.
type MemoryDirectory struct {
	mu   sync.Mutex
	data map[int64]model.Subscriber
	err  error
}

func NewMemoryDirectory(subs ...model.Subscriber) *MemoryDirectory {
	d := &MemoryDirectory{data: map[int64]model.Subscriber{}}
	for _, s := range subs {
		d.data[s.UserID] = s
	}
	return d
}

// Save adds or replaces a subscriber.
func (d *MemoryDirectory) Save(s model.Subscriber) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.data[s.UserID] = s
}

// Delete removes a subscriber.
func (d *MemoryDirectory) Delete(userID int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.data, userID)
}

// FailWith makes every following ListEligible call return err.
func (d *MemoryDirectory) FailWith(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.err = err
}

func (d *MemoryDirectory) ListEligible(ctx context.Context, tier model.Tier) ([]model.Subscriber, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return nil, d.err
	}
	res := make([]model.Subscriber, 0, len(d.data))
	for _, s := range d.data {
		if s.Tier != tier || !s.NotificationsEnabled || len(s.Districts) == 0 {
			continue
		}
		cp := s
		cp.Districts = append([]string(nil), s.Districts...)
		cp.ResidentialComplexes = append([]string(nil), s.ResidentialComplexes...)
		res = append(res, cp)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].UserID < res[j].UserID })
	return res, nil
}

// MemoryComplexes is a static ComplexSource.
type MemoryComplexes map[int64][]string

func (m MemoryComplexes) SelectedComplexes(ctx context.Context) (map[int64][]string, error) {
	out := make(map[int64][]string, len(m))
	for id, names := range m {
		out[id] = append([]string(nil), names...)
	}
	return out, nil
}
