package scraper

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/nzaharov305-rgb/telegram-bot/internal/model"
)

type recordingSleeper struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (r *recordingSleeper) sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.delays = append(r.delays, d)
	r.mu.Unlock()
	return ctx.Err()
}

func newTestFetcher(t *testing.T, loader PageLoader, attempts int, proxies []string) (*Fetcher, *recordingSleeper) {
	t.Helper()
	policy := &RetryPolicy{MaxAttempts: attempts, DelayMin: time.Second, DelayMax: 3 * time.Second}
	f := NewFetcher(loader, policy, time.Second, proxies, zap.NewNop())
	rec := &recordingSleeper{}
	f.sleep = rec.sleep
	return f, rec
}

func TestFetcher_RetriesThenGivesUp(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	f, rec := newTestFetcher(t, NewHTTPLoader(), 3, nil)
	body, err := f.Fetch(context.Background(), srv.URL)
	if body != nil {
		t.Fatalf("expected no body")
	}
	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("expected FetchError, got %v", err)
	}
	if fe.Attempts != 3 || hits.Load() != 3 {
		t.Fatalf("expected exactly 3 attempts, got %d (server saw %d)", fe.Attempts, hits.Load())
	}
	var se *StatusError
	if !errors.As(err, &se) || se.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected wrapped status error, got %v", err)
	}
	if len(rec.delays) != 3 {
		t.Fatalf("expected a delay before every attempt, got %v", rec.delays)
	}
	for i := 1; i < len(rec.delays); i++ {
		if rec.delays[i] < rec.delays[i-1] {
			t.Fatalf("delays decreased: %v", rec.delays)
		}
	}
	if rec.delays[0] < time.Second || rec.delays[0] > 3*time.Second {
		t.Fatalf("first delay outside [min,max]: %v", rec.delays[0])
	}
}

func TestFetcher_SucceedsAfterFailure(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		if r.Header.Get("User-Agent") == "" || !strings.HasPrefix(r.Header.Get("Accept-Language"), "ru-RU") {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	f, _ := newTestFetcher(t, NewHTTPLoader(), 3, nil)
	body, err := f.Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if string(body) != "ok" || hits.Load() != 2 {
		t.Fatalf("unexpected result %q after %d hits", body, hits.Load())
	}
}

func TestFetcher_StopsOnCancel(t *testing.T) {
	loader := &fakeLoader{err: errors.New("boom")}
	f := NewFetcher(loader, &RetryPolicy{MaxAttempts: 5}, time.Second, nil, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := f.Fetch(ctx, "http://example.invalid"); err == nil {
		t.Fatalf("expected error")
	}
	if loader.calls.Load() != 0 {
		t.Fatalf("expected no load after cancellation, got %d", loader.calls.Load())
	}
}

type fakeLoader struct {
	calls   atomic.Int32
	err     error
	body    []byte
	mu      sync.Mutex
	proxies []string
	agents  []string
}

func (l *fakeLoader) Load(ctx context.Context, pageURL, userAgent, proxy string) ([]byte, error) {
	l.calls.Add(1)
	l.mu.Lock()
	l.proxies = append(l.proxies, proxy)
	l.agents = append(l.agents, userAgent)
	l.mu.Unlock()
	return l.body, l.err
}

func TestFetcher_RotatesProxiesAndAgents(t *testing.T) {
	loader := &fakeLoader{err: errors.New("blocked")}
	f, _ := newTestFetcher(t, loader, 4, []string{"http://p1:1", "http://p2:2"})
	f.Fetch(context.Background(), "http://example.invalid")

	want := []string{"http://p1:1", "http://p2:2", "http://p1:1", "http://p2:2"}
	for i, p := range loader.proxies {
		if p != want[i] {
			t.Fatalf("proxy %d: got %q, want %q", i, p, want[i])
		}
	}
	for _, ua := range loader.agents {
		found := false
		for _, known := range userAgents {
			if ua == known {
				found = true
			}
		}
		if !found {
			t.Fatalf("user agent %q not from pool", ua)
		}
	}
}

func TestRetryPolicy_DelayIsMonotone(t *testing.T) {
	draws := []float64{1, 0, 0.5, 0}
	i := 0
	p := &RetryPolicy{MaxAttempts: 4, DelayMin: time.Second, DelayMax: 2 * time.Second}
	p.rand = func() float64 { v := draws[i]; i++; return v }

	var prev time.Duration
	var got []time.Duration
	for attempt := 1; attempt <= 4; attempt++ {
		prev = p.Delay(attempt, prev)
		got = append(got, prev)
	}
	want := []time.Duration{2 * time.Second, 2 * time.Second, 6 * time.Second, 8 * time.Second}
	for k := range want {
		if got[k] != want[k] {
			t.Fatalf("delays: got %v, want %v", got, want)
		}
	}
}

func TestScraper_SearchSoftFailure(t *testing.T) {
	loader := &fakeLoader{err: errors.New("connection refused")}
	f, _ := newTestFetcher(t, loader, 3, nil)
	s := New(f, NewKrishaExtractor("https://krisha.kz"), "https://krisha.kz", "almaty", zap.NewNop())

	got, err := s.Search(context.Background(), model.SearchKey{Mode: model.ModeRent, Rooms: 2, District: "medeuskij"})
	if got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil result, got %#v", got)
	}
	if err == nil || loader.calls.Load() != 3 {
		t.Fatalf("expected error after 3 attempts, got %v / %d", err, loader.calls.Load())
	}
}

func TestScraper_Search(t *testing.T) {
	loader := &fakeLoader{body: []byte(searchPage)}
	f, _ := newTestFetcher(t, loader, 3, nil)
	s := New(f, NewKrishaExtractor("https://krisha.kz"), "https://krisha.kz", "almaty", zap.NewNop())

	got, err := s.Search(context.Background(), model.SearchKey{Mode: model.ModeSale, Rooms: 1, District: "medeuskij"})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 listings, got %d", len(got))
	}
}

func TestBuildURL(t *testing.T) {
	got := BuildURL("https://krisha.kz/", "almaty", model.SearchKey{Mode: model.ModeRent, Rooms: 2, District: "medeuskij", FromOwnerOnly: true})
	if !strings.HasPrefix(got, "https://krisha.kz/arenda/kvartiry/almaty-medeuskij/?") {
		t.Fatalf("unexpected url %q", got)
	}
	if !strings.Contains(got, "das%5Blive.rooms%5D=2") || !strings.Contains(got, "das%5Bwho%5D=1") {
		t.Fatalf("missing query params in %q", got)
	}
	sale := BuildURL("https://krisha.kz", "almaty", model.SearchKey{Mode: model.ModeSale, Rooms: 1, District: "x"})
	if !strings.Contains(sale, "/prodazha/") || strings.Contains(sale, "who") {
		t.Fatalf("unexpected sale url %q", sale)
	}
}

func TestHTTPLoader_BodySizeLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(strings.Repeat("x", 2048)))
	}))
	defer srv.Close()

	l := NewHTTPLoader()
	l.MaxBodySize = 1024
	if _, err := l.Load(context.Background(), srv.URL, "ua", ""); !errors.Is(err, ErrPageTooLarge) {
		t.Fatalf("expected ErrPageTooLarge, got %v", err)
	}

	l.MaxBodySize = 2048
	body, err := l.Load(context.Background(), srv.URL, "ua", "")
	if err != nil || len(body) != 2048 {
		t.Fatalf("page at the limit should load: %d bytes, %v", len(body), err)
	}
}
