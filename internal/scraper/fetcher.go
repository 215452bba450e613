package scraper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"sync"
	"time"

	"go.uber.org/zap"
)

var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:121.0) Gecko/20100101 Firefox/121.0",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
}

// StatusError is returned for any non-2xx response.
type StatusError struct {
	Code int
	URL  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d for %s", e.Code, e.URL)
}

// FetchError is returned once every attempt for a URL has failed.
type FetchError struct {
	URL      string
	Attempts int
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s failed after %d attempts: %v", e.URL, e.Attempts, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// PageLoader performs a single page load with the given user agent and proxy.
// An empty proxy means a direct connection.
type PageLoader interface {
	Load(ctx context.Context, pageURL, userAgent, proxy string) ([]byte, error)
}

// HTTPLoader loads pages with net/http, keeping one transport per proxy so
// connections are reused between attempts.
type HTTPLoader struct {
	// MaxBodySize caps how much of a page is read.
	MaxBodySize int64

	mu         sync.Mutex
	transports map[string]*http.Transport
}

const defaultMaxBodySize = 8 << 20

// ErrPageTooLarge is returned when a page exceeds HTTPLoader.MaxBodySize.
var ErrPageTooLarge = errors.New("page exceeds size limit")

func NewHTTPLoader() *HTTPLoader {
	return &HTTPLoader{MaxBodySize: defaultMaxBodySize, transports: map[string]*http.Transport{}}
}

func (l *HTTPLoader) transport(proxy string) (*http.Transport, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if t, ok := l.transports[proxy]; ok {
		return t, nil
	}
	t := http.DefaultTransport.(*http.Transport).Clone()
	if proxy != "" {
		u, err := url.Parse(proxy)
		if err != nil {
			return nil, fmt.Errorf("parse proxy: %w", err)
		}
		t.Proxy = http.ProxyURL(u)
	}
	l.transports[proxy] = t
	return t, nil
}

func (l *HTTPLoader) Load(ctx context.Context, pageURL, userAgent, proxy string) ([]byte, error) {
	t, err := l.transport(proxy)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "ru-RU,ru;q=0.9,en;q=0.8")

	resp, err := (&http.Client{Transport: t}).Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return nil, &StatusError{Code: resp.StatusCode, URL: pageURL}
	}
	limit := l.MaxBodySize
	if limit <= 0 {
		limit = defaultMaxBodySize
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(body)) > limit {
		return nil, fmt.Errorf("%s: %w", pageURL, ErrPageTooLarge)
	}
	return body, nil
}

// Fetcher wraps a PageLoader with user-agent and proxy rotation, a jittered
// delay before every attempt and bounded retries.
type Fetcher struct {
	loader  PageLoader
	policy  *RetryPolicy
	timeout time.Duration
	proxies []string
	log     *zap.Logger

	mu       sync.Mutex
	proxyIdx int

	// sleep is replaced in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

func NewFetcher(loader PageLoader, policy *RetryPolicy, timeout time.Duration, proxies []string, log *zap.Logger) *Fetcher {
	return &Fetcher{
		loader:  loader,
		policy:  policy,
		timeout: timeout,
		proxies: proxies,
		log:     log,
		sleep:   sleepCtx,
	}
}

func (f *Fetcher) nextProxy() string {
	if len(f.proxies) == 0 {
		return ""
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	p := f.proxies[f.proxyIdx%len(f.proxies)]
	f.proxyIdx++
	return p
}

func randomUserAgent() string {
	return userAgents[rand.Intn(len(userAgents))]
}

// Fetch loads pageURL, retrying transient failures. It returns a *FetchError
// once the attempts are exhausted or the context ends.
func (f *Fetcher) Fetch(ctx context.Context, pageURL string) ([]byte, error) {
	attempts := f.policy.attempts()
	var (
		lastErr error
		delay   time.Duration
		tried   int
	)
	for attempt := 1; attempt <= attempts; attempt++ {
		delay = f.policy.Delay(attempt, delay)
		if err := f.sleep(ctx, delay); err != nil {
			if lastErr == nil {
				lastErr = err
			}
			break
		}
		tried = attempt

		body, err := f.attempt(ctx, pageURL)
		if err == nil {
			return body, nil
		}
		lastErr = err
		f.log.Warn("fetch attempt failed",
			zap.String("url", pageURL),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", attempts),
			zap.Error(err))
		if ctx.Err() != nil {
			break
		}
	}
	return nil, &FetchError{URL: pageURL, Attempts: tried, Err: lastErr}
}

func (f *Fetcher) attempt(ctx context.Context, pageURL string) ([]byte, error) {
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}
	body, err := f.loader.Load(ctx, pageURL, randomUserAgent(), f.nextProxy())
	if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return nil, fmt.Errorf("timeout after %v: %w", f.timeout, err)
	}
	return body, err
}
