package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ppiankov/lossledger/internal/cache"
	"github.com/ppiankov/lossledger/internal/model"
	"github.com/ppiankov/lossledger/internal/util"
	"github.com/ppiankov/lossledger/internal/worker"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

var (
	// ErrDisallowed is returned when robots.txt forbids fetching a page.
	ErrDisallowed = eris.New("fetch: disallowed by robots.txt")

	// ErrTooLarge is returned when a page exceeds the configured body limit.
	ErrTooLarge = eris.New("fetch: page exceeds size limit")
)

const fetchMaxRetries = 3

// fetchSleepFunc is replaced in tests
var fetchSleepFunc = time.Sleep

// StatusError is returned for non-2xx responses
type StatusError struct {
	URL    string
	Code   int
	Status string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("fetch: unexpected status %s for %s", e.Status, e.URL)
}

// Fetcher retrieves report pages, politely and through the page cache
type Fetcher struct {
	client    *http.Client
	userAgent string
	maxBytes  int64
	cache     cache.Cache
	limiter   *worker.Limiter
	robots    *util.RobotsChecker // nil when robots.txt is ignored
	logger    *zap.Logger
}

// NewFetcher creates a fetcher. A nil cache or limiter disables that layer.
func NewFetcher(cfg model.HTTPConfig, pages cache.Cache, limiter *worker.Limiter, logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if pages == nil {
		pages = cache.Nop{}
	}
	if limiter == nil {
		limiter = worker.NewLimiter(model.RateLimitConfig{})
	}

	client := util.NewHTTPClient(cfg)
	client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if len(via) >= 3 {
			return eris.New("fetch: stopped after 3 redirects")
		}
		return nil
	}

	f := &Fetcher{
		client:    client,
		userAgent: cfg.UserAgent,
		maxBytes:  cfg.MaxBodyBytes,
		cache:     pages,
		limiter:   limiter,
		logger:    logger,
	}
	if cfg.RespectRobots {
		f.robots = util.NewRobotsChecker(client, cfg.UserAgent, time.Hour, logger)
	}
	return f
}

// FetchResult is a retrieved page
type FetchResult struct {
	Body       []byte
	URL        string
	FinalURL   string // After redirects; equal to URL for cached pages
	StatusCode int
	FromCache  bool
	FetchedAt  time.Time
}

// Fetch returns the body of rawURL, from the cache when possible.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*FetchResult, error) {
	key := cache.Key(rawURL)
	if body, ok := f.cache.Get(key); ok {
		f.logger.Debug("page served from cache", zap.String("url", rawURL))
		return &FetchResult{
			Body:       body,
			URL:        rawURL,
			FinalURL:   rawURL,
			StatusCode: http.StatusOK,
			FromCache:  true,
			FetchedAt:  time.Now().UTC(),
		}, nil
	}

	var delay time.Duration
	if f.robots != nil {
		decision, err := f.robots.Check(ctx, rawURL)
		if err != nil {
			return nil, err
		}
		if !decision.Allowed {
			return nil, eris.Wrapf(ErrDisallowed, "url %s", rawURL)
		}
		delay = decision.CrawlDelay
	}
	if err := f.limiter.WaitWithDelay(ctx, rawURL, delay); err != nil {
		return nil, eris.Wrap(err, "fetch: rate limit wait")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "fetch: create request")
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, eris.Wrapf(err, "fetch: get %s", rawURL)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{URL: rawURL, Code: resp.StatusCode, Status: resp.Status}
	}

	body, err := f.readBody(resp.Body)
	if err != nil {
		return nil, eris.Wrapf(err, "fetch: read %s", rawURL)
	}

	if err := f.cache.Set(key, body, 0); err != nil {
		f.logger.Warn("page not cached", zap.String("url", rawURL), zap.Error(err))
	}

	f.logger.Info("page fetched",
		zap.String("url", rawURL),
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(body)),
		zap.Duration("duration", time.Since(start)))

	return &FetchResult{
		Body:       body,
		URL:        rawURL,
		FinalURL:   resp.Request.URL.String(),
		StatusCode: resp.StatusCode,
		FetchedAt:  time.Now().UTC(),
	}, nil
}

// readBody reads up to maxBytes. Oversized pages fail instead of being
// truncated.
func (f *Fetcher) readBody(r io.Reader) ([]byte, error) {
	if f.maxBytes <= 0 {
		return io.ReadAll(r)
	}
	body, err := io.ReadAll(io.LimitReader(r, f.maxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(body)) > f.maxBytes {
		return nil, ErrTooLarge
	}
	return body, nil
}

// FetchWithRetry retries transient failures with exponential backoff
func (f *Fetcher) FetchWithRetry(ctx context.Context, rawURL string) (*FetchResult, error) {
	var lastErr error
	for attempt := 0; attempt < fetchMaxRetries; attempt++ {
		res, err := f.Fetch(ctx, rawURL)
		if err == nil {
			return res, nil
		}
		lastErr = err
		if !isRetryableFetchError(err) || ctx.Err() != nil {
			return nil, err
		}
		if attempt < fetchMaxRetries-1 {
			backoff := time.Duration(1<<uint(attempt)) * time.Second
			f.logger.Warn("fetch failed, retrying",
				zap.String("url", rawURL),
				zap.Int("attempt", attempt+1),
				zap.Duration("backoff", backoff),
				zap.Error(err))
			fetchSleepFunc(backoff)
		}
	}
	return nil, eris.Wrapf(lastErr, "fetch: giving up after %d attempts", fetchMaxRetries)
}

// isRetryableFetchError reports 5xx and 429 responses and transient network
// failures
func isRetryableFetchError(err error) bool {
	if err == nil {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code >= 500 || se.Code == http.StatusTooManyRequests
	}
	if errors.Is(err, ErrDisallowed) || errors.Is(err, ErrTooLarge) || errors.Is(err, context.Canceled) {
		return false
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "timeout") ||
		strings.Contains(s, "connection refused") ||
		strings.Contains(s, "connection reset")
}
