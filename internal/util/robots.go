package util

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/rotisserie/eris"
	"github.com/temoto/robotstxt"
	"go.uber.org/zap"
)

// maxRobotsBytes caps how much of a robots.txt file is read
const maxRobotsBytes = 512 << 10

// RobotsDecision is the verdict of robots.txt for one URL
type RobotsDecision struct {
	Allowed    bool
	CrawlDelay time.Duration
}

// RobotsChecker checks pages against their host's robots.txt. Parsed files
// are kept per host for ttl.
type RobotsChecker struct {
	client *http.Client
	agent  string // Product token matched against robots groups
	ua     string // Full User-Agent header
	hosts  *gocache.Cache
	logger *zap.Logger
}

// NewRobotsChecker creates a checker that fetches with client
func NewRobotsChecker(client *http.Client, userAgent string, ttl time.Duration, logger *zap.Logger) *RobotsChecker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &RobotsChecker{
		client: client,
		agent:  NormalizeUserAgent(userAgent),
		ua:     userAgent,
		hosts:  gocache.New(ttl, ttl),
		logger: logger,
	}
}

// Check returns the robots.txt verdict for rawURL. A robots.txt that cannot
// be fetched allows everything; the failure is logged.
func (r *RobotsChecker) Check(ctx context.Context, rawURL string) (RobotsDecision, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return RobotsDecision{}, eris.Wrapf(err, "robots: parse %q", rawURL)
	}
	if parsed.Host == "" {
		return RobotsDecision{}, eris.Errorf("robots: %q has no host", rawURL)
	}

	data, err := r.robots(ctx, parsed)
	if err != nil {
		r.logger.Warn("robots.txt unavailable, allowing",
			zap.String("host", parsed.Host),
			zap.Error(err))
		return RobotsDecision{Allowed: true}, nil
	}

	decision := RobotsDecision{Allowed: data.TestAgent(parsed.RequestURI(), r.agent)}
	if group := data.FindGroup(r.agent); group != nil {
		decision.CrawlDelay = group.CrawlDelay
	}
	return decision, nil
}

func (r *RobotsChecker) robots(ctx context.Context, page *url.URL) (*robotstxt.RobotsData, error) {
	key := page.Scheme + "://" + page.Host
	if cached, ok := r.hosts.Get(key); ok {
		return cached.(*robotstxt.RobotsData), nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, key+"/robots.txt", nil)
	if err != nil {
		return nil, eris.Wrap(err, "robots: build request")
	}
	req.Header.Set("User-Agent", r.ua)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "robots: fetch")
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRobotsBytes))
	if err != nil {
		return nil, eris.Wrap(err, "robots: read body")
	}

	// 4xx allows everything, 5xx disallows everything
	data, err := robotstxt.FromStatusAndBytes(resp.StatusCode, body)
	if err != nil {
		return nil, eris.Wrap(err, "robots: parse")
	}

	r.hosts.SetDefault(key, data)
	return data, nil
}

// NormalizeUserAgent returns the product token of a User-Agent string:
// "lossledger/0.1 (+https://...)" becomes "lossledger".
func NormalizeUserAgent(ua string) string {
	parts := strings.Fields(ua)
	if len(parts) == 0 {
		return ua
	}
	product, _, _ := strings.Cut(parts[0], "/")
	return product
}
