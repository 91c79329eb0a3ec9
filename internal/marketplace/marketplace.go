package marketplace

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"time"

	"thriftwatch/internal/model"
)

const (
	Depop      = "depop"
	Ebay       = "ebay"
	Vinted     = "vinted"
	Facebook   = "facebook"
	Craigslist = "craigslist"
)

// Names lists every marketplace the registry knows about.
func Names() []string {
	return []string{Depop, Ebay, Vinted, Facebook, Craigslist}
}

// Adapter translates the normalized query into one marketplace's native
// request and its native payload back into the common Listing shape.
// Search and ItemDetails return errors; HealthCheck never does.
type Adapter interface {
	Name() string
	Search(ctx context.Context, q model.SearchQuery) ([]model.Listing, error)
	ItemDetails(ctx context.Context, externalID string) (json.RawMessage, error)
	HealthCheck(ctx context.Context) bool
}

type logger interface {
	Debugf(format string, v ...any)
	Infof(format string, v ...any)
	Warnf(format string, v ...any)
	Errorf(format string, v ...any)
}

// rateLimiter enforces a minimum interval between outbound requests to one
// marketplace. One limiter per marketplace is created by the registry and
// shared by every caller, so concurrent aggregator calls cannot exceed the
// marketplace's allowed rate between them. Holding the mutex through the
// sleep serializes waiters at the configured interval.
type rateLimiter struct {
	mu       sync.Mutex
	interval time.Duration
	last     time.Time
}

func newRateLimiter(interval time.Duration) *rateLimiter {
	return &rateLimiter{interval: interval}
}

func (l *rateLimiter) wait(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if sleep := l.interval - time.Since(l.last); sleep > 0 {
		timer := time.NewTimer(sleep)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
	l.last = time.Now()
	return nil
}

func newRequest(ctx context.Context, method string, url string, body io.Reader) (*http.Request, error) {
	r, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, err
	}
	setDefaultRequestHeader(r)
	return r, nil
}

func setDefaultRequestHeader(r *http.Request) {
	r.Header.Set("User-Agent", "Mozilla/5.0")
	r.Header.Set("Accept", "application/json")
}

// Config carries the per-marketplace credentials and endpoints adapters need.
type Config struct {
	EbayAppID            string
	VintedAPIKey         string
	CraigslistScraperURL string
	CraigslistScraperKey string
}

// Registry holds one long-lived adapter instance per marketplace. Adapters
// (and the rate-limit state inside them) must be shared process-wide, not
// constructed per aggregate call.
type Registry struct {
	adapters map[string]Adapter
}

func NewRegistry(httpClient *http.Client, cfg Config, log logger) *Registry {
	return &Registry{adapters: map[string]Adapter{
		Depop:      newDepopAdapter(httpClient, log),
		Ebay:       newEbayAdapter(httpClient, cfg.EbayAppID, log),
		Vinted:     newVintedAdapter(httpClient, cfg.VintedAPIKey, log),
		Facebook:   newFacebookAdapter(log),
		Craigslist: newCraigslistAdapter(httpClient, cfg.CraigslistScraperURL, cfg.CraigslistScraperKey, log),
	}}
}

func (r *Registry) Adapter(name string) (Adapter, bool) {
	a, ok := r.adapters[name]
	return a, ok
}

// Health reports per-marketplace reachability. Adapters in placeholder or
// unconfigured mode report false so callers can tell degraded from live.
func (r *Registry) Health(ctx context.Context) map[string]bool {
	status := make(map[string]bool, len(r.adapters))
	for name, a := range r.adapters {
		status[name] = a.HealthCheck(ctx)
	}
	return status
}
