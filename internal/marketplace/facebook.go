package marketplace

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"thriftwatch/internal/model"
)

var ErrFacebook = errors.New("Facebook Marketplace error")

// Facebook Marketplace has no usable public search API and its anti-bot
// measures block scraping. The adapter runs in placeholder-data mode: it
// serves deterministic sample listings shaped from the query so the rest of
// the pipeline keeps working, and its health check reports false so the
// degraded mode is visible.
type facebookAdapter struct {
	logger  logger
	limiter *rateLimiter
}

func newFacebookAdapter(log logger) *facebookAdapter {
	return &facebookAdapter{
		logger:  log,
		limiter: newRateLimiter(2 * time.Second),
	}
}

func (a *facebookAdapter) Name() string { return Facebook }

func (a *facebookAdapter) Search(ctx context.Context, q model.SearchQuery) ([]model.Listing, error) {
	if err := a.limiter.wait(ctx); err != nil {
		return nil, errors.Wrap(err, "error waiting on Facebook rate limiter")
	}
	a.logger.Debugf("Search: Facebook adapter serving placeholder data for keywords: %q", q.Keywords)

	now := time.Now()
	candidates := []model.Listing{
		{
			ExternalID:  "fb-placeholder-1",
			Title:       fmt.Sprintf("%s - Great condition", q.Keywords),
			Price:       75,
			ImageURL:    "https://via.placeholder.com/300x300",
			URL:         "https://www.facebook.com/marketplace/item/placeholder-1",
			Marketplace: Facebook,
			PostedAt:    now.Add(-36 * time.Hour),
			Condition:   "good",
			Location:    "Local area",
			Seller:      model.Seller{Name: "Marketplace Seller", Rating: 4.5},
		},
		{
			ExternalID:  "fb-placeholder-2",
			Title:       fmt.Sprintf("Vintage %s", q.Keywords),
			Price:       40,
			ImageURL:    "https://via.placeholder.com/300x300",
			URL:         "https://www.facebook.com/marketplace/item/placeholder-2",
			Marketplace: Facebook,
			PostedAt:    now.Add(-12 * time.Hour),
			Condition:   "fair",
			Location:    "Nearby",
			Seller:      model.Seller{Name: "Marketplace Seller", Rating: 4.8},
		},
	}

	ls := candidates[:0]
	for _, l := range candidates {
		if q.MinPrice != nil && l.Price < *q.MinPrice {
			continue
		}
		if q.MaxPrice != nil && l.Price > *q.MaxPrice {
			continue
		}
		ls = append(ls, l)
	}
	return ls, nil
}

func (a *facebookAdapter) ItemDetails(_ context.Context, externalID string) (json.RawMessage, error) {
	return nil, errors.Wrapf(ErrFacebook, "item details unavailable in placeholder mode, ExternalID: %s", externalID)
}

// HealthCheck reports false: the adapter works, but it is not talking to the
// real marketplace.
func (a *facebookAdapter) HealthCheck(_ context.Context) bool {
	return false
}
