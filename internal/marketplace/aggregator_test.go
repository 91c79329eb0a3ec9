package marketplace

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/pkg/errors"

	"thriftwatch/internal/model"
)

type testLogger struct{ t *testing.T }

func (l testLogger) Debugf(format string, v ...any) { l.t.Logf("DEBUG: "+format, v...) }
func (l testLogger) Infof(format string, v ...any)  { l.t.Logf("INFO : "+format, v...) }
func (l testLogger) Warnf(format string, v ...any)  { l.t.Logf("WARN : "+format, v...) }
func (l testLogger) Errorf(format string, v ...any) { l.t.Logf("ERROR: "+format, v...) }

type fakeAdapter struct {
	name     string
	listings []model.Listing
	err      error
	panics   bool
	delay    time.Duration
}

func (f fakeAdapter) Name() string { return f.name }

func (f fakeAdapter) Search(ctx context.Context, _ model.SearchQuery) ([]model.Listing, error) {
	if f.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(f.delay):
		}
	}
	if f.panics {
		panic("boom")
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.listings, nil
}

func (f fakeAdapter) ItemDetails(context.Context, string) (json.RawMessage, error) {
	return nil, errors.New("not implemented")
}

func (f fakeAdapter) HealthCheck(context.Context) bool { return f.err == nil }

func registryWith(adapters ...Adapter) *Registry {
	m := make(map[string]Adapter, len(adapters))
	for _, a := range adapters {
		m[a.Name()] = a
	}
	return &Registry{adapters: m}
}

func listing(id string, price float64, postedAt time.Time) model.Listing {
	return model.Listing{ExternalID: id, Title: "Item " + id, Price: price, PostedAt: postedAt}
}

func searchQuery(keywords string, minPrice, maxPrice *float64) model.SearchQuery {
	return model.SearchQuery{Keywords: keywords, MinPrice: minPrice, MaxPrice: maxPrice}
}

func TestAggregatorPartialFailure(t *testing.T) {
	now := time.Now()
	reg := registryWith(
		fakeAdapter{name: "depop", listings: []model.Listing{listing("d1", 10, now)}},
		fakeAdapter{name: "ebay", err: errors.New("http 500")},
		fakeAdapter{name: "vinted", listings: []model.Listing{listing("v1", 20, now.Add(-time.Hour))}},
	)
	agg := Aggregator{Registry: reg, Logger: testLogger{t}}

	out := agg.Search(context.Background(), model.SearchQuery{
		Keywords:     "camera",
		Marketplaces: []string{"depop", "ebay", "vinted"},
	})

	if len(out.Results) != 2 {
		t.Errorf("got %d results, want 2", len(out.Results))
	}
	if len(out.Errors) != 1 {
		t.Fatalf("got %d errors, want 1", len(out.Errors))
	}
	if out.Errors[0].Marketplace != "ebay" {
		t.Errorf("got error marketplace %q, want %q", out.Errors[0].Marketplace, "ebay")
	}
	if out.AllFailed() {
		t.Error("AllFailed() = true with partial results")
	}
}

func TestAggregatorPanicIsolation(t *testing.T) {
	now := time.Now()
	reg := registryWith(
		fakeAdapter{name: "depop", listings: []model.Listing{listing("d1", 10, now)}},
		fakeAdapter{name: "ebay", panics: true},
	)
	agg := Aggregator{Registry: reg, Logger: testLogger{t}}

	out := agg.Search(context.Background(), model.SearchQuery{
		Keywords:     "camera",
		Marketplaces: []string{"depop", "ebay"},
	})

	if len(out.Results) != 1 {
		t.Errorf("got %d results, want 1", len(out.Results))
	}
	if len(out.Errors) != 1 {
		t.Fatalf("got %d errors, want 1", len(out.Errors))
	}
	if out.Errors[0].Marketplace != "ebay" {
		t.Errorf("got error marketplace %q, want %q", out.Errors[0].Marketplace, "ebay")
	}
}

func TestAggregatorUnknownMarketplace(t *testing.T) {
	reg := registryWith(
		fakeAdapter{name: "depop", listings: []model.Listing{listing("d1", 10, time.Now())}},
	)
	agg := Aggregator{Registry: reg, Logger: testLogger{t}}

	out := agg.Search(context.Background(), model.SearchQuery{
		Keywords:     "camera",
		Marketplaces: []string{"depop", "bogusplace"},
	})

	if len(out.Results) != 1 {
		t.Errorf("got %d results, want 1", len(out.Results))
	}
	if len(out.Errors) != 1 {
		t.Fatalf("got %d errors, want 1", len(out.Errors))
	}
	if out.Errors[0].Marketplace != "bogusplace" {
		t.Errorf("got error marketplace %q, want %q", out.Errors[0].Marketplace, "bogusplace")
	}
}

func TestAggregatorAllFailed(t *testing.T) {
	reg := registryWith(
		fakeAdapter{name: "depop", err: errors.New("down")},
		fakeAdapter{name: "ebay", err: errors.New("down")},
	)
	agg := Aggregator{Registry: reg, Logger: testLogger{t}}

	out := agg.Search(context.Background(), model.SearchQuery{
		Keywords:     "camera",
		Marketplaces: []string{"depop", "ebay"},
	})

	if !out.AllFailed() {
		t.Error("AllFailed() = false, want true")
	}
	if len(out.Errors) != 2 {
		t.Errorf("got %d errors, want 2", len(out.Errors))
	}
}

func TestSortListings(t *testing.T) {
	now := time.Now()
	base := []model.Listing{
		listing("a", 30, now.Add(-2*time.Hour)),
		listing("b", 10, now),
		listing("c", 20, now.Add(-time.Hour)),
	}

	tests := []struct {
		sortBy string
		want   []string
	}{
		{model.SortPriceLow, []string{"b", "c", "a"}},
		{model.SortPriceHigh, []string{"a", "c", "b"}},
		{model.SortNewest, []string{"b", "c", "a"}},
		{"", []string{"b", "c", "a"}},
		{model.SortRelevance, []string{"a", "b", "c"}},
	}
	for _, tt := range tests {
		ls := make([]model.Listing, len(base))
		copy(ls, base)
		sortListings(ls, tt.sortBy)
		for i, id := range tt.want {
			if ls[i].ExternalID != id {
				t.Errorf("sortBy %q: position %d got %q, want %q", tt.sortBy, i, ls[i].ExternalID, id)
			}
		}
	}
}
