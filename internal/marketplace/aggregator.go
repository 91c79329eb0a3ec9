package marketplace

import (
	"context"
	"sort"

	"github.com/pkg/errors"

	"thriftwatch/internal/model"
)

// SearchError records one marketplace's failure during an aggregate search.
type SearchError struct {
	Marketplace string
	Err         error
}

// Outcome is the merged result of one aggregate search. Errors are collected
// per marketplace and never escalate: the aggregate call succeeds if zero or
// more adapters succeed, and the caller decides what an all-failed run means.
type Outcome struct {
	Results []model.Listing
	Errors  []SearchError
}

// AllFailed reports whether every requested marketplace errored and nothing
// came back.
func (o Outcome) AllFailed() bool {
	return len(o.Results) == 0 && len(o.Errors) > 0
}

type Aggregator struct {
	Registry *Registry
	Logger   logger
}

// Search fans the query out to every requested marketplace concurrently and
// merges whatever came back. A slow adapter delays only the final merge, a
// failing or panicking one contributes an error entry instead of results,
// and an unknown marketplace name is recorded rather than thrown.
func (a Aggregator) Search(ctx context.Context, q model.SearchQuery) Outcome {
	type adapterResult struct {
		marketplace string
		listings    []model.Listing
		err         error
	}

	var out Outcome
	resCh := make(chan adapterResult, len(q.Marketplaces))
	launched := 0

	for _, name := range q.Marketplaces {
		ad, ok := a.Registry.Adapter(name)
		if !ok {
			a.Logger.Warnf("Search: No adapter registered for marketplace: %s", name)
			out.Errors = append(out.Errors, SearchError{
				Marketplace: name,
				Err:         errors.Errorf("no adapter registered for marketplace: %s", name),
			})
			continue
		}
		launched++
		go func(ad Adapter) {
			ls, err := func() (ls []model.Listing, err error) {
				defer func() {
					if r := recover(); r != nil {
						err = errors.Errorf("adapter panicked: %v", r)
					}
				}()
				return ad.Search(ctx, q)
			}()
			resCh <- adapterResult{marketplace: ad.Name(), listings: ls, err: err}
		}(ad)
	}

	for i := 0; i < launched; i++ {
		r := <-resCh
		if r.err != nil {
			a.Logger.Errorf("Search: Error searching marketplace: %s, err: %v", r.marketplace, r.err)
			out.Errors = append(out.Errors, SearchError{Marketplace: r.marketplace, Err: r.err})
			continue
		}
		a.Logger.Debugf("Search: Got %d listing(s) from marketplace: %s", len(r.listings), r.marketplace)
		out.Results = append(out.Results, r.listings...)
	}

	sortListings(out.Results, q.SortBy)
	return out
}

// sortListings applies a single deterministic sort pass over the merged
// results. Relevance ordering happens after scoring, so it is a no-op here.
func sortListings(ls []model.Listing, sortBy string) {
	switch sortBy {
	case model.SortPriceLow:
		sort.SliceStable(ls, func(i, j int) bool { return ls[i].Price < ls[j].Price })
	case model.SortPriceHigh:
		sort.SliceStable(ls, func(i, j int) bool { return ls[i].Price > ls[j].Price })
	case model.SortRelevance:
	default:
		sort.SliceStable(ls, func(i, j int) bool { return ls[i].PostedAt.After(ls[j].PostedAt) })
	}
}
