package server

import (
	"context"
	"runtime/debug"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"thriftwatch/internal/marketplace"
	"thriftwatch/internal/misc"
	"thriftwatch/internal/model"
)

const schedulerLeaseTTL = 10 * time.Minute

type searchStore interface {
	SavedSearchLastRunUpdate(ctx context.Context, id primitive.ObjectID, t time.Time) error
}

type searchAggregator interface {
	Search(ctx context.Context, q model.SearchQuery) marketplace.Outcome
}

// pipelineDeps is everything one search execution touches.
type pipelineDeps struct {
	searches      searchStore
	results       resultStore
	notifications notificationStore
	aggregator    searchAggregator
	scorer        listingScorer
	mail          mailSender
	logger        logger
	policy        Policy
}

func (s Server) pipeline() pipelineDeps {
	return pipelineDeps{
		searches:      s.DB,
		results:       s.DB,
		notifications: s.DB,
		aggregator:    s.Aggregator,
		scorer:        s.Scorer,
		mail:          s.Client,
		logger:        s.Logger,
		policy:        s.Policy,
	}
}

func (s Server) RunDueSearchesInInterval(ctx context.Context, ticker *time.Ticker) {
	for range ticker.C {
		s.runDueSearches(ctx)
	}
}

// runDueSearches executes one scheduler cycle: take the run lease, load every
// search past its staleness cutoff, and execute them in fixed-size batches
// with a delay between batches. A cycle that cannot get the lease is skipped,
// another instance owns it.
func (s Server) runDueSearches(ctx context.Context) {
	defer func() {
		if re := recover(); re != nil {
			s.Logger.Errorf("runDueSearches: Scheduler cycle crashed, err: %v, stack trace:\n%s", re, debug.Stack())
		}
	}()

	ok, err := s.Locker.AcquireRunLease(ctx, schedulerLeaseTTL)
	if err != nil {
		s.Logger.Errorf("runDueSearches: Error acquiring run lease, err: %v", err)
		return
	}
	if !ok {
		s.Logger.Debug("runDueSearches: Run lease held elsewhere, skipping cycle")
		return
	}
	defer func() {
		if err := s.Locker.ReleaseRunLease(ctx); err != nil {
			s.Logger.Errorf("runDueSearches: Error releasing run lease, err: %v", err)
		}
	}()

	staleBefore := time.Now().Add(-s.Policy.Staleness)
	due, err := s.DB.SavedSearchesFindDue(ctx, staleBefore)
	if err != nil {
		s.Logger.Errorf("runDueSearches: Error finding due SavedSearches, err: %v", err)
		return
	}
	if len(due) == 0 {
		s.Logger.Debug("runDueSearches: No SavedSearches due")
		return
	}
	s.Logger.Infof("runDueSearches: Starting cycle with %d due SavedSearch(es)", len(due))

	deps := s.pipeline()
	for start := 0; start < len(due); start += s.Policy.BatchSize {
		end := misc.Min(start+s.Policy.BatchSize, len(due))

		var wg sync.WaitGroup
		for _, ss := range due[start:end] {
			wg.Add(1)
			go func(ss model.SavedSearch) {
				defer wg.Done()
				if _, err := executeSearch(ctx, deps, ss); err != nil {
					s.Logger.Errorf("runDueSearches: Error executing SavedSearch ID: %s, err: %v", ss.ID.Hex(), err)
				}
			}(ss)
		}
		wg.Wait()

		if end < len(due) {
			select {
			case <-ctx.Done():
				s.Logger.Warnf("runDueSearches: Context done mid-cycle, %d SavedSearch(es) left, err: %v",
					len(due)-end, ctx.Err())
				return
			case <-time.After(s.Policy.BatchDelay):
			}
		}
	}
	s.Logger.Info("runDueSearches: Finished cycle")
}

// executeResultsCap bounds how many stored records a manual execute returns.
const executeResultsCap = 20

type executeSummary struct {
	Found         int                        `json:"found"`
	Stored        int                        `json:"stored"`
	New           int                        `json:"new"`
	HighRelevance int                        `json:"high_relevance"`
	Notified      int                        `json:"notified"`
	PriceDrops    int                        `json:"price_drops"`
	Results       []model.SearchResultRecord `json:"results,omitempty"`
	Failures      []string                   `json:"failures,omitempty"`
}

// executeSearch runs the full pipeline for one search: aggregate, score,
// process, notify. LastRunAt is stamped before any work so a run that fails
// halfway waits out the staleness window like any other instead of being
// retried immediately every cycle.
func executeSearch(ctx context.Context, d pipelineDeps, ss model.SavedSearch) (executeSummary, error) {
	var sum executeSummary
	if err := d.searches.SavedSearchLastRunUpdate(ctx, ss.ID, time.Now()); err != nil {
		d.logger.Errorf("executeSearch: Error updating LastRunAt for SavedSearch ID: %s, err: %v", ss.ID.Hex(), err)
	}

	outcome := d.aggregator.Search(ctx, ss.Query())
	for _, se := range outcome.Errors {
		sum.Failures = append(sum.Failures, se.Marketplace)
	}
	if outcome.AllFailed() {
		return sum, errors.Errorf("all %d marketplace(s) failed for SavedSearch ID: %s", len(outcome.Errors), ss.ID.Hex())
	}
	sum.Found = len(outcome.Results)
	if sum.Found == 0 {
		d.logger.Infof("executeSearch: No listings found for SavedSearch ID: %s", ss.ID.Hex())
		return sum, nil
	}

	scored := d.scorer.AnalyzeBatch(ctx, outcome.Results, ss.Criteria())

	po, err := processResults(ctx, d.results, d.logger, ss, scored, d.policy.HighRelevanceThreshold, d.policy.RecentLookback)
	if err != nil {
		return sum, err
	}
	sum.Stored = po.stored
	sum.New = len(po.newRecords)
	sum.HighRelevance = len(po.highRelevance)
	sum.Results = po.records
	if len(sum.Results) > executeResultsCap {
		sum.Results = sum.Results[:executeResultsCap]
	}

	sum.Notified = notifyNewHighRelevance(ctx, d.notifications, d.mail, d.logger, ss, po.highRelevance, d.policy.NotificationCap)
	sum.PriceDrops = notifyPriceDrops(ctx, d.notifications, d.logger, ss, po.priceDrops, d.policy.NotificationCap)

	d.logger.Infof("executeSearch: SavedSearch ID: %s, found: %d, stored: %d, new: %d, high relevance: %d, notified: %d, price drops: %d",
		ss.ID.Hex(), sum.Found, sum.Stored, sum.New, sum.HighRelevance, sum.Notified, sum.PriceDrops)
	return sum, nil
}
