package server

import (
	"context"
	"sort"

	"thriftwatch/internal/model"
)

type priceDrop struct {
	record   model.SearchResultRecord
	oldPrice float64
}

type processOutcome struct {
	stored        int
	records       []model.SearchResultRecord
	newRecords    []model.SearchResultRecord
	highRelevance []model.SearchResultRecord
	priceDrops    []priceDrop
}

// processResults filters scored listings by the search's relevance floor,
// upserts the survivors keyed by (search_id, external_id), and classifies
// which of them the search has not seen before. Only new records qualify for
// the high-relevance set, so re-running a search never re-alerts on items it
// already stored. A refreshed record whose price fell since the last run is
// collected as a price drop. A single failed upsert is logged and skipped,
// not fatal.
func processResults(
	ctx context.Context,
	store resultStore,
	log logger,
	ss model.SavedSearch,
	scored []model.ScoredListing,
	highThreshold int,
	recentLookback int64,
) (processOutcome, error) {
	var out processOutcome

	minScore := ss.MinRelevanceScore
	if minScore == 0 {
		minScore = model.MinRelevanceScoreDefault
	}
	relevant := make([]model.ScoredListing, 0, len(scored))
	for _, sl := range scored {
		if sl.Analysis.RelevanceScore >= minScore {
			relevant = append(relevant, sl)
		}
	}
	log.Debugf("processResults: %d of %d listing(s) passed relevance floor %d for SavedSearch ID: %s",
		len(relevant), len(scored), minScore, ss.ID.Hex())
	if len(relevant) == 0 {
		return out, nil
	}

	sort.SliceStable(relevant, func(i, j int) bool {
		if relevant[i].Analysis.RelevanceScore != relevant[j].Analysis.RelevanceScore {
			return relevant[i].Analysis.RelevanceScore > relevant[j].Analysis.RelevanceScore
		}
		return relevant[i].PostedAt.After(relevant[j].PostedAt)
	})

	seen, err := store.SearchResultRecentExternalIDs(ctx, ss.ID, recentLookback)
	if err != nil {
		return out, err
	}

	for _, sl := range relevant {
		rec := model.SearchResultRecord{
			SearchID: ss.ID,
			OwnerID:  ss.OwnerID,
			Listing:  sl.Listing,
			Analysis: sl.Analysis,
		}
		inserted, prevPrice, err := store.SearchResultUpsert(ctx, rec)
		if err != nil {
			log.Errorf("processResults: Error upserting SearchResultRecord, SearchID: %s, ExternalID: %s, err: %v",
				ss.ID.Hex(), sl.ExternalID, err)
			continue
		}
		out.stored++
		out.records = append(out.records, rec)

		if inserted {
			if _, seenBefore := seen[sl.ExternalID]; seenBefore {
				continue
			}
			out.newRecords = append(out.newRecords, rec)
			if sl.Analysis.RelevanceScore >= highThreshold {
				out.highRelevance = append(out.highRelevance, rec)
			}
			continue
		}
		if prevPrice != nil && sl.Price < *prevPrice {
			out.priceDrops = append(out.priceDrops, priceDrop{record: rec, oldPrice: *prevPrice})
		}
	}
	return out, nil
}
