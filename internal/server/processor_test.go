package server

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"thriftwatch/internal/client"
	"thriftwatch/internal/marketplace"
	"thriftwatch/internal/model"
)

type testLogger struct{ t *testing.T }

func (l testLogger) Debug(v ...any)                 { l.t.Log(v...) }
func (l testLogger) Info(v ...any)                  { l.t.Log(v...) }
func (l testLogger) Warn(v ...any)                  { l.t.Log(v...) }
func (l testLogger) Error(v ...any)                 { l.t.Log(v...) }
func (l testLogger) Tracef(format string, v ...any) { l.t.Logf(format, v...) }
func (l testLogger) Debugf(format string, v ...any) { l.t.Logf(format, v...) }
func (l testLogger) Infof(format string, v ...any)  { l.t.Logf(format, v...) }
func (l testLogger) Warnf(format string, v ...any)  { l.t.Logf(format, v...) }
func (l testLogger) Errorf(format string, v ...any) { l.t.Logf(format, v...) }

type fakeResultStore struct {
	existing  map[string]struct{}
	prices    map[string]float64
	upserted  []model.SearchResultRecord
	failIDs   map[string]struct{}
	recentErr error
}

func (f *fakeResultStore) SearchResultRecentExternalIDs(
	_ context.Context, _ primitive.ObjectID, _ int64,
) (map[string]struct{}, error) {
	if f.recentErr != nil {
		return nil, f.recentErr
	}
	if f.existing == nil {
		return map[string]struct{}{}, nil
	}
	return f.existing, nil
}

func (f *fakeResultStore) SearchResultUpsert(_ context.Context, rec model.SearchResultRecord) (bool, *float64, error) {
	if _, fail := f.failIDs[rec.Listing.ExternalID]; fail {
		return false, nil, errors.New("write failed")
	}
	f.upserted = append(f.upserted, rec)
	if _, seen := f.existing[rec.Listing.ExternalID]; seen {
		prev, ok := f.prices[rec.Listing.ExternalID]
		if !ok {
			prev = rec.Listing.Price
		}
		return false, &prev, nil
	}
	return true, nil, nil
}

type fakeNotificationStore struct {
	inserted []model.Notification
	failIDs  map[string]struct{}
}

func (f *fakeNotificationStore) NotificationInsert(_ context.Context, n model.Notification) (string, error) {
	if _, fail := f.failIDs[n.Data.ItemID]; fail {
		return "", errors.New("insert failed")
	}
	f.inserted = append(f.inserted, n)
	return primitive.NewObjectID().Hex(), nil
}

type fakeSearchStore struct {
	lastRunIDs []primitive.ObjectID
	err        error
}

func (f *fakeSearchStore) SavedSearchLastRunUpdate(_ context.Context, id primitive.ObjectID, _ time.Time) error {
	f.lastRunIDs = append(f.lastRunIDs, id)
	return f.err
}

type fakeAggregator struct{ outcome marketplace.Outcome }

func (f fakeAggregator) Search(context.Context, model.SearchQuery) marketplace.Outcome {
	return f.outcome
}

// fakeScorer assigns scores by external id, defaulting to 5.
type fakeScorer struct{ scores map[string]int }

func (f fakeScorer) AnalyzeBatch(_ context.Context, ls []model.Listing, _ model.SearchCriteria) []model.ScoredListing {
	scored := make([]model.ScoredListing, len(ls))
	for i, l := range ls {
		score, ok := f.scores[l.ExternalID]
		if !ok {
			score = 5
		}
		scored[i] = model.ScoredListing{
			Listing:  l,
			Analysis: model.AIAnalysisResult{RelevanceScore: score, Confidence: 0.9},
		}
	}
	return scored
}

type fakeMail struct {
	sent []client.MailSendRequest
	err  error
}

func (f *fakeMail) MailSend(_ context.Context, req client.MailSendRequest) (client.MailSendResponse, error) {
	if f.err != nil {
		return client.MailSendResponse{}, f.err
	}
	f.sent = append(f.sent, req)
	return client.MailSendResponse{Accepted: true}, nil
}

func testSearch() model.SavedSearch {
	return model.SavedSearch{
		ID:                primitive.NewObjectID(),
		OwnerID:           "owner-1",
		Name:              "film cameras",
		Keywords:          "film camera",
		Marketplaces:      []string{"depop", "ebay"},
		MinRelevanceScore: 6,
		NotifyEnabled:     true,
		Active:            true,
	}
}

func scoredListing(id string, score int, postedAt time.Time) model.ScoredListing {
	return model.ScoredListing{
		Listing:  model.Listing{ExternalID: id, Title: "Item " + id, Price: 50, Marketplace: "depop", PostedAt: postedAt},
		Analysis: model.AIAnalysisResult{RelevanceScore: score, Confidence: 0.9},
	}
}

func TestProcessResultsFiltersAndClassifies(t *testing.T) {
	now := time.Now()
	store := &fakeResultStore{}
	ss := testSearch()

	scored := []model.ScoredListing{
		scoredListing("a", 9, now),
		scoredListing("b", 4, now),
		scoredListing("c", 7, now),
	}
	out, err := processResults(context.Background(), store, testLogger{t}, ss, scored, 8, 100)
	if err != nil {
		t.Fatalf("processResults error: %v", err)
	}

	// The score-4 listing is below the search's floor of 6.
	if out.stored != 2 {
		t.Errorf("got stored %d, want 2", out.stored)
	}
	if len(out.newRecords) != 2 {
		t.Errorf("got %d new records, want 2", len(out.newRecords))
	}
	if len(out.highRelevance) != 1 {
		t.Fatalf("got %d high-relevance records, want 1", len(out.highRelevance))
	}
	if out.highRelevance[0].Listing.ExternalID != "a" {
		t.Errorf("got high-relevance record %q, want %q", out.highRelevance[0].Listing.ExternalID, "a")
	}
	// Upserts happen in score order.
	if store.upserted[0].Listing.ExternalID != "a" || store.upserted[1].Listing.ExternalID != "c" {
		t.Errorf("unexpected upsert order: %q, %q",
			store.upserted[0].Listing.ExternalID, store.upserted[1].Listing.ExternalID)
	}
}

func TestProcessResultsSeenItemsAreNotNew(t *testing.T) {
	now := time.Now()
	store := &fakeResultStore{existing: map[string]struct{}{"a": {}}}
	ss := testSearch()

	scored := []model.ScoredListing{
		scoredListing("a", 9, now),
		scoredListing("b", 9, now),
	}
	out, err := processResults(context.Background(), store, testLogger{t}, ss, scored, 8, 100)
	if err != nil {
		t.Fatalf("processResults error: %v", err)
	}

	// Both are stored (the seen one is refreshed) but only "b" is new.
	if out.stored != 2 {
		t.Errorf("got stored %d, want 2", out.stored)
	}
	if len(out.newRecords) != 1 || out.newRecords[0].Listing.ExternalID != "b" {
		t.Errorf("got new records %+v, want only %q", out.newRecords, "b")
	}
	if len(out.highRelevance) != 1 || out.highRelevance[0].Listing.ExternalID != "b" {
		t.Errorf("got high-relevance records %+v, want only %q", out.highRelevance, "b")
	}
}

func TestProcessResultsUpsertFailureIsIsolated(t *testing.T) {
	now := time.Now()
	store := &fakeResultStore{failIDs: map[string]struct{}{"a": {}}}
	ss := testSearch()

	scored := []model.ScoredListing{
		scoredListing("a", 9, now),
		scoredListing("b", 9, now),
	}
	out, err := processResults(context.Background(), store, testLogger{t}, ss, scored, 8, 100)
	if err != nil {
		t.Fatalf("processResults error: %v", err)
	}
	if out.stored != 1 {
		t.Errorf("got stored %d, want 1", out.stored)
	}
	if len(out.newRecords) != 1 || out.newRecords[0].Listing.ExternalID != "b" {
		t.Errorf("got new records %+v, want only %q", out.newRecords, "b")
	}
}

func TestProcessResultsDetectsPriceDrops(t *testing.T) {
	now := time.Now()
	store := &fakeResultStore{
		existing: map[string]struct{}{"a": {}, "b": {}},
		prices:   map[string]float64{"a": 80, "b": 30},
	}
	ss := testSearch()

	// "a" dropped from 80 to 50, "b" rose from 30 to 50, "c" is new.
	scored := []model.ScoredListing{
		scoredListing("a", 9, now),
		scoredListing("b", 9, now),
		scoredListing("c", 9, now),
	}
	out, err := processResults(context.Background(), store, testLogger{t}, ss, scored, 8, 100)
	if err != nil {
		t.Fatalf("processResults error: %v", err)
	}
	if out.stored != 3 {
		t.Errorf("got stored %d, want 3", out.stored)
	}
	if len(out.priceDrops) != 1 {
		t.Fatalf("got %d price drops, want 1", len(out.priceDrops))
	}
	if d := out.priceDrops[0]; d.record.Listing.ExternalID != "a" || d.oldPrice != 80 {
		t.Errorf("got price drop %q from %v, want %q from 80", d.record.Listing.ExternalID, d.oldPrice, "a")
	}
	if len(out.newRecords) != 1 || out.newRecords[0].Listing.ExternalID != "c" {
		t.Errorf("got new records %+v, want only %q", out.newRecords, "c")
	}
}

func TestProcessResultsCollectsStoredRecords(t *testing.T) {
	now := time.Now()
	store := &fakeResultStore{failIDs: map[string]struct{}{"b": {}}}
	ss := testSearch()

	scored := []model.ScoredListing{
		scoredListing("a", 9, now),
		scoredListing("b", 8, now),
		scoredListing("c", 7, now),
	}
	out, err := processResults(context.Background(), store, testLogger{t}, ss, scored, 8, 100)
	if err != nil {
		t.Fatalf("processResults error: %v", err)
	}
	// The failed upsert is excluded and score order is preserved.
	if len(out.records) != 2 ||
		out.records[0].Listing.ExternalID != "a" || out.records[1].Listing.ExternalID != "c" {
		t.Errorf("got records %+v, want [a c]", out.records)
	}
}

func TestProcessResultsDefaultsRelevanceFloor(t *testing.T) {
	now := time.Now()
	store := &fakeResultStore{}
	ss := testSearch()
	ss.MinRelevanceScore = 0

	scored := []model.ScoredListing{
		scoredListing("a", 6, now),
		scoredListing("b", 5, now),
	}
	out, err := processResults(context.Background(), store, testLogger{t}, ss, scored, 8, 100)
	if err != nil {
		t.Fatalf("processResults error: %v", err)
	}
	if out.stored != 1 {
		t.Errorf("got stored %d, want 1 (floor defaults to %d)", out.stored, model.MinRelevanceScoreDefault)
	}
}
