package ai

import (
	"context"
	"testing"

	"github.com/pkg/errors"

	"thriftwatch/internal/model"
)

type testLogger struct{ t *testing.T }

func (l testLogger) Debugf(format string, v ...any) { l.t.Logf("DEBUG: "+format, v...) }
func (l testLogger) Warnf(format string, v ...any)  { l.t.Logf("WARN : "+format, v...) }
func (l testLogger) Errorf(format string, v ...any) { l.t.Logf("ERROR: "+format, v...) }

type stubGenerator struct {
	resp string
	err  error
}

func (g stubGenerator) GenerateContent(context.Context, string) (string, error) {
	return g.resp, g.err
}

func criteria(keywords []string, minPrice, maxPrice *float64) model.SearchCriteria {
	return model.SearchCriteria{Keywords: keywords, MinPrice: minPrice, MaxPrice: maxPrice, MinRelevanceScore: 6}
}

func float(v float64) *float64 { return &v }

func TestAnalyzeParsesModelResponse(t *testing.T) {
	gen := stubGenerator{resp: "Here is the analysis:\n```json\n" + `{
		"relevance_score": 9,
		"reasoning": "Close match.",
		"confidence": 0.9,
		"key_matches": ["brand", "model"],
		"red_flags": [],
		"price_analysis": {"fair_price": true, "price_rating": "good", "market_comparison": "below market"}
	}` + "\n```"}
	s := NewScorer(gen, testLogger{t})

	a := s.Analyze(context.Background(), model.Listing{ExternalID: "x", Title: "Canon AE-1"}, criteria([]string{"canon"}, nil, nil))
	if a.RelevanceScore != 9 {
		t.Errorf("got score %d, want 9", a.RelevanceScore)
	}
	if a.Confidence != 0.9 {
		t.Errorf("got confidence %v, want 0.9", a.Confidence)
	}
	if a.PriceAnalysis.PriceRating != model.PriceRatingGood {
		t.Errorf("got price rating %q, want %q", a.PriceAnalysis.PriceRating, model.PriceRatingGood)
	}
}

func TestAnalyzeClampsOutOfRangeResponse(t *testing.T) {
	gen := stubGenerator{resp: `{"relevance_score": 42, "confidence": 1.7, "price_analysis": {"price_rating": "amazing"}}`}
	s := NewScorer(gen, testLogger{t})

	a := s.Analyze(context.Background(), model.Listing{Title: "x"}, criteria([]string{"x"}, nil, nil))
	if a.RelevanceScore != model.RelevanceScoreMax {
		t.Errorf("got score %d, want %d", a.RelevanceScore, model.RelevanceScoreMax)
	}
	if a.Confidence != 1 {
		t.Errorf("got confidence %v, want 1", a.Confidence)
	}
	if a.PriceAnalysis.PriceRating != model.PriceRatingFair {
		t.Errorf("got price rating %q, want %q", a.PriceAnalysis.PriceRating, model.PriceRatingFair)
	}
	if a.KeyMatches == nil || a.RedFlags == nil {
		t.Error("nil slices after normalization")
	}
}

func TestAnalyzeFallbackOnGeneratorError(t *testing.T) {
	gen := stubGenerator{err: errors.New("quota exceeded")}
	s := NewScorer(gen, testLogger{t})

	l := model.Listing{Title: "Vintage Canon AE-1 film camera", Price: 120}
	a := s.Analyze(context.Background(), l, criteria([]string{"canon", "film", "nikon"}, float(50), float(200)))

	// Two of three keywords match (4 points) and the price is in range (+2).
	if a.RelevanceScore != 6 {
		t.Errorf("got score %d, want 6", a.RelevanceScore)
	}
	if a.Confidence != 0.3 {
		t.Errorf("got confidence %v, want 0.3", a.Confidence)
	}
	if len(a.KeyMatches) != 2 {
		t.Errorf("got key matches %v, want [canon film]", a.KeyMatches)
	}
	if a.Reasoning != "Fallback analysis: 2 keyword matches, price in range" {
		t.Errorf("got reasoning %q", a.Reasoning)
	}
}

func TestAnalyzeFallbackOnUnparsableResponse(t *testing.T) {
	gen := stubGenerator{resp: "I cannot help with that."}
	s := NewScorer(gen, testLogger{t})

	l := model.Listing{Title: "Canon camera", Price: 500}
	a := s.Analyze(context.Background(), l, criteria([]string{"canon"}, nil, float(200)))

	// One keyword match (2 points), price out of range.
	if a.RelevanceScore != 2 {
		t.Errorf("got score %d, want 2", a.RelevanceScore)
	}
	if a.Reasoning != "Fallback analysis: 1 keyword matches, price out of range" {
		t.Errorf("got reasoning %q", a.Reasoning)
	}
}

func TestFallbackScoreCapsAndFloors(t *testing.T) {
	// Four matched keywords cap at 6 before the price bonus.
	l := model.Listing{Title: "a b c d", Price: 10}
	a := fallbackAnalysis(l, criteria([]string{"a", "b", "c", "d"}, nil, nil))
	if a.RelevanceScore != 8 {
		t.Errorf("got score %d, want 8", a.RelevanceScore)
	}

	// No matches and price out of range still floors at 1.
	l = model.Listing{Title: "nothing relevant", Price: 999}
	a = fallbackAnalysis(l, criteria([]string{"camera"}, nil, float(100)))
	if a.RelevanceScore != model.RelevanceScoreMin {
		t.Errorf("got score %d, want %d", a.RelevanceScore, model.RelevanceScoreMin)
	}
}

func TestAnalyzeBatchOrderAndIsolation(t *testing.T) {
	// Every call fails, so every listing gets a fallback verdict; order must
	// match input order across batch boundaries.
	gen := stubGenerator{err: errors.New("down")}
	s := NewScorer(gen, testLogger{t})
	s.batchDelay = 0

	ls := make([]model.Listing, 12)
	for i := range ls {
		ls[i] = model.Listing{ExternalID: string(rune('a' + i)), Title: "camera"}
	}
	scored := s.AnalyzeBatch(context.Background(), ls, criteria([]string{"camera"}, nil, nil))

	if len(scored) != len(ls) {
		t.Fatalf("got %d scored listings, want %d", len(scored), len(ls))
	}
	for i, sl := range scored {
		if sl.ExternalID != ls[i].ExternalID {
			t.Errorf("position %d: got %q, want %q", i, sl.ExternalID, ls[i].ExternalID)
		}
		if sl.Analysis.Confidence != 0.3 {
			t.Errorf("position %d: got confidence %v, want fallback 0.3", i, sl.Analysis.Confidence)
		}
	}
}
