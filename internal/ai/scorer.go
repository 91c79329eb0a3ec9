package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"thriftwatch/internal/misc"
	"thriftwatch/internal/model"
)

const (
	defaultBatchSize  = 5
	defaultBatchDelay = 1 * time.Second
)

type contentGenerator interface {
	GenerateContent(ctx context.Context, prompt string) (string, error)
}

type logger interface {
	Debugf(format string, v ...any)
	Warnf(format string, v ...any)
	Errorf(format string, v ...any)
}

// Scorer judges listings against search criteria using an LLM, falling back
// to keyword scoring when the model is unreachable or returns garbage. A
// scoring pass never fails a pipeline run: every listing gets some verdict.
type Scorer struct {
	generator  contentGenerator
	logger     logger
	batchSize  int
	batchDelay time.Duration
}

func NewScorer(generator contentGenerator, log logger) *Scorer {
	return &Scorer{
		generator:  generator,
		logger:     log,
		batchSize:  defaultBatchSize,
		batchDelay: defaultBatchDelay,
	}
}

// Analyze scores one listing. Generator errors and unparsable responses both
// degrade to the deterministic fallback instead of propagating.
func (s *Scorer) Analyze(ctx context.Context, l model.Listing, criteria model.SearchCriteria) model.AIAnalysisResult {
	if s.generator == nil {
		return fallbackAnalysis(l, criteria)
	}
	resp, err := s.generator.GenerateContent(ctx, buildPrompt(l, criteria))
	if err != nil {
		s.logger.Warnf("Analyze: Falling back to keyword scoring, ExternalID: %s, err: %v", l.ExternalID, err)
		return fallbackAnalysis(l, criteria)
	}
	a, err := parseAnalysis(resp)
	if err != nil {
		s.logger.Warnf("Analyze: Unparsable model response, falling back, ExternalID: %s, err: %v", l.ExternalID, err)
		return fallbackAnalysis(l, criteria)
	}
	return a
}

// AnalyzeBatch scores listings in fixed-size batches, concurrent within a
// batch and sequential between batches with a delay to stay under model rate
// limits. Output order matches input order.
func (s *Scorer) AnalyzeBatch(ctx context.Context, ls []model.Listing, criteria model.SearchCriteria) []model.ScoredListing {
	scored := make([]model.ScoredListing, len(ls))
	for start := 0; start < len(ls); start += s.batchSize {
		end := misc.Min(start+s.batchSize, len(ls))

		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				scored[i] = model.ScoredListing{
					Listing:  ls[i],
					Analysis: s.Analyze(ctx, ls[i], criteria),
				}
			}(i)
		}
		wg.Wait()

		if end < len(ls) {
			select {
			case <-ctx.Done():
				for i := end; i < len(ls); i++ {
					scored[i] = model.ScoredListing{Listing: ls[i], Analysis: fallbackAnalysis(ls[i], criteria)}
				}
				return scored
			case <-time.After(s.batchDelay):
			}
		}
	}
	return scored
}

func buildPrompt(l model.Listing, criteria model.SearchCriteria) string {
	minPrice, maxPrice := "0", "unlimited"
	if criteria.MinPrice != nil {
		minPrice = fmt.Sprintf("%.2f", *criteria.MinPrice)
	}
	if criteria.MaxPrice != nil {
		maxPrice = fmt.Sprintf("%.2f", *criteria.MaxPrice)
	}
	location := criteria.Location
	if location == "" {
		location = "Any"
	}
	conditions := "Any"
	if len(criteria.Conditions) > 0 {
		conditions = strings.Join(criteria.Conditions, ", ")
	}
	sellerName := l.Seller.Name
	if sellerName == "" {
		sellerName = "Unknown"
	}

	var sb strings.Builder
	sb.WriteString("You are an expert marketplace analyst. Analyze this listing for relevance to the user's search criteria.\n\n")
	sb.WriteString("LISTING DETAILS:\n")
	fmt.Fprintf(&sb, "Title: %s\n", l.Title)
	fmt.Fprintf(&sb, "Price: $%.2f\n", l.Price)
	fmt.Fprintf(&sb, "Condition: %s\n", orNotSpecified(l.Condition))
	fmt.Fprintf(&sb, "Location: %s\n", orNotSpecified(l.Location))
	fmt.Fprintf(&sb, "Marketplace: %s\n", l.Marketplace)
	fmt.Fprintf(&sb, "Seller: %s (Rating: %.1f)\n\n", sellerName, l.Seller.Rating)
	sb.WriteString("USER SEARCH CRITERIA:\n")
	fmt.Fprintf(&sb, "Keywords: %s\n", strings.Join(criteria.Keywords, ", "))
	fmt.Fprintf(&sb, "Price Range: %s - %s\n", minPrice, maxPrice)
	fmt.Fprintf(&sb, "Preferred Location: %s\n", location)
	fmt.Fprintf(&sb, "Preferred Condition: %s\n", conditions)
	fmt.Fprintf(&sb, "Minimum Relevance Required: %d/10\n\n", criteria.MinRelevanceScore)
	sb.WriteString(`ANALYSIS REQUIREMENTS:
1. Relevance Score (1-10): How well does this listing match the search criteria?
2. Reasoning: Explain your scoring in 2-3 sentences
3. Key Matches: List specific elements that match the criteria
4. Red Flags: Identify any concerning aspects (spam, scam indicators, overpricing)
5. Price Analysis: Is this fairly priced compared to similar items?

Respond in this exact JSON format:
{
  "relevance_score": 8,
  "reasoning": "Strong match for vintage Nike sneakers with authentic details and fair pricing.",
  "confidence": 0.85,
  "key_matches": ["Nike brand match", "Vintage style"],
  "red_flags": ["Seller has low rating"],
  "price_analysis": {
    "fair_price": true,
    "price_rating": "good",
    "market_comparison": "Priced 15% below similar listings"
  }
}`)
	return sb.String()
}

func orNotSpecified(s string) string {
	if s == "" {
		return "Not specified"
	}
	return s
}

// parseAnalysis extracts the JSON object from the model's text, which often
// arrives wrapped in prose or a markdown fence.
func parseAnalysis(resp string) (model.AIAnalysisResult, error) {
	start := strings.Index(resp, "{")
	end := strings.LastIndex(resp, "}")
	if start < 0 || end <= start {
		return model.AIAnalysisResult{}, errors.New("no JSON object in model response")
	}
	var a model.AIAnalysisResult
	if err := json.Unmarshal([]byte(resp[start:end+1]), &a); err != nil {
		return model.AIAnalysisResult{}, errors.Wrap(err, "error unmarshalling model response")
	}
	a.Normalize()
	return a, nil
}

// fallbackAnalysis scores on keyword overlap and price fit alone: two points
// per matched keyword capped at six, plus two when the price is in range.
func fallbackAnalysis(l model.Listing, criteria model.SearchCriteria) model.AIAnalysisResult {
	matches := keywordMatches(l, criteria.Keywords)
	priceInRange := criteria.PriceInRange(l.Price)

	score := misc.Min(len(matches)*2, 6)
	if priceInRange {
		score += 2
	}
	score = misc.Clamp(score, model.RelevanceScoreMin, model.RelevanceScoreMax)

	rangeWord := "out of"
	if priceInRange {
		rangeWord = "in"
	}
	a := model.AIAnalysisResult{
		RelevanceScore: score,
		Reasoning:      fmt.Sprintf("Fallback analysis: %d keyword matches, price %s range", len(matches), rangeWord),
		Confidence:     0.3,
		KeyMatches:     matches,
		RedFlags:       []string{},
		PriceAnalysis: model.PriceAnalysis{
			FairPrice:        true,
			PriceRating:      model.PriceRatingFair,
			MarketComparison: "Unable to analyze pricing",
		},
	}
	return a
}

func keywordMatches(l model.Listing, keywords []string) []string {
	text := strings.ToLower(l.Title)
	matches := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		if strings.Contains(text, strings.ToLower(kw)) {
			matches = append(matches, kw)
		}
	}
	return matches
}
