package model

import "thriftwatch/internal/misc"

const (
	PriceRatingExcellent  = "excellent"
	PriceRatingGood       = "good"
	PriceRatingFair       = "fair"
	PriceRatingOverpriced = "overpriced"
)

// AIAnalysisResult is the relevance verdict for one listing. Scores and
// confidence are always clamped into range, no matter what the scoring
// source returned.
type AIAnalysisResult struct {
	RelevanceScore int           `bson:"relevance_score" json:"relevance_score"`
	Reasoning      string        `bson:"reasoning" json:"reasoning"`
	Confidence     float64       `bson:"confidence" json:"confidence"`
	KeyMatches     []string      `bson:"key_matches" json:"key_matches"`
	RedFlags       []string      `bson:"red_flags" json:"red_flags"`
	PriceAnalysis  PriceAnalysis `bson:"price_analysis" json:"price_analysis"`
}

type PriceAnalysis struct {
	FairPrice        bool   `bson:"fair_price" json:"fair_price"`
	PriceRating      string `bson:"price_rating" json:"price_rating"`
	MarketComparison string `bson:"market_comparison,omitempty" json:"market_comparison,omitempty"`
}

// Normalize clamps numeric fields into their valid ranges and fills enum and
// slice fields with safe defaults.
func (a *AIAnalysisResult) Normalize() {
	a.RelevanceScore = misc.Clamp(a.RelevanceScore, RelevanceScoreMin, RelevanceScoreMax)
	a.Confidence = misc.Clamp(a.Confidence, 0, 1)
	if a.KeyMatches == nil {
		a.KeyMatches = []string{}
	}
	if a.RedFlags == nil {
		a.RedFlags = []string{}
	}
	switch a.PriceAnalysis.PriceRating {
	case PriceRatingExcellent, PriceRatingGood, PriceRatingFair, PriceRatingOverpriced:
	default:
		a.PriceAnalysis.PriceRating = PriceRatingFair
	}
}
