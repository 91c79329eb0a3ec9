package model

import (
	"strings"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	MinRelevanceScoreDefault = 6
	RelevanceScoreMin        = 1
	RelevanceScoreMax        = 10
)

// SavedSearch is a persisted query template a user wants re-run periodically.
// LastRunAt is mutated only by the scheduler; pausing a search flips Active
// instead of deleting the document.
type SavedSearch struct {
	ID                primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	OwnerID           string             `bson:"owner_id" json:"-"`
	Name              string             `bson:"name" json:"name"`
	Keywords          string             `bson:"keywords" json:"keywords"`
	MinPrice          *float64           `bson:"min_price,omitempty" json:"min_price,omitempty"`
	MaxPrice          *float64           `bson:"max_price,omitempty" json:"max_price,omitempty"`
	Marketplaces      []string           `bson:"marketplaces" json:"marketplaces"`
	Conditions        []string           `bson:"conditions,omitempty" json:"conditions,omitempty"`
	Location          string             `bson:"location,omitempty" json:"location,omitempty"`
	SortBy            string             `bson:"sort_by,omitempty" json:"sort_by,omitempty"`
	MinRelevanceScore int                `bson:"min_relevance_score" json:"min_relevance_score"`
	NotifyEnabled     bool               `bson:"notify_enabled" json:"notify_enabled"`
	EmailEnabled      bool               `bson:"email_enabled" json:"email_enabled"`
	Active            bool               `bson:"active" json:"active"`
	LastRunAt         *primitive.DateTime `bson:"last_run_at,omitempty" json:"last_run_at,omitempty"`
	CreatedAt         primitive.DateTime `bson:"created_at" json:"-"`
}

func (ss SavedSearch) Validate() error {
	if strings.TrimSpace(ss.Keywords) == "" {
		return errors.New("keywords must not be empty")
	}
	if len(ss.Marketplaces) == 0 {
		return errors.New("marketplace set must not be empty")
	}
	if ss.MinRelevanceScore < RelevanceScoreMin || ss.MinRelevanceScore > RelevanceScoreMax {
		return errors.Errorf("min_relevance_score out of range [%d,%d]: %d",
			RelevanceScoreMin, RelevanceScoreMax, ss.MinRelevanceScore)
	}
	if ss.MinPrice != nil && *ss.MinPrice < 0 {
		return errors.Errorf("min_price must not be negative: %v", *ss.MinPrice)
	}
	if ss.MinPrice != nil && ss.MaxPrice != nil && *ss.MaxPrice <= *ss.MinPrice {
		return errors.Errorf("max_price (%v) must exceed min_price (%v)", *ss.MaxPrice, *ss.MinPrice)
	}
	return nil
}

// Query builds the normalized query this search fans out to the adapters.
func (ss SavedSearch) Query() SearchQuery {
	return SearchQuery{
		Keywords:     ss.Keywords,
		MinPrice:     ss.MinPrice,
		MaxPrice:     ss.MaxPrice,
		Marketplaces: ss.Marketplaces,
		Conditions:   ss.Conditions,
		Location:     ss.Location,
		SortBy:       ss.SortBy,
	}
}

// Criteria builds the scoring criteria handed to the relevance scorer.
func (ss SavedSearch) Criteria() SearchCriteria {
	return SearchCriteria{
		Keywords:          strings.Fields(strings.ToLower(ss.Keywords)),
		MinPrice:          ss.MinPrice,
		MaxPrice:          ss.MaxPrice,
		Location:          ss.Location,
		Conditions:        ss.Conditions,
		MinRelevanceScore: ss.MinRelevanceScore,
	}
}

// SearchCriteria is what the relevance scorer judges a listing against.
type SearchCriteria struct {
	Keywords          []string
	MinPrice          *float64
	MaxPrice          *float64
	Location          string
	Conditions        []string
	MinRelevanceScore int
}

// PriceInRange reports whether price satisfies the optional bounds.
func (sc SearchCriteria) PriceInRange(price float64) bool {
	if sc.MinPrice != nil && price < *sc.MinPrice {
		return false
	}
	if sc.MaxPrice != nil && price > *sc.MaxPrice {
		return false
	}
	return true
}
