package model

import "time"

const (
	SortNewest    = "newest"
	SortPriceLow  = "price_low"
	SortPriceHigh = "price_high"
	SortRelevance = "relevance"
)

// SearchQuery is the normalized query shape every marketplace adapter accepts.
type SearchQuery struct {
	Keywords     string   `json:"keywords"`
	MinPrice     *float64 `json:"min_price,omitempty"`
	MaxPrice     *float64 `json:"max_price,omitempty"`
	Marketplaces []string `json:"marketplaces"`
	Conditions   []string `json:"conditions,omitempty"`
	Location     string   `json:"location,omitempty"`
	SortBy       string   `json:"sort_by,omitempty"`
}

// Listing is one marketplace item, normalized to the common shape.
// ExternalID is only unique per marketplace; the composite
// (Marketplace, ExternalID) identifies a listing globally.
type Listing struct {
	ExternalID  string    `bson:"external_id" json:"external_id"`
	Title       string    `bson:"title" json:"title"`
	Price       float64   `bson:"price" json:"price"`
	ImageURL    string    `bson:"image_url" json:"image_url"`
	URL         string    `bson:"url" json:"url"`
	Marketplace string    `bson:"marketplace" json:"marketplace"`
	PostedAt    time.Time `bson:"posted_at" json:"posted_at"`
	Condition   string    `bson:"condition,omitempty" json:"condition,omitempty"`
	Location    string    `bson:"location,omitempty" json:"location,omitempty"`
	Seller      Seller    `bson:"seller,omitempty" json:"seller,omitempty"`
}

type Seller struct {
	Name   string  `bson:"name,omitempty" json:"name,omitempty"`
	Rating float64 `bson:"rating,omitempty" json:"rating,omitempty"`
}

// ScoredListing is a Listing augmented with the scorer's verdict.
type ScoredListing struct {
	Listing
	Analysis AIAnalysisResult `json:"analysis"`
}
