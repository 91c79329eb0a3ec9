package model

import "go.mongodb.org/mongo-driver/bson/primitive"

// SearchResultRecord is the persisted, deduplicated record of a scored
// listing tied to a saved search. The store enforces uniqueness on
// (search_id, external_id); re-running a search upserts instead of
// duplicating rows.
type SearchResultRecord struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	SearchID    primitive.ObjectID `bson:"search_id" json:"search_id"`
	OwnerID     string             `bson:"owner_id" json:"-"`
	Listing     Listing            `bson:"listing" json:"listing"`
	Analysis    AIAnalysisResult   `bson:"analysis" json:"analysis"`
	FirstSeenAt primitive.DateTime `bson:"first_seen_at" json:"first_seen_at"`
	UpdatedAt   primitive.DateTime `bson:"updated_at" json:"updated_at"`
}
