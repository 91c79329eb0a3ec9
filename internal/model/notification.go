package model

import "go.mongodb.org/mongo-driver/bson/primitive"

const (
	NotificationTypeNewItem   = "new_item"
	NotificationTypePriceDrop = "price_drop"
	NotificationTypeSystem    = "system"
	NotificationTypeAccount   = "account"
)

// Notification is a user-facing event record. Only the read flag is mutated
// after creation; deletion is owner-initiated.
type Notification struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	OwnerID   string             `bson:"owner_id" json:"-"`
	Type      string             `bson:"type" json:"type"`
	Message   string             `bson:"message" json:"message"`
	Data      NotificationData   `bson:"data,omitempty" json:"data,omitempty"`
	Read      bool               `bson:"read" json:"read"`
	CreatedAt primitive.DateTime `bson:"created_at" json:"created_at"`
}

type NotificationData struct {
	ItemID         string  `bson:"item_id,omitempty" json:"item_id,omitempty"`
	SearchID       string  `bson:"search_id,omitempty" json:"search_id,omitempty"`
	Price          float64 `bson:"price,omitempty" json:"price,omitempty"`
	OldPrice       float64 `bson:"old_price,omitempty" json:"old_price,omitempty"`
	Title          string  `bson:"title,omitempty" json:"title,omitempty"`
	URL            string  `bson:"url,omitempty" json:"url,omitempty"`
	Marketplace    string  `bson:"marketplace,omitempty" json:"marketplace,omitempty"`
	RelevanceScore int     `bson:"relevance_score,omitempty" json:"relevance_score,omitempty"`
}
