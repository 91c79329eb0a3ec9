package database

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"thriftwatch/internal/model"
)

// SearchResultRecentExternalIDs loads the external ids of the most recently
// updated records for a search, bounded by limit. The result processor uses
// this membership set for new-vs-seen classification.
func (db Database) SearchResultRecentExternalIDs(
	ctx context.Context, searchID primitive.ObjectID, limit int64,
) (map[string]struct{}, error) {
	opts := options.Find().
		SetSort(bson.M{"updated_at": -1}).
		SetLimit(limit).
		SetProjection(bson.M{"listing.external_id": 1})
	cur, err := db.Collection(CollectionSearchResults).Find(ctx, bson.M{"search_id": searchID}, opts)
	if err != nil {
		return nil, errors.Wrapf(err, "error getting cursor to find recent SearchResultRecords for SearchID: %s", searchID.Hex())
	}

	var records []struct {
		Listing struct {
			ExternalID string `bson:"external_id"`
		} `bson:"listing"`
	}
	if err = cur.All(ctx, &records); err != nil {
		return nil, errors.Wrapf(err, "error getting recent SearchResultRecords from cursor for SearchID: %s", searchID.Hex())
	}

	ids := make(map[string]struct{}, len(records))
	for _, r := range records {
		ids[r.Listing.ExternalID] = struct{}{}
	}
	return ids, nil
}

// SearchResultUpsert inserts or updates the record keyed by
// (search_id, external_id). It reports whether a new document was created
// and, when an existing record was refreshed, the price it held before this
// write so callers can detect price drops.
func (db Database) SearchResultUpsert(
	ctx context.Context, rec model.SearchResultRecord,
) (inserted bool, prevPrice *float64, err error) {
	now := primitive.NewDateTimeFromTime(time.Now())
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.Before).
		SetProjection(bson.M{"listing.price": 1})
	res := db.Collection(CollectionSearchResults).FindOneAndUpdate(
		ctx,
		bson.M{
			"search_id":           rec.SearchID,
			"listing.external_id": rec.Listing.ExternalID,
		},
		bson.M{
			"$set": bson.M{
				"owner_id":   rec.OwnerID,
				"listing":    rec.Listing,
				"analysis":   rec.Analysis,
				"updated_at": now,
			},
			"$setOnInsert": bson.M{"first_seen_at": now},
		},
		opts,
	)
	if err := res.Err(); err != nil {
		// No previous document means the upsert inserted.
		if errors.Is(err, mongo.ErrNoDocuments) {
			return true, nil, nil
		}
		return false, nil, errors.Wrapf(err, "error upserting SearchResultRecord for SearchID: %s, ExternalID: %s",
			rec.SearchID.Hex(), rec.Listing.ExternalID)
	}

	var prev struct {
		Listing struct {
			Price float64 `bson:"price"`
		} `bson:"listing"`
	}
	if err := res.Decode(&prev); err != nil {
		return false, nil, errors.Wrapf(err, "error decoding previous SearchResultRecord for SearchID: %s, ExternalID: %s",
			rec.SearchID.Hex(), rec.Listing.ExternalID)
	}
	return false, &prev.Listing.Price, nil
}

func (db Database) SearchResultsFindBySearch(
	ctx context.Context, searchID primitive.ObjectID, ownerID string, limit int64,
) ([]model.SearchResultRecord, error) {
	var recs []model.SearchResultRecord
	opts := options.Find().
		SetSort(bson.D{
			{Key: "analysis.relevance_score", Value: -1},
			{Key: "listing.posted_at", Value: -1},
		}).
		SetLimit(limit)
	cur, err := db.Collection(CollectionSearchResults).
		Find(ctx, bson.M{"search_id": searchID, "owner_id": ownerID}, opts)
	if err != nil {
		return nil, errors.Wrapf(err, "error getting cursor to find SearchResultRecords for SearchID: %s", searchID.Hex())
	}
	if err = cur.All(ctx, &recs); err != nil {
		return nil, errors.Wrapf(err, "error getting SearchResultRecords from cursor for SearchID: %s", searchID.Hex())
	}
	return recs, nil
}

func (db Database) SearchResultsCount(ctx context.Context, searchID primitive.ObjectID) (int64, error) {
	n, err := db.Collection(CollectionSearchResults).CountDocuments(ctx, bson.M{"search_id": searchID})
	return n, errors.Wrapf(err, "error counting SearchResultRecords for SearchID: %s", searchID.Hex())
}
