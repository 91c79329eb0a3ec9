package database

import (
	"context"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	Name                    = "thriftwatch_db"
	CollectionSearches      = "searches"
	CollectionSearchResults = "search_results"
	CollectionNotifications = "notifications"
)

type Database struct {
	*mongo.Database
}

var ErrNoDocumentsModified = errors.New("no documents modified")

func ConnectDB(ctx context.Context, dbURI string) (*mongo.Client, error) {
	c, err := mongo.Connect(ctx, options.Client().ApplyURI(dbURI))
	if err != nil {
		return nil, err
	}

	_, err = c.Database(Name).Collection(CollectionSearches).Indexes().CreateMany(
		ctx,
		[]mongo.IndexModel{
			{
				Keys: bson.D{{Key: "owner_id", Value: 1}},
			},
			{
				Keys: bson.D{
					{Key: "active", Value: 1},
					{Key: "last_run_at", Value: 1},
				},
			},
		},
	)
	if err != nil {
		return nil, err
	}

	// The (search_id, external_id) unique index is what makes result storage
	// an upsert instead of an append; see SearchResultUpsert.
	_, err = c.Database(Name).Collection(CollectionSearchResults).Indexes().CreateMany(
		ctx,
		[]mongo.IndexModel{
			{
				Keys: bson.D{
					{Key: "search_id", Value: 1},
					{Key: "listing.external_id", Value: 1},
				},
				Options: options.Index().SetUnique(true),
			},
			{
				Keys: bson.D{
					{Key: "search_id", Value: 1},
					{Key: "analysis.relevance_score", Value: -1},
				},
			},
		},
	)
	if err != nil {
		return nil, err
	}

	_, err = c.Database(Name).Collection(CollectionNotifications).Indexes().CreateOne(
		ctx,
		mongo.IndexModel{
			Keys: bson.D{
				{Key: "owner_id", Value: 1},
				{Key: "created_at", Value: -1},
			},
		},
	)
	if err != nil {
		return nil, err
	}

	return c, nil
}
