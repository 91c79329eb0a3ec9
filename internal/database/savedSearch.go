package database

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"thriftwatch/internal/model"
)

func (db Database) SavedSearchInsert(ctx context.Context, ss model.SavedSearch) (id string, err error) {
	ss.CreatedAt = primitive.NewDateTimeFromTime(time.Now())
	r, err := db.Collection(CollectionSearches).InsertOne(ctx, ss)
	if err != nil {
		return "", errors.Wrapf(err, "error inserting SavedSearch: %+v", ss)
	}
	return r.InsertedID.(primitive.ObjectID).Hex(), nil
}

func (db Database) SavedSearchFindOne(ctx context.Context, id primitive.ObjectID, ownerID string) (model.SavedSearch, error) {
	var ss model.SavedSearch
	err := db.Collection(CollectionSearches).
		FindOne(ctx, bson.M{"_id": id, "owner_id": ownerID}).
		Decode(&ss)
	return ss, errors.Wrapf(err, "error finding SavedSearch with ID: %s", id.Hex())
}

func (db Database) SavedSearchesFindByOwner(ctx context.Context, ownerID string) ([]model.SavedSearch, error) {
	var sss []model.SavedSearch
	cur, err := db.Collection(CollectionSearches).Find(ctx, bson.M{"owner_id": ownerID})
	if err != nil {
		return nil, errors.Wrapf(err, "error getting cursor to find SavedSearches for OwnerID: %s", ownerID)
	}
	if err = cur.All(ctx, &sss); err != nil {
		return nil, errors.Wrapf(err, "error getting SavedSearches from cursor for OwnerID: %s", ownerID)
	}
	return sss, nil
}

// SavedSearchesFindDue returns active searches that have never run or last
// ran before the staleness cutoff.
func (db Database) SavedSearchesFindDue(ctx context.Context, staleBefore time.Time) ([]model.SavedSearch, error) {
	var sss []model.SavedSearch
	filter := bson.M{
		"active": true,
		"$or": bson.A{
			bson.M{"last_run_at": nil},
			bson.M{"last_run_at": bson.M{"$exists": false}},
			bson.M{"last_run_at": bson.M{"$lt": primitive.NewDateTimeFromTime(staleBefore)}},
		},
	}
	cur, err := db.Collection(CollectionSearches).Find(ctx, filter)
	if err != nil {
		return nil, errors.Wrap(err, "error getting cursor to find due SavedSearches")
	}
	if err = cur.All(ctx, &sss); err != nil {
		return nil, errors.Wrap(err, "error getting due SavedSearches from cursor")
	}
	return sss, nil
}

func (db Database) SavedSearchLastRunUpdate(ctx context.Context, id primitive.ObjectID, t time.Time) error {
	res, err := db.Collection(CollectionSearches).UpdateOne(
		ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"last_run_at": primitive.NewDateTimeFromTime(t)}},
	)
	if err != nil {
		return errors.Wrapf(err, "error updating LastRunAt for SavedSearch with ID: %s", id.Hex())
	}
	if res.MatchedCount == 0 {
		return errors.Wrapf(ErrNoDocumentsModified, "SavedSearch not found when updating LastRunAt, ID: %s", id.Hex())
	}
	return nil
}

func (db Database) SavedSearchSetActive(ctx context.Context, id primitive.ObjectID, ownerID string, active bool) error {
	res, err := db.Collection(CollectionSearches).UpdateOne(
		ctx,
		bson.M{"_id": id, "owner_id": ownerID},
		bson.M{"$set": bson.M{"active": active}},
	)
	if err != nil {
		return errors.Wrapf(err, "error setting Active=%t for SavedSearch with ID: %s", active, id.Hex())
	}
	if res.MatchedCount == 0 {
		return errors.Wrapf(ErrNoDocumentsModified, "SavedSearch not found when setting Active, ID: %s", id.Hex())
	}
	return nil
}
