package database

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"

	"thriftwatch/internal/model"
)

func (db Database) NotificationInsert(ctx context.Context, n model.Notification) (id string, err error) {
	n.CreatedAt = primitive.NewDateTimeFromTime(time.Now())
	r, err := db.Collection(CollectionNotifications).InsertOne(ctx, n)
	if err != nil {
		return "", errors.Wrapf(err, "error inserting Notification: %+v", n)
	}
	return r.InsertedID.(primitive.ObjectID).Hex(), nil
}

func (db Database) NotificationsFindByOwner(ctx context.Context, ownerID string, limit int64) ([]model.Notification, error) {
	var ns []model.Notification
	opts := options.Find().SetSort(bson.M{"created_at": -1}).SetLimit(limit)
	cur, err := db.Collection(CollectionNotifications).Find(ctx, bson.M{"owner_id": ownerID}, opts)
	if err != nil {
		return nil, errors.Wrapf(err, "error getting cursor to find Notifications for OwnerID: %s", ownerID)
	}
	if err = cur.All(ctx, &ns); err != nil {
		return nil, errors.Wrapf(err, "error getting Notifications from cursor for OwnerID: %s", ownerID)
	}
	return ns, nil
}

func (db Database) NotificationSetRead(ctx context.Context, id primitive.ObjectID, ownerID string) error {
	res, err := db.Collection(CollectionNotifications).UpdateOne(
		ctx,
		bson.M{"_id": id, "owner_id": ownerID},
		bson.M{"$set": bson.M{"read": true}},
	)
	if err != nil {
		return errors.Wrapf(err, "error marking Notification read, ID: %s", id.Hex())
	}
	if res.MatchedCount == 0 {
		return errors.Wrapf(ErrNoDocumentsModified, "Notification not found when marking read, ID: %s", id.Hex())
	}
	return nil
}

func (db Database) NotificationsSetAllRead(ctx context.Context, ownerID string) (int64, error) {
	res, err := db.Collection(CollectionNotifications).UpdateMany(
		ctx,
		bson.M{"owner_id": ownerID, "read": false},
		bson.M{"$set": bson.M{"read": true}},
	)
	if err != nil {
		return 0, errors.Wrapf(err, "error marking all Notifications read for OwnerID: %s", ownerID)
	}
	return res.ModifiedCount, nil
}

func (db Database) NotificationDelete(ctx context.Context, id primitive.ObjectID, ownerID string) error {
	res, err := db.Collection(CollectionNotifications).DeleteOne(ctx, bson.M{"_id": id, "owner_id": ownerID})
	if err != nil {
		return errors.Wrapf(err, "error deleting Notification with ID: %s", id.Hex())
	}
	if res.DeletedCount == 0 {
		return errors.Wrapf(ErrNoDocumentsModified, "Notification not found when deleting, ID: %s", id.Hex())
	}
	return nil
}

func (db Database) NotificationsDeleteAll(ctx context.Context, ownerID string) (int64, error) {
	res, err := db.Collection(CollectionNotifications).DeleteMany(ctx, bson.M{"owner_id": ownerID})
	if err != nil {
		return 0, errors.Wrapf(err, "error deleting all Notifications for OwnerID: %s", ownerID)
	}
	return res.DeletedCount, nil
}
