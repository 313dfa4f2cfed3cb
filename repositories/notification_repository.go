// repositories/notification_repository.go
package repositories

import (
	"context"
	"time"

	"resqlink/models"
	"resqlink/utils"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type NotificationRepository struct {
	collection *mongo.Collection
}

func NewNotificationRepository(db *mongo.Database) *NotificationRepository {
	return &NotificationRepository{
		collection: db.Collection("notifications"),
	}
}

func (nr *NotificationRepository) Create(ctx context.Context, notification *models.Notification) error {
	now := time.Now()
	notification.CreatedAt = now
	notification.UpdatedAt = now
	if notification.SentAt.IsZero() {
		notification.SentAt = now
	}
	if notification.Status == "" {
		notification.Status = models.NotificationStatusSent
	}

	result, err := nr.collection.InsertOne(ctx, notification)
	if err != nil {
		return utils.NewDatabaseError("create notification", err)
	}
	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		notification.ID = oid
	}
	return nil
}

// Update persists channel bookkeeping flags set after delivery attempts.
func (nr *NotificationRepository) Update(ctx context.Context, notification *models.Notification) error {
	notification.UpdatedAt = time.Now()

	_, err := nr.collection.UpdateOne(ctx,
		bson.M{"_id": notification.ID},
		bson.M{"$set": notification},
	)
	if err != nil {
		return utils.NewDatabaseError("update notification", err)
	}
	return nil
}

func (nr *NotificationRepository) ListByUser(ctx context.Context, userID primitive.ObjectID, page, pageSize int, notificationType, status string) ([]models.Notification, int64, error) {
	filter := bson.M{"userId": userID}
	if notificationType != "" {
		filter["type"] = notificationType
	}
	if status != "" {
		filter["status"] = status
	}

	total, err := nr.collection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, utils.NewDatabaseError("count notifications", err)
	}

	findOptions := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetSkip(int64(utils.CalculateOffset(page, pageSize))).
		SetLimit(int64(pageSize))

	cursor, err := nr.collection.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, 0, utils.NewDatabaseError("list notifications", err)
	}
	defer cursor.Close(ctx)

	var notifications []models.Notification
	if err = cursor.All(ctx, &notifications); err != nil {
		return nil, 0, utils.NewDatabaseError("decode notifications", err)
	}
	return notifications, total, nil
}

// MarkRead flips the named notifications to read for the owning user only.
func (nr *NotificationRepository) MarkRead(ctx context.Context, userID primitive.ObjectID, ids []primitive.ObjectID) (int64, error) {
	now := time.Now()
	result, err := nr.collection.UpdateMany(ctx,
		bson.M{
			"_id":    bson.M{"$in": ids},
			"userId": userID,
			"status": bson.M{"$ne": models.NotificationStatusRead},
		},
		bson.M{"$set": bson.M{
			"status":    models.NotificationStatusRead,
			"readAt":    now,
			"updatedAt": now,
		}},
	)
	if err != nil {
		return 0, utils.NewDatabaseError("mark notifications read", err)
	}
	return result.ModifiedCount, nil
}

func (nr *NotificationRepository) CountUnread(ctx context.Context, userID primitive.ObjectID) (int64, error) {
	count, err := nr.collection.CountDocuments(ctx, bson.M{
		"userId": userID,
		"status": bson.M{"$ne": models.NotificationStatusRead},
	})
	if err != nil {
		return 0, utils.NewDatabaseError("count unread notifications", err)
	}
	return count, nil
}

// DeleteExpired removes notifications whose expiry has passed. Records
// without an expiry are kept forever.
func (nr *NotificationRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := nr.collection.DeleteMany(ctx, bson.M{
		"expiresAt": bson.M{"$gt": time.Time{}, "$lte": now},
	})
	if err != nil {
		return 0, utils.NewDatabaseError("delete expired notifications", err)
	}
	return result.DeletedCount, nil
}
