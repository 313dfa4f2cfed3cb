// repositories/chat_repository.go
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

type ChatRepository struct {
	collection *mongo.Collection
}

func NewChatRepository(db *mongo.Database) *ChatRepository {
	return &ChatRepository{
		collection: db.Collection("chat_messages"),
	}
}

func (cr *ChatRepository) Insert(ctx context.Context, message *models.ChatMessage) error {
	message.CreatedAt = time.Now()
	if message.ReadBy == nil {
		message.ReadBy = []primitive.ObjectID{}
	}

	result, err := cr.collection.InsertOne(ctx, message)
	if err != nil {
		return utils.NewDatabaseError("insert chat message", err)
	}
	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		message.ID = oid
	}
	return nil
}

// ListAfter pages through an emergency's messages by a strictly increasing id
// boundary. With a cursor it scans forward; without one it takes the newest
// page and flips it, so callers always see chronological order.
func (cr *ChatRepository) ListAfter(ctx context.Context, emergencyID primitive.ObjectID, after *primitive.ObjectID, limit int) ([]models.ChatMessage, error) {
	filter := bson.M{"emergencyId": emergencyID}

	var findOptions *options.FindOptions
	if after != nil {
		filter["_id"] = bson.M{"$gt": *after}
		findOptions = options.Find().
			SetSort(bson.D{{Key: "_id", Value: 1}}).
			SetLimit(int64(limit))
	} else {
		findOptions = options.Find().
			SetSort(bson.D{{Key: "_id", Value: -1}}).
			SetLimit(int64(limit))
	}

	cursor, err := cr.collection.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, utils.NewDatabaseError("list chat messages", err)
	}
	defer cursor.Close(ctx)

	var messages []models.ChatMessage
	if err = cursor.All(ctx, &messages); err != nil {
		return nil, utils.NewDatabaseError("decode chat messages", err)
	}

	if after == nil {
		for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
			messages[i], messages[j] = messages[j], messages[i]
		}
	}
	return messages, nil
}

// AddReadBy adds the reader to the read-set of each named message they did
// not send. Self-sends never count toward unread.
func (cr *ChatRepository) AddReadBy(ctx context.Context, emergencyID primitive.ObjectID, messageIDs []primitive.ObjectID, readerID primitive.ObjectID) error {
	_, err := cr.collection.UpdateMany(ctx,
		bson.M{
			"_id":         bson.M{"$in": messageIDs},
			"emergencyId": emergencyID,
			"senderId":    bson.M{"$ne": readerID},
		},
		bson.M{"$addToSet": bson.M{"readBy": readerID}},
	)
	if err != nil {
		return utils.NewDatabaseError("mark chat messages read", err)
	}
	return nil
}

func (cr *ChatRepository) GetByIDs(ctx context.Context, emergencyID primitive.ObjectID, ids []primitive.ObjectID) ([]models.ChatMessage, error) {
	cursor, err := cr.collection.Find(ctx, bson.M{
		"_id":         bson.M{"$in": ids},
		"emergencyId": emergencyID,
	})
	if err != nil {
		return nil, utils.NewDatabaseError("get chat messages", err)
	}
	defer cursor.Close(ctx)

	var messages []models.ChatMessage
	if err = cursor.All(ctx, &messages); err != nil {
		return nil, utils.NewDatabaseError("decode chat messages", err)
	}
	return messages, nil
}
