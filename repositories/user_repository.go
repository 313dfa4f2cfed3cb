// repositories/user_repository.go
package repositories

import (
	"context"
	"time"

	"resqlink/models"
	"resqlink/utils"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

type UserRepository struct {
	collection *mongo.Collection
}

func NewUserRepository(db *mongo.Database) *UserRepository {
	return &UserRepository{
		collection: db.Collection("users"),
	}
}

func (ur *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, utils.NewValidationError("invalid user ID")
	}

	var user models.User
	err = ur.collection.FindOne(ctx, bson.M{"_id": objectID}).Decode(&user)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, utils.NewNotFoundError("User")
		}
		return nil, utils.NewDatabaseError("get user", err)
	}

	return &user, nil
}

// FindNearbyAvailable runs the candidate query: users within radiusMeters of
// the point, flagged available, excluding the reporter. Location freshness is
// a policy decision applied by the caller. Requires the sparse 2dsphere index
// on currentLocation.coordinates.
func (ur *UserRepository) FindNearbyAvailable(ctx context.Context, lng, lat, radiusMeters float64, excludeID primitive.ObjectID) ([]models.User, error) {
	filter := bson.M{
		"_id":                bson.M{"$ne": excludeID},
		"availabilityStatus": true,
		"currentLocation.coordinates": bson.M{
			"$near": bson.M{
				"$geometry": bson.M{
					"type":        "Point",
					"coordinates": []float64{lng, lat},
				},
				"$maxDistance": radiusMeters,
			},
		},
	}

	cursor, err := ur.collection.Find(ctx, filter)
	if err != nil {
		return nil, utils.NewDatabaseError("find nearby users", err)
	}
	defer cursor.Close(ctx)

	var users []models.User
	if err = cursor.All(ctx, &users); err != nil {
		return nil, utils.NewDatabaseError("decode users", err)
	}
	return users, nil
}

// RemovePushTokens prunes invalid tokens reported back by the push provider.
func (ur *UserRepository) RemovePushTokens(ctx context.Context, userID primitive.ObjectID, tokens []string) error {
	if len(tokens) == 0 {
		return nil
	}

	_, err := ur.collection.UpdateOne(ctx,
		bson.M{"_id": userID},
		bson.M{"$pull": bson.M{"pushTokens": bson.M{"token": bson.M{"$in": tokens}}}},
	)
	if err != nil {
		return utils.NewDatabaseError("remove push tokens", err)
	}
	return nil
}

func (ur *UserRepository) AddPushToken(ctx context.Context, userID primitive.ObjectID, token models.PushToken) error {
	// Replace any stale entry for the same token string first.
	_, err := ur.collection.UpdateOne(ctx,
		bson.M{"_id": userID},
		bson.M{"$pull": bson.M{"pushTokens": bson.M{"token": token.Token}}},
	)
	if err != nil {
		return utils.NewDatabaseError("replace push token", err)
	}

	_, err = ur.collection.UpdateOne(ctx,
		bson.M{"_id": userID},
		bson.M{
			"$push": bson.M{"pushTokens": token},
			"$set":  bson.M{"updatedAt": time.Now()},
		},
	)
	if err != nil {
		return utils.NewDatabaseError("add push token", err)
	}
	return nil
}

func (ur *UserRepository) SetLocation(ctx context.Context, userID primitive.ObjectID, lng, lat float64, at time.Time) error {
	update := bson.M{
		"$set": bson.M{
			"currentLocation": models.UserLocation{
				Type:        "Point",
				Coordinates: []float64{lng, lat},
				UpdatedAt:   at,
			},
			"updatedAt": at,
		},
	}

	result, err := ur.collection.UpdateOne(ctx, bson.M{"_id": userID}, update)
	if err != nil {
		return utils.NewDatabaseError("set user location", err)
	}
	if result.MatchedCount == 0 {
		return utils.NewNotFoundError("User")
	}
	return nil
}

func (ur *UserRepository) SetAvailability(ctx context.Context, userID primitive.ObjectID, available bool) error {
	result, err := ur.collection.UpdateOne(ctx,
		bson.M{"_id": userID},
		bson.M{"$set": bson.M{"availabilityStatus": available, "updatedAt": time.Now()}},
	)
	if err != nil {
		return utils.NewDatabaseError("set availability", err)
	}
	if result.MatchedCount == 0 {
		return utils.NewNotFoundError("User")
	}
	return nil
}

func (ur *UserRepository) UpdatePreferences(ctx context.Context, userID primitive.ObjectID, prefs models.NotificationPreferences) error {
	result, err := ur.collection.UpdateOne(ctx,
		bson.M{"_id": userID},
		bson.M{"$set": bson.M{"notificationPreferences": prefs, "updatedAt": time.Now()}},
	)
	if err != nil {
		return utils.NewDatabaseError("update notification preferences", err)
	}
	if result.MatchedCount == 0 {
		return utils.NewNotFoundError("User")
	}
	return nil
}
