// repositories/emergency_repository.go
package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"resqlink/models"
	"resqlink/utils"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ErrVersionConflict signals a lost compare-and-swap on an emergency
// document. Callers re-read and retry.
var ErrVersionConflict = errors.New("emergency version conflict")

type EmergencyRepository struct {
	collection *mongo.Collection
}

func NewEmergencyRepository(db *mongo.Database) *EmergencyRepository {
	return &EmergencyRepository{
		collection: db.Collection("emergencies"),
	}
}

func (er *EmergencyRepository) Create(ctx context.Context, emergency *models.Emergency) error {
	now := time.Now()
	emergency.CreatedAt = now
	emergency.UpdatedAt = now
	emergency.LastActivityAt = now
	emergency.Version = 1
	if emergency.Responders == nil {
		emergency.Responders = []models.Responder{}
	}

	result, err := er.collection.InsertOne(ctx, emergency)
	if err != nil {
		return utils.NewDatabaseError("create emergency", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		emergency.ID = oid
	}
	return nil
}

func (er *EmergencyRepository) GetByID(ctx context.Context, id string) (*models.Emergency, error) {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, utils.NewValidationError("invalid emergency ID")
	}

	var emergency models.Emergency
	err = er.collection.FindOne(ctx, bson.M{"_id": objectID}).Decode(&emergency)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, utils.NewNotFoundError("Emergency")
		}
		return nil, utils.NewDatabaseError("get emergency", err)
	}

	return &emergency, nil
}

// ReplaceWithVersion writes the full document guarded by the version the
// caller read. A non-match means another writer got there first.
func (er *EmergencyRepository) ReplaceWithVersion(ctx context.Context, emergency *models.Emergency) error {
	readVersion := emergency.Version
	emergency.Version = readVersion + 1
	emergency.UpdatedAt = time.Now()

	filter := bson.M{"_id": emergency.ID, "version": readVersion}
	result, err := er.collection.ReplaceOne(ctx, filter, emergency)
	if err != nil {
		emergency.Version = readVersion
		return utils.NewDatabaseError("update emergency", err)
	}
	if result.MatchedCount == 0 {
		emergency.Version = readVersion
		return ErrVersionConflict
	}
	return nil
}

func (er *EmergencyRepository) ListActive(ctx context.Context) ([]models.Emergency, error) {
	filter := bson.M{
		"status": bson.M{"$in": []string{models.EmergencyStatusActive, models.EmergencyStatusResponding}},
	}
	findOptions := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})

	cursor, err := er.collection.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, utils.NewDatabaseError("list active emergencies", err)
	}
	defer cursor.Close(ctx)

	var emergencies []models.Emergency
	if err = cursor.All(ctx, &emergencies); err != nil {
		return nil, utils.NewDatabaseError("decode emergencies", err)
	}
	return emergencies, nil
}

// ListNearby returns open emergencies within maxDistance meters of the given
// point, ordered by distance ($near guarantees nearest first).
func (er *EmergencyRepository) ListNearby(ctx context.Context, lng, lat, maxDistance float64) ([]models.Emergency, error) {
	filter := bson.M{
		"status": bson.M{"$in": []string{models.EmergencyStatusActive, models.EmergencyStatusResponding}},
		"location.coordinates": bson.M{
			"$near": bson.M{
				"$geometry": bson.M{
					"type":        "Point",
					"coordinates": []float64{lng, lat},
				},
				"$maxDistance": maxDistance,
			},
		},
	}

	cursor, err := er.collection.Find(ctx, filter)
	if err != nil {
		return nil, utils.NewDatabaseError("list nearby emergencies", err)
	}
	defer cursor.Close(ctx)

	var emergencies []models.Emergency
	if err = cursor.All(ctx, &emergencies); err != nil {
		return nil, utils.NewDatabaseError("decode emergencies", err)
	}
	return emergencies, nil
}

// TouchActivity stamps the last chat/status activity time without bumping the
// document version.
func (er *EmergencyRepository) TouchActivity(ctx context.Context, id primitive.ObjectID, at time.Time) error {
	_, err := er.collection.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"lastActivityAt": at}},
	)
	if err != nil {
		return utils.NewDatabaseError(fmt.Sprintf("touch emergency %s", id.Hex()), err)
	}
	return nil
}

// CancelStale cancels non-terminal emergencies with no activity since
// cutoff and returns the ids that were closed. Bypasses the version
// check: a concurrent mutation moves lastActivityAt forward and drops
// the document out of the filter.
func (er *EmergencyRepository) CancelStale(ctx context.Context, cutoff time.Time) ([]primitive.ObjectID, error) {
	staleFilter := bson.M{
		"status":         bson.M{"$in": []string{models.EmergencyStatusActive, models.EmergencyStatusResponding}},
		"lastActivityAt": bson.M{"$gt": time.Time{}, "$lte": cutoff},
	}

	cursor, err := er.collection.Find(ctx, staleFilter,
		options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return nil, utils.NewDatabaseError("find stale emergencies", err)
	}
	var docs []struct {
		ID primitive.ObjectID `bson:"_id"`
	}
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, utils.NewDatabaseError("decode stale emergencies", err)
	}
	if len(docs) == 0 {
		return nil, nil
	}

	ids := make([]primitive.ObjectID, len(docs))
	for i, doc := range docs {
		ids[i] = doc.ID
	}

	now := time.Now()
	staleFilter["_id"] = bson.M{"$in": ids}
	if _, err := er.collection.UpdateMany(ctx, staleFilter,
		bson.M{
			"$set": bson.M{
				"status":     models.EmergencyStatusCancelled,
				"resolvedAt": now,
				"updatedAt":  now,
			},
			"$inc": bson.M{"version": 1},
		},
	); err != nil {
		return nil, utils.NewDatabaseError("cancel stale emergencies", err)
	}
	return ids, nil
}
