package database

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Migration is one versioned schema step. MongoDB is schemaless, so the
// steps create indexes rather than tables.
type Migration struct {
	Version     int
	Description string
	Up          func(*mongo.Database) error
}

type migrationRecord struct {
	Version   int       `bson:"version"`
	AppliedAt time.Time `bson:"appliedAt"`
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Create users collection with geo and lookup indexes",
		Up:          createUsersIndexes,
	},
	{
		Version:     2,
		Description: "Create emergencies collection with geo and status indexes",
		Up:          createEmergenciesIndexes,
	},
	{
		Version:     3,
		Description: "Create notifications collection with inbox indexes",
		Up:          createNotificationsIndexes,
	},
	{
		Version:     4,
		Description: "Create messages collection with chat pagination index",
		Up:          createMessagesIndexes,
	},
}

// RunMigrations applies every migration newer than the recorded version.
func RunMigrations(db *mongo.Database) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	migrationsCol := db.Collection("migrations")
	currentVersion := getCurrentMigrationVersion(ctx, migrationsCol)
	logrus.Infof("Current migration version: %d", currentVersion)

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		logrus.Infof("Applying migration %d: %s", migration.Version, migration.Description)
		if err := migration.Up(db); err != nil {
			return fmt.Errorf("migration %d failed: %w", migration.Version, err)
		}

		_, err := migrationsCol.InsertOne(ctx, migrationRecord{
			Version:   migration.Version,
			AppliedAt: time.Now(),
		})
		if err != nil {
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}
	}
	return nil
}

func getCurrentMigrationVersion(ctx context.Context, col *mongo.Collection) int {
	opts := options.FindOne().SetSort(bson.D{{Key: "version", Value: -1}})

	var record migrationRecord
	if err := col.FindOne(ctx, bson.M{}, opts).Decode(&record); err != nil {
		return 0
	}
	return record.Version
}

func createUsersIndexes(db *mongo.Database) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			// Sparse: users without a location report stay out of the
			// candidate search entirely.
			Keys:    bson.D{{Key: "currentLocation.coordinates", Value: "2dsphere"}},
			Options: options.Index().SetSparse(true),
		},
		{
			Keys: bson.D{{Key: "availabilityStatus", Value: 1}},
		},
	}

	_, err := db.Collection("users").Indexes().CreateMany(ctx, indexes)
	return err
}

func createEmergenciesIndexes(db *mongo.Database) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "location.coordinates", Value: "2dsphere"}},
		},
		{
			Keys: bson.D{{Key: "status", Value: 1}, {Key: "createdAt", Value: -1}},
		},
		{
			Keys: bson.D{{Key: "createdBy", Value: 1}, {Key: "createdAt", Value: -1}},
		},
		{
			Keys: bson.D{{Key: "responders.userId", Value: 1}},
		},
	}

	_, err := db.Collection("emergencies").Indexes().CreateMany(ctx, indexes)
	return err
}

func createNotificationsIndexes(db *mongo.Database) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "userId", Value: 1}, {Key: "createdAt", Value: -1}},
		},
		{
			Keys: bson.D{{Key: "userId", Value: 1}, {Key: "status", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "emergencyId", Value: 1}},
		},
	}

	_, err := db.Collection("notifications").Indexes().CreateMany(ctx, indexes)
	return err
}

func createMessagesIndexes(db *mongo.Database) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	indexes := []mongo.IndexModel{
		{
			// Cursor pagination walks _id within one emergency.
			Keys: bson.D{{Key: "emergencyId", Value: 1}, {Key: "_id", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "senderId", Value: 1}},
		},
	}

	_, err := db.Collection("messages").Indexes().CreateMany(ctx, indexes)
	return err
}
