package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

var client *mongo.Client

// Connect establishes the MongoDB connection, verifies it and runs the
// pending migrations.
func Connect(databaseURL string) (*mongo.Database, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	clientOptions := options.Client().ApplyURI(databaseURL)
	clientOptions.SetMaxPoolSize(100)
	clientOptions.SetMinPoolSize(5)
	clientOptions.SetMaxConnIdleTime(30 * time.Second)
	clientOptions.SetRetryWrites(true)
	clientOptions.SetRetryReads(true)
	clientOptions.SetReadPreference(readpref.PrimaryPreferred())

	var err error
	client, err = mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	dbName := extractDatabaseName(databaseURL)
	db := client.Database(dbName)

	logrus.WithField("database", dbName).Info("Connected to MongoDB")

	if err := RunMigrations(db); err != nil {
		logrus.Warnf("Migration warning: %v", err)
	}

	return db, nil
}

// Disconnect closes the MongoDB connection.
func Disconnect() error {
	if client == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := client.Disconnect(ctx); err != nil {
		logrus.Errorf("Error disconnecting from MongoDB: %v", err)
		return err
	}

	logrus.Info("Disconnected from MongoDB")
	return nil
}

func extractDatabaseName(uri string) string {
	const defaultDB = "resqlink"

	slash := strings.LastIndex(uri, "/")
	if slash < 0 || slash == len(uri)-1 {
		return defaultDB
	}
	name := uri[slash+1:]
	if q := strings.IndexAny(name, "?&"); q >= 0 {
		name = name[:q]
	}
	if name == "" || name == "admin" {
		return defaultDB
	}
	return name
}
