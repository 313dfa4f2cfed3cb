package database

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"resqlink/models"
)

// RunSeeders inserts a handful of available users around central Berlin
// so a fresh development database has candidates for nearby alerting.
// It is a no-op when the users collection is not empty.
func RunSeeders(db *mongo.Database) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	users := db.Collection("users")
	count, err := users.CountDocuments(ctx, bson.M{})
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	now := time.Now()
	seed := []interface{}{
		seedUser("Ada Brandt", "ada@example.com", "+4915200000001", 13.4050, 52.5200, now),
		seedUser("Jonas Keller", "jonas@example.com", "+4915200000002", 13.4105, 52.5230, now),
		seedUser("Mira Sato", "mira@example.com", "", 13.3980, 52.5170, now),
	}

	if _, err := users.InsertMany(ctx, seed); err != nil {
		return err
	}

	logrus.Infof("Seeded %d development users", len(seed))
	return nil
}

func seedUser(name, email, phone string, lng, lat float64, now time.Time) models.User {
	return models.User{
		Name:  name,
		Email: email,
		Phone: phone,
		CurrentLocation: &models.UserLocation{
			Type:        "Point",
			Coordinates: []float64{lng, lat},
			UpdatedAt:   now,
		},
		AvailabilityStatus:      true,
		NotificationPreferences: models.DefaultNotificationPreferences(),
		CreatedAt:               now,
		UpdatedAt:               now,
	}
}
