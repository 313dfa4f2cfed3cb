package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"resqlink/models"
	"resqlink/utils"
)

func seededInbox(t *testing.T, userID primitive.ObjectID, count int) *fakeNotificationStore {
	t.Helper()
	store := &fakeNotificationStore{}
	for i := 0; i < count; i++ {
		err := store.Create(context.Background(), &models.Notification{
			UserID: userID,
			Type:   models.NotificationEmergencyCreated,
			Title:  "Emergency nearby",
			Status: models.NotificationStatusSent,
		})
		require.NoError(t, err)
	}
	return store
}

func TestNotificationList(t *testing.T) {
	userID := primitive.NewObjectID()
	store := seededInbox(t, userID, 3)
	service := NewNotificationService(store, nil)

	notifications, meta, err := service.List(context.Background(), userID.Hex(), models.ListNotificationsRequest{})
	require.NoError(t, err)
	assert.Len(t, notifications, 3)
	require.NotNil(t, meta)
	assert.Equal(t, int64(3), meta.Total)
	assert.Equal(t, 1, meta.Page)

	_, _, err = service.List(context.Background(), "bogus", models.ListNotificationsRequest{})
	assert.True(t, utils.IsValidationError(err))
}

func TestNotificationMarkRead(t *testing.T) {
	userID := primitive.NewObjectID()
	store := seededInbox(t, userID, 2)
	service := NewNotificationService(store, nil)

	modified, err := service.MarkRead(context.Background(), userID.Hex(), models.MarkNotificationsReadRequest{
		NotificationIDs: []string{store.created[0].ID.Hex()},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), modified)

	_, err = service.MarkRead(context.Background(), userID.Hex(), models.MarkNotificationsReadRequest{})
	assert.True(t, utils.IsValidationError(err))

	_, err = service.MarkRead(context.Background(), userID.Hex(), models.MarkNotificationsReadRequest{
		NotificationIDs: []string{"not-hex"},
	})
	assert.True(t, utils.IsValidationError(err))
}

func TestNotificationUnreadCountWithoutRedis(t *testing.T) {
	userID := primitive.NewObjectID()
	store := seededInbox(t, userID, 4)
	service := NewNotificationService(store, nil)

	count, err := service.UnreadCount(context.Background(), userID.Hex())
	require.NoError(t, err)
	assert.Equal(t, int64(4), count)
}
