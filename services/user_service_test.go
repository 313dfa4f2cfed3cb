package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resqlink/models"
	"resqlink/utils"
)

func newUserServiceFixture() (*UserService, *fakeUserStore, models.User) {
	store := newFakeUserStore()
	user := store.add(models.User{
		Name:                    "Helper",
		NotificationPreferences: models.DefaultNotificationPreferences(),
	})
	return NewUserService(store, utils.NewValidationService()), store, user
}

func TestUpdateLocationValidation(t *testing.T) {
	service, _, user := newUserServiceFixture()
	ctx := context.Background()

	err := service.UpdateLocation(ctx, user.ID.Hex(), models.UpdateLocationRequest{Longitude: 13.4, Latitude: 52.5})
	assert.NoError(t, err)

	err = service.UpdateLocation(ctx, user.ID.Hex(), models.UpdateLocationRequest{Longitude: 200, Latitude: 52.5})
	assert.True(t, utils.IsValidationError(err))

	err = service.UpdateLocation(ctx, "not-an-id", models.UpdateLocationRequest{Longitude: 13.4, Latitude: 52.5})
	assert.True(t, utils.IsValidationError(err))
}

func TestUpdateAvailabilityRequiresFlag(t *testing.T) {
	service, _, user := newUserServiceFixture()

	err := service.UpdateAvailability(context.Background(), user.ID.Hex(), models.UpdateAvailabilityRequest{})
	assert.True(t, utils.IsValidationError(err))

	available := true
	err = service.UpdateAvailability(context.Background(), user.ID.Hex(), models.UpdateAvailabilityRequest{Available: &available})
	assert.NoError(t, err)
}

func TestRegisterPushTokenValidation(t *testing.T) {
	service, _, user := newUserServiceFixture()

	err := service.RegisterPushToken(context.Background(), user.ID.Hex(), models.RegisterPushTokenRequest{
		Token:    "tok-1",
		Platform: "blackberry",
	})
	assert.True(t, utils.IsValidationError(err))

	err = service.RegisterPushToken(context.Background(), user.ID.Hex(), models.RegisterPushTokenRequest{
		Token:    "tok-1",
		Platform: "android",
	})
	assert.NoError(t, err)
}

func TestUpdatePreferencesMerges(t *testing.T) {
	service, _, user := newUserServiceFixture()

	off := false
	prefs, err := service.UpdatePreferences(context.Background(), user.ID.Hex(), models.UpdatePreferencesRequest{
		Push: &off,
	})
	require.NoError(t, err)

	assert.False(t, prefs.Push)
	// Untouched toggles keep their stored values.
	assert.True(t, prefs.Email)
	assert.True(t, prefs.EmergencyAlerts)
}
