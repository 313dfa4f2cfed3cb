package services

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"resqlink/models"
	"resqlink/utils"
)

// UserService covers the slice of the user profile this system owns:
// the live location report, the availability flag, push tokens and
// notification preferences.
type UserService struct {
	users     UserStore
	validator *utils.ValidationService
}

func NewUserService(users UserStore, validator *utils.ValidationService) *UserService {
	return &UserService{
		users:     users,
		validator: validator,
	}
}

func (us *UserService) GetProfile(ctx context.Context, userID string) (*models.User, error) {
	return us.users.GetByID(ctx, userID)
}

// UpdateLocation records a fresh location report. The report timestamp
// drives candidate freshness, so it is always stamped server side.
func (us *UserService) UpdateLocation(ctx context.Context, userID string, req models.UpdateLocationRequest) error {
	if err := us.validator.ValidateRequest(req); err != nil {
		return err
	}
	if !utils.IsValidCoordinate(req.Latitude, req.Longitude) {
		return utils.NewValidationError("Coordinates are out of range")
	}
	userOID, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return utils.NewValidationError("Invalid user ID")
	}
	return us.users.SetLocation(ctx, userOID, req.Longitude, req.Latitude, time.Now())
}

func (us *UserService) UpdateAvailability(ctx context.Context, userID string, req models.UpdateAvailabilityRequest) error {
	if err := us.validator.ValidateRequest(req); err != nil {
		return err
	}
	userOID, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return utils.NewValidationError("Invalid user ID")
	}
	if err := us.users.SetAvailability(ctx, userOID, *req.Available); err != nil {
		return err
	}
	logrus.WithFields(logrus.Fields{
		"userId":    userID,
		"available": *req.Available,
	}).Info("Availability updated")
	return nil
}

// RegisterPushToken stores a device token, replacing any previous entry
// for the same token string.
func (us *UserService) RegisterPushToken(ctx context.Context, userID string, req models.RegisterPushTokenRequest) error {
	if err := us.validator.ValidateRequest(req); err != nil {
		return err
	}
	userOID, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return utils.NewValidationError("Invalid user ID")
	}
	return us.users.AddPushToken(ctx, userOID, models.PushToken{
		Token:    req.Token,
		Platform: req.Platform,
	})
}

func (us *UserService) RemovePushToken(ctx context.Context, userID string, req models.RemovePushTokenRequest) error {
	if err := us.validator.ValidateRequest(req); err != nil {
		return err
	}
	userOID, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return utils.NewValidationError("Invalid user ID")
	}
	return us.users.RemovePushTokens(ctx, userOID, []string{req.Token})
}

// UpdatePreferences merges the provided toggles over the user's current
// preferences; omitted fields keep their value.
func (us *UserService) UpdatePreferences(ctx context.Context, userID string, req models.UpdatePreferencesRequest) (*models.NotificationPreferences, error) {
	userOID, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return nil, utils.NewValidationError("Invalid user ID")
	}
	user, err := us.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	prefs := user.NotificationPreferences
	applyBool(&prefs.Push, req.Push)
	applyBool(&prefs.Email, req.Email)
	applyBool(&prefs.SMS, req.SMS)
	applyBool(&prefs.EmergencyAlerts, req.EmergencyAlerts)
	applyBool(&prefs.ResponseUpdates, req.ResponseUpdates)
	applyBool(&prefs.SystemNotifications, req.SystemNotifications)

	if err := us.users.UpdatePreferences(ctx, userOID, prefs); err != nil {
		return nil, err
	}
	return &prefs, nil
}

func applyBool(dst *bool, src *bool) {
	if src != nil {
		*dst = *src
	}
}
