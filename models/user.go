package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User is owned by the user-profile collaborator. The core reads
// CurrentLocation, AvailabilityStatus, PushTokens and NotificationPreferences;
// only the push-token set is mutated here (pruning invalid tokens).
type User struct {
	ID    primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	Name  string             `json:"name" bson:"name"`
	Email string             `json:"email" bson:"email"`
	Phone string             `json:"phone,omitempty" bson:"phone,omitempty"`

	// CurrentLocation is nil until the first location update.
	CurrentLocation    *UserLocation `json:"currentLocation,omitempty" bson:"currentLocation,omitempty"`
	AvailabilityStatus bool          `json:"availabilityStatus" bson:"availabilityStatus"`

	PushTokens              []PushToken             `json:"pushTokens,omitempty" bson:"pushTokens,omitempty"`
	NotificationPreferences NotificationPreferences `json:"notificationPreferences" bson:"notificationPreferences"`

	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updatedAt"`
}

// UserLocation is a GeoJSON point with the time it was reported. The freshness
// timestamp lives next to the coordinates so the candidate query reads one
// subdocument.
type UserLocation struct {
	Type        string    `json:"type" bson:"type"`
	Coordinates []float64 `json:"coordinates" bson:"coordinates"`
	UpdatedAt   time.Time `json:"updatedAt" bson:"updatedAt"`
}

func (l *UserLocation) Longitude() float64 {
	if l != nil && len(l.Coordinates) == 2 {
		return l.Coordinates[0]
	}
	return 0
}

func (l *UserLocation) Latitude() float64 {
	if l != nil && len(l.Coordinates) == 2 {
		return l.Coordinates[1]
	}
	return 0
}

type PushToken struct {
	Token    string `json:"token" bson:"token"`
	Platform string `json:"platform" bson:"platform"` // ios, android, web
}

// NotificationPreferences gates the push/email/sms channels per category.
// In-app persistence and socket delivery are never gated.
type NotificationPreferences struct {
	Push  bool `json:"push" bson:"push"`
	Email bool `json:"email" bson:"email"`
	SMS   bool `json:"sms" bson:"sms"`

	EmergencyAlerts     bool `json:"emergencyAlerts" bson:"emergencyAlerts"`
	ResponseUpdates     bool `json:"responseUpdates" bson:"responseUpdates"`
	SystemNotifications bool `json:"systemNotifications" bson:"systemNotifications"`
}

func DefaultNotificationPreferences() NotificationPreferences {
	return NotificationPreferences{
		Push:                true,
		Email:               true,
		SMS:                 false,
		EmergencyAlerts:     true,
		ResponseUpdates:     true,
		SystemNotifications: true,
	}
}

// TokenStrings flattens the push-token set for a multicast send.
func (u *User) TokenStrings() []string {
	tokens := make([]string, 0, len(u.PushTokens))
	for _, t := range u.PushTokens {
		tokens = append(tokens, t.Token)
	}
	return tokens
}

// =================== REQUEST MODELS ===================

type UpdateLocationRequest struct {
	Longitude float64 `json:"longitude" validate:"min=-180,max=180"`
	Latitude  float64 `json:"latitude" validate:"min=-90,max=90"`
}

type UpdateAvailabilityRequest struct {
	Available *bool `json:"available" validate:"required"`
}

type RegisterPushTokenRequest struct {
	Token    string `json:"token" validate:"required"`
	Platform string `json:"platform" validate:"required,oneof=ios android web"`
}

type RemovePushTokenRequest struct {
	Token string `json:"token" validate:"required"`
}

type UpdatePreferencesRequest struct {
	Push                *bool `json:"push,omitempty"`
	Email               *bool `json:"email,omitempty"`
	SMS                 *bool `json:"sms,omitempty"`
	EmergencyAlerts     *bool `json:"emergencyAlerts,omitempty"`
	ResponseUpdates     *bool `json:"responseUpdates,omitempty"`
	SystemNotifications *bool `json:"systemNotifications,omitempty"`
}
