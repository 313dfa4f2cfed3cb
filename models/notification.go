package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Notification is the persisted in-app record created by the fan-out engine.
// Records are never deleted; recipients flip Status to read.
type Notification struct {
	ID          primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	UserID      primitive.ObjectID `json:"userId" bson:"userId"`
	EmergencyID primitive.ObjectID `json:"emergencyId,omitempty" bson:"emergencyId,omitempty"`

	Type  string `json:"type" bson:"type"`
	Title string `json:"title" bson:"title"`
	Body  string `json:"body" bson:"body"`

	Status string `json:"status" bson:"status"` // sent, delivered, read
	SentAt time.Time `json:"sentAt" bson:"sentAt"`
	ReadAt time.Time `json:"readAt,omitempty" bson:"readAt,omitempty"`

	// Per-channel bookkeeping
	IsPushSent  bool      `json:"isPushSent" bson:"isPushSent"`
	PushSentAt  time.Time `json:"pushSentAt,omitempty" bson:"pushSentAt,omitempty"`
	IsEmailSent bool      `json:"isEmailSent" bson:"isEmailSent"`
	EmailSentAt time.Time `json:"emailSentAt,omitempty" bson:"emailSentAt,omitempty"`
	IsSMSSent   bool      `json:"isSmsSent" bson:"isSmsSent"`
	SMSSentAt   time.Time `json:"smsSentAt,omitempty" bson:"smsSentAt,omitempty"`

	Priority  string    `json:"priority" bson:"priority"` // low, medium, high, urgent
	ActionURL string    `json:"actionUrl,omitempty" bson:"actionUrl,omitempty"`
	ExpiresAt time.Time `json:"expiresAt,omitempty" bson:"expiresAt,omitempty"`

	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updatedAt"`
}

// Notification type constants
const (
	NotificationEmergencyCreated = "emergency_created"
	NotificationEmergencyAlert   = "emergency_alert"
	NotificationResponseUpdate   = "response_update"
	NotificationSystem           = "system"
	NotificationFeedbackRequest  = "feedback_request"
)

// Notification status constants
const (
	NotificationStatusSent      = "sent"
	NotificationStatusDelivered = "delivered"
	NotificationStatusRead      = "read"
)

// Notification priority constants
const (
	NotificationPriorityLow    = "low"
	NotificationPriorityMedium = "medium"
	NotificationPriorityHigh   = "high"
	NotificationPriorityUrgent = "urgent"
)

// AllowsChannel maps a notification type to its per-category preference
// toggle. The mapping is the closed enum from the type constants above; an
// unknown type is delivered (the category toggles are opt-out).
func (p NotificationPreferences) AllowsChannel(notificationType string) bool {
	switch notificationType {
	case NotificationEmergencyCreated, NotificationEmergencyAlert:
		return p.EmergencyAlerts
	case NotificationResponseUpdate, NotificationFeedbackRequest:
		return p.ResponseUpdates
	case NotificationSystem:
		return p.SystemNotifications
	default:
		return true
	}
}

// AllowsPush gates the push channel only: the category toggle plus the global
// push switch. Persistence and socket delivery ignore both.
func (p NotificationPreferences) AllowsPush(notificationType string) bool {
	return p.Push && p.AllowsChannel(notificationType)
}

func (p NotificationPreferences) AllowsEmail(notificationType string) bool {
	return p.Email && p.AllowsChannel(notificationType)
}

func (p NotificationPreferences) AllowsSMS(notificationType string) bool {
	return p.SMS && p.AllowsChannel(notificationType)
}

// =================== REQUEST MODELS ===================

type MarkNotificationsReadRequest struct {
	NotificationIDs []string `json:"notificationIds" validate:"required,min=1"`
}

type ListNotificationsRequest struct {
	Page     int    `form:"page"`
	PageSize int    `form:"pageSize"`
	Type     string `form:"type"`
	Status   string `form:"status"`
}
