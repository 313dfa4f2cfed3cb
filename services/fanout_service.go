package services

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"resqlink/models"
	"resqlink/utils"
)

// Keep SMS alerts inside a single segment so carriers do not split them.
const maxSMSLength = 160

// NotificationStore persists in-app notification records.
type NotificationStore interface {
	Create(ctx context.Context, notification *models.Notification) error
	Update(ctx context.Context, notification *models.Notification) error
	ListByUser(ctx context.Context, userID primitive.ObjectID, page, pageSize int, notificationType, status string) ([]models.Notification, int64, error)
	MarkRead(ctx context.Context, userID primitive.ObjectID, ids []primitive.ObjectID) (int64, error)
	CountUnread(ctx context.Context, userID primitive.ObjectID) (int64, error)
}

// Broadcaster pushes events to live websocket sessions.
type Broadcaster interface {
	EmitToUser(userID, event string, data interface{})
	EmitToRoom(emergencyID, event string, data interface{})
	EmitToAll(event string, data interface{})
}

// TokenPruner removes push tokens the provider has rejected.
type TokenPruner interface {
	RemovePushTokens(ctx context.Context, userID primitive.ObjectID, tokens []string) error
}

// NotificationTemplate describes one notification before it is stamped
// out per recipient.
type NotificationTemplate struct {
	EmergencyID primitive.ObjectID
	Type        string
	Title       string
	Body        string
	Priority    string
	Data        map[string]string
	ActionURL   string
}

// NotificationDispatcher is the fan-out engine as its callers see it.
type NotificationDispatcher interface {
	Dispatch(ctx context.Context, recipients []models.User, template NotificationTemplate)
}

// FanoutService delivers one notification to many recipients across the
// persistence, socket, push, SMS and email channels. Channels are
// independent per recipient: a failure on one is logged and never stops
// the others, and every channel gets exactly one attempt.
type FanoutService struct {
	notifications NotificationStore
	broadcaster   Broadcaster
	push          PushSender
	sms           SMSSender
	email         EmailSender
	pruner        TokenPruner
}

func NewFanoutService(
	notifications NotificationStore,
	broadcaster Broadcaster,
	push PushSender,
	sms SMSSender,
	email EmailSender,
	pruner TokenPruner,
) *FanoutService {
	return &FanoutService{
		notifications: notifications,
		broadcaster:   broadcaster,
		push:          push,
		sms:           sms,
		email:         email,
		pruner:        pruner,
	}
}

// Dispatch fans the template out to every recipient concurrently and
// returns when all deliveries have been attempted.
func (fs *FanoutService) Dispatch(ctx context.Context, recipients []models.User, template NotificationTemplate) {
	var wg sync.WaitGroup
	for i := range recipients {
		wg.Add(1)
		go func(recipient models.User) {
			defer wg.Done()
			fs.deliverToRecipient(ctx, recipient, template)
		}(recipients[i])
	}
	wg.Wait()
}

func (fs *FanoutService) deliverToRecipient(ctx context.Context, recipient models.User, template NotificationTemplate) {
	notification := &models.Notification{
		UserID:      recipient.ID,
		EmergencyID: template.EmergencyID,
		Type:        template.Type,
		Title:       template.Title,
		Body:        template.Body,
		Priority:    template.Priority,
		ActionURL:   template.ActionURL,
	}

	// Persistence and socket delivery ignore preferences: the in-app
	// record and live session feed are the system of record, not an
	// opt-out channel.
	persisted := true
	if err := fs.notifications.Create(ctx, notification); err != nil {
		persisted = false
		fs.logChannelFailure(recipient.ID, "persist", utils.NewChannelDeliveryError("persist", err))
	}

	fs.broadcaster.EmitToUser(recipient.ID.Hex(), models.WSEventNotification, notification)

	prefs := recipient.NotificationPreferences

	if prefs.AllowsPush(template.Type) {
		fs.deliverPush(ctx, recipient, notification, template)
	}
	// SMS is reserved for alerts that cannot wait for the next app open.
	if smsWorthy(template.Priority) && prefs.AllowsSMS(template.Type) && recipient.Phone != "" {
		body := utils.TruncateString(template.Title+": "+template.Body, maxSMSLength)
		if err := fs.sms.SendSMS(ctx, recipient.Phone, body); err != nil {
			fs.logChannelFailure(recipient.ID, "sms", utils.NewChannelDeliveryError("sms", err))
		} else {
			notification.IsSMSSent = true
			notification.SMSSentAt = time.Now()
		}
	}
	if prefs.AllowsEmail(template.Type) && recipient.Email != "" {
		if err := fs.email.SendEmail(ctx, recipient.Email, template.Title, template.Body); err != nil {
			fs.logChannelFailure(recipient.ID, "email", utils.NewChannelDeliveryError("email", err))
		} else {
			notification.IsEmailSent = true
			notification.EmailSentAt = time.Now()
		}
	}

	if persisted && (notification.IsPushSent || notification.IsSMSSent || notification.IsEmailSent) {
		if err := fs.notifications.Update(ctx, notification); err != nil {
			logrus.WithError(err).WithField("notificationId", notification.ID.Hex()).
				Warn("Failed to record channel bookkeeping")
		}
	}
}

func (fs *FanoutService) deliverPush(ctx context.Context, recipient models.User, notification *models.Notification, template NotificationTemplate) {
	tokens := recipient.TokenStrings()
	if len(tokens) == 0 {
		return
	}

	results, err := fs.push.SendToTokens(ctx, tokens, PushMessage{
		Title:    template.Title,
		Body:     template.Body,
		Data:     template.Data,
		Priority: template.Priority,
		Sound:    "default",
	})
	if err != nil {
		fs.logChannelFailure(recipient.ID, "push", utils.NewChannelDeliveryError("push", err))
		return
	}

	var invalid []string
	for _, result := range results {
		if result.Success {
			notification.IsPushSent = true
			notification.PushSentAt = time.Now()
		} else if result.Invalid {
			invalid = append(invalid, result.Token)
		}
	}

	if len(invalid) > 0 {
		if err := fs.pruner.RemovePushTokens(ctx, recipient.ID, invalid); err != nil {
			logrus.WithError(err).WithField("userId", recipient.ID.Hex()).
				Warn("Failed to prune invalid push tokens")
		} else {
			logrus.WithFields(logrus.Fields{
				"userId": recipient.ID.Hex(),
				"pruned": len(invalid),
			}).Info("Pruned invalid push tokens")
		}
	}
}

func smsWorthy(priority string) bool {
	return priority == models.NotificationPriorityHigh || priority == models.NotificationPriorityUrgent
}

func (fs *FanoutService) logChannelFailure(userID primitive.ObjectID, channel string, err error) {
	logrus.WithError(err).WithFields(logrus.Fields{
		"userId":  userID.Hex(),
		"channel": channel,
	}).Warn("Notification channel delivery failed")
}
