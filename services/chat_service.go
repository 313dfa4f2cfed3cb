package services

import (
	"context"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"resqlink/models"
	"resqlink/utils"
)

// ChatStore persists the per-emergency message log.
type ChatStore interface {
	Insert(ctx context.Context, message *models.ChatMessage) error
	ListAfter(ctx context.Context, emergencyID primitive.ObjectID, after *primitive.ObjectID, limit int) ([]models.ChatMessage, error)
	AddReadBy(ctx context.Context, emergencyID primitive.ObjectID, messageIDs []primitive.ObjectID, readerID primitive.ObjectID) error
	GetByIDs(ctx context.Context, emergencyID primitive.ObjectID, ids []primitive.ObjectID) ([]models.ChatMessage, error)
}

const (
	maxChatBodyLength = 2000
	defaultChatLimit  = 50
	maxChatLimit      = 100
)

// ChatService runs the per-emergency chat. Access follows the same
// participant rule as the emergency room: reporter and responders only.
type ChatService struct {
	messages    ChatStore
	emergencies EmergencyStore
	broadcaster Broadcaster
}

func NewChatService(messages ChatStore, emergencies EmergencyStore, broadcaster Broadcaster) *ChatService {
	return &ChatService{
		messages:    messages,
		emergencies: emergencies,
		broadcaster: broadcaster,
	}
}

// PostMessage appends a message and broadcasts it to the emergency room.
func (cs *ChatService) PostMessage(ctx context.Context, emergencyID, senderID string, req models.PostMessageRequest) (*models.ChatMessage, error) {
	body := strings.TrimSpace(req.Body)
	if body == "" {
		return nil, utils.NewValidationError("Message body cannot be empty")
	}
	if len(body) > maxChatBodyLength {
		return nil, utils.NewValidationError("Message body is too long")
	}

	emergency, senderOID, err := cs.authorize(ctx, emergencyID, senderID)
	if err != nil {
		return nil, err
	}

	message := &models.ChatMessage{
		EmergencyID: emergency.ID,
		SenderID:    senderOID,
		Body:        body,
	}
	if err := cs.messages.Insert(ctx, message); err != nil {
		return nil, err
	}

	if err := cs.emergencies.TouchActivity(ctx, emergency.ID, time.Now()); err != nil {
		logrus.WithError(err).WithField("emergencyId", emergencyID).
			Warn("Failed to touch emergency activity")
	}

	cs.broadcaster.EmitToRoom(emergencyID, models.WSEventNewMessage, message)
	return message, nil
}

// ListMessages returns messages in chronological order. With a cursor it
// pages forward from that message; without one it returns the newest
// page, still oldest first.
func (cs *ChatService) ListMessages(ctx context.Context, emergencyID, userID string, req models.ListMessagesRequest) ([]models.ChatMessage, error) {
	emergency, _, err := cs.authorize(ctx, emergencyID, userID)
	if err != nil {
		return nil, err
	}

	limit := req.Limit
	if limit <= 0 {
		limit = defaultChatLimit
	}
	if limit > maxChatLimit {
		limit = maxChatLimit
	}

	var after *primitive.ObjectID
	if req.After != "" {
		cursor, err := primitive.ObjectIDFromHex(req.After)
		if err != nil {
			return nil, utils.NewValidationError("Invalid pagination cursor")
		}
		after = &cursor
	}

	messages, err := cs.messages.ListAfter(ctx, emergency.ID, after, limit)
	if err != nil {
		return nil, err
	}
	return messages, nil
}

// MarkRead records that userID has read the given messages and notifies
// the room. A sender never appears in the read-set of their own message.
func (cs *ChatService) MarkRead(ctx context.Context, emergencyID, userID string, req models.MarkMessagesReadRequest) error {
	emergency, readerOID, err := cs.authorize(ctx, emergencyID, userID)
	if err != nil {
		return err
	}
	if len(req.MessageIDs) == 0 {
		return utils.NewValidationError("No message IDs given")
	}

	ids := make([]primitive.ObjectID, 0, len(req.MessageIDs))
	for _, raw := range req.MessageIDs {
		id, err := primitive.ObjectIDFromHex(raw)
		if err != nil {
			return utils.NewValidationError("Invalid message ID: " + raw)
		}
		ids = append(ids, id)
	}

	if err := cs.messages.AddReadBy(ctx, emergency.ID, ids, readerOID); err != nil {
		return err
	}

	// Receipts go straight to each sender; reading your own message is
	// not an event.
	messages, err := cs.messages.GetByIDs(ctx, emergency.ID, ids)
	if err != nil {
		logrus.WithError(err).WithField("emergencyId", emergencyID).
			Warn("Failed to load messages for read receipts")
		return nil
	}
	for _, message := range messages {
		if message.SenderID == readerOID {
			continue
		}
		cs.broadcaster.EmitToUser(message.SenderID.Hex(), models.WSEventMessageRead, models.WSMessageReadPayload{
			MessageID: message.ID.Hex(),
			ReadBy:    userID,
		})
	}
	return nil
}

func (cs *ChatService) authorize(ctx context.Context, emergencyID, userID string) (*models.Emergency, primitive.ObjectID, error) {
	userOID, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return nil, primitive.NilObjectID, utils.NewValidationError("Invalid user ID")
	}
	emergency, err := cs.emergencies.GetByID(ctx, emergencyID)
	if err != nil {
		return nil, primitive.NilObjectID, err
	}
	if !emergency.IsParticipant(userOID) {
		return nil, primitive.NilObjectID, utils.NewForbiddenError("You are not a participant in this emergency")
	}
	return emergency, userOID, nil
}
