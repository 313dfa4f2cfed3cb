package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ChatMessage is an append-only log entry scoped to one emergency. ObjectIDs
// are monotonically orderable by creation time, which is what the cursor
// pagination relies on.
type ChatMessage struct {
	ID          primitive.ObjectID   `json:"id" bson:"_id,omitempty"`
	EmergencyID primitive.ObjectID   `json:"emergencyId" bson:"emergencyId"`
	SenderID    primitive.ObjectID   `json:"senderId" bson:"senderId"`
	Body        string               `json:"body" bson:"body"`
	ReadBy      []primitive.ObjectID `json:"readBy,omitempty" bson:"readBy,omitempty"`
	CreatedAt   time.Time            `json:"createdAt" bson:"createdAt"`
}

// ReadByUser reports whether userID already appears in the read-set.
func (m *ChatMessage) ReadByUser(userID primitive.ObjectID) bool {
	for _, id := range m.ReadBy {
		if id == userID {
			return true
		}
	}
	return false
}

type PostMessageRequest struct {
	Body string `json:"body" validate:"required"`
}

type ListMessagesRequest struct {
	After string `form:"after"`
	Limit int    `form:"limit"`
}

type MarkMessagesReadRequest struct {
	MessageIDs []string `json:"messageIds" validate:"required,min=1"`
}
