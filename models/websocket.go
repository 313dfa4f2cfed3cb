package models

import "time"

// WSMessage is the outbound frame envelope.
type WSMessage struct {
	Event     string      `json:"event"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// WSRequest is the inbound frame envelope. Data stays loosely typed at the
// edge and is re-unmarshalled per event.
type WSRequest struct {
	Event     string                 `json:"event"`
	Data      map[string]interface{} `json:"data,omitempty"`
	RequestID string                 `json:"requestId,omitempty"`
}

// Inbound event names
const (
	WSEventJoinRoom          = "joinRoom"
	WSEventJoinEmergencyRoom = "joinEmergencyRoom"
	WSEventChatMessage       = "chatMessage"
	WSEventPing              = "ping"
)

// Outbound event names
const (
	WSEventNewEmergency           = "newEmergency"
	WSEventEmergencyCreated       = "emergencyCreated"
	WSEventResponderAdded         = "responderAdded"
	WSEventResponderUpdated       = "responderUpdated"
	WSEventEmergencyStatusUpdated = "emergencyStatusUpdated"
	WSEventEmergencyResolved      = "emergencyResolved"
	WSEventNewMessage             = "newMessage"
	WSEventMessageRead            = "messageRead"
	WSEventChatHistory            = "chatHistory"
	WSEventJoinedRoom             = "joinedRoom"
	WSEventNotification           = "notification"
	WSEventError                  = "error"
	WSEventPong                   = "pong"
)

// WS error codes
const (
	WSErrorInvalidMessage = "INVALID_MESSAGE"
	WSErrorUnauthorized   = "UNAUTHORIZED"
	WSErrorNotFound       = "NOT_FOUND"
	WSErrorForbidden      = "FORBIDDEN"
	WSErrorRateLimit      = "RATE_LIMIT_EXCEEDED"
	WSErrorInternal       = "INTERNAL_ERROR"
)

type WSError struct {
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// WSJoinRoomRequest is the explicit identity handshake: the connection is
// associated with a user id here, not inferred from transport credentials.
type WSJoinRoomRequest struct {
	UserID string `json:"userId"`
}

type WSJoinEmergencyRoomRequest struct {
	EmergencyID string `json:"emergencyId"`
	UserID      string `json:"userId"`
}

type WSChatMessageRequest struct {
	EmergencyID string `json:"emergencyId"`
	SenderID    string `json:"senderId"`
	Body        string `json:"body"`
}

// =================== EVENT PAYLOADS ===================

type WSNewEmergencyPayload struct {
	Emergency *Emergency `json:"emergency"`
}

type WSEmergencyCreatedPayload struct {
	EmergencyID string            `json:"emergencyId"`
	Category    string            `json:"category"`
	CreatedBy   string            `json:"createdBy"`
	Location    EmergencyLocation `json:"location"`
}

type WSResponderPayload struct {
	EmergencyID string `json:"emergencyId"`
	UserID      string `json:"userId"`
	Status      string `json:"status"`
}

type WSStatusUpdatedPayload struct {
	EmergencyID string `json:"emergencyId"`
	Status      string `json:"status"`
	UpdatedBy   string `json:"updatedBy"`
}

type WSEmergencyResolvedPayload struct {
	EmergencyID string `json:"emergencyId"`
}

type WSMessageReadPayload struct {
	MessageID string `json:"messageId"`
	ReadBy    string `json:"readBy"`
}
