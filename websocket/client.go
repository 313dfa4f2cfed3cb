package websocket

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"resqlink/models"
	"resqlink/utils"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 8192

	sendBufferSize  = 64
	historyPageSize = 50
)

// Client is one websocket connection. All frames going out pass through
// the send channel so WritePump is the single writer on the socket.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	// authUserID comes from the connection's credentials; userID is set
	// by the joinRoom handshake and must match it.
	authUserID string
	userID     string
	identified bool

	rooms       map[string]bool
	rateLimiter *utils.RateLimiter
	connectedAt time.Time
}

func NewClient(hub *Hub, conn *websocket.Conn, authUserID string) *Client {
	return &Client{
		hub:         hub,
		conn:        conn,
		send:        make(chan []byte, sendBufferSize),
		authUserID:  authUserID,
		rooms:       make(map[string]bool),
		rateLimiter: utils.NewRateLimiter(30, time.Minute),
		connectedAt: time.Now(),
	}
}

// ReadPump reads frames off the socket and routes them per event.
// Runs in its own goroutine; exiting unregisters the client.
func (c *Client) ReadPump() {
	defer func() {
		if c.identified {
			c.hub.unregister <- c
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logrus.WithError(err).WithField("userId", c.authUserID).Warn("WebSocket read error")
			}
			return
		}

		if !c.rateLimiter.Allow() {
			c.sendError(models.WSErrorRateLimit, "Too many messages, slow down")
			continue
		}

		var req models.WSRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			c.sendError(models.WSErrorInvalidMessage, "Malformed message")
			continue
		}
		c.handleMessage(req)
	}
}

// WritePump is the only goroutine that writes to the socket.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) handleMessage(req models.WSRequest) {
	switch req.Event {
	case models.WSEventPing:
		c.sendEvent(models.WSEventPong, nil)
	case models.WSEventJoinRoom:
		c.handleJoinRoom(req)
	case models.WSEventJoinEmergencyRoom:
		c.handleJoinEmergencyRoom(req)
	case models.WSEventChatMessage:
		c.handleChatMessage(req)
	default:
		c.sendError(models.WSErrorInvalidMessage, "Unknown event: "+req.Event)
	}
}

func (c *Client) handleJoinRoom(req models.WSRequest) {
	var payload models.WSJoinRoomRequest
	if err := decodeData(req.Data, &payload); err != nil || payload.UserID == "" {
		c.sendError(models.WSErrorInvalidMessage, "joinRoom requires a userId")
		return
	}
	if payload.UserID != c.authUserID {
		c.sendError(models.WSErrorUnauthorized, "User id does not match connection credentials")
		return
	}
	if c.identified {
		c.sendEvent(models.WSEventJoinedRoom, map[string]string{"roomId": UserRoom(c.userID)})
		return
	}

	c.userID = payload.UserID
	c.identified = true
	c.hub.register <- c
	c.sendEvent(models.WSEventJoinedRoom, map[string]string{"roomId": UserRoom(c.userID)})
}

func (c *Client) handleJoinEmergencyRoom(req models.WSRequest) {
	if !c.requireIdentified() {
		return
	}
	var payload models.WSJoinEmergencyRoomRequest
	if err := decodeData(req.Data, &payload); err != nil || payload.EmergencyID == "" {
		c.sendError(models.WSErrorInvalidMessage, "joinEmergencyRoom requires an emergencyId")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := c.hub.authorizer.CanJoinEmergencyRoom(ctx, payload.EmergencyID, c.userID); err != nil {
		c.sendServiceError(err)
		return
	}

	c.hub.JoinRoom(c, EmergencyRoom(payload.EmergencyID))
	c.sendEvent(models.WSEventJoinedRoom, map[string]string{"roomId": EmergencyRoom(payload.EmergencyID)})

	history, err := c.hub.chat.ListMessages(ctx, payload.EmergencyID, c.userID, models.ListMessagesRequest{Limit: historyPageSize})
	if err != nil {
		logrus.WithError(err).WithField("emergencyId", payload.EmergencyID).Warn("Failed to load chat history")
		return
	}
	c.sendEvent(models.WSEventChatHistory, map[string]interface{}{
		"emergencyId": payload.EmergencyID,
		"messages":    history,
	})
}

func (c *Client) handleChatMessage(req models.WSRequest) {
	if !c.requireIdentified() {
		return
	}
	var payload models.WSChatMessageRequest
	if err := decodeData(req.Data, &payload); err != nil || payload.EmergencyID == "" {
		c.sendError(models.WSErrorInvalidMessage, "chatMessage requires an emergencyId and body")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// The service persists and broadcasts newMessage to the room.
	if _, err := c.hub.chat.PostMessage(ctx, payload.EmergencyID, c.userID, models.PostMessageRequest{Body: payload.Body}); err != nil {
		c.sendServiceError(err)
	}
}

func (c *Client) requireIdentified() bool {
	if !c.identified {
		c.sendError(models.WSErrorUnauthorized, "Send joinRoom before other events")
		return false
	}
	return true
}

func (c *Client) sendEvent(event string, data interface{}) {
	payload, err := json.Marshal(models.WSMessage{
		Event:     event,
		Data:      data,
		Timestamp: time.Now(),
	})
	if err != nil {
		logrus.WithError(err).WithField("event", event).Error("Failed to marshal websocket event")
		return
	}
	select {
	case c.send <- payload:
	default:
	}
}

func (c *Client) sendError(code, message string) {
	c.sendEvent(models.WSEventError, models.WSError{
		Code:      code,
		Message:   message,
		Timestamp: time.Now(),
	})
}

func (c *Client) sendServiceError(err error) {
	if svcErr, ok := utils.GetServiceError(err); ok {
		code := models.WSErrorInternal
		switch {
		case utils.IsNotFoundError(err):
			code = models.WSErrorNotFound
		case utils.IsForbiddenError(err):
			code = models.WSErrorForbidden
		case utils.IsValidationError(err):
			code = models.WSErrorInvalidMessage
		}
		c.sendError(code, svcErr.Message)
		return
	}
	c.sendError(models.WSErrorInternal, "Something went wrong")
}

func decodeData(data map[string]interface{}, out interface{}) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}
