package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"resqlink/models"
)

// RoomAuthorizer decides whether a user may join an emergency room.
type RoomAuthorizer interface {
	CanJoinEmergencyRoom(ctx context.Context, emergencyID, userID string) error
}

// ChatGateway lets connected clients read history and post messages
// without the hub depending on the chat service's concrete type.
type ChatGateway interface {
	PostMessage(ctx context.Context, emergencyID, senderID string, req models.PostMessageRequest) (*models.ChatMessage, error)
	ListMessages(ctx context.Context, emergencyID, userID string, req models.ListMessagesRequest) ([]models.ChatMessage, error)
}

type broadcastEnvelope struct {
	roomID  string // empty means every connected client
	payload []byte
}

// Hub owns all live websocket connections and their room memberships.
// Services talk to it through EmitToUser, EmitToRoom and EmitToAll;
// clients reach services back through the attached authorizer and chat
// gateway.
type Hub struct {
	clients map[*Client]bool
	rooms   map[string]*Room

	register   chan *Client
	unregister chan *Client
	broadcast  chan broadcastEnvelope

	authorizer RoomAuthorizer
	chat       ChatGateway

	ctx    context.Context
	cancel context.CancelFunc
	mutex  sync.RWMutex
}

func NewHub() *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		clients:    make(map[*Client]bool),
		rooms:      make(map[string]*Room),
		register:   make(chan *Client, 64),
		unregister: make(chan *Client, 64),
		broadcast:  make(chan broadcastEnvelope, 256),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Attach wires the hub to the services it calls on behalf of clients.
// Must be called before Run; it exists because services need the hub
// for broadcasting while the hub needs them for room authorization.
func (h *Hub) Attach(authorizer RoomAuthorizer, chat ChatGateway) {
	h.authorizer = authorizer
	h.chat = chat
}

func (h *Hub) Run() {
	logrus.Info("WebSocket hub started")
	for {
		select {
		case client := <-h.register:
			h.registerClient(client)
		case client := <-h.unregister:
			h.unregisterClient(client)
		case envelope := <-h.broadcast:
			h.dispatch(envelope)
		case <-h.ctx.Done():
			logrus.Info("WebSocket hub stopped")
			return
		}
	}
}

func (h *Hub) Shutdown() {
	h.cancel()
	h.mutex.Lock()
	defer h.mutex.Unlock()
	for client := range h.clients {
		close(client.send)
	}
	h.clients = make(map[*Client]bool)
	h.rooms = make(map[string]*Room)
}

func (h *Hub) registerClient(client *Client) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	h.clients[client] = true
	h.joinRoomLocked(client, UserRoom(client.userID))

	logrus.WithFields(logrus.Fields{
		"userId":  client.userID,
		"clients": len(h.clients),
	}).Info("WebSocket client connected")
}

func (h *Hub) unregisterClient(client *Client) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	close(client.send)

	for roomID := range client.rooms {
		if room, ok := h.rooms[roomID]; ok {
			if empty := room.RemoveClient(client); empty {
				delete(h.rooms, roomID)
			}
		}
	}

	logrus.WithFields(logrus.Fields{
		"userId":  client.userID,
		"clients": len(h.clients),
	}).Info("WebSocket client disconnected")
}

// JoinRoom adds the client to roomID, creating the room if needed.
func (h *Hub) JoinRoom(client *Client, roomID string) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.joinRoomLocked(client, roomID)
}

func (h *Hub) joinRoomLocked(client *Client, roomID string) {
	room, ok := h.rooms[roomID]
	if !ok {
		room = NewRoom(roomID)
		h.rooms[roomID] = room
	}
	room.AddClient(client)
	client.rooms[roomID] = true
}

func (h *Hub) dispatch(envelope broadcastEnvelope) {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	if envelope.roomID == "" {
		for client := range h.clients {
			select {
			case client.send <- envelope.payload:
			default:
			}
		}
		return
	}
	if room, ok := h.rooms[envelope.roomID]; ok {
		room.Broadcast(envelope.payload)
	}
}

// EmitToUser sends an event to every connection the user holds.
// Delivery is best effort; offline users simply miss the event.
func (h *Hub) EmitToUser(userID, event string, data interface{}) {
	h.emit(UserRoom(userID), event, data)
}

// EmitToRoom sends an event to every participant in an emergency room.
func (h *Hub) EmitToRoom(emergencyID, event string, data interface{}) {
	h.emit(EmergencyRoom(emergencyID), event, data)
}

// EmitToAll sends an event to every connected client.
func (h *Hub) EmitToAll(event string, data interface{}) {
	h.emit("", event, data)
}

func (h *Hub) emit(roomID, event string, data interface{}) {
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
	case h.broadcast <- broadcastEnvelope{roomID: roomID, payload: payload}:
	default:
		logrus.WithFields(logrus.Fields{
			"event": event,
			"room":  roomID,
		}).Warn("WebSocket broadcast queue full, event dropped")
	}
}

// ConnectedClients reports the current connection count.
func (h *Hub) ConnectedClients() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

// RoomCount reports the number of active rooms.
func (h *Hub) RoomCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.rooms)
}
