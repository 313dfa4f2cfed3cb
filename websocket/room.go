package websocket

import (
	"sync"
	"time"
)

const (
	userRoomPrefix      = "user:"
	emergencyRoomPrefix = "emergency:"
)

// UserRoom returns the room ID for a user's private room.
func UserRoom(userID string) string {
	return userRoomPrefix + userID
}

// EmergencyRoom returns the room ID shared by an emergency's participants.
func EmergencyRoom(emergencyID string) string {
	return emergencyRoomPrefix + emergencyID
}

// Room is a named set of connected clients.
type Room struct {
	ID           string
	clients      map[*Client]bool
	lastActivity time.Time
	mutex        sync.RWMutex
}

func NewRoom(id string) *Room {
	return &Room{
		ID:           id,
		clients:      make(map[*Client]bool),
		lastActivity: time.Now(),
	}
}

func (r *Room) AddClient(client *Client) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.clients[client] = true
	r.lastActivity = time.Now()
}

// RemoveClient removes a client and reports whether the room is now empty.
func (r *Room) RemoveClient(client *Client) bool {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	delete(r.clients, client)
	r.lastActivity = time.Now()
	return len(r.clients) == 0
}

func (r *Room) ClientCount() int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return len(r.clients)
}

// Broadcast queues a message on every client in the room. Clients whose
// send buffer is full are skipped; the write pump closes them on its own.
func (r *Room) Broadcast(message []byte) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	for client := range r.clients {
		select {
		case client.send <- message:
		default:
		}
	}
}
