package services

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"resqlink/models"
	"resqlink/utils"
)

type fakeChatStore struct {
	mu       sync.Mutex
	messages []models.ChatMessage
}

func (s *fakeChatStore) Insert(ctx context.Context, message *models.ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	message.ID = primitive.NewObjectID()
	s.messages = append(s.messages, *message)
	return nil
}

func (s *fakeChatStore) ListAfter(ctx context.Context, emergencyID primitive.ObjectID, after *primitive.ObjectID, limit int) ([]models.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.ChatMessage
	for _, m := range s.messages {
		if m.EmergencyID != emergencyID {
			continue
		}
		if after != nil && m.ID.Hex() <= after.Hex() {
			continue
		}
		out = append(out, m)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *fakeChatStore) AddReadBy(ctx context.Context, emergencyID primitive.ObjectID, messageIDs []primitive.ObjectID, readerID primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.messages {
		m := &s.messages[i]
		if m.EmergencyID != emergencyID || m.SenderID == readerID {
			continue
		}
		for _, id := range messageIDs {
			if m.ID == id && !m.ReadByUser(readerID) {
				m.ReadBy = append(m.ReadBy, readerID)
			}
		}
	}
	return nil
}

func (s *fakeChatStore) GetByIDs(ctx context.Context, emergencyID primitive.ObjectID, ids []primitive.ObjectID) ([]models.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.ChatMessage
	for _, m := range s.messages {
		for _, id := range ids {
			if m.ID == id {
				out = append(out, m)
			}
		}
	}
	return out, nil
}

type chatFixture struct {
	chat        *ChatService
	store       *fakeChatStore
	broadcaster *fakeBroadcaster
	emergency   *models.Emergency
	creator     models.User
	responder   models.User
	stranger    models.User
}

func newChatFixture(t *testing.T) *chatFixture {
	t.Helper()
	ef := newEmergencyFixture(t)
	emergency := ef.createEmergency(t)
	_, err := ef.service.Respond(context.Background(), emergency.ID.Hex(), ef.responder.ID.Hex())
	require.NoError(t, err)

	store := &fakeChatStore{}
	broadcaster := &fakeBroadcaster{}
	return &chatFixture{
		chat:        NewChatService(store, ef.emergencies, broadcaster),
		store:       store,
		broadcaster: broadcaster,
		emergency:   emergency,
		creator:     ef.creator,
		responder:   ef.responder,
		stranger:    ef.users.add(models.User{Name: "Stranger"}),
	}
}

func TestPostMessage(t *testing.T) {
	f := newChatFixture(t)

	message, err := f.chat.PostMessage(context.Background(), f.emergency.ID.Hex(), f.creator.ID.Hex(), models.PostMessageRequest{
		Body: "  Ambulance is two minutes out  ",
	})
	require.NoError(t, err)

	assert.Equal(t, "Ambulance is two minutes out", message.Body)
	assert.Equal(t, f.creator.ID, message.SenderID)
	assert.False(t, message.ID.IsZero())

	require.Len(t, f.broadcaster.events, 1)
	assert.Equal(t, "emergency:"+f.emergency.ID.Hex(), f.broadcaster.events[0].target)
	assert.Equal(t, models.WSEventNewMessage, f.broadcaster.events[0].event)
}

func TestPostMessageValidation(t *testing.T) {
	f := newChatFixture(t)
	ctx := context.Background()

	_, err := f.chat.PostMessage(ctx, f.emergency.ID.Hex(), f.creator.ID.Hex(), models.PostMessageRequest{Body: "   "})
	assert.True(t, utils.IsValidationError(err))

	_, err = f.chat.PostMessage(ctx, f.emergency.ID.Hex(), f.creator.ID.Hex(), models.PostMessageRequest{
		Body: strings.Repeat("a", 2001),
	})
	assert.True(t, utils.IsValidationError(err))
}

func TestPostMessageRequiresParticipant(t *testing.T) {
	f := newChatFixture(t)

	_, err := f.chat.PostMessage(context.Background(), f.emergency.ID.Hex(), f.stranger.ID.Hex(), models.PostMessageRequest{
		Body: "Let me in",
	})
	assert.True(t, utils.IsForbiddenError(err))
	assert.Empty(t, f.store.messages)
}

func TestListMessages(t *testing.T) {
	f := newChatFixture(t)
	ctx := context.Background()

	for _, body := range []string{"first", "second", "third"} {
		_, err := f.chat.PostMessage(ctx, f.emergency.ID.Hex(), f.creator.ID.Hex(), models.PostMessageRequest{Body: body})
		require.NoError(t, err)
	}

	messages, err := f.chat.ListMessages(ctx, f.emergency.ID.Hex(), f.responder.ID.Hex(), models.ListMessagesRequest{})
	require.NoError(t, err)
	require.Len(t, messages, 3)
	assert.Equal(t, "first", messages[0].Body)
	assert.Equal(t, "third", messages[2].Body)

	// Cursor resumes after the given message.
	page, err := f.chat.ListMessages(ctx, f.emergency.ID.Hex(), f.responder.ID.Hex(), models.ListMessagesRequest{
		After: messages[0].ID.Hex(),
	})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "second", page[0].Body)

	_, err = f.chat.ListMessages(ctx, f.emergency.ID.Hex(), f.responder.ID.Hex(), models.ListMessagesRequest{After: "not-an-id"})
	assert.True(t, utils.IsValidationError(err))

	_, err = f.chat.ListMessages(ctx, f.emergency.ID.Hex(), f.stranger.ID.Hex(), models.ListMessagesRequest{})
	assert.True(t, utils.IsForbiddenError(err))
}

func TestMarkRead(t *testing.T) {
	f := newChatFixture(t)
	ctx := context.Background()

	sent, err := f.chat.PostMessage(ctx, f.emergency.ID.Hex(), f.creator.ID.Hex(), models.PostMessageRequest{Body: "anyone there?"})
	require.NoError(t, err)
	own, err := f.chat.PostMessage(ctx, f.emergency.ID.Hex(), f.responder.ID.Hex(), models.PostMessageRequest{Body: "on my way"})
	require.NoError(t, err)
	f.broadcaster.events = nil

	err = f.chat.MarkRead(ctx, f.emergency.ID.Hex(), f.responder.ID.Hex(), models.MarkMessagesReadRequest{
		MessageIDs: []string{sent.ID.Hex(), own.ID.Hex()},
	})
	require.NoError(t, err)

	// The other side's message gains the reader; your own never does.
	assert.True(t, f.store.messages[0].ReadByUser(f.responder.ID))
	assert.False(t, f.store.messages[1].ReadByUser(f.responder.ID))

	// A receipt goes straight to the sender of the other side's message.
	require.Len(t, f.broadcaster.events, 1)
	assert.Equal(t, "user:"+f.creator.ID.Hex(), f.broadcaster.events[0].target)
	assert.Equal(t, models.WSEventMessageRead, f.broadcaster.events[0].event)
	payload := f.broadcaster.events[0].data.(models.WSMessageReadPayload)
	assert.Equal(t, sent.ID.Hex(), payload.MessageID)
	assert.Equal(t, f.responder.ID.Hex(), payload.ReadBy)
}
