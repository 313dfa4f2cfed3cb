package workers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"resqlink/models"
)

type fakeEmergencySweeper struct {
	stale []primitive.ObjectID
	err   error
}

func (f *fakeEmergencySweeper) CancelStale(ctx context.Context, cutoff time.Time) ([]primitive.ObjectID, error) {
	return f.stale, f.err
}

type fakeNotificationSweeper struct {
	deleted int64
}

func (f *fakeNotificationSweeper) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	return f.deleted, nil
}

type roomEvent struct {
	room  string
	event string
	data  interface{}
}

type fakeRoomBroadcaster struct {
	events []roomEvent
}

func (f *fakeRoomBroadcaster) EmitToRoom(emergencyID, event string, data interface{}) {
	f.events = append(f.events, roomEvent{room: emergencyID, event: event, data: data})
}

func TestSweepAnnouncesCancelledEmergencies(t *testing.T) {
	first := primitive.NewObjectID()
	second := primitive.NewObjectID()
	broadcaster := &fakeRoomBroadcaster{}
	worker := NewCleanupWorker(
		&fakeEmergencySweeper{stale: []primitive.ObjectID{first, second}},
		&fakeNotificationSweeper{},
		broadcaster,
		CleanupWorkerConfig{},
	)

	worker.sweep()

	assert.Len(t, broadcaster.events, 2)
	assert.Equal(t, first.Hex(), broadcaster.events[0].room)
	assert.Equal(t, models.WSEventEmergencyStatusUpdated, broadcaster.events[0].event)

	payload := broadcaster.events[0].data.(models.WSStatusUpdatedPayload)
	assert.Equal(t, first.Hex(), payload.EmergencyID)
	assert.Equal(t, models.EmergencyStatusCancelled, payload.Status)
	assert.Equal(t, "system", payload.UpdatedBy)

	assert.Equal(t, second.Hex(), broadcaster.events[1].room)
}

func TestSweepSurvivesSweeperFailure(t *testing.T) {
	broadcaster := &fakeRoomBroadcaster{}
	worker := NewCleanupWorker(
		&fakeEmergencySweeper{err: errors.New("mongo unavailable")},
		&fakeNotificationSweeper{deleted: 3},
		broadcaster,
		CleanupWorkerConfig{},
	)

	worker.sweep()

	assert.Empty(t, broadcaster.events)
}
