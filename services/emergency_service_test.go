package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"resqlink/models"
	"resqlink/repositories"
	"resqlink/utils"
)

// ================= in-memory fakes =================

type fakeEmergencyStore struct {
	mu          sync.Mutex
	emergencies map[string]*models.Emergency
}

func newFakeEmergencyStore() *fakeEmergencyStore {
	return &fakeEmergencyStore{emergencies: make(map[string]*models.Emergency)}
}

func copyEmergency(e *models.Emergency) *models.Emergency {
	clone := *e
	clone.Responders = make([]models.Responder, len(e.Responders))
	copy(clone.Responders, e.Responders)
	return &clone
}

func (s *fakeEmergencyStore) Create(ctx context.Context, emergency *models.Emergency) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	emergency.ID = primitive.NewObjectID()
	emergency.Version = 1
	emergency.CreatedAt = time.Now()
	emergency.UpdatedAt = emergency.CreatedAt
	emergency.LastActivityAt = emergency.CreatedAt
	if emergency.Responders == nil {
		emergency.Responders = []models.Responder{}
	}
	s.emergencies[emergency.ID.Hex()] = copyEmergency(emergency)
	return nil
}

func (s *fakeEmergencyStore) GetByID(ctx context.Context, id string) (*models.Emergency, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	emergency, ok := s.emergencies[id]
	if !ok {
		return nil, utils.NewNotFoundError("Emergency")
	}
	return copyEmergency(emergency), nil
}

func (s *fakeEmergencyStore) ReplaceWithVersion(ctx context.Context, emergency *models.Emergency) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.emergencies[emergency.ID.Hex()]
	if !ok || stored.Version != emergency.Version {
		return repositories.ErrVersionConflict
	}
	emergency.Version++
	emergency.UpdatedAt = time.Now()
	s.emergencies[emergency.ID.Hex()] = copyEmergency(emergency)
	return nil
}

func (s *fakeEmergencyStore) ListActive(ctx context.Context) ([]models.Emergency, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var active []models.Emergency
	for _, e := range s.emergencies {
		if !models.IsTerminalStatus(e.Status) {
			active = append(active, *copyEmergency(e))
		}
	}
	return active, nil
}

func (s *fakeEmergencyStore) ListNearby(ctx context.Context, lng, lat, maxDistance float64) ([]models.Emergency, error) {
	return s.ListActive(ctx)
}

func (s *fakeEmergencyStore) TouchActivity(ctx context.Context, id primitive.ObjectID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.emergencies[id.Hex()]; ok {
		e.LastActivityAt = at
	}
	return nil
}

type fakeUserStore struct {
	mu     sync.Mutex
	users  map[string]*models.User
	nearby []models.User
	pruned map[string][]string
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{
		users:  make(map[string]*models.User),
		pruned: make(map[string][]string),
	}
}

func (s *fakeUserStore) add(user models.User) models.User {
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	s.users[user.ID.Hex()] = &user
	return user
}

func (s *fakeUserStore) GetByID(ctx context.Context, id string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return nil, utils.NewNotFoundError("User")
	}
	clone := *user
	return &clone, nil
}

func (s *fakeUserStore) FindNearbyAvailable(ctx context.Context, lng, lat, radiusMeters float64, excludeID primitive.ObjectID) ([]models.User, error) {
	var result []models.User
	for _, u := range s.nearby {
		if u.ID != excludeID {
			result = append(result, u)
		}
	}
	return result, nil
}

func (s *fakeUserStore) RemovePushTokens(ctx context.Context, userID primitive.ObjectID, tokens []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pruned[userID.Hex()] = append(s.pruned[userID.Hex()], tokens...)
	return nil
}

func (s *fakeUserStore) AddPushToken(ctx context.Context, userID primitive.ObjectID, token models.PushToken) error {
	return nil
}

func (s *fakeUserStore) SetLocation(ctx context.Context, userID primitive.ObjectID, lng, lat float64, at time.Time) error {
	return nil
}

func (s *fakeUserStore) SetAvailability(ctx context.Context, userID primitive.ObjectID, available bool) error {
	return nil
}

func (s *fakeUserStore) UpdatePreferences(ctx context.Context, userID primitive.ObjectID, prefs models.NotificationPreferences) error {
	return nil
}

type dispatchCall struct {
	recipients []models.User
	template   NotificationTemplate
}

type fakeDispatcher struct {
	mu    sync.Mutex
	calls []dispatchCall
}

func (d *fakeDispatcher) Dispatch(ctx context.Context, recipients []models.User, template NotificationTemplate) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, dispatchCall{recipients: recipients, template: template})
}

type emittedEvent struct {
	target string
	event  string
	data   interface{}
}

type fakeBroadcaster struct {
	mu     sync.Mutex
	events []emittedEvent
}

func (b *fakeBroadcaster) EmitToUser(userID, event string, data interface{}) {
	b.record("user:"+userID, event, data)
}

func (b *fakeBroadcaster) EmitToRoom(emergencyID, event string, data interface{}) {
	b.record("emergency:"+emergencyID, event, data)
}

func (b *fakeBroadcaster) EmitToAll(event string, data interface{}) {
	b.record("all", event, data)
}

func (b *fakeBroadcaster) record(target, event string, data interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, emittedEvent{target: target, event: event, data: data})
}

func (b *fakeBroadcaster) eventNames() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	names := make([]string, len(b.events))
	for i, e := range b.events {
		names[i] = e.event
	}
	return names
}

func (b *fakeBroadcaster) targets(event string) []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	var targets []string
	for _, e := range b.events {
		if e.event == event {
			targets = append(targets, e.target)
		}
	}
	return targets
}

type fakeGeocoder struct {
	address string
	err     error
}

func (g *fakeGeocoder) ReverseGeocode(ctx context.Context, lat, lng float64) (string, error) {
	return g.address, g.err
}

// ================= fixtures =================

type emergencyFixture struct {
	service     *EmergencyService
	emergencies *fakeEmergencyStore
	users       *fakeUserStore
	dispatcher  *fakeDispatcher
	broadcaster *fakeBroadcaster
	geocoder    *fakeGeocoder
	creator     models.User
	responder   models.User
}

func newEmergencyFixture(t *testing.T) *emergencyFixture {
	t.Helper()
	f := &emergencyFixture{
		emergencies: newFakeEmergencyStore(),
		users:       newFakeUserStore(),
		dispatcher:  &fakeDispatcher{},
		broadcaster: &fakeBroadcaster{},
		geocoder:    &fakeGeocoder{address: "Alexanderplatz, Berlin"},
	}
	f.creator = f.users.add(models.User{
		Name:                    "Reporter",
		Email:                   "reporter@example.com",
		NotificationPreferences: models.DefaultNotificationPreferences(),
	})
	f.responder = f.users.add(models.User{
		Name:                    "Helper",
		Email:                   "helper@example.com",
		NotificationPreferences: models.DefaultNotificationPreferences(),
	})
	f.service = NewEmergencyService(
		f.emergencies,
		f.users,
		f.dispatcher,
		f.broadcaster,
		f.geocoder,
		utils.NewValidationService(),
		EmergencyConfig{},
	)
	return f
}

func (f *emergencyFixture) createEmergency(t *testing.T) *models.Emergency {
	t.Helper()
	result, err := f.service.CreateEmergency(context.Background(), f.creator.ID.Hex(), models.CreateEmergencyRequest{
		Category:    models.EmergencyCategoryMedical,
		Description: "Cyclist down at the intersection",
		Longitude:   13.405,
		Latitude:    52.52,
	})
	require.NoError(t, err)
	return result.Emergency
}

func availableUser(store *fakeUserStore, name string, locationAge time.Duration) models.User {
	return store.add(models.User{
		Name:               name,
		AvailabilityStatus: true,
		CurrentLocation: &models.UserLocation{
			Type:        "Point",
			Coordinates: []float64{13.41, 52.523},
			UpdatedAt:   time.Now().Add(-locationAge),
		},
		NotificationPreferences: models.DefaultNotificationPreferences(),
	})
}

// ================= tests =================

func TestCreateEmergency(t *testing.T) {
	f := newEmergencyFixture(t)
	f.users.nearby = []models.User{
		availableUser(f.users, "Fresh", 5*time.Minute),
		availableUser(f.users, "Stale", 2*time.Hour),
	}

	result, err := f.service.CreateEmergency(context.Background(), f.creator.ID.Hex(), models.CreateEmergencyRequest{
		Category:    models.EmergencyCategoryFire,
		Description: "Smoke from the third floor",
		Longitude:   13.405,
		Latitude:    52.52,
	})
	require.NoError(t, err)

	assert.Equal(t, models.EmergencyStatusActive, result.Emergency.Status)
	assert.Equal(t, "Alexanderplatz, Berlin", result.Emergency.Location.Address)
	assert.Equal(t, []float64{13.405, 52.52}, result.Emergency.Location.Coordinates)

	// The stale candidate is filtered out before the fan-out.
	assert.Equal(t, 1, result.NotifiedUsers)
	require.Len(t, f.dispatcher.calls, 1)
	assert.Equal(t, "Fresh", f.dispatcher.calls[0].recipients[0].Name)
	assert.Equal(t, models.NotificationEmergencyAlert, f.dispatcher.calls[0].template.Type)

	// Geo candidates get the full alert, everyone else a lightweight announcement.
	fresh := f.dispatcher.calls[0].recipients[0]
	assert.Equal(t, []string{"user:" + fresh.ID.Hex()}, f.broadcaster.targets(models.WSEventNewEmergency))
	assert.Equal(t, []string{"all"}, f.broadcaster.targets(models.WSEventEmergencyCreated))
}

func TestCreateEmergencyGeocodeFallback(t *testing.T) {
	f := newEmergencyFixture(t)
	f.geocoder.address = ""
	f.geocoder.err = errors.New("geocoder down")

	emergency := f.createEmergency(t)
	assert.Equal(t, "52.52000, 13.40500", emergency.Location.Address)
}

func TestCreateEmergencyRejectsOutOfRangeCoordinates(t *testing.T) {
	f := newEmergencyFixture(t)
	ctx := context.Background()

	cases := []struct {
		name     string
		lng, lat float64
	}{
		{"longitude too low", -180.5, 52.52},
		{"longitude too high", 181, 52.52},
		{"latitude too low", 13.405, -90.01},
		{"latitude too high", 13.405, 91},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.service.CreateEmergency(ctx, f.creator.ID.Hex(), models.CreateEmergencyRequest{
				Category:    models.EmergencyCategoryFire,
				Description: "Smoke from the third floor",
				Longitude:   tc.lng,
				Latitude:    tc.lat,
			})
			assert.True(t, utils.IsValidationError(err))
		})
	}
}

func TestCreateEmergencyRejectsBadCategory(t *testing.T) {
	f := newEmergencyFixture(t)

	_, err := f.service.CreateEmergency(context.Background(), f.creator.ID.Hex(), models.CreateEmergencyRequest{
		Category:    "earthquake-maybe",
		Description: "Shaking",
	})
	assert.True(t, utils.IsValidationError(err))
}

func TestRespondLifecycle(t *testing.T) {
	f := newEmergencyFixture(t)
	emergency := f.createEmergency(t)
	ctx := context.Background()
	responderID := f.responder.ID.Hex()

	// First respond: joins directly in en_route, emergency flips to responding.
	updated, err := f.service.Respond(ctx, emergency.ID.Hex(), responderID)
	require.NoError(t, err)
	assert.Equal(t, models.EmergencyStatusResponding, updated.Status)
	require.Len(t, updated.Responders, 1)
	assert.Equal(t, models.ResponderStatusEnRoute, updated.Responders[0].Status)
	assert.False(t, updated.Responders[0].RespondedAt.IsZero())

	// Second respond advances to on_scene.
	updated, err = f.service.Respond(ctx, emergency.ID.Hex(), responderID)
	require.NoError(t, err)
	assert.Equal(t, models.ResponderStatusOnScene, updated.Responders[0].Status)
	assert.False(t, updated.Responders[0].ArrivedAt.IsZero())

	// Third respond completes.
	updated, err = f.service.Respond(ctx, emergency.ID.Hex(), responderID)
	require.NoError(t, err)
	assert.Equal(t, models.ResponderStatusCompleted, updated.Responders[0].Status)

	// Responding after completion is a no-op, not an error.
	updated, err = f.service.Respond(ctx, emergency.ID.Hex(), responderID)
	require.NoError(t, err)
	require.Len(t, updated.Responders, 1)
	assert.Equal(t, models.ResponderStatusCompleted, updated.Responders[0].Status)
}

// Anyone authenticated may respond, including the reporter themselves.
func TestRespondAllowsCreator(t *testing.T) {
	f := newEmergencyFixture(t)
	emergency := f.createEmergency(t)

	updated, err := f.service.Respond(context.Background(), emergency.ID.Hex(), f.creator.ID.Hex())
	require.NoError(t, err)
	require.Len(t, updated.Responders, 1)
	assert.Equal(t, f.creator.ID, updated.Responders[0].UserID)
	assert.Equal(t, models.ResponderStatusEnRoute, updated.Responders[0].Status)
}

func TestRespondRejectsTerminalEmergency(t *testing.T) {
	f := newEmergencyFixture(t)
	emergency := f.createEmergency(t)
	ctx := context.Background()

	_, err := f.service.UpdateStatus(ctx, emergency.ID.Hex(), f.creator.ID.Hex(), models.UpdateEmergencyStatusRequest{
		Status: models.EmergencyStatusCancelled,
	})
	require.NoError(t, err)

	_, err = f.service.Respond(ctx, emergency.ID.Hex(), f.responder.ID.Hex())
	assert.True(t, utils.IsInvalidStateError(err))
}

func TestRespondConcurrentSameUser(t *testing.T) {
	f := newEmergencyFixture(t)
	emergency := f.createEmergency(t)
	ctx := context.Background()
	responderID := f.responder.ID.Hex()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.service.Respond(ctx, emergency.ID.Hex(), responderID)
		}()
	}
	wg.Wait()

	stored, err := f.emergencies.GetByID(ctx, emergency.ID.Hex())
	require.NoError(t, err)
	assert.Len(t, stored.Responders, 1, "concurrent responds must never duplicate an entry")

	// The per-emergency lock entry is released with its last holder.
	f.service.locksGuard.Lock()
	defer f.service.locksGuard.Unlock()
	assert.Empty(t, f.service.locks)
}

func TestRespondNotifiesCreator(t *testing.T) {
	f := newEmergencyFixture(t)
	emergency := f.createEmergency(t)

	_, err := f.service.Respond(context.Background(), emergency.ID.Hex(), f.responder.ID.Hex())
	require.NoError(t, err)

	require.Len(t, f.dispatcher.calls, 1)
	call := f.dispatcher.calls[0]
	assert.Equal(t, models.NotificationResponseUpdate, call.template.Type)
	require.Len(t, call.recipients, 1)
	assert.Equal(t, f.creator.ID, call.recipients[0].ID)
}

func TestUpdateStatusAuthorization(t *testing.T) {
	f := newEmergencyFixture(t)
	emergency := f.createEmergency(t)
	ctx := context.Background()

	// A user who never responded cannot touch the status.
	_, err := f.service.UpdateStatus(ctx, emergency.ID.Hex(), f.responder.ID.Hex(), models.UpdateEmergencyStatusRequest{
		Status: models.EmergencyStatusResolved,
	})
	assert.True(t, utils.IsForbiddenError(err))

	// Once en route they may resolve it.
	_, err = f.service.Respond(ctx, emergency.ID.Hex(), f.responder.ID.Hex())
	require.NoError(t, err)

	updated, err := f.service.UpdateStatus(ctx, emergency.ID.Hex(), f.responder.ID.Hex(), models.UpdateEmergencyStatusRequest{
		Status: models.EmergencyStatusResolved,
	})
	require.NoError(t, err)
	assert.Equal(t, models.EmergencyStatusResolved, updated.Status)
}

func TestUpdateStatusTerminalIsFinal(t *testing.T) {
	f := newEmergencyFixture(t)
	emergency := f.createEmergency(t)
	ctx := context.Background()
	creatorID := f.creator.ID.Hex()

	_, err := f.service.UpdateStatus(ctx, emergency.ID.Hex(), creatorID, models.UpdateEmergencyStatusRequest{
		Status: models.EmergencyStatusResolved,
	})
	require.NoError(t, err)

	_, err = f.service.UpdateStatus(ctx, emergency.ID.Hex(), creatorID, models.UpdateEmergencyStatusRequest{
		Status: models.EmergencyStatusActive,
	})
	assert.True(t, utils.IsInvalidStateError(err))
}

func TestResolveBroadcastsAndRequestsFeedback(t *testing.T) {
	f := newEmergencyFixture(t)
	emergency := f.createEmergency(t)
	ctx := context.Background()

	_, err := f.service.Respond(ctx, emergency.ID.Hex(), f.responder.ID.Hex())
	require.NoError(t, err)

	resolved, err := f.service.UpdateStatus(ctx, emergency.ID.Hex(), f.creator.ID.Hex(), models.UpdateEmergencyStatusRequest{
		Status: models.EmergencyStatusResolved,
	})
	require.NoError(t, err)
	assert.False(t, resolved.ResolvedAt.IsZero())

	assert.Contains(t, f.broadcaster.eventNames(), models.WSEventEmergencyResolved)

	var feedbackCall *dispatchCall
	for i := range f.dispatcher.calls {
		if f.dispatcher.calls[i].template.Type == models.NotificationFeedbackRequest {
			feedbackCall = &f.dispatcher.calls[i]
		}
	}
	require.NotNil(t, feedbackCall, "resolution must request feedback from responders")
	assert.Equal(t, f.responder.ID, feedbackCall.recipients[0].ID)
}

func TestSubmitFeedback(t *testing.T) {
	f := newEmergencyFixture(t)
	emergency := f.createEmergency(t)
	ctx := context.Background()
	responderID := f.responder.ID.Hex()

	_, err := f.service.Respond(ctx, emergency.ID.Hex(), responderID)
	require.NoError(t, err)

	// Too early: not resolved yet.
	err = f.service.SubmitFeedback(ctx, emergency.ID.Hex(), responderID, models.ResponderFeedbackRequest{Rating: 5})
	assert.True(t, utils.IsInvalidStateError(err))

	_, err = f.service.UpdateStatus(ctx, emergency.ID.Hex(), f.creator.ID.Hex(), models.UpdateEmergencyStatusRequest{
		Status: models.EmergencyStatusResolved,
	})
	require.NoError(t, err)

	// Non-responders cannot rate.
	stranger := f.users.add(models.User{Name: "Stranger"})
	err = f.service.SubmitFeedback(ctx, emergency.ID.Hex(), stranger.ID.Hex(), models.ResponderFeedbackRequest{Rating: 4})
	assert.True(t, utils.IsForbiddenError(err))

	err = f.service.SubmitFeedback(ctx, emergency.ID.Hex(), responderID, models.ResponderFeedbackRequest{Rating: 5, Comment: "Quick arrival"})
	require.NoError(t, err)

	// Write-once.
	err = f.service.SubmitFeedback(ctx, emergency.ID.Hex(), responderID, models.ResponderFeedbackRequest{Rating: 1})
	assert.True(t, utils.IsInvalidStateError(err))

	stored, err := f.emergencies.GetByID(ctx, emergency.ID.Hex())
	require.NoError(t, err)
	require.NotNil(t, stored.Responders[0].Feedback)
	assert.Equal(t, 5, stored.Responders[0].Feedback.Rating)
}

func TestCanJoinEmergencyRoom(t *testing.T) {
	f := newEmergencyFixture(t)
	emergency := f.createEmergency(t)
	ctx := context.Background()

	assert.NoError(t, f.service.CanJoinEmergencyRoom(ctx, emergency.ID.Hex(), f.creator.ID.Hex()))

	err := f.service.CanJoinEmergencyRoom(ctx, emergency.ID.Hex(), f.responder.ID.Hex())
	assert.True(t, utils.IsForbiddenError(err))

	_, err = f.service.Respond(ctx, emergency.ID.Hex(), f.responder.ID.Hex())
	require.NoError(t, err)
	assert.NoError(t, f.service.CanJoinEmergencyRoom(ctx, emergency.ID.Hex(), f.responder.ID.Hex()))
}

func TestFreshCandidates(t *testing.T) {
	now := time.Now()
	users := []models.User{
		{Name: "NoLocation"},
		{Name: "Fresh", CurrentLocation: &models.UserLocation{UpdatedAt: now.Add(-10 * time.Minute)}},
		{Name: "Stale", CurrentLocation: &models.UserLocation{UpdatedAt: now.Add(-45 * time.Minute)}},
	}

	fresh := freshCandidates(users, now, 30*time.Minute)
	require.Len(t, fresh, 1)
	assert.Equal(t, "Fresh", fresh[0].Name)
}
