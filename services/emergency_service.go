package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"resqlink/models"
	"resqlink/repositories"
	"resqlink/utils"
)

// EmergencyStore is the persistence surface the emergency service needs.
type EmergencyStore interface {
	Create(ctx context.Context, emergency *models.Emergency) error
	GetByID(ctx context.Context, id string) (*models.Emergency, error)
	ReplaceWithVersion(ctx context.Context, emergency *models.Emergency) error
	ListActive(ctx context.Context) ([]models.Emergency, error)
	ListNearby(ctx context.Context, lng, lat, maxDistance float64) ([]models.Emergency, error)
	TouchActivity(ctx context.Context, id primitive.ObjectID, at time.Time) error
}

// UserStore is the user persistence surface shared by several services.
type UserStore interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	FindNearbyAvailable(ctx context.Context, lng, lat, radiusMeters float64, excludeID primitive.ObjectID) ([]models.User, error)
	RemovePushTokens(ctx context.Context, userID primitive.ObjectID, tokens []string) error
	AddPushToken(ctx context.Context, userID primitive.ObjectID, token models.PushToken) error
	SetLocation(ctx context.Context, userID primitive.ObjectID, lng, lat float64, at time.Time) error
	SetAvailability(ctx context.Context, userID primitive.ObjectID, available bool) error
	UpdatePreferences(ctx context.Context, userID primitive.ObjectID, prefs models.NotificationPreferences) error
}

// EmergencyConfig carries the tunables for candidate search.
type EmergencyConfig struct {
	SearchRadiusMeters float64
	CandidateFreshness time.Duration
}

const casRetryLimit = 3

// EmergencyService owns the emergency lifecycle: creation with nearby
// candidate alerting, responder state transitions, status changes and
// post-resolution feedback. Concurrent mutations of one emergency are
// serialized by a per-document mutex backed by a version check in the
// store.
type EmergencyService struct {
	emergencies EmergencyStore
	users       UserStore
	dispatcher  NotificationDispatcher
	broadcaster Broadcaster
	geocoder    Geocoder
	validator   *utils.ValidationService
	config      EmergencyConfig

	locks      map[string]*emergencyLock
	locksGuard sync.Mutex
}

func NewEmergencyService(
	emergencies EmergencyStore,
	users UserStore,
	dispatcher NotificationDispatcher,
	broadcaster Broadcaster,
	geocoder Geocoder,
	validator *utils.ValidationService,
	config EmergencyConfig,
) *EmergencyService {
	if config.SearchRadiusMeters <= 0 {
		config.SearchRadiusMeters = 5000
	}
	if config.CandidateFreshness <= 0 {
		config.CandidateFreshness = 30 * time.Minute
	}
	return &EmergencyService{
		emergencies: emergencies,
		users:       users,
		dispatcher:  dispatcher,
		broadcaster: broadcaster,
		geocoder:    geocoder,
		validator:   validator,
		config:      config,
		locks:       make(map[string]*emergencyLock),
	}
}

// CreateEmergency records a new incident, alerts nearby available users
// and announces it on the socket layer. Alerting is best effort: a
// candidate search failure downgrades to zero notified users rather
// than failing the creation.
func (es *EmergencyService) CreateEmergency(ctx context.Context, userID string, req models.CreateEmergencyRequest) (*models.CreateEmergencyResponse, error) {
	if err := es.validator.ValidateRequest(req); err != nil {
		return nil, err
	}
	creatorID, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return nil, utils.NewValidationError("Invalid user ID")
	}
	creator, err := es.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	address := es.resolveAddress(ctx, req.Latitude, req.Longitude)

	emergency := &models.Emergency{
		CreatedBy:   creatorID,
		Category:    req.Category,
		Description: req.Description,
		Location:    models.NewEmergencyLocation(req.Longitude, req.Latitude, address),
		Status:      models.EmergencyStatusActive,
	}
	if err := es.emergencies.Create(ctx, emergency); err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"emergencyId": emergency.ID.Hex(),
		"category":    emergency.Category,
		"createdBy":   userID,
	}).Info("Emergency created")

	candidates := es.findCandidates(ctx, emergency, creatorID)
	if len(candidates) > 0 {
		es.dispatcher.Dispatch(ctx, candidates, NotificationTemplate{
			EmergencyID: emergency.ID,
			Type:        models.NotificationEmergencyAlert,
			Title:       emergencyAlertTitle(emergency.Category),
			Body:        fmt.Sprintf("%s reported near %s: %s", creator.Name, emergency.Location.Address, emergency.Description),
			Priority:    models.NotificationPriorityUrgent,
			Data: map[string]string{
				"emergencyId": emergency.ID.Hex(),
				"category":    emergency.Category,
			},
			ActionURL: "/emergencies/" + emergency.ID.Hex(),
		})
	}

	for _, candidate := range candidates {
		es.broadcaster.EmitToUser(candidate.ID.Hex(), models.WSEventNewEmergency, models.WSNewEmergencyPayload{Emergency: emergency})
	}
	es.broadcaster.EmitToAll(models.WSEventEmergencyCreated, models.WSEmergencyCreatedPayload{
		EmergencyID: emergency.ID.Hex(),
		Category:    emergency.Category,
		CreatedBy:   userID,
		Location:    emergency.Location,
	})

	return &models.CreateEmergencyResponse{
		Emergency:     emergency,
		NotifiedUsers: len(candidates),
	}, nil
}

// Respond registers userID as a responder, or advances their status by
// one step if they already responded. A first responder flips the
// emergency from active to responding. Responders enter directly in
// en_route: accepting the alert and setting out are the same act.
func (es *EmergencyService) Respond(ctx context.Context, emergencyID, userID string) (*models.Emergency, error) {
	responderID, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return nil, utils.NewValidationError("Invalid user ID")
	}
	responder, err := es.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	var emergency *models.Emergency
	var event string
	var newStatus string

	err = es.withEmergencyLock(emergencyID, func() error {
		return es.retryOnConflict(func() error {
			var err error
			emergency, err = es.emergencies.GetByID(ctx, emergencyID)
			if err != nil {
				return err
			}
			if models.IsTerminalStatus(emergency.Status) {
				return utils.NewInvalidStateError(fmt.Sprintf("Emergency is %s and no longer accepts responses", emergency.Status))
			}
			now := time.Now()
			if existing := emergency.FindResponder(responderID); existing != nil {
				advanced, err := advanceResponder(existing, now)
				if err != nil {
					return err
				}
				event = models.WSEventResponderUpdated
				newStatus = advanced
			} else {
				emergency.Responders = append(emergency.Responders, models.Responder{
					UserID:      responderID,
					Status:      models.ResponderStatusEnRoute,
					RespondedAt: now,
				})
				event = models.WSEventResponderAdded
				newStatus = models.ResponderStatusEnRoute
				if emergency.Status == models.EmergencyStatusActive {
					emergency.Status = models.EmergencyStatusResponding
				}
			}
			emergency.LastActivityAt = now
			return es.emergencies.ReplaceWithVersion(ctx, emergency)
		})
	})
	if err != nil {
		return nil, err
	}

	payload := models.WSResponderPayload{
		EmergencyID: emergencyID,
		UserID:      userID,
		Status:      newStatus,
	}
	es.broadcaster.EmitToRoom(emergencyID, event, payload)
	es.broadcaster.EmitToUser(emergency.CreatedBy.Hex(), event, payload)

	if creator, err := es.users.GetByID(ctx, emergency.CreatedBy.Hex()); err == nil {
		es.dispatcher.Dispatch(ctx, []models.User{*creator}, NotificationTemplate{
			EmergencyID: emergency.ID,
			Type:        models.NotificationResponseUpdate,
			Title:       "Responder update",
			Body:        fmt.Sprintf("%s is %s", responder.Name, responderStatusPhrase(newStatus)),
			Priority:    models.NotificationPriorityHigh,
			Data: map[string]string{
				"emergencyId": emergencyID,
				"responderId": userID,
				"status":      newStatus,
			},
		})
	}

	return emergency, nil
}

// UpdateStatus moves the emergency to a new lifecycle status. The
// creator and actively engaged responders may change it; terminal
// statuses reject everything.
func (es *EmergencyService) UpdateStatus(ctx context.Context, emergencyID, userID string, req models.UpdateEmergencyStatusRequest) (*models.Emergency, error) {
	if err := es.validator.ValidateRequest(req); err != nil {
		return nil, err
	}
	callerID, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return nil, utils.NewValidationError("Invalid user ID")
	}

	var emergency *models.Emergency
	err = es.withEmergencyLock(emergencyID, func() error {
		return es.retryOnConflict(func() error {
			var err error
			emergency, err = es.emergencies.GetByID(ctx, emergencyID)
			if err != nil {
				return err
			}
			if !canManageStatus(emergency, callerID) {
				return utils.NewForbiddenError("Only the reporter or an engaged responder can change the emergency status")
			}
			if models.IsTerminalStatus(emergency.Status) {
				return utils.NewInvalidStateError(fmt.Sprintf("Emergency is already %s", emergency.Status))
			}
			if !validStatusTransition(emergency.Status, req.Status) {
				return utils.NewInvalidStateError(fmt.Sprintf("Cannot move emergency from %s to %s", emergency.Status, req.Status))
			}

			now := time.Now()
			emergency.Status = req.Status
			emergency.LastActivityAt = now
			if models.IsTerminalStatus(req.Status) {
				emergency.ResolvedAt = now
			}
			return es.emergencies.ReplaceWithVersion(ctx, emergency)
		})
	})
	if err != nil {
		return nil, err
	}

	es.broadcaster.EmitToRoom(emergencyID, models.WSEventEmergencyStatusUpdated, models.WSStatusUpdatedPayload{
		EmergencyID: emergencyID,
		Status:      emergency.Status,
		UpdatedBy:   userID,
	})
	if emergency.Status == models.EmergencyStatusResolved {
		es.broadcaster.EmitToAll(models.WSEventEmergencyResolved, models.WSEmergencyResolvedPayload{EmergencyID: emergencyID})
		es.requestFeedback(ctx, emergency)
	}

	logrus.WithFields(logrus.Fields{
		"emergencyId": emergencyID,
		"status":      emergency.Status,
	}).Info("Emergency status updated")
	return emergency, nil
}

// GetEmergency returns one emergency by ID.
func (es *EmergencyService) GetEmergency(ctx context.Context, emergencyID string) (*models.Emergency, error) {
	return es.emergencies.GetByID(ctx, emergencyID)
}

// GetActiveEmergencies lists emergencies still in progress, newest first.
func (es *EmergencyService) GetActiveEmergencies(ctx context.Context) ([]models.Emergency, error) {
	return es.emergencies.ListActive(ctx)
}

// GetNearbyEmergencies lists in-progress emergencies around a point.
func (es *EmergencyService) GetNearbyEmergencies(ctx context.Context, req models.NearbyEmergenciesRequest) ([]models.Emergency, error) {
	if err := es.validator.ValidateRequest(req); err != nil {
		return nil, err
	}
	maxDistance := req.MaxDistance
	if maxDistance <= 0 {
		maxDistance = es.config.SearchRadiusMeters
	}
	return es.emergencies.ListNearby(ctx, req.Longitude, req.Latitude, maxDistance)
}

// SubmitFeedback stores a responder's rating after the emergency is
// resolved. Feedback is write-once per responder.
func (es *EmergencyService) SubmitFeedback(ctx context.Context, emergencyID, userID string, req models.ResponderFeedbackRequest) error {
	if err := es.validator.ValidateRequest(req); err != nil {
		return err
	}
	responderID, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return utils.NewValidationError("Invalid user ID")
	}

	return es.withEmergencyLock(emergencyID, func() error {
		return es.retryOnConflict(func() error {
			emergency, err := es.emergencies.GetByID(ctx, emergencyID)
			if err != nil {
				return err
			}
			if emergency.Status != models.EmergencyStatusResolved {
				return utils.NewInvalidStateError("Feedback is only accepted after the emergency is resolved")
			}
			responder := emergency.FindResponder(responderID)
			if responder == nil {
				return utils.NewForbiddenError("Only responders can leave feedback")
			}
			if responder.Feedback != nil {
				return utils.NewInvalidStateError("Feedback was already submitted")
			}
			responder.Feedback = &models.ResponderFeedback{
				Rating:  req.Rating,
				Comment: req.Comment,
			}
			return es.emergencies.ReplaceWithVersion(ctx, emergency)
		})
	})
}

// CanJoinEmergencyRoom authorizes room membership: the reporter and
// listed responders only.
func (es *EmergencyService) CanJoinEmergencyRoom(ctx context.Context, emergencyID, userID string) error {
	userOID, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return utils.NewValidationError("Invalid user ID")
	}
	emergency, err := es.emergencies.GetByID(ctx, emergencyID)
	if err != nil {
		return err
	}
	if !emergency.IsParticipant(userOID) {
		return utils.NewForbiddenError("You are not a participant in this emergency")
	}
	return nil
}

func (es *EmergencyService) resolveAddress(ctx context.Context, lat, lng float64) string {
	address, err := es.geocoder.ReverseGeocode(ctx, lat, lng)
	if err != nil {
		logrus.WithError(err).Debug("Reverse geocoding failed, using raw coordinates")
		return utils.FormatCoordinates(lat, lng)
	}
	return address
}

// findCandidates runs the geo query and then drops candidates whose
// last location report is too old to trust.
func (es *EmergencyService) findCandidates(ctx context.Context, emergency *models.Emergency, creatorID primitive.ObjectID) []models.User {
	nearby, err := es.users.FindNearbyAvailable(
		ctx,
		emergency.Location.Longitude(),
		emergency.Location.Latitude(),
		es.config.SearchRadiusMeters,
		creatorID,
	)
	if err != nil {
		logrus.WithError(err).WithField("emergencyId", emergency.ID.Hex()).
			Warn("Nearby candidate search failed")
		return nil
	}
	return freshCandidates(nearby, time.Now(), es.config.CandidateFreshness)
}

func freshCandidates(users []models.User, now time.Time, maxAge time.Duration) []models.User {
	fresh := make([]models.User, 0, len(users))
	for _, user := range users {
		if user.CurrentLocation == nil {
			continue
		}
		if now.Sub(user.CurrentLocation.UpdatedAt) > maxAge {
			continue
		}
		fresh = append(fresh, user)
	}
	return fresh
}

func (es *EmergencyService) requestFeedback(ctx context.Context, emergency *models.Emergency) {
	recipients := make([]models.User, 0, len(emergency.Responders))
	for _, responder := range emergency.Responders {
		user, err := es.users.GetByID(ctx, responder.UserID.Hex())
		if err != nil {
			continue
		}
		recipients = append(recipients, *user)
	}
	if len(recipients) == 0 {
		return
	}
	es.dispatcher.Dispatch(ctx, recipients, NotificationTemplate{
		EmergencyID: emergency.ID,
		Type:        models.NotificationFeedbackRequest,
		Title:       "Emergency resolved",
		Body:        "Thanks for responding. How did it go?",
		Priority:    models.NotificationPriorityLow,
		Data: map[string]string{
			"emergencyId": emergency.ID.Hex(),
		},
		ActionURL: "/emergencies/" + emergency.ID.Hex() + "/feedback",
	})
}

// advanceResponder moves a responder one step along
// en_route -> on_scene -> completed. Responding again after completion
// is a no-op rather than an error.
func advanceResponder(responder *models.Responder, now time.Time) (string, error) {
	switch responder.Status {
	case models.ResponderStatusNotified:
		responder.Status = models.ResponderStatusEnRoute
		responder.RespondedAt = now
	case models.ResponderStatusEnRoute:
		responder.Status = models.ResponderStatusOnScene
		responder.ArrivedAt = now
	case models.ResponderStatusOnScene:
		responder.Status = models.ResponderStatusCompleted
		responder.CompletedAt = now
	case models.ResponderStatusCompleted:
		// already done
	default:
		return "", utils.NewInvalidStateError("Unknown responder status: " + responder.Status)
	}
	return responder.Status, nil
}

func validStatusTransition(from, to string) bool {
	if !models.IsValidEmergencyStatus(to) {
		return false
	}
	switch from {
	case models.EmergencyStatusActive:
		return to == models.EmergencyStatusResponding || models.IsTerminalStatus(to)
	case models.EmergencyStatusResponding:
		return models.IsTerminalStatus(to)
	}
	return false
}

// canManageStatus allows the creator and responders still engaged on
// the ground (en route or on scene) to change the lifecycle status.
func canManageStatus(emergency *models.Emergency, callerID primitive.ObjectID) bool {
	if emergency.CreatedBy == callerID {
		return true
	}
	responder := emergency.FindResponder(callerID)
	if responder == nil {
		return false
	}
	return responder.Status == models.ResponderStatusEnRoute || responder.Status == models.ResponderStatusOnScene
}

func emergencyAlertTitle(category string) string {
	switch category {
	case models.EmergencyCategoryFire:
		return "Fire emergency nearby"
	case models.EmergencyCategoryMedical:
		return "Medical emergency nearby"
	case models.EmergencyCategorySecurity:
		return "Security emergency nearby"
	case models.EmergencyCategoryNaturalDisaster:
		return "Disaster alert nearby"
	default:
		return "Emergency nearby"
	}
}

func responderStatusPhrase(status string) string {
	switch status {
	case models.ResponderStatusEnRoute:
		return "on the way"
	case models.ResponderStatusOnScene:
		return "on the scene"
	case models.ResponderStatusCompleted:
		return "done helping"
	default:
		return status
	}
}

// withEmergencyLock serializes mutations of one emergency within this
// process. The version check in the store covers other processes.
// emergencyLock is a map entry reference-counted so the map shrinks
// back once the last caller releases it.
type emergencyLock struct {
	mu   sync.Mutex
	refs int
}

func (es *EmergencyService) withEmergencyLock(emergencyID string, fn func() error) error {
	es.locksGuard.Lock()
	entry, ok := es.locks[emergencyID]
	if !ok {
		entry = &emergencyLock{}
		es.locks[emergencyID] = entry
	}
	entry.refs++
	es.locksGuard.Unlock()

	entry.mu.Lock()
	err := fn()
	entry.mu.Unlock()

	es.locksGuard.Lock()
	entry.refs--
	if entry.refs == 0 {
		delete(es.locks, emergencyID)
	}
	es.locksGuard.Unlock()
	return err
}

func (es *EmergencyService) retryOnConflict(fn func() error) error {
	var err error
	for attempt := 0; attempt < casRetryLimit; attempt++ {
		err = fn()
		if !errors.Is(err, repositories.ErrVersionConflict) {
			return err
		}
	}
	return utils.NewInternalError("Emergency update kept conflicting, try again")
}
