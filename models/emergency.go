package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Emergency is the aggregate root for a reported incident. All mutations go
// through services.EmergencyService; the Version field backs the per-document
// compare-and-swap used to serialize concurrent responder updates.
type Emergency struct {
	ID          primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	CreatedBy   primitive.ObjectID `json:"createdBy" bson:"createdBy"`
	Category    string             `json:"category" bson:"category"`
	Description string             `json:"description" bson:"description"`
	Location    EmergencyLocation  `json:"location" bson:"location"`
	Status      string             `json:"status" bson:"status"`
	Responders  []Responder        `json:"responders" bson:"responders"`

	Version        int64     `json:"-" bson:"version"`
	LastActivityAt time.Time `json:"lastActivityAt,omitempty" bson:"lastActivityAt,omitempty"`
	CreatedAt      time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt" bson:"updatedAt"`
	ResolvedAt     time.Time `json:"resolvedAt,omitempty" bson:"resolvedAt,omitempty"`
}

// EmergencyLocation is a GeoJSON point plus the best-effort reverse-geocoded
// address. Coordinates are [longitude, latitude].
type EmergencyLocation struct {
	Type        string    `json:"type" bson:"type"`
	Coordinates []float64 `json:"coordinates" bson:"coordinates"`
	Address     string    `json:"address,omitempty" bson:"address,omitempty"`
}

func NewEmergencyLocation(lng, lat float64, address string) EmergencyLocation {
	return EmergencyLocation{
		Type:        "Point",
		Coordinates: []float64{lng, lat},
		Address:     address,
	}
}

func (l EmergencyLocation) Longitude() float64 {
	if len(l.Coordinates) == 2 {
		return l.Coordinates[0]
	}
	return 0
}

func (l EmergencyLocation) Latitude() float64 {
	if len(l.Coordinates) == 2 {
		return l.Coordinates[1]
	}
	return 0
}

// Responder is embedded in exactly one Emergency; at most one entry per user.
type Responder struct {
	UserID      primitive.ObjectID `json:"userId" bson:"userId"`
	Status      string             `json:"status" bson:"status"`
	NotifiedAt  time.Time          `json:"notifiedAt,omitempty" bson:"notifiedAt,omitempty"`
	RespondedAt time.Time          `json:"respondedAt,omitempty" bson:"respondedAt,omitempty"`
	ArrivedAt   time.Time          `json:"arrivedAt,omitempty" bson:"arrivedAt,omitempty"`
	CompletedAt time.Time          `json:"completedAt,omitempty" bson:"completedAt,omitempty"`
	Feedback    *ResponderFeedback `json:"feedback,omitempty" bson:"feedback,omitempty"`
}

type ResponderFeedback struct {
	Rating  int    `json:"rating" bson:"rating"`
	Comment string `json:"comment,omitempty" bson:"comment,omitempty"`
}

// Emergency category constants
const (
	EmergencyCategoryFire            = "fire"
	EmergencyCategoryMedical         = "medical"
	EmergencyCategorySecurity        = "security"
	EmergencyCategoryNaturalDisaster = "natural_disaster"
	EmergencyCategoryOther           = "other"
)

// Emergency status constants. Resolved and cancelled are terminal.
const (
	EmergencyStatusActive     = "active"
	EmergencyStatusResponding = "responding"
	EmergencyStatusResolved   = "resolved"
	EmergencyStatusCancelled  = "cancelled"
)

// Responder status constants, in transition order.
const (
	ResponderStatusNotified  = "notified"
	ResponderStatusEnRoute   = "en_route"
	ResponderStatusOnScene   = "on_scene"
	ResponderStatusCompleted = "completed"
)

// IsTerminalStatus reports whether an emergency status permits no further
// responder or status transitions.
func IsTerminalStatus(status string) bool {
	return status == EmergencyStatusResolved || status == EmergencyStatusCancelled
}

// IsValidEmergencyStatus reports whether status is a member of the closed enum.
func IsValidEmergencyStatus(status string) bool {
	switch status {
	case EmergencyStatusActive, EmergencyStatusResponding, EmergencyStatusResolved, EmergencyStatusCancelled:
		return true
	}
	return false
}

// FindResponder returns a pointer into the responder slice for userID, or nil.
func (e *Emergency) FindResponder(userID primitive.ObjectID) *Responder {
	for i := range e.Responders {
		if e.Responders[i].UserID == userID {
			return &e.Responders[i]
		}
	}
	return nil
}

// IsParticipant reports whether userID is the creator or a listed responder.
// This is the authorization rule shared by the emergency room and the chat
// subsystem.
func (e *Emergency) IsParticipant(userID primitive.ObjectID) bool {
	if e.CreatedBy == userID {
		return true
	}
	return e.FindResponder(userID) != nil
}

// =================== REQUEST/RESPONSE MODELS ===================

type CreateEmergencyRequest struct {
	Category    string  `json:"category" validate:"required,emergency_category"`
	Description string  `json:"description" validate:"required"`
	Longitude   float64 `json:"longitude" validate:"min=-180,max=180"`
	Latitude    float64 `json:"latitude" validate:"min=-90,max=90"`
}

type UpdateEmergencyStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=active responding resolved cancelled"`
}

type ResponderFeedbackRequest struct {
	Rating  int    `json:"rating" validate:"required,min=1,max=5"`
	Comment string `json:"comment,omitempty"`
}

type NearbyEmergenciesRequest struct {
	Longitude   float64 `form:"longitude" validate:"min=-180,max=180"`
	Latitude    float64 `form:"latitude" validate:"min=-90,max=90"`
	MaxDistance float64 `form:"maxDistance"`
}

// CreateEmergencyResponse carries the created document plus how many nearby
// candidates were alerted.
type CreateEmergencyResponse struct {
	Emergency     *Emergency `json:"emergency"`
	NotifiedUsers int        `json:"notifiedUsers"`
}
