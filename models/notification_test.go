package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func newTestID(b byte) primitive.ObjectID {
	var id primitive.ObjectID
	id[11] = b
	return id
}

func TestAllowsChannelMapping(t *testing.T) {
	prefs := NotificationPreferences{EmergencyAlerts: true}

	assert.True(t, prefs.AllowsChannel(NotificationEmergencyCreated))
	assert.True(t, prefs.AllowsChannel(NotificationEmergencyAlert))
	assert.False(t, prefs.AllowsChannel(NotificationResponseUpdate))
	assert.False(t, prefs.AllowsChannel(NotificationSystem))

	// Unknown types deliver: the toggles are opt-out, not opt-in.
	assert.True(t, prefs.AllowsChannel("something_new"))
}

func TestAllowsPushNeedsBothToggles(t *testing.T) {
	prefs := NotificationPreferences{Push: true}
	assert.False(t, prefs.AllowsPush(NotificationEmergencyCreated))

	prefs.EmergencyAlerts = true
	assert.True(t, prefs.AllowsPush(NotificationEmergencyCreated))

	prefs.Push = false
	assert.False(t, prefs.AllowsPush(NotificationEmergencyCreated))
}

func TestEmergencyParticipants(t *testing.T) {
	emergency := &Emergency{}
	creator := newTestID(1)
	responder := newTestID(2)
	stranger := newTestID(3)

	emergency.CreatedBy = creator
	emergency.Responders = []Responder{{UserID: responder, Status: ResponderStatusEnRoute}}

	assert.True(t, emergency.IsParticipant(creator))
	assert.True(t, emergency.IsParticipant(responder))
	assert.False(t, emergency.IsParticipant(stranger))

	assert.NotNil(t, emergency.FindResponder(responder))
	assert.Nil(t, emergency.FindResponder(stranger))
}

func TestIsTerminalStatus(t *testing.T) {
	assert.True(t, IsTerminalStatus(EmergencyStatusResolved))
	assert.True(t, IsTerminalStatus(EmergencyStatusCancelled))
	assert.False(t, IsTerminalStatus(EmergencyStatusActive))
	assert.False(t, IsTerminalStatus(EmergencyStatusResponding))
}
