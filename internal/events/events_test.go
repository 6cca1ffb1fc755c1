package events

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rxledger/internal/eventstore"
	"rxledger/internal/eventstore/codec"
)

func TestNewUserLoggedIn_UserIsAggregateAndActor(t *testing.T) {
	userID := uuid.New()

	env := NewUserLoggedIn(userID, UserLoggedInPayload{Username: "jdoe"})

	assert.Equal(t, TypeUserLoggedIn, env.EventType)
	assert.Equal(t, AggregateUser, env.AggregateType)
	assert.Equal(t, userID, env.AggregateID)
	assert.Equal(t, userID, env.UserID)
	require.NoError(t, env.Validate())
}

func TestNewUserLoggedIn_OptionsOverrideDefaults(t *testing.T) {
	userID := uuid.New()
	correlationID := uuid.New()

	env := NewUserLoggedIn(userID, UserLoggedInPayload{Username: "jdoe"},
		eventstore.WithCorrelationID(correlationID))

	assert.Equal(t, correlationID, env.CorrelationID)
	assert.Equal(t, userID, env.UserID)
}

func TestNewPrescriptionFilled(t *testing.T) {
	prescriptionID := uuid.New()
	payload := PrescriptionFilledPayload{
		PrescriptionNumber: "RX-1001",
		PatientID:          "patient-1",
		Items: []FilledItem{
			{MedicationID: "med-1", MedicationName: "Amoxicillin", DispensedQuantity: 30},
		},
		FilledAt: time.Now().UTC(),
	}

	env := NewPrescriptionFilled(prescriptionID, payload)

	assert.Equal(t, TypePrescriptionFilled, env.EventType)
	assert.Equal(t, AggregatePrescription, env.AggregateType)
	assert.Equal(t, prescriptionID, env.AggregateID)
	assert.Equal(t, uuid.Nil, env.UserID, "actor resolves at publish time")
	require.NoError(t, env.Validate())
}

func TestNewStockLevelChanged(t *testing.T) {
	medicationID := uuid.New()

	env := NewStockLevelChanged(medicationID, StockLevelChangedPayload{
		MedicationID:  medicationID.String(),
		PreviousLevel: 100,
		NewLevel:      70,
		Reason:        "dispensed",
		ChangedAt:     time.Now().UTC(),
	})

	assert.Equal(t, TypeStockLevelChanged, env.EventType)
	assert.Equal(t, AggregateMedication, env.AggregateType)
	require.NoError(t, env.Validate())
}

func TestRegisterAll_CoversCatalogue(t *testing.T) {
	reg := eventstore.NewRegistry()
	RegisterAll(reg)

	assert.Equal(t, []string{
		TypePrescriptionFilled,
		TypePrescriptionReceived,
		TypeSettingsChanged,
		TypeStockLevelChanged,
		TypeUserLoggedIn,
		TypeUserLoggedOut,
	}, reg.Types())
}

func TestDecodeRules_RoundTrip(t *testing.T) {
	reg := eventstore.NewRegistry()
	RegisterAll(reg)

	userID := uuid.New()
	loginAt := time.Date(2026, 8, 30, 14, 5, 9, 0, time.UTC)
	original := NewUserLoggedIn(userID, UserLoggedInPayload{
		Username:  "jdoe",
		Browser:   "Firefox 130.0",
		OS:        "Linux x86_64",
		SessionID: "sess-1",
		LoginAt:   loginAt,
	})

	// Simulate the storage round trip the replayer sees.
	structural, err := codec.Encode(original.Payload)
	require.NoError(t, err)
	stored := eventstore.StoredEvent{
		SequenceNumber: 7,
		EventID:        original.EventID,
		EventType:      original.EventType,
		EventVersion:   original.EventVersion,
		AggregateType:  original.AggregateType,
		AggregateID:    original.AggregateID,
		CausationID:    original.CausationID,
		CorrelationID:  original.CorrelationID,
		UserID:         original.UserID,
		OccurredAt:     original.OccurredAt,
		Payload:        structural,
	}

	env, err := reg.Decode(stored)
	require.NoError(t, err)

	assert.Equal(t, original.EventID, env.EventID)
	assert.Equal(t, original.CorrelationID, env.CorrelationID)
	assert.Equal(t, userID, env.UserID)

	payload, ok := env.Payload.(UserLoggedInPayload)
	require.True(t, ok, "decoded payload is the typed struct, not a map")
	assert.Equal(t, "jdoe", payload.Username)
	assert.Equal(t, "Firefox 130.0", payload.Browser)
	assert.True(t, payload.LoginAt.Equal(loginAt))
}

func TestDecodeRules_TypeMismatchSurfacesDecodeError(t *testing.T) {
	reg := eventstore.NewRegistry()
	RegisterAll(reg)

	stored := eventstore.StoredEvent{
		EventID:       uuid.New(),
		EventType:     TypePrescriptionFilled,
		EventVersion:  "v1",
		AggregateType: AggregatePrescription,
		AggregateID:   uuid.New(),
		OccurredAt:    time.Now().UTC(),
		Payload:       map[string]any{"items": "not a list"},
	}

	_, err := reg.Decode(stored)
	require.Error(t, err)

	var decodeErr *codec.DecodeError
	assert.ErrorAs(t, err, &decodeErr)
}
