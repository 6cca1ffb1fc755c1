// Package events defines the business event catalogue: typed payloads, their
// envelope constructors, and the decode rules that let the replayer rebuild
// them from storage.
package events

import (
	"time"

	"github.com/google/uuid"

	"rxledger/internal/eventstore"
)

// Event type tags. The tag, not the Go type, is the stable contract stored
// in the log.
const (
	TypeUserLoggedIn         = "UserLoggedIn"
	TypeUserLoggedOut        = "UserLoggedOut"
	TypeSettingsChanged      = "SettingsChanged"
	TypePrescriptionFilled   = "PrescriptionFilled"
	TypePrescriptionReceived = "PrescriptionReceived"
	TypeStockLevelChanged    = "StockLevelChanged"
)

// Aggregate type tags.
const (
	AggregateUser         = "user"
	AggregatePrescription = "prescription"
	AggregateMedication   = "medication"
)

const versionV1 = "v1"

// UserLoggedInPayload captures a successful login, enriched with device
// details parsed from the User-Agent header.
type UserLoggedInPayload struct {
	Username   string    `json:"username"`
	Email      string    `json:"email,omitempty"`
	UserType   string    `json:"userType,omitempty"`
	Roles      []string  `json:"roles,omitempty"`
	IPAddress  string    `json:"ipAddress,omitempty"`
	UserAgent  string    `json:"userAgent,omitempty"`
	Browser    string    `json:"browser,omitempty"`
	OS         string    `json:"os,omitempty"`
	SessionID  string    `json:"sessionId,omitempty"`
	RememberMe bool      `json:"rememberMe,omitempty"`
	LoginAt    time.Time `json:"loginAt"`
}

// NewUserLoggedIn builds the envelope for a login. The user is both the
// aggregate and the actor.
func NewUserLoggedIn(userID uuid.UUID, payload UserLoggedInPayload, opts ...eventstore.Option) eventstore.Envelope {
	opts = append([]eventstore.Option{eventstore.WithUserID(userID)}, opts...)
	return eventstore.NewEnvelope(TypeUserLoggedIn, versionV1, AggregateUser, userID, payload, opts...)
}

// UserLoggedOutPayload captures the end of a session.
type UserLoggedOutPayload struct {
	Username  string    `json:"username"`
	SessionID string    `json:"sessionId,omitempty"`
	LogoutAt  time.Time `json:"logoutAt"`
}

func NewUserLoggedOut(userID uuid.UUID, payload UserLoggedOutPayload, opts ...eventstore.Option) eventstore.Envelope {
	opts = append([]eventstore.Option{eventstore.WithUserID(userID)}, opts...)
	return eventstore.NewEnvelope(TypeUserLoggedOut, versionV1, AggregateUser, userID, payload, opts...)
}

// SettingsChangedPayload records one setting transition, old and new value
// side by side for the audit trail.
type SettingsChangedPayload struct {
	SettingCategory string    `json:"settingCategory"`
	SettingName     string    `json:"settingName"`
	OldValue        string    `json:"oldValue,omitempty"`
	NewValue        string    `json:"newValue"`
	ChangedAt       time.Time `json:"changedAt"`
	ChangedBy       uuid.UUID `json:"changedBy,omitempty"`
}

func NewSettingsChanged(userID uuid.UUID, payload SettingsChangedPayload, opts ...eventstore.Option) eventstore.Envelope {
	return eventstore.NewEnvelope(TypeSettingsChanged, versionV1, AggregateUser, userID, payload, opts...)
}

// FilledItem is one dispensed line of a filled prescription.
type FilledItem struct {
	PrescriptionItemID string  `json:"prescriptionItemId"`
	MedicationID       string  `json:"medicationId"`
	MedicationName     string  `json:"medicationName"`
	DispensedNDC       string  `json:"dispensedNdc,omitempty"`
	DispensedQuantity  float64 `json:"dispensedQuantity"`
	BatchID            string  `json:"batchId,omitempty"`
	BatchNumber        string  `json:"batchNumber,omitempty"`
}

// PrescriptionFilledPayload captures a completed fill, the event the
// inventory module consumes to deduct stock.
type PrescriptionFilledPayload struct {
	PrescriptionNumber  string       `json:"prescriptionNumber"`
	PatientID           string       `json:"patientId"`
	PatientName         string       `json:"patientName,omitempty"`
	Items               []FilledItem `json:"items"`
	CounselingCompleted bool         `json:"counselingCompleted"`
	FilledAt            time.Time    `json:"filledAt"`
	FilledBy            string       `json:"filledBy,omitempty"`
	PharmacistName      string       `json:"pharmacistName,omitempty"`
}

func NewPrescriptionFilled(prescriptionID uuid.UUID, payload PrescriptionFilledPayload, opts ...eventstore.Option) eventstore.Envelope {
	return eventstore.NewEnvelope(TypePrescriptionFilled, versionV1, AggregatePrescription, prescriptionID, payload, opts...)
}

// PrescriptionReceivedPayload captures intake of a new prescription.
type PrescriptionReceivedPayload struct {
	PrescriptionNumber string    `json:"prescriptionNumber"`
	PatientID          string    `json:"patientId"`
	PrescriberName     string    `json:"prescriberName,omitempty"`
	ReceivedAt         time.Time `json:"receivedAt"`
	ItemCount          int       `json:"itemCount"`
}

func NewPrescriptionReceived(prescriptionID uuid.UUID, payload PrescriptionReceivedPayload, opts ...eventstore.Option) eventstore.Envelope {
	return eventstore.NewEnvelope(TypePrescriptionReceived, versionV1, AggregatePrescription, prescriptionID, payload, opts...)
}

// StockLevelChangedPayload records an inventory movement.
type StockLevelChangedPayload struct {
	MedicationID   string    `json:"medicationId"`
	MedicationName string    `json:"medicationName,omitempty"`
	BatchNumber    string    `json:"batchNumber,omitempty"`
	PreviousLevel  float64   `json:"previousLevel"`
	NewLevel       float64   `json:"newLevel"`
	Reason         string    `json:"reason,omitempty"`
	ChangedAt      time.Time `json:"changedAt"`
}

func NewStockLevelChanged(medicationID uuid.UUID, payload StockLevelChangedPayload, opts ...eventstore.Option) eventstore.Envelope {
	return eventstore.NewEnvelope(TypeStockLevelChanged, versionV1, AggregateMedication, medicationID, payload, opts...)
}
