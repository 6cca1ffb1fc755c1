// Package eventstore defines the domain event contract: the envelope producers
// construct, the stored record the log persists, the store interface, the
// in-process subscriber bus, and the decode registry used for replay.
//
// The envelope is transport-agnostic and immutable once constructed. Keep it
// that way so stores and sinks can fan out without defensive copying.
package eventstore

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Envelope describes one business occurrence before storage. Producers build
// it via NewEnvelope inside the same transaction as the state change it
// records.
type Envelope struct {
	// EventID is the idempotency key: a second publish with the same EventID
	// is a no-op, not an error.
	EventID uuid.UUID

	// EventType tags the semantic kind ("UserLoggedIn", "PrescriptionFilled").
	EventType string

	// EventVersion is the payload schema version ("v1").
	EventVersion string

	// AggregateType and AggregateID identify the business entity the event
	// is about (e.g. "user" / user UUID).
	AggregateType string
	AggregateID   uuid.UUID

	// OccurredAt reflects business time, never storage time. Always UTC.
	OccurredAt time.Time

	// UserID is the acting principal. Nil means system-originated; the
	// publisher resolves it from the request context when left unset.
	UserID uuid.UUID

	// CausationID identifies the command or event that caused this one.
	// Nil when the chain starts here.
	CausationID uuid.UUID

	// CorrelationID is shared by all events in one causal workflow.
	// Never nil after construction.
	CorrelationID uuid.UUID

	// Payload is the producer-defined typed data, opaque to the log.
	Payload any
}

// Option customizes an envelope at construction time.
type Option func(*Envelope)

// WithUserID sets the acting principal explicitly instead of resolving it
// from the ambient request context at publish time.
func WithUserID(userID uuid.UUID) Option {
	return func(e *Envelope) { e.UserID = userID }
}

// WithCausationID records the command or event that directly caused this one.
func WithCausationID(causationID uuid.UUID) Option {
	return func(e *Envelope) { e.CausationID = causationID }
}

// WithCorrelationID joins this event to an existing causal chain.
func WithCorrelationID(correlationID uuid.UUID) Option {
	return func(e *Envelope) { e.CorrelationID = correlationID }
}

// WithOccurredAt overrides business time. The value is normalized to UTC.
func WithOccurredAt(t time.Time) Option {
	return func(e *Envelope) { e.OccurredAt = t.UTC() }
}

// NewEnvelope constructs an envelope with a fresh event ID, UTC business time
// and a self-assigned correlation ID unless one is supplied.
func NewEnvelope(eventType, eventVersion, aggregateType string, aggregateID uuid.UUID, payload any, opts ...Option) Envelope {
	e := Envelope{
		EventID:       uuid.New(),
		EventType:     eventType,
		EventVersion:  eventVersion,
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		OccurredAt:    time.Now().UTC(),
		Payload:       payload,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&e)
		}
	}
	if e.CorrelationID == uuid.Nil {
		e.CorrelationID = uuid.New()
	}
	return e
}

// Validate reports programmer misuse before any storage attempt.
func (e Envelope) Validate() error {
	switch {
	case e.EventID == uuid.Nil:
		return fmt.Errorf("envelope %q: missing event id", e.EventType)
	case e.EventType == "":
		return fmt.Errorf("envelope %s: missing event type", e.EventID)
	case e.EventVersion == "":
		return fmt.Errorf("envelope %s (%s): missing event version", e.EventType, e.EventID)
	case e.AggregateType == "":
		return fmt.Errorf("envelope %s (%s): missing aggregate type", e.EventType, e.EventID)
	case e.AggregateID == uuid.Nil:
		return fmt.Errorf("envelope %s (%s): missing aggregate id", e.EventType, e.EventID)
	case e.OccurredAt.IsZero():
		return fmt.Errorf("envelope %s (%s): missing occurred-at time", e.EventType, e.EventID)
	}
	return nil
}
