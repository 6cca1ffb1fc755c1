package eventstore

import (
	"time"

	"github.com/google/uuid"
)

// StoredEvent is the persisted, sequence-numbered projection of an envelope.
// Rows are append-only: never updated, never deleted by this system.
type StoredEvent struct {
	// SequenceNumber is storage-assigned, strictly increasing and never
	// reused. It totally orders the log and drives incremental reads.
	// Gaps are acceptable after failed inserts; reordering is not.
	SequenceNumber int64

	EventID       uuid.UUID
	EventType     string
	EventVersion  string
	AggregateType string
	AggregateID   uuid.UUID

	// CausationID and UserID are uuid.Nil when absent.
	CausationID   uuid.UUID
	CorrelationID uuid.UUID

	// OccurredAt is business time; StoredAt is persistence time. Both UTC.
	OccurredAt time.Time
	StoredAt   time.Time

	UserID uuid.UUID

	// Payload is the structurally-encoded event data, independent of any
	// producer type.
	Payload map[string]any

	// Metadata carries storage-time provenance (source, environment),
	// attached by the publisher rather than the producer.
	Metadata map[string]any
}
