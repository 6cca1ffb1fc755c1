package eventstore

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Store is the append-only event log. Implementations are interface-driven to
// keep the domain logic testable and to allow swapping in-memory and Postgres
// persistence without rewiring business code.
//
// Insert participates in the unit of work carried by the context when one is
// present; all reads run outside any transaction.
type Store interface {
	// Insert appends a stored event, assigning SequenceNumber and StoredAt
	// atomically. Returns ErrDuplicateEvent (wrapped) when the event id
	// already exists.
	Insert(ctx context.Context, event *StoredEvent) error

	// ExistsByEventID is the idempotency pre-check used by the publisher.
	ExistsByEventID(ctx context.Context, eventID uuid.UUID) (bool, error)

	// FindByAggregate returns the full history of one aggregate, ascending
	// by sequence number.
	FindByAggregate(ctx context.Context, aggregateType string, aggregateID uuid.UUID) ([]StoredEvent, error)

	// FindSinceSequence returns aggregate events after the given sequence
	// number, ascending, for incremental projection rebuilds.
	FindSinceSequence(ctx context.Context, aggregateType string, aggregateID uuid.UUID, afterSequence int64) ([]StoredEvent, error)

	// FindByType returns events of one kind, descending by occurred-at.
	FindByType(ctx context.Context, eventType string) ([]StoredEvent, error)

	// FindByTypes returns events of any of the given kinds, descending by
	// occurred-at.
	FindByTypes(ctx context.Context, eventTypes []string) ([]StoredEvent, error)

	// FindByCorrelation returns all causally related events, ascending by
	// occurred-at.
	FindByCorrelation(ctx context.Context, correlationID uuid.UUID) ([]StoredEvent, error)

	// FindByUser returns events recorded for one acting principal,
	// descending by occurred-at.
	FindByUser(ctx context.Context, userID uuid.UUID) ([]StoredEvent, error)

	// FindBetween returns events whose business time falls in [start, end],
	// ascending by occurred-at.
	FindBetween(ctx context.Context, start, end time.Time) ([]StoredEvent, error)

	// Page returns one page of the log, descending by occurred-at.
	// Page numbering starts at zero.
	Page(ctx context.Context, page, size int) ([]StoredEvent, error)

	// CountAll returns the total number of stored events.
	CountAll(ctx context.Context) (int64, error)

	// CountByType returns the number of stored events of one kind.
	CountByType(ctx context.Context, eventType string) (int64, error)

	// CountByEachType returns per-type counts in a single pass, for the
	// statistics endpoint.
	CountByEachType(ctx context.Context) (map[string]int64, error)
}
