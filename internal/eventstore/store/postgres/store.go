// Package postgres implements the append-only event log on PostgreSQL.
//
// sequence_number is a BIGSERIAL primary key: assignment is atomic at insert
// time, concurrent publishers never receive the same number, and failed
// inserts leave gaps rather than reordering. event_id carries the uniqueness
// constraint backing idempotent publish.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	"rxledger/internal/eventstore"
	"rxledger/pkg/platform/tx"
)

const uniqueViolation = "23505"

const schema = `
CREATE TABLE IF NOT EXISTS domain_events (
	sequence_number BIGSERIAL PRIMARY KEY,
	event_id        UUID        NOT NULL UNIQUE,
	event_type      VARCHAR(100) NOT NULL,
	event_version   VARCHAR(10)  NOT NULL,
	aggregate_type  VARCHAR(50)  NOT NULL,
	aggregate_id    UUID        NOT NULL,
	causation_id    UUID,
	correlation_id  UUID,
	occurred_at     TIMESTAMPTZ NOT NULL,
	user_id         UUID,
	payload         JSONB       NOT NULL,
	metadata        JSONB,
	stored_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_domain_events_aggregate
	ON domain_events (aggregate_type, aggregate_id, sequence_number);
CREATE INDEX IF NOT EXISTS idx_domain_events_type
	ON domain_events (event_type);
CREATE INDEX IF NOT EXISTS idx_domain_events_occurred_at
	ON domain_events (occurred_at);
CREATE INDEX IF NOT EXISTS idx_domain_events_correlation
	ON domain_events (correlation_id);
CREATE INDEX IF NOT EXISTS idx_domain_events_user
	ON domain_events (user_id);
`

// Store implements eventstore.Store on PostgreSQL.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Migrate creates the domain_events table and its indexes.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate domain_events: %w", err)
	}
	return nil
}

type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// execer returns the unit-of-work transaction when one is carried by the
// context, so inserts commit or roll back with the business state change.
func (s *Store) execer(ctx context.Context) executor {
	if uow, ok := tx.From(ctx); ok {
		return uow.Tx()
	}
	return s.db
}

func (s *Store) Insert(ctx context.Context, event *eventstore.StoredEvent) error {
	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}
	metadata, err := json.Marshal(event.Metadata)
	if err != nil {
		return fmt.Errorf("marshal event metadata: %w", err)
	}

	query := `
		INSERT INTO domain_events (
			event_id, event_type, event_version, aggregate_type, aggregate_id,
			causation_id, correlation_id, occurred_at, user_id, payload, metadata
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING sequence_number, stored_at
	`

	err = s.execer(ctx).QueryRowContext(ctx, query,
		event.EventID,
		event.EventType,
		event.EventVersion,
		event.AggregateType,
		event.AggregateID,
		nullableUUID(event.CausationID),
		nullableUUID(event.CorrelationID),
		event.OccurredAt,
		nullableUUID(event.UserID),
		payload,
		metadata,
	).Scan(&event.SequenceNumber, &event.StoredAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("insert event %s: %w", event.EventID, eventstore.ErrDuplicateEvent)
		}
		return fmt.Errorf("insert event %s: %w", event.EventID, err)
	}
	return nil
}

func (s *Store) ExistsByEventID(ctx context.Context, eventID uuid.UUID) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM domain_events WHERE event_id = $1)`
	if err := s.execer(ctx).QueryRowContext(ctx, query, eventID).Scan(&exists); err != nil {
		return false, fmt.Errorf("check event exists: %w", err)
	}
	return exists, nil
}

const selectColumns = `
	SELECT sequence_number, event_id, event_type, event_version,
	       aggregate_type, aggregate_id, causation_id, correlation_id,
	       occurred_at, user_id, payload, metadata, stored_at
	FROM domain_events
`

func (s *Store) FindByAggregate(ctx context.Context, aggregateType string, aggregateID uuid.UUID) ([]eventstore.StoredEvent, error) {
	query := selectColumns + `
		WHERE aggregate_type = $1 AND aggregate_id = $2
		ORDER BY sequence_number ASC
	`
	return s.queryEvents(ctx, query, aggregateType, aggregateID)
}

func (s *Store) FindSinceSequence(ctx context.Context, aggregateType string, aggregateID uuid.UUID, afterSequence int64) ([]eventstore.StoredEvent, error) {
	query := selectColumns + `
		WHERE aggregate_type = $1 AND aggregate_id = $2 AND sequence_number > $3
		ORDER BY sequence_number ASC
	`
	return s.queryEvents(ctx, query, aggregateType, aggregateID, afterSequence)
}

func (s *Store) FindByType(ctx context.Context, eventType string) ([]eventstore.StoredEvent, error) {
	query := selectColumns + `
		WHERE event_type = $1
		ORDER BY occurred_at DESC
	`
	return s.queryEvents(ctx, query, eventType)
}

func (s *Store) FindByTypes(ctx context.Context, eventTypes []string) ([]eventstore.StoredEvent, error) {
	if len(eventTypes) == 0 {
		return []eventstore.StoredEvent{}, nil
	}
	query := selectColumns + `
		WHERE event_type = ANY($1)
		ORDER BY occurred_at DESC
	`
	return s.queryEvents(ctx, query, pq.Array(eventTypes))
}

func (s *Store) FindByCorrelation(ctx context.Context, correlationID uuid.UUID) ([]eventstore.StoredEvent, error) {
	query := selectColumns + `
		WHERE correlation_id = $1
		ORDER BY occurred_at ASC
	`
	return s.queryEvents(ctx, query, correlationID)
}

func (s *Store) FindByUser(ctx context.Context, userID uuid.UUID) ([]eventstore.StoredEvent, error) {
	query := selectColumns + `
		WHERE user_id = $1
		ORDER BY occurred_at DESC
	`
	return s.queryEvents(ctx, query, userID)
}

func (s *Store) FindBetween(ctx context.Context, start, end time.Time) ([]eventstore.StoredEvent, error) {
	query := selectColumns + `
		WHERE occurred_at BETWEEN $1 AND $2
		ORDER BY occurred_at ASC
	`
	return s.queryEvents(ctx, query, start, end)
}

func (s *Store) Page(ctx context.Context, page, size int) ([]eventstore.StoredEvent, error) {
	query := selectColumns + `
		ORDER BY occurred_at DESC
		LIMIT $1 OFFSET $2
	`
	return s.queryEvents(ctx, query, size, page*size)
}

func (s *Store) CountAll(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM domain_events`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return n, nil
}

func (s *Store) CountByType(ctx context.Context, eventType string) (int64, error) {
	var n int64
	query := `SELECT COUNT(*) FROM domain_events WHERE event_type = $1`
	if err := s.db.QueryRowContext(ctx, query, eventType).Scan(&n); err != nil {
		return 0, fmt.Errorf("count events by type: %w", err)
	}
	return n, nil
}

func (s *Store) CountByEachType(ctx context.Context) (map[string]int64, error) {
	query := `SELECT event_type, COUNT(*) FROM domain_events GROUP BY event_type`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("count events by each type: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var eventType string
		var n int64
		if err := rows.Scan(&eventType, &n); err != nil {
			return nil, fmt.Errorf("scan type count: %w", err)
		}
		counts[eventType] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate type counts: %w", err)
	}
	return counts, nil
}

func (s *Store) queryEvents(ctx context.Context, query string, args ...any) ([]eventstore.StoredEvent, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

func scanEvents(rows *sql.Rows) ([]eventstore.StoredEvent, error) {
	var events []eventstore.StoredEvent

	for rows.Next() {
		var (
			event         eventstore.StoredEvent
			causationID   *uuid.UUID
			correlationID *uuid.UUID
			userID        *uuid.UUID
			payload       []byte
			metadata      []byte
		)

		err := rows.Scan(
			&event.SequenceNumber,
			&event.EventID,
			&event.EventType,
			&event.EventVersion,
			&event.AggregateType,
			&event.AggregateID,
			&causationID,
			&correlationID,
			&event.OccurredAt,
			&userID,
			&payload,
			&metadata,
			&event.StoredAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}

		if causationID != nil {
			event.CausationID = *causationID
		}
		if correlationID != nil {
			event.CorrelationID = *correlationID
		}
		if userID != nil {
			event.UserID = *userID
		}
		if err := json.Unmarshal(payload, &event.Payload); err != nil {
			return nil, fmt.Errorf("unmarshal payload for event %s: %w", event.EventID, err)
		}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &event.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshal metadata for event %s: %w", event.EventID, err)
			}
		}

		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

func nullableUUID(id uuid.UUID) *uuid.UUID {
	if id == uuid.Nil {
		return nil
	}
	return &id
}
