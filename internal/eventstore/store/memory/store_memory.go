// Package memory provides the in-memory event log used by unit tests and by
// deployments without a database configured. Semantics mirror the Postgres
// store: sequence numbers are never reused, inserts are rejected on duplicate
// event IDs, and reads return copies.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"rxledger/internal/eventstore"
)

type InMemoryStore struct {
	mu      sync.RWMutex
	events  []eventstore.StoredEvent
	byID    map[uuid.UUID]struct{}
	nextSeq int64
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{byID: make(map[uuid.UUID]struct{}), nextSeq: 1}
}

func (s *InMemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = nil
	s.byID = make(map[uuid.UUID]struct{})
	// nextSeq is deliberately not reset: sequence numbers are never reused.
}

func (s *InMemoryStore) Insert(_ context.Context, event *eventstore.StoredEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, dup := s.byID[event.EventID]; dup {
		// Burn the sequence number, matching autoincrement behavior where
		// failed inserts leave gaps.
		s.nextSeq++
		return fmt.Errorf("insert event %s: %w", event.EventID, eventstore.ErrDuplicateEvent)
	}

	event.SequenceNumber = s.nextSeq
	s.nextSeq++
	if event.StoredAt.IsZero() {
		event.StoredAt = time.Now().UTC()
	}

	s.byID[event.EventID] = struct{}{}
	s.events = append(s.events, *event)
	return nil
}

func (s *InMemoryStore) ExistsByEventID(_ context.Context, eventID uuid.UUID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.byID[eventID]
	return ok, nil
}

func (s *InMemoryStore) FindByAggregate(_ context.Context, aggregateType string, aggregateID uuid.UUID) ([]eventstore.StoredEvent, error) {
	return s.filter(func(e eventstore.StoredEvent) bool {
		return e.AggregateType == aggregateType && e.AggregateID == aggregateID
	}, bySequenceAsc), nil
}

func (s *InMemoryStore) FindSinceSequence(_ context.Context, aggregateType string, aggregateID uuid.UUID, afterSequence int64) ([]eventstore.StoredEvent, error) {
	return s.filter(func(e eventstore.StoredEvent) bool {
		return e.AggregateType == aggregateType && e.AggregateID == aggregateID && e.SequenceNumber > afterSequence
	}, bySequenceAsc), nil
}

func (s *InMemoryStore) FindByType(_ context.Context, eventType string) ([]eventstore.StoredEvent, error) {
	return s.filter(func(e eventstore.StoredEvent) bool {
		return e.EventType == eventType
	}, byOccurredAtDesc), nil
}

func (s *InMemoryStore) FindByTypes(_ context.Context, eventTypes []string) ([]eventstore.StoredEvent, error) {
	wanted := make(map[string]struct{}, len(eventTypes))
	for _, t := range eventTypes {
		wanted[t] = struct{}{}
	}
	return s.filter(func(e eventstore.StoredEvent) bool {
		_, ok := wanted[e.EventType]
		return ok
	}, byOccurredAtDesc), nil
}

func (s *InMemoryStore) FindByCorrelation(_ context.Context, correlationID uuid.UUID) ([]eventstore.StoredEvent, error) {
	return s.filter(func(e eventstore.StoredEvent) bool {
		return e.CorrelationID == correlationID
	}, byOccurredAtAsc), nil
}

func (s *InMemoryStore) FindByUser(_ context.Context, userID uuid.UUID) ([]eventstore.StoredEvent, error) {
	return s.filter(func(e eventstore.StoredEvent) bool {
		return e.UserID == userID
	}, byOccurredAtDesc), nil
}

func (s *InMemoryStore) FindBetween(_ context.Context, start, end time.Time) ([]eventstore.StoredEvent, error) {
	return s.filter(func(e eventstore.StoredEvent) bool {
		return !e.OccurredAt.Before(start) && !e.OccurredAt.After(end)
	}, byOccurredAtAsc), nil
}

func (s *InMemoryStore) Page(_ context.Context, page, size int) ([]eventstore.StoredEvent, error) {
	all := s.filter(func(eventstore.StoredEvent) bool { return true }, byOccurredAtDesc)

	start := page * size
	if start >= len(all) {
		return []eventstore.StoredEvent{}, nil
	}
	end := min(start+size, len(all))
	return all[start:end], nil
}

func (s *InMemoryStore) CountAll(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.events)), nil
}

func (s *InMemoryStore) CountByType(_ context.Context, eventType string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int64
	for _, e := range s.events {
		if e.EventType == eventType {
			n++
		}
	}
	return n, nil
}

func (s *InMemoryStore) CountByEachType(_ context.Context) (map[string]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[string]int64)
	for _, e := range s.events {
		counts[e.EventType]++
	}
	return counts, nil
}

type lessFunc func(a, b eventstore.StoredEvent) bool

func bySequenceAsc(a, b eventstore.StoredEvent) bool {
	return a.SequenceNumber < b.SequenceNumber
}

func byOccurredAtAsc(a, b eventstore.StoredEvent) bool {
	if a.OccurredAt.Equal(b.OccurredAt) {
		return a.SequenceNumber < b.SequenceNumber
	}
	return a.OccurredAt.Before(b.OccurredAt)
}

func byOccurredAtDesc(a, b eventstore.StoredEvent) bool {
	if a.OccurredAt.Equal(b.OccurredAt) {
		return a.SequenceNumber > b.SequenceNumber
	}
	return a.OccurredAt.After(b.OccurredAt)
}

func (s *InMemoryStore) filter(keep func(eventstore.StoredEvent) bool, less lessFunc) []eventstore.StoredEvent {
	s.mu.RLock()
	var out []eventstore.StoredEvent
	for _, e := range s.events {
		if keep(e) {
			out = append(out, e)
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}
