// Package query is the read-only façade over the event log for audit trails,
// dashboards and statistics. It never mutates the log.
package query

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"rxledger/internal/eventstore"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

// Statistics reports aggregate counts for operational dashboards.
type Statistics struct {
	TotalEvents  int64            `json:"totalEvents"`
	CountsByType map[string]int64 `json:"countsByType"`
}

// Service exposes the log's read side.
type Service struct {
	store  eventstore.Store
	logger *slog.Logger
}

func New(store eventstore.Store, logger *slog.Logger) *Service {
	return &Service{store: store, logger: logger}
}

// Recent returns one page of the log, most recent business time first.
// Size is clamped to sane bounds so a misbehaving client cannot pull the
// whole log in one request.
func (s *Service) Recent(ctx context.Context, page, size int) ([]eventstore.StoredEvent, error) {
	if page < 0 {
		page = 0
	}
	if size <= 0 {
		size = defaultPageSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}
	return s.store.Page(ctx, page, size)
}

// AggregateHistory returns the canonical history of one entity in sequence
// order.
func (s *Service) AggregateHistory(ctx context.Context, aggregateType string, aggregateID uuid.UUID) ([]eventstore.StoredEvent, error) {
	return s.store.FindByAggregate(ctx, aggregateType, aggregateID)
}

// SinceSequence returns aggregate events after a consumed sequence number.
func (s *Service) SinceSequence(ctx context.Context, aggregateType string, aggregateID uuid.UUID, afterSequence int64) ([]eventstore.StoredEvent, error) {
	return s.store.FindSinceSequence(ctx, aggregateType, aggregateID, afterSequence)
}

// ByType returns events of one kind for analytics and monitoring.
func (s *Service) ByType(ctx context.Context, eventType string) ([]eventstore.StoredEvent, error) {
	return s.store.FindByType(ctx, eventType)
}

// ByTypes returns events of any of the given kinds.
func (s *Service) ByTypes(ctx context.Context, eventTypes []string) ([]eventstore.StoredEvent, error) {
	return s.store.FindByTypes(ctx, eventTypes)
}

// Correlated traces all events of one causal workflow.
func (s *Service) Correlated(ctx context.Context, correlationID uuid.UUID) ([]eventstore.StoredEvent, error) {
	return s.store.FindByCorrelation(ctx, correlationID)
}

// ByUser returns the events recorded for one acting principal.
func (s *Service) ByUser(ctx context.Context, userID uuid.UUID) ([]eventstore.StoredEvent, error) {
	return s.store.FindByUser(ctx, userID)
}

// Between returns events whose business time falls in [start, end].
func (s *Service) Between(ctx context.Context, start, end time.Time) ([]eventstore.StoredEvent, error) {
	if end.Before(start) {
		return nil, fmt.Errorf("invalid range: end %s before start %s", end, start)
	}
	return s.store.FindBetween(ctx, start, end)
}

// Statistics reports the total event count and per-type counts. Per-type
// counts come from one grouped query so the operation stays cheap as the log
// grows.
func (s *Service) Statistics(ctx context.Context) (Statistics, error) {
	total, err := s.store.CountAll(ctx)
	if err != nil {
		return Statistics{}, fmt.Errorf("count events: %w", err)
	}
	byType, err := s.store.CountByEachType(ctx)
	if err != nil {
		return Statistics{}, fmt.Errorf("count events by type: %w", err)
	}
	return Statistics{TotalEvents: total, CountsByType: byType}, nil
}
