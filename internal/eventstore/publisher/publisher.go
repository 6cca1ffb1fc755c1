// Package publisher implements the sole write path into the event log.
//
// Publish must run inside the caller's unit of work so "state changed" and
// "event recorded" commit or roll back together. Subscriber notification is
// deferred to a post-commit hook and dispatched asynchronously, which keeps
// slow subscribers off the transaction's critical path and guarantees no
// delivery for transactions that roll back.
package publisher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"rxledger/internal/eventstore"
	"rxledger/internal/eventstore/codec"
	"rxledger/internal/platform/metrics"
	"rxledger/pkg/platform/tx"
	"rxledger/pkg/requestcontext"
)

const metadataSource = "rxledger"

// Publisher deduplicates, persists and schedules delivery of domain events.
type Publisher struct {
	store       eventstore.Store
	bus         *eventstore.Bus
	logger      *slog.Logger
	metrics     *metrics.Metrics
	environment string
	tracer      trace.Tracer
}

// New constructs a publisher. The environment tag ends up in stored event
// metadata alongside the source tag.
func New(store eventstore.Store, bus *eventstore.Bus, logger *slog.Logger, m *metrics.Metrics, environment string) *Publisher {
	return &Publisher{
		store:       store,
		bus:         bus,
		logger:      logger,
		metrics:     m,
		environment: environment,
		tracer:      otel.Tracer("rxledger/eventstore"),
	}
}

// Publish records one envelope inside the caller's transaction.
//
// Returns ErrNoActiveTransaction when called outside a unit of work. A
// duplicate event ID is an idempotent no-op: logged at warn level, counted,
// and reported as success so retried publishes stay safe. Any other storage
// failure propagates and aborts the enclosing transaction.
func (p *Publisher) Publish(ctx context.Context, env eventstore.Envelope) error {
	uow, ok := tx.From(ctx)
	if !ok {
		return eventstore.ErrNoActiveTransaction
	}

	ctx, span := p.tracer.Start(ctx, "eventstore.Publish", trace.WithAttributes(
		attribute.String("event.type", env.EventType),
		attribute.String("event.id", env.EventID.String()),
	))
	defer span.End()

	if env.UserID == uuid.Nil {
		// Empty after explicit resolution means a system-originated event.
		env.UserID = requestcontext.ActorID(ctx)
	}
	if env.CorrelationID == uuid.Nil {
		env.CorrelationID = uuid.New()
	}

	if err := env.Validate(); err != nil {
		return fmt.Errorf("publish: %w", err)
	}

	exists, err := p.store.ExistsByEventID(ctx, env.EventID)
	if err != nil {
		p.metrics.IncrementPublishFailures()
		return fmt.Errorf("publish %s: idempotency check: %w", env.EventType, err)
	}
	if exists {
		p.skipDuplicate(ctx, env)
		return nil
	}

	payload, err := codec.Encode(env.Payload)
	if err != nil {
		p.metrics.IncrementPublishFailures()
		return fmt.Errorf("publish %s: %w", env.EventType, err)
	}

	stored := &eventstore.StoredEvent{
		EventID:       env.EventID,
		EventType:     env.EventType,
		EventVersion:  env.EventVersion,
		AggregateType: env.AggregateType,
		AggregateID:   env.AggregateID,
		CausationID:   env.CausationID,
		CorrelationID: env.CorrelationID,
		OccurredAt:    env.OccurredAt.UTC(),
		UserID:        env.UserID,
		Payload:       payload,
		Metadata: map[string]any{
			"source":      metadataSource,
			"environment": p.environment,
		},
		StoredAt: time.Now().UTC(),
	}

	if err := p.store.Insert(ctx, stored); err != nil {
		// A concurrent retry can slip past the pre-check; the uniqueness
		// constraint is the authoritative idempotency guard.
		if errors.Is(err, eventstore.ErrDuplicateEvent) {
			p.skipDuplicate(ctx, env)
			return nil
		}
		p.metrics.IncrementPublishFailures()
		return fmt.Errorf("publish %s: %w", env.EventType, err)
	}

	p.logger.InfoContext(ctx, "domain event stored",
		"event_type", env.EventType,
		"event_id", env.EventID.String(),
		"sequence_number", stored.SequenceNumber,
	)
	p.metrics.IncrementEventsPublished()

	// Deliver the original envelope by value after commit, never the stored
	// row: subscribers get the typed payload, out of band from the write.
	delivered := env
	uow.OnCommit(func() {
		p.bus.Dispatch(context.WithoutCancel(ctx), delivered)
	})
	uow.OnRollback(func() {
		p.logger.WarnContext(ctx, "event publication rolled back",
			"event_type", delivered.EventType,
			"event_id", delivered.EventID.String(),
		)
	})
	return nil
}

// PublishAll records the envelopes in order inside the same transaction:
// either all are durably recorded or, on failure, none are.
func (p *Publisher) PublishAll(ctx context.Context, envs []eventstore.Envelope) error {
	for _, env := range envs {
		if err := p.Publish(ctx, env); err != nil {
			return err
		}
	}
	return nil
}

func (p *Publisher) skipDuplicate(ctx context.Context, env eventstore.Envelope) {
	p.logger.WarnContext(ctx, "duplicate event id, skipping",
		"event_type", env.EventType,
		"event_id", env.EventID.String(),
	)
	p.metrics.IncrementDuplicatesSkipped()
}
