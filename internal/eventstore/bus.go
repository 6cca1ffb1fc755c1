package eventstore

import (
	"context"
	"log/slog"
	"sync"

	"rxledger/internal/platform/metrics"
)

// Handler consumes one envelope. Errors are logged and isolated per handler;
// they never reach the producing transaction.
type Handler func(ctx context.Context, env Envelope) error

// Bus is the in-process subscriber mechanism shared by live publishes and
// replay. Registrations happen at startup and are read-mostly afterwards.
//
// Live dispatch is fire-and-forget: each handler runs in its own goroutine so
// a slow subscriber never blocks the publisher. Replay uses DeliverSync to
// preserve storage order.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler

	logger  *slog.Logger
	metrics *metrics.Metrics
	wg      sync.WaitGroup
}

func NewBus(logger *slog.Logger, m *metrics.Metrics) *Bus {
	return &Bus{
		handlers: make(map[string][]Handler),
		logger:   logger,
		metrics:  m,
	}
}

// Subscribe registers a handler for one event type.
func (b *Bus) Subscribe(eventType string, h Handler) {
	if eventType == "" || h == nil {
		panic("eventstore: Subscribe requires an event type and a handler")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[eventType] = append(b.handlers[eventType], h)
}

// Dispatch notifies subscribers asynchronously. It returns immediately; the
// caller is the post-commit hook, which must not wait on subscriber work.
func (b *Bus) Dispatch(ctx context.Context, env Envelope) {
	for _, h := range b.handlersFor(env.EventType) {
		handler := h
		b.wg.Add(1)
		go func() {
			defer b.wg.Done()
			b.invoke(ctx, handler, env)
		}()
	}
}

// DeliverSync notifies subscribers one at a time, in registration order.
// Replay uses it so historical events arrive in storage order.
func (b *Bus) DeliverSync(ctx context.Context, env Envelope) {
	for _, h := range b.handlersFor(env.EventType) {
		b.invoke(ctx, h, env)
	}
}

// Wait blocks until all in-flight async deliveries finish. Used on shutdown
// and in tests; producers never call it.
func (b *Bus) Wait() {
	b.wg.Wait()
}

func (b *Bus) handlersFor(eventType string) []Handler {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.handlers[eventType]
}

func (b *Bus) invoke(ctx context.Context, h Handler, env Envelope) {
	defer func() {
		if r := recover(); r != nil {
			b.recordFailure(ctx, env, "panic", r)
		}
	}()
	if err := h(ctx, env); err != nil {
		b.recordFailure(ctx, env, "error", err)
	}
}

func (b *Bus) recordFailure(ctx context.Context, env Envelope, kind string, cause any) {
	if b.metrics != nil {
		b.metrics.IncrementSubscriberFailures()
	}
	if b.logger != nil {
		b.logger.ErrorContext(ctx, "event subscriber failed",
			"event_type", env.EventType,
			"event_id", env.EventID.String(),
			"failure", kind,
			"cause", cause,
		)
	}
}
