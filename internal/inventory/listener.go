// Package inventory consumes prescription events to keep stock levels
// current. Handler failures are logged and never reach the publishing
// transaction; a missed deduction is corrected by replaying the aggregate.
package inventory

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"rxledger/internal/events"
	"rxledger/internal/eventstore"
)

// StockStore tracks on-hand quantity per medication.
type StockStore interface {
	Deduct(ctx context.Context, medicationID string, quantity float64) error
	Level(ctx context.Context, medicationID string) (float64, error)
	Set(ctx context.Context, medicationID string, level float64)
}

// Listener deducts stock when prescriptions are filled.
type Listener struct {
	stock  StockStore
	logger *slog.Logger
}

func NewListener(stock StockStore, logger *slog.Logger) *Listener {
	return &Listener{stock: stock, logger: logger}
}

// Register subscribes the listener on the bus.
func (l *Listener) Register(bus *eventstore.Bus) {
	bus.Subscribe(events.TypePrescriptionFilled, l.handlePrescriptionFilled)
}

func (l *Listener) handlePrescriptionFilled(ctx context.Context, env eventstore.Envelope) error {
	payload, ok := env.Payload.(events.PrescriptionFilledPayload)
	if !ok {
		return fmt.Errorf("unexpected payload type %T for %s", env.Payload, env.EventType)
	}

	for _, item := range payload.Items {
		if err := l.stock.Deduct(ctx, item.MedicationID, item.DispensedQuantity); err != nil {
			l.logger.ErrorContext(ctx, "failed to deduct stock",
				"prescription_id", env.AggregateID.String(),
				"medication_id", item.MedicationID,
				"quantity", item.DispensedQuantity,
				"error", err,
			)
			continue
		}
		l.logger.InfoContext(ctx, "stock deducted",
			"medication_id", item.MedicationID,
			"quantity", item.DispensedQuantity,
		)
	}
	return nil
}

// InMemoryStock is the default stock store. Levels rebuild from the event
// log on restart, so volatility is acceptable here.
type InMemoryStock struct {
	mu     sync.RWMutex
	levels map[string]float64
}

func NewInMemoryStock() *InMemoryStock {
	return &InMemoryStock{levels: make(map[string]float64)}
}

func (s *InMemoryStock) Deduct(_ context.Context, medicationID string, quantity float64) error {
	if quantity < 0 {
		return fmt.Errorf("negative deduction %f for medication %s", quantity, medicationID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.levels[medicationID] -= quantity
	return nil
}

func (s *InMemoryStock) Level(_ context.Context, medicationID string) (float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.levels[medicationID], nil
}

func (s *InMemoryStock) Set(_ context.Context, medicationID string, level float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.levels[medicationID] = level
}
