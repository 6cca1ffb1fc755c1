// Package access records authentication activity into the event log.
// Authentication decisions happen in the external identity service; this
// recorder only turns "a session was first seen here" into a durable
// UserLoggedIn event, via the regular publish contract.
package access

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"rxledger/internal/events"
	"rxledger/internal/eventstore"
	"rxledger/pkg/platform/tx"
	"rxledger/pkg/requestcontext"
)

// Publisher is the slice of the event publisher the recorder needs.
type Publisher interface {
	Publish(ctx context.Context, env eventstore.Envelope) error
}

// Recorder publishes a login event the first time each session appears.
type Recorder struct {
	txm       *tx.Manager
	publisher Publisher
	logger    *slog.Logger

	mu   sync.Mutex
	seen map[string]struct{}
}

func NewRecorder(txm *tx.Manager, publisher Publisher, logger *slog.Logger) *Recorder {
	return &Recorder{
		txm:       txm,
		publisher: publisher,
		logger:    logger,
		seen:      make(map[string]struct{}),
	}
}

// RecordSessionSeen publishes a UserLoggedIn event for a newly observed
// session. Repeat sightings are ignored locally; a concurrent duplicate from
// another path is absorbed by the publisher's idempotency anyway.
func (r *Recorder) RecordSessionSeen(ctx context.Context, userID uuid.UUID, sessionID, username string) {
	if sessionID == "" || userID == uuid.Nil {
		return
	}

	r.mu.Lock()
	if _, dup := r.seen[sessionID]; dup {
		r.mu.Unlock()
		return
	}
	r.seen[sessionID] = struct{}{}
	r.mu.Unlock()

	device := events.ParseDevice(requestcontext.UserAgent(ctx))
	payload := events.UserLoggedInPayload{
		Username:  username,
		IPAddress: requestcontext.ClientIP(ctx),
		UserAgent: requestcontext.UserAgent(ctx),
		Browser:   device.Browser,
		OS:        device.OS,
		SessionID: sessionID,
		LoginAt:   requestcontext.Now(ctx).UTC(),
	}

	err := r.txm.RunInTx(ctx, func(txCtx context.Context) error {
		return r.publisher.Publish(txCtx, events.NewUserLoggedIn(userID, payload))
	})
	if err != nil {
		r.logger.ErrorContext(ctx, "failed to record login event",
			"user_id", userID.String(),
			"session_id", sessionID,
			"error", err,
		)
	}
}
