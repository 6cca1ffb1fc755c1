package eventstore

import "errors"

var (
	// ErrDuplicateEvent signals an insert hit the event_id uniqueness
	// constraint. The publisher treats it as an idempotent no-op; callers
	// never see it as a failure.
	ErrDuplicateEvent = errors.New("duplicate event id")

	// ErrNoActiveTransaction signals Publish was invoked outside a unit of
	// work. This is programmer misuse and aborts before any storage attempt.
	ErrNoActiveTransaction = errors.New("publish requires an active transaction")

	// ErrUnknownEventType signals replay encountered a type tag with no
	// registered decode rule. Replay logs and skips the event.
	ErrUnknownEventType = errors.New("no decode rule registered for event type")
)
