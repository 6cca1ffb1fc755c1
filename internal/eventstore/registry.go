package eventstore

import (
	"fmt"
	"sort"
	"sync"
)

// DecodeFunc rebuilds a typed envelope from a stored event. Implementations
// decode the structural payload into the producer's payload type and carry
// over the envelope identity fields from the stored row.
type DecodeFunc func(stored StoredEvent) (Envelope, error)

// Registry maps event type tags to decode rules. Rules are registered at
// startup and read-mostly afterwards; an unregistered tag is a deliberate,
// loggable runtime condition rather than a silent nil.
type Registry struct {
	mu    sync.RWMutex
	rules map[string]DecodeFunc
}

func NewRegistry() *Registry {
	return &Registry{rules: make(map[string]DecodeFunc)}
}

// Register installs the decode rule for eventType. Registering the same type
// twice panics: it is a wiring bug, caught at startup.
func (r *Registry) Register(eventType string, fn DecodeFunc) {
	if eventType == "" || fn == nil {
		panic("eventstore: Register requires an event type and a decode func")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.rules[eventType]; dup {
		panic(fmt.Sprintf("eventstore: decode rule for %q registered twice", eventType))
	}
	r.rules[eventType] = fn
}

// Decode reconstructs a typed envelope from a stored event. Returns
// ErrUnknownEventType (wrapped) when no rule is registered for the tag.
func (r *Registry) Decode(stored StoredEvent) (Envelope, error) {
	r.mu.RLock()
	fn, ok := r.rules[stored.EventType]
	r.mu.RUnlock()
	if !ok {
		return Envelope{}, fmt.Errorf("%w: %q", ErrUnknownEventType, stored.EventType)
	}
	return fn(stored)
}

// Registered reports whether a decode rule exists for eventType.
func (r *Registry) Registered(eventType string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.rules[eventType]
	return ok
}

// Types returns the registered event type tags in stable order.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]string, 0, len(r.rules))
	for t := range r.rules {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}
