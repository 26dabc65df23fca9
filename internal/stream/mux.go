package stream

import (
	"context"
)

// HandleFunc processes one decoded envelope of a known type.
type HandleFunc func(ctx context.Context, env Envelope) error

// Mux dispatches envelopes by their type string. Types without a registered
// function fall through to the filtering path (CanHandle false), which the
// consumer acknowledges without side effects.
type Mux struct {
	handlers map[string]HandleFunc
}

func NewMux() *Mux {
	return &Mux{handlers: make(map[string]HandleFunc)}
}

// On registers fn for the given event type, replacing any previous entry.
func (m *Mux) On(eventType string, fn HandleFunc) *Mux {
	m.handlers[eventType] = fn
	return m
}

func (m *Mux) CanHandle(eventType string) bool {
	_, ok := m.handlers[eventType]
	return ok
}

func (m *Mux) Handle(ctx context.Context, env Envelope) error {
	fn, ok := m.handlers[env.Type]
	if !ok {
		return nil
	}
	return fn(ctx, env)
}
