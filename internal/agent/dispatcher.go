package agent

import (
	"context"
	"errors"
	"strings"
)

var (
	// ErrUnknownActor is returned when no actor is registered under an address.
	ErrUnknownActor = errors.New("unknown actor")
	// ErrMailboxFull is returned when an actor's mailbox cannot accept more
	// envelopes. The envelope is dropped.
	ErrMailboxFull = errors.New("mailbox full")
	// ErrBusClosed is returned for sends after Shutdown.
	ErrBusClosed = errors.New("bus closed")
)

// Dispatcher delivers an envelope to an address. Delivery is fire-and-forget
// and at most once: a nil error means the envelope was accepted, not handled.
type Dispatcher interface {
	Send(ctx context.Context, to string, env Envelope) error
}

// Handler processes envelopes delivered to one actor.
type Handler interface {
	Handle(ctx context.Context, env Envelope) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, env Envelope) error

// Handle calls f.
func (f HandlerFunc) Handle(ctx context.Context, env Envelope) error {
	return f(ctx, env)
}

// IsRemote reports whether an address names a remote process.
func IsRemote(address string) bool {
	return strings.HasPrefix(address, "http://") || strings.HasPrefix(address, "https://")
}

// MultiDispatcher sends to http(s) addresses over HTTP and to everything else
// through the local dispatcher.
type MultiDispatcher struct {
	Local  Dispatcher
	Remote Dispatcher
}

// Send implements Dispatcher.
func (m *MultiDispatcher) Send(ctx context.Context, to string, env Envelope) error {
	if IsRemote(to) {
		if m.Remote == nil {
			return ErrUnknownActor
		}
		return m.Remote.Send(ctx, to, env)
	}
	if m.Local == nil {
		return ErrUnknownActor
	}
	return m.Local.Send(ctx, to, env)
}
