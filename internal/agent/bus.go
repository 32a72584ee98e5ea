package agent

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Veraticus/billsplit/internal/metrics"
)

// DefaultMailboxSize bounds each actor's queue when no size is configured.
const DefaultMailboxSize = 64

type mailbox struct {
	handler Handler
	ch      chan Envelope
	name    string
}

// Bus is an in-process Dispatcher. Every registered actor gets a buffered
// mailbox drained by its own goroutine, so an actor handles one envelope at a
// time while different actors run concurrently.
type Bus struct {
	ctx    context.Context
	logger *slog.Logger
	actors map[string]*mailbox
	cancel context.CancelFunc
	wg     sync.WaitGroup
	size   int
	mu     sync.RWMutex
	closed bool
}

// NewBus creates a bus whose mailboxes hold size envelopes each.
func NewBus(size int, logger *slog.Logger) *Bus {
	if size <= 0 {
		size = DefaultMailboxSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Bus{
		ctx:    ctx,
		cancel: cancel,
		logger: logger,
		actors: make(map[string]*mailbox),
		size:   size,
	}
}

// Register starts an actor under name.
func (b *Bus) Register(name string, h Handler) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrBusClosed
	}
	if _, exists := b.actors[name]; exists {
		return fmt.Errorf("actor %q already registered", name)
	}

	mb := &mailbox{name: name, handler: h, ch: make(chan Envelope, b.size)}
	b.actors[name] = mb

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.run(mb)
	}()
	return nil
}

func (b *Bus) run(mb *mailbox) {
	for {
		select {
		case <-b.ctx.Done():
			if n := len(mb.ch); n > 0 {
				b.logger.Info("Draining mailbox before shutdown", "actor", mb.name, "remaining", n)
			}
			for len(mb.ch) > 0 {
				b.dispatch(context.Background(), mb, <-mb.ch)
			}
			return
		case env := <-mb.ch:
			b.dispatch(b.ctx, mb, env)
		}
	}
}

func (b *Bus) dispatch(ctx context.Context, mb *mailbox, env Envelope) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("Actor panicked", "actor", mb.name, "kind", env.Kind, "request_id", env.RequestID, "panic", r)
			metrics.ObserveAgentMessage(string(env.Kind), metrics.OutcomeError, nil)
		}
	}()

	err := mb.handler.Handle(ctx, env)
	metrics.ObserveAgentMessage(string(env.Kind), "", err)
	if err != nil {
		b.logger.Error("Actor failed to handle envelope",
			"actor", mb.name,
			"kind", env.Kind,
			"request_id", env.RequestID,
			"error", err)
	}
}

// Send enqueues env for the actor named to without blocking. A full mailbox
// drops the envelope and returns ErrMailboxFull.
func (b *Bus) Send(_ context.Context, to string, env Envelope) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return ErrBusClosed
	}
	mb, ok := b.actors[to]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownActor, to)
	}

	env.To = to
	select {
	case mb.ch <- env:
		return nil
	default:
		b.logger.Warn("Mailbox full, dropping envelope", "actor", to, "kind", env.Kind, "request_id", env.RequestID)
		metrics.ObserveAgentMessage(string(env.Kind), metrics.OutcomeDropped, nil)
		return fmt.Errorf("%w: %s", ErrMailboxFull, to)
	}
}

// Has reports whether an actor is registered under name.
func (b *Bus) Has(name string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.actors[name]
	return ok
}

// Shutdown stops accepting envelopes, lets every actor drain its mailbox and
// waits for them to finish.
func (b *Bus) Shutdown() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	b.mu.Unlock()

	b.cancel()
	b.wg.Wait()
}
