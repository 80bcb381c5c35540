package usecase

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/rocketscienceinc/tictactoe-hub/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-hub/internal/entity"
	"github.com/rocketscienceinc/tictactoe-hub/pkg/metrics"
)

const DefaultOutboxSize = 256

// Outbox is the bounded outbound queue of one connection. The events channel is never closed;
// writers stop once Done is closed.
type Outbox struct {
	events chan entity.Event
	done   chan struct{}

	once sync.Once
	err  error
}

func NewOutbox(size int) *Outbox {
	if size <= 0 {
		size = DefaultOutboxSize
	}

	return &Outbox{
		events: make(chan entity.Event, size),
		done:   make(chan struct{}),
	}
}

func (that *Outbox) Events() <-chan entity.Event {
	return that.events
}

func (that *Outbox) Done() <-chan struct{} {
	return that.done
}

// Err returns why the outbox was closed. It is nil for a regular close.
func (that *Outbox) Err() error {
	select {
	case <-that.done:
		return that.err
	default:
		return nil
	}
}

// Push queues event without blocking. A full queue closes the outbox with ErrOutboxOverflow.
func (that *Outbox) Push(event entity.Event) error {
	select {
	case <-that.done:
		return apperror.ErrSessionClosed
	default:
	}

	select {
	case that.events <- event:
		return nil
	default:
		that.Close(apperror.ErrOutboxOverflow)
		return apperror.ErrOutboxOverflow
	}
}

func (that *Outbox) Close(reason error) {
	that.once.Do(func() {
		that.err = reason
		close(that.done)
	})
}

// Router maps authenticated identities to their outboxes.
type Router struct {
	logger *slog.Logger

	mu       sync.RWMutex
	outboxes map[string]*Outbox
}

func NewRouter(logger *slog.Logger) *Router {
	return &Router{
		logger:   logger.With("component", "router"),
		outboxes: make(map[string]*Outbox),
	}
}

// Bind claims identity for outbox. An identity can be bound to one live connection only.
func (that *Router) Bind(identity string, outbox *Outbox) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	if _, ok := that.outboxes[identity]; ok {
		return fmt.Errorf("%w: %s is already connected", apperror.ErrAuthenticationFailed, identity)
	}

	that.outboxes[identity] = outbox

	return nil
}

// Unbind releases identity if it is still bound to outbox.
func (that *Router) Unbind(identity string, outbox *Outbox) {
	that.mu.Lock()
	defer that.mu.Unlock()

	if that.outboxes[identity] == outbox {
		delete(that.outboxes, identity)
	}
}

// Deliver queues event for identity. Unknown identities are skipped.
func (that *Router) Deliver(identity string, event entity.Event) {
	that.mu.RLock()
	outbox, ok := that.outboxes[identity]
	that.mu.RUnlock()

	if !ok {
		return
	}

	if err := outbox.Push(event); errors.Is(err, apperror.ErrOutboxOverflow) {
		metrics.OutboxOverflows.Inc()
		that.logger.Warn("dropping slow consumer", "identity", identity, "event", event.Type, "room", event.Room)
	}
}

func (that *Router) Online(identity string) bool {
	that.mu.RLock()
	defer that.mu.RUnlock()

	_, ok := that.outboxes[identity]

	return ok
}

func (that *Router) Len() int {
	that.mu.RLock()
	defer that.mu.RUnlock()

	return len(that.outboxes)
}
