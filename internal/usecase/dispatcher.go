package usecase

import (
	"log/slog"

	"github.com/google/uuid"

	"github.com/rocketscienceinc/tictactoe-hub/pkg/metrics"
)

type Limits struct {
	MaxViolations int
	OutboxSize    int
}

// Dispatcher creates a Session per connection. Room events reach sessions through the shared Router.
type Dispatcher struct {
	logger *slog.Logger
	auth   authenticator
	rooms  roomRegistry
	router *Router
	limits Limits
}

func NewDispatcher(logger *slog.Logger, auth authenticator, rooms roomRegistry, router *Router, limits Limits) *Dispatcher {
	return &Dispatcher{
		logger: logger,
		auth:   auth,
		rooms:  rooms,
		router: router,
		limits: limits,
	}
}

// Connect starts a new unauthenticated session. The caller must Close it when the connection ends.
func (that *Dispatcher) Connect() *Session {
	id := uuid.NewString()
	session := newSession(id, that.logger, that.auth, that.rooms, that.router, NewOutbox(that.limits.OutboxSize), that.limits.MaxViolations)

	metrics.SessionsActive.Inc()
	that.logger.Debug("session opened", "session", id)

	return session
}
