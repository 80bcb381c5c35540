package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/rocketscienceinc/tictactoe-hub/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-hub/internal/entity"
	"github.com/rocketscienceinc/tictactoe-hub/internal/tictactoe"
	"github.com/rocketscienceinc/tictactoe-hub/pkg/metrics"
)

const DefaultMaxViolations = 5

type authenticator interface {
	Authenticate(ctx context.Context, username, password string) (bool, error)
	Register(ctx context.Context, username, password string) error
}

type roomRegistry interface {
	Create(name, creator string) (*tictactoe.Room, error)
	Get(name string) (*tictactoe.Room, error)
	List() []entity.RoomSummary
	RemoveIfEmpty(name string) bool
}

type Phase int

const (
	PhaseUnauthenticated Phase = iota
	PhaseLobby
	PhaseInRoom
	PhaseClosed
)

func (that Phase) String() string {
	switch that {
	case PhaseUnauthenticated:
		return "unauthenticated"
	case PhaseLobby:
		return "lobby"
	case PhaseInRoom:
		return "in_room"
	case PhaseClosed:
		return "closed"
	default:
		return "unknown"
	}
}

type handlerFunc func(ctx context.Context, req Request) error

// Session is the per-connection actor. Requests of one connection are handled one at a time.
type Session struct {
	id            string
	logger        *slog.Logger
	auth          authenticator
	rooms         roomRegistry
	router        *Router
	outbox        *Outbox
	maxViolations int
	handlers      map[Action]handlerFunc

	mu         sync.Mutex
	phase      Phase
	identity   string
	room       string
	role       entity.Role
	violations int
}

func newSession(id string, logger *slog.Logger, auth authenticator, rooms roomRegistry, router *Router, outbox *Outbox, maxViolations int) *Session {
	if maxViolations <= 0 {
		maxViolations = DefaultMaxViolations
	}

	session := &Session{
		id:            id,
		logger:        logger.With("component", "session", "session", id),
		auth:          auth,
		rooms:         rooms,
		router:        router,
		outbox:        outbox,
		maxViolations: maxViolations,
		phase:         PhaseUnauthenticated,
	}

	session.handlers = map[Action]handlerFunc{
		ActionLogin:      session.handleLogin,
		ActionRegister:   session.handleRegister,
		ActionListRooms:  session.handleListRooms,
		ActionCreateRoom: session.handleCreateRoom,
		ActionJoinRoom:   session.handleJoinRoom,
		ActionWatchRoom:  session.handleWatchRoom,
		ActionChat:       session.handleChat,
		ActionLeaveRoom:  session.handleLeaveRoom,
		ActionTurn:       session.handleTurn,
		ActionRematch:    session.handleRematch,
		ActionForfeit:    session.handleForfeit,
	}

	return session
}

func (that *Session) ID() string {
	return that.id
}

func (that *Session) Outbox() *Outbox {
	return that.outbox
}

func (that *Session) Identity() string {
	that.mu.Lock()
	defer that.mu.Unlock()

	return that.identity
}

func (that *Session) Phase() Phase {
	that.mu.Lock()
	defer that.mu.Unlock()

	return that.phase
}

// Handle executes one request. Rejected requests are reported to the client as ErrorNotice events;
// the returned error is non-nil only when the connection must be closed.
func (that *Session) Handle(ctx context.Context, req Request) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	if that.phase == PhaseClosed {
		return apperror.ErrSessionClosed
	}

	handler, ok := that.handlers[req.Action]
	if !ok {
		return that.reject(fmt.Errorf("%w: unknown action %q", apperror.ErrProtocolViolation, req.Action))
	}

	if err := handler(ctx, req); err != nil {
		that.logger.Debug("request rejected", "action", req.Action, "phase", that.phase, "error", err)
		return that.reject(err)
	}

	return nil
}

// Reject reports a request that could not be decoded.
func (that *Session) Reject(err error) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	if that.phase == PhaseClosed {
		return apperror.ErrSessionClosed
	}

	return that.reject(err)
}

// Close leaves the current room and releases the identity. It is safe to call more than once.
func (that *Session) Close(_ context.Context) {
	that.mu.Lock()
	defer that.mu.Unlock()

	if that.phase == PhaseClosed {
		return
	}

	if that.phase == PhaseInRoom {
		if err := that.leave(); err != nil {
			that.logger.Error("failed to leave room on disconnect", "room", that.room, "error", err)
		}
	}

	if that.identity != "" {
		that.router.Unbind(that.identity, that.outbox)
	}

	that.phase = PhaseClosed
	that.outbox.Close(nil)
	metrics.SessionsActive.Dec()

	that.logger.Info("session closed", "identity", that.identity)
}

func (that *Session) reject(err error) error {
	kind := apperror.KindOf(err)

	if kind == apperror.KindInternal {
		that.logger.Error("request failed", "error", err)
	}

	if err := that.outbox.Push(entity.NewErrorNotice(kind, err.Error())); err != nil {
		that.logger.Warn("failed to queue error notice", "error", err)
	}

	if kind != apperror.KindProtocolViolation {
		return nil
	}

	metrics.ProtocolViolations.Inc()

	that.violations++
	if that.violations >= that.maxViolations {
		return fmt.Errorf("%w: %d violations", apperror.ErrTooManyViolations, that.violations)
	}

	return nil
}

func (that *Session) requirePhase(action Action, phases ...Phase) error {
	for _, phase := range phases {
		if that.phase == phase {
			return nil
		}
	}

	return fmt.Errorf("%w: %s is not allowed while %s", apperror.ErrProtocolViolation, action, that.phase)
}

func (that *Session) handleLogin(ctx context.Context, req Request) error {
	if err := that.requirePhase(req.Action, PhaseUnauthenticated); err != nil {
		return err
	}

	username := strings.TrimSpace(req.Username)
	if username == "" || req.Password == "" {
		return fmt.Errorf("%w: username and password are required", apperror.ErrProtocolViolation)
	}

	ok, err := that.auth.Authenticate(ctx, username, req.Password)
	if err != nil {
		return fmt.Errorf("failed to authenticate: %w", err)
	}

	if !ok {
		return fmt.Errorf("%w: wrong username or password", apperror.ErrAuthenticationFailed)
	}

	if err = that.router.Bind(username, that.outbox); err != nil {
		return err
	}

	that.identity = username
	that.phase = PhaseLobby
	that.logger = that.logger.With("identity", username)

	that.send(entity.Event{Type: entity.EventAuthenticated, Username: username})
	that.logger.Info("authenticated")

	return nil
}

func (that *Session) handleRegister(ctx context.Context, req Request) error {
	if err := that.requirePhase(req.Action, PhaseUnauthenticated); err != nil {
		return err
	}

	username := strings.TrimSpace(req.Username)
	if username == "" || req.Password == "" {
		return fmt.Errorf("%w: username and password are required", apperror.ErrProtocolViolation)
	}

	if err := that.auth.Register(ctx, username, req.Password); err != nil {
		return fmt.Errorf("failed to register: %w", err)
	}

	that.send(entity.Event{Type: entity.EventRegistered, Username: username})

	return nil
}

func (that *Session) handleListRooms(_ context.Context, req Request) error {
	if err := that.requirePhase(req.Action, PhaseLobby, PhaseInRoom); err != nil {
		return err
	}

	rooms, err := entity.FilterRooms(that.rooms.List(), req.Mode)
	if err != nil {
		return fmt.Errorf("%w: %w", apperror.ErrProtocolViolation, err)
	}

	that.send(entity.Event{Type: entity.EventRoomList, Rooms: rooms})

	return nil
}

func (that *Session) handleCreateRoom(_ context.Context, req Request) error {
	if err := that.requirePhase(req.Action, PhaseLobby); err != nil {
		return err
	}

	room, err := that.rooms.Create(req.Room, that.identity)
	if err != nil {
		return err
	}

	that.enter(room.Name(), entity.RolePlayer)

	return nil
}

func (that *Session) handleJoinRoom(_ context.Context, req Request) error {
	if err := that.requirePhase(req.Action, PhaseLobby); err != nil {
		return err
	}

	room, err := that.rooms.Get(req.Room)
	if err != nil {
		return err
	}

	role, err := room.Join(that.identity)
	if err != nil {
		return err
	}

	that.enter(room.Name(), role)

	return nil
}

func (that *Session) handleWatchRoom(_ context.Context, req Request) error {
	if err := that.requirePhase(req.Action, PhaseLobby); err != nil {
		return err
	}

	room, err := that.rooms.Get(req.Room)
	if err != nil {
		return err
	}

	if err = room.Watch(that.identity); err != nil {
		return err
	}

	that.enter(room.Name(), entity.RoleSpectator)

	return nil
}

func (that *Session) handleTurn(_ context.Context, req Request) error {
	if err := that.requirePhase(req.Action, PhaseInRoom); err != nil {
		return err
	}

	if that.role != entity.RolePlayer {
		return fmt.Errorf("%w: spectators cannot move", apperror.ErrProtocolViolation)
	}

	if req.Position == nil {
		return fmt.Errorf("%w: position is required", apperror.ErrProtocolViolation)
	}

	room, err := that.currentRoom()
	if err != nil {
		return err
	}

	return room.SubmitMove(that.identity, *req.Position)
}

func (that *Session) handleRematch(_ context.Context, req Request) error {
	if err := that.requirePhase(req.Action, PhaseInRoom); err != nil {
		return err
	}

	room, err := that.currentRoom()
	if err != nil {
		return err
	}

	return room.Rematch(that.identity)
}

func (that *Session) handleForfeit(_ context.Context, req Request) error {
	if err := that.requirePhase(req.Action, PhaseInRoom); err != nil {
		return err
	}

	room, err := that.currentRoom()
	if err != nil {
		return err
	}

	return room.Forfeit(that.identity)
}

func (that *Session) handleChat(_ context.Context, req Request) error {
	if err := that.requirePhase(req.Action, PhaseInRoom); err != nil {
		return err
	}

	room, err := that.currentRoom()
	if err != nil {
		return err
	}

	return room.Chat(that.identity, req.Text)
}

func (that *Session) handleLeaveRoom(_ context.Context, req Request) error {
	if err := that.requirePhase(req.Action, PhaseInRoom); err != nil {
		return err
	}

	return that.leave()
}

func (that *Session) enter(room string, role entity.Role) {
	that.room = room
	that.role = role
	that.phase = PhaseInRoom

	that.logger.Info("entered room", "room", room, "role", role)
}

// leave removes the session from its room and drops the room once it is empty.
// The session always ends up in the lobby.
func (that *Session) leave() error {
	name := that.room

	defer func() {
		that.room = ""
		that.role = entity.RoleNone
		that.phase = PhaseLobby
	}()

	room, err := that.rooms.Get(name)
	if err != nil {
		return err
	}

	empty, err := room.Leave(that.identity)
	if err != nil && !errors.Is(err, apperror.ErrRoomNotFound) {
		return err
	}

	if empty {
		that.rooms.RemoveIfEmpty(name)
	}

	that.logger.Info("left room", "room", name)

	return nil
}

func (that *Session) currentRoom() (*tictactoe.Room, error) {
	room, err := that.rooms.Get(that.room)
	if err != nil {
		return nil, fmt.Errorf("failed to get current room: %w", err)
	}

	return room, nil
}

// send queues a private event for this connection.
func (that *Session) send(event entity.Event) {
	if err := that.outbox.Push(event); err != nil {
		that.logger.Warn("failed to queue event", "event", event.Type, "error", err)
	}
}
