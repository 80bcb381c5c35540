package tictactoe

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/rocketscienceinc/tictactoe-hub/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-hub/internal/entity"
	"github.com/rocketscienceinc/tictactoe-hub/pkg/metrics"
)

const MaxChatLength = 256

// Broadcaster delivers room events to a member's outbound queue. Deliver is called with the room lock held
// and must not block.
type Broadcaster interface {
	Deliver(identity string, event entity.Event)
}

// Room pairs one game with its members. All mutations and the resulting fan-out run under mu,
// so every member observes events in commit order.
type Room struct {
	logger *slog.Logger
	out    Broadcaster

	mu      sync.Mutex
	name    string
	creator string
	game    *entity.Game
	roles   map[string]entity.Role
	members []string // join order
	seq     uint64
	closed  bool

	staged []delivery
}

// delivery is an event addressed during a mutation and sent once the mutation commits.
type delivery struct {
	targets []string
	event   entity.Event
}

type checkpoint struct {
	game    entity.Game
	roles   map[string]entity.Role
	members []string
	seq     uint64
}

func newRoom(logger *slog.Logger, out Broadcaster, name, creator string) *Room {
	return &Room{
		logger: logger.With("component", "room", "room", name),
		out:    out,

		name:    name,
		creator: creator,
		game:    entity.NewGame(),
		roles:   make(map[string]entity.Role),
	}
}

func (that *Room) Name() string {
	return that.name
}

// Join adds identity as a player when a seat is open and the game waits, otherwise as a spectator.
func (that *Room) Join(identity string) (entity.Role, error) {
	var role entity.Role

	err := that.mutate("join", identity, func() error {
		var err error
		role, err = that.join(identity, false)

		return err
	})

	return role, err
}

// Watch adds identity as a spectator and sends it the current board.
func (that *Room) Watch(identity string) error {
	return that.mutate("watch", identity, func() error {
		_, err := that.join(identity, true)

		return err
	})
}

// Leave removes identity from the room. A player leaving an ongoing game forfeits it.
// It reports whether the room is now empty.
func (that *Room) Leave(identity string) (bool, error) {
	var empty bool

	err := that.mutate("leave", identity, func() error {
		role, err := that.roleOf(identity)
		if err != nil {
			return err
		}

		if role == entity.RolePlayer && that.game.IsInProgress() {
			if err = that.forfeit(identity); err != nil {
				return err
			}
		}

		that.broadcast(entity.Event{
			Type:     entity.EventMemberLeft,
			Username: identity,
			Role:     role,
		})
		that.removeMember(identity)

		if role == entity.RolePlayer {
			that.game.Unseat(identity)

			// the free seat can only be taken once the finished game is cleared
			if that.game.IsFinished() {
				if err = that.game.Reset(false); err != nil {
					return err
				}
				that.broadcast(entity.BoardEvent(that.name, *that.game))
			}
		}

		empty = len(that.members) == 0

		return nil
	})

	return empty, err
}

// SubmitMove applies a move for a seated player and broadcasts the new board.
func (that *Room) SubmitMove(identity string, position int) error {
	return that.mutate("move", identity, func() error {
		if _, err := that.roleOf(identity); err != nil {
			return err
		}

		outcome, err := that.game.SubmitMove(identity, position)
		if err != nil {
			return err
		}

		that.broadcast(entity.BoardEvent(that.name, *that.game))

		if outcome.IsFinal() {
			metrics.GamesFinished.WithLabelValues(string(outcome.Kind)).Inc()
			that.broadcast(entity.GameEndedEvent(that.name, *that.game))
			that.logger.Info("game finished", "result", outcome.Kind, "winner", outcome.Winner)
		}

		return nil
	})
}

// Forfeit lets a seated player give up the ongoing game.
func (that *Room) Forfeit(identity string) error {
	return that.mutate("forfeit", identity, func() error {
		role, err := that.roleOf(identity)
		if err != nil {
			return err
		}

		if role != entity.RolePlayer {
			return fmt.Errorf("%w: spectators cannot forfeit", apperror.ErrProtocolViolation)
		}

		return that.forfeit(identity)
	})
}

// Rematch starts a new game with swapped marks once the previous one finished.
func (that *Room) Rematch(identity string) error {
	return that.mutate("rematch", identity, func() error {
		role, err := that.roleOf(identity)
		if err != nil {
			return err
		}

		if role != entity.RolePlayer {
			return fmt.Errorf("%w: spectators cannot start a rematch", apperror.ErrProtocolViolation)
		}

		switch {
		case that.game.IsInProgress():
			return apperror.ErrGameInProgress
		case that.game.IsWaiting():
			return fmt.Errorf("%w: waiting for an opponent", apperror.ErrGameNotInProgress)
		}

		if err = that.game.Reset(true); err != nil {
			return err
		}

		that.started()

		return nil
	})
}

// Chat broadcasts text from a member to the whole room.
func (that *Room) Chat(identity, text string) error {
	return that.mutate("chat", identity, func() error {
		if _, err := that.roleOf(identity); err != nil {
			return err
		}

		text = strings.TrimSpace(text)
		if text == "" || utf8.RuneCountInString(text) > MaxChatLength {
			return fmt.Errorf("%w: chat message must be 1-%d characters", apperror.ErrProtocolViolation, MaxChatLength)
		}

		that.broadcast(entity.Event{
			Type:     entity.EventChatMessage,
			Username: identity,
			Text:     text,
		})

		return nil
	})
}

// Describe returns a point-in-time summary of the room.
func (that *Room) Describe() entity.RoomSummary {
	that.mu.Lock()
	defer that.mu.Unlock()

	spectators := 0
	for _, role := range that.roles {
		if role == entity.RoleSpectator {
			spectators++
		}
	}

	return entity.RoomSummary{
		Name:       that.name,
		Creator:    that.creator,
		Players:    that.game.Players,
		Spectators: spectators,
		Status:     that.game.Status,
	}
}

// Game returns a copy of the current game.
func (that *Room) Game() entity.Game {
	that.mu.Lock()
	defer that.mu.Unlock()

	return that.game.Snapshot()
}

func (that *Room) IsEmpty() bool {
	that.mu.Lock()
	defer that.mu.Unlock()

	return len(that.members) == 0
}

// create seats the creator. It runs while the registry still holds its lock.
func (that *Room) create() error {
	return that.mutate("create", that.creator, func() error {
		that.broadcastTo([]string{that.creator}, entity.Event{
			Type:     entity.EventRoomCreated,
			Username: that.creator,
		})

		_, err := that.join(that.creator, false)

		return err
	})
}

// closeIfEmpty marks an empty room as closed so stale references stop accepting members.
func (that *Room) closeIfEmpty() bool {
	that.mu.Lock()
	defer that.mu.Unlock()

	if len(that.members) > 0 {
		return false
	}

	that.closed = true

	return true
}

// mutate runs fn under the room lock and then sends the events it staged, in order.
// A panic in fn restores the room to its state before fn and drops the staged events.
func (that *Room) mutate(op, identity string, fn func() error) error {
	logger := that.logger.With("method", op, "identity", identity)

	that.mu.Lock()
	defer that.mu.Unlock()

	if that.closed {
		return fmt.Errorf("%w: %s", apperror.ErrRoomNotFound, that.name)
	}

	err := that.apply(op, fn, logger)
	if err != nil && !errors.Is(err, apperror.ErrInternal) {
		logger.Debug("rejected", "error", err)
	}

	that.flush(logger)

	return err
}

func (that *Room) apply(op string, fn func() error, logger *slog.Logger) (err error) {
	saved := that.save()

	defer func() {
		if r := recover(); r != nil {
			that.restore(saved)
			metrics.RoomPanics.Inc()
			logger.Error("recovered panic", "panic", r, "stack", string(debug.Stack()))
			err = fmt.Errorf("%w: %s failed", apperror.ErrInternal, op)
		}
	}()

	return fn()
}

func (that *Room) save() checkpoint {
	roles := make(map[string]entity.Role, len(that.roles))
	for identity, role := range that.roles {
		roles[identity] = role
	}

	return checkpoint{
		game:    *that.game,
		roles:   roles,
		members: append([]string(nil), that.members...),
		seq:     that.seq,
	}
}

func (that *Room) restore(saved checkpoint) {
	*that.game = saved.game
	that.roles = saved.roles
	that.members = saved.members
	that.seq = saved.seq
	that.staged = nil
}

// flush sends the staged events. The state is already committed, so a failing delivery only loses that one event.
func (that *Room) flush(logger *slog.Logger) {
	staged := that.staged
	that.staged = nil

	for _, d := range staged {
		for _, identity := range d.targets {
			that.send(identity, d.event, logger)
		}
	}
}

func (that *Room) send(identity string, event entity.Event, logger *slog.Logger) {
	defer func() {
		if r := recover(); r != nil {
			metrics.RoomPanics.Inc()
			logger.Error("recovered panic in delivery", "to", identity, "event", event.Type, "panic", r)
		}
	}()

	that.out.Deliver(identity, event)
}

func (that *Room) join(identity string, watch bool) (entity.Role, error) {
	if _, ok := that.roles[identity]; ok {
		return entity.RoleNone, fmt.Errorf("%w: %s", apperror.ErrUsernameAlreadyInRoom, identity)
	}

	if !watch && that.game.IsWaiting() && !that.game.Players.Full() {
		if _, err := that.game.AssignPlayer(identity); err != nil {
			return entity.RoleNone, err
		}

		that.addMember(identity, entity.RolePlayer)

		players := that.game.Players
		that.broadcast(entity.Event{
			Type:     entity.EventPlayerJoined,
			Username: identity,
			Role:     entity.RolePlayer,
			Players:  &players,
			Status:   that.game.Status,
		})

		if that.game.IsInProgress() {
			that.started()
		}

		return entity.RolePlayer, nil
	}

	that.addMember(identity, entity.RoleSpectator)

	that.broadcast(entity.Event{
		Type:     entity.EventSpectatorJoined,
		Username: identity,
		Role:     entity.RoleSpectator,
	})
	that.broadcastTo([]string{identity}, entity.BoardEvent(that.name, *that.game))

	return entity.RoleSpectator, nil
}

func (that *Room) started() {
	metrics.GamesStarted.Inc()

	players := that.game.Players
	that.broadcast(entity.Event{
		Type:    entity.EventGameStarted,
		Players: &players,
		Turn:    that.game.Turn,
		Status:  that.game.Status,
	})
	that.broadcast(entity.BoardEvent(that.name, *that.game))

	that.logger.Info("game started", "x", players.X, "o", players.O)
}

func (that *Room) forfeit(identity string) error {
	outcome, err := that.game.Forfeit(identity)
	if err != nil {
		return err
	}

	metrics.GamesFinished.WithLabelValues("forfeit").Inc()
	that.broadcast(entity.GameEndedEvent(that.name, *that.game))
	that.logger.Info("game forfeited", "loser", identity, "winner", outcome.Winner)

	return nil
}

func (that *Room) roleOf(identity string) (entity.Role, error) {
	role, ok := that.roles[identity]
	if !ok {
		return entity.RoleNone, fmt.Errorf("%w: %s is not in room %s", apperror.ErrProtocolViolation, identity, that.name)
	}

	return role, nil
}

func (that *Room) addMember(identity string, role entity.Role) {
	that.roles[identity] = role
	that.members = append(that.members, identity)
}

func (that *Room) removeMember(identity string) {
	delete(that.roles, identity)

	for i, member := range that.members {
		if member == identity {
			that.members = append(that.members[:i], that.members[i+1:]...)
			break
		}
	}
}

// broadcast stamps the next sequence number and addresses every member in join order.
func (that *Room) broadcast(event entity.Event) {
	that.seq++
	that.stage(that.members, event)
}

// broadcastTo addresses a private event. It carries the current sequence number without advancing it.
func (that *Room) broadcastTo(targets []string, event entity.Event) {
	that.stage(targets, event)
}

func (that *Room) stage(targets []string, event entity.Event) {
	event.Room = that.name
	event.Seq = that.seq

	that.staged = append(that.staged, delivery{
		targets: append([]string(nil), targets...),
		event:   event,
	})
}
