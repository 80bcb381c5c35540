package tictactoe

import (
	"fmt"
	"log/slog"
	"regexp"
	"sync"
	"unicode/utf8"

	"github.com/rocketscienceinc/tictactoe-hub/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-hub/internal/entity"
	"github.com/rocketscienceinc/tictactoe-hub/pkg/metrics"
)

const (
	MaxRoomNameLength = 20
	DefaultMaxRooms   = 256
)

var roomNamePattern = regexp.MustCompile(`^[A-Za-z0-9 _-]+$`)

// ValidateRoomName checks the allowed characters and length of a room name.
func ValidateRoomName(name string) error {
	if utf8.RuneCountInString(name) > MaxRoomNameLength || !roomNamePattern.MatchString(name) {
		return fmt.Errorf("%w: %q", apperror.ErrInvalidRoomName, name)
	}

	return nil
}

// Registry owns every room by name. Lock order is registry before room.
type Registry struct {
	logger   *slog.Logger
	out      Broadcaster
	maxRooms int

	mu    sync.RWMutex
	rooms map[string]*Room
	order []string // creation order
}

func NewRegistry(logger *slog.Logger, out Broadcaster, maxRooms int) *Registry {
	if maxRooms <= 0 {
		maxRooms = DefaultMaxRooms
	}

	return &Registry{
		logger:   logger.With("component", "registry"),
		out:      out,
		maxRooms: maxRooms,

		rooms: make(map[string]*Room),
	}
}

// Create registers a new room and seats its creator as the first player.
func (that *Registry) Create(name, creator string) (*Room, error) {
	logger := that.logger.With("method", "Create", "room", name)

	if err := ValidateRoomName(name); err != nil {
		return nil, err
	}

	that.mu.Lock()
	defer that.mu.Unlock()

	if _, ok := that.rooms[name]; ok {
		return nil, fmt.Errorf("%w: %s", apperror.ErrRoomNameTaken, name)
	}

	if len(that.rooms) >= that.maxRooms {
		return nil, fmt.Errorf("%w: %d rooms", apperror.ErrRoomLimitReached, that.maxRooms)
	}

	room := newRoom(that.logger, that.out, name, creator)
	if err := room.create(); err != nil {
		return nil, fmt.Errorf("failed to seat creator: %w", err)
	}

	that.rooms[name] = room
	that.order = append(that.order, name)
	metrics.RoomsActive.Set(float64(len(that.rooms)))

	logger.Info("room created", "creator", creator)

	return room, nil
}

// Get looks a room up by its exact name.
func (that *Registry) Get(name string) (*Room, error) {
	that.mu.RLock()
	defer that.mu.RUnlock()

	room, ok := that.rooms[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", apperror.ErrRoomNotFound, name)
	}

	return room, nil
}

// List describes every room in creation order. The result is a snapshot.
func (that *Registry) List() []entity.RoomSummary {
	that.mu.RLock()
	rooms := make([]*Room, 0, len(that.order))
	for _, name := range that.order {
		rooms = append(rooms, that.rooms[name])
	}
	that.mu.RUnlock()

	summaries := make([]entity.RoomSummary, 0, len(rooms))
	for _, room := range rooms {
		summaries = append(summaries, room.Describe())
	}

	return summaries
}

// RemoveIfEmpty deletes the room when it has no members. Calling it again is a no-op.
func (that *Registry) RemoveIfEmpty(name string) bool {
	that.mu.Lock()
	defer that.mu.Unlock()

	room, ok := that.rooms[name]
	if !ok || !room.closeIfEmpty() {
		return false
	}

	delete(that.rooms, name)
	for i, existing := range that.order {
		if existing == name {
			that.order = append(that.order[:i], that.order[i+1:]...)
			break
		}
	}
	metrics.RoomsActive.Set(float64(len(that.rooms)))

	that.logger.Info("room removed", "room", name)

	return true
}

func (that *Registry) Len() int {
	that.mu.RLock()
	defer that.mu.RUnlock()

	return len(that.rooms)
}
