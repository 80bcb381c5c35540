package entity

import (
	"errors"
	"fmt"
)

// Role is a member's position inside a room.
type Role string

const (
	RoleNone      Role = ""
	RolePlayer    Role = "player"
	RoleSpectator Role = "spectator"
)

// RoomSummary is a point-in-time description of a room used for listings.
type RoomSummary struct {
	Name       string     `json:"name"`
	Creator    string     `json:"creator"`
	Players    Seats      `json:"players"`
	Spectators int        `json:"spectators"`
	Status     GameStatus `json:"status"`
}

// HasOpenSeat reports whether a join would be seated as a player.
func (that RoomSummary) HasOpenSeat() bool {
	return that.Status == StatusWaiting && !that.Players.Full()
}

// ListMode filters a room listing.
type ListMode string

const (
	ListAll    ListMode = ""
	ListPlayer ListMode = "player"
	ListViewer ListMode = "viewer"
)

var ErrUnknownListMode = errors.New("unknown list mode")

// FilterRooms keeps the rooms a client in mode can use. Player mode keeps rooms with an open seat.
// The result is never nil.
func FilterRooms(rooms []RoomSummary, mode ListMode) ([]RoomSummary, error) {
	filtered := make([]RoomSummary, 0, len(rooms))

	switch mode {
	case ListAll, ListViewer:
		filtered = append(filtered, rooms...)
	case ListPlayer:
		for _, room := range rooms {
			if room.HasOpenSeat() {
				filtered = append(filtered, room)
			}
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownListMode, mode)
	}

	return filtered, nil
}
