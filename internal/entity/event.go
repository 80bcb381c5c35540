package entity

import "github.com/rocketscienceinc/tictactoe-hub/internal/apperror"

type EventType string

const (
	EventAuthenticated   EventType = "Authenticated"
	EventRegistered      EventType = "Registered"
	EventRoomList        EventType = "RoomList"
	EventRoomCreated     EventType = "RoomCreated"
	EventPlayerJoined    EventType = "PlayerJoined"
	EventSpectatorJoined EventType = "SpectatorJoined"
	EventGameStarted     EventType = "GameStarted"
	EventBoardUpdated    EventType = "BoardUpdated"
	EventGameEnded       EventType = "GameEnded"
	EventMemberLeft      EventType = "MemberLeft"
	EventChatMessage     EventType = "ChatMessage"
	EventErrorNotice     EventType = "ErrorNotice"
)

// Event is a server to client message. Room events carry the room's commit sequence number.
type Event struct {
	Type     EventType     `json:"type"`
	Room     string        `json:"room,omitempty"`
	Seq      uint64        `json:"seq,omitempty"`
	Username string        `json:"username,omitempty"`
	Role     Role          `json:"role,omitempty"`
	Players  *Seats        `json:"players,omitempty"`
	Board    *Board        `json:"board,omitempty"`
	Turn     Mark          `json:"turn,omitempty"`
	Status   GameStatus    `json:"status,omitempty"`
	Outcome  *Outcome      `json:"outcome,omitempty"`
	Rooms    []RoomSummary `json:"rooms,omitempty"`
	Text     string        `json:"text,omitempty"`
	Error    *ErrorNotice  `json:"error,omitempty"`
}

type ErrorNotice struct {
	Kind   apperror.Kind `json:"kind"`
	Detail string        `json:"detail"`
}

func NewErrorNotice(kind apperror.Kind, detail string) Event {
	return Event{
		Type:  EventErrorNotice,
		Error: &ErrorNotice{Kind: kind, Detail: detail},
	}
}

// BoardEvent describes the current state of game as a BoardUpdated event.
func BoardEvent(room string, game Game) Event {
	snapshot := game.Snapshot()

	return Event{
		Type:    EventBoardUpdated,
		Room:    room,
		Players: &snapshot.Players,
		Board:   &snapshot.Board,
		Turn:    snapshot.Turn,
		Status:  snapshot.Status,
		Outcome: snapshot.Outcome,
	}
}

// GameEndedEvent announces the outcome of a finished game.
func GameEndedEvent(room string, game Game) Event {
	event := BoardEvent(room, game)
	event.Type = EventGameEnded

	return event
}
