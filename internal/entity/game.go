package entity

import (
	"fmt"

	"github.com/rocketscienceinc/tictactoe-hub/internal/apperror"
)

type GameStatus string

const (
	StatusWaiting    GameStatus = "waiting"
	StatusInProgress GameStatus = "in_progress"
	StatusFinished   GameStatus = "finished"
)

// Seats holds the usernames assigned to X and O.
type Seats struct {
	X string `json:"x,omitempty"`
	O string `json:"o,omitempty"`
}

func (that Seats) Full() bool {
	return that.X != "" && that.O != ""
}

func (that Seats) Empty() bool {
	return that.X == "" && that.O == ""
}

// Game is one match between two seats. It is not safe for concurrent use; the owning room serializes access.
type Game struct {
	Board   Board
	Players Seats
	Turn    Mark
	Status  GameStatus
	Outcome *Outcome
	Moves   int
}

func NewGame() *Game {
	return &Game{
		Turn:   MarkX,
		Status: StatusWaiting,
	}
}

func (that *Game) IsWaiting() bool {
	return that.Status == StatusWaiting
}

func (that *Game) IsInProgress() bool {
	return that.Status == StatusInProgress
}

func (that *Game) IsFinished() bool {
	return that.Status == StatusFinished
}

// MarkOf returns the seat held by identity, or MarkNone.
func (that *Game) MarkOf(identity string) Mark {
	switch identity {
	case "":
		return MarkNone
	case that.Players.X:
		return MarkX
	case that.Players.O:
		return MarkO
	default:
		return MarkNone
	}
}

// AssignPlayer seats identity at X if free, otherwise at O. The game starts once both seats are taken.
func (that *Game) AssignPlayer(identity string) (Mark, error) {
	if that.MarkOf(identity) != MarkNone {
		return MarkNone, fmt.Errorf("%w: %s is already seated", apperror.ErrUsernameAlreadyInRoom, identity)
	}

	if !that.IsWaiting() || that.Players.Full() {
		return MarkNone, apperror.ErrRoomFull
	}

	var mark Mark
	if that.Players.X == "" {
		that.Players.X = identity
		mark = MarkX
	} else {
		that.Players.O = identity
		mark = MarkO
	}

	if that.Players.Full() {
		that.Status = StatusInProgress
	}

	return mark, nil
}

// SubmitMove applies a move for identity and advances the state machine.
func (that *Game) SubmitMove(identity string, position int) (Outcome, error) {
	if !that.IsInProgress() {
		return Outcome{}, fmt.Errorf("%w: status %s", apperror.ErrGameNotInProgress, that.Status)
	}

	mark := that.MarkOf(identity)
	if mark == MarkNone {
		return Outcome{}, fmt.Errorf("%w: %s has no seat", apperror.ErrNotYourTurn, identity)
	}

	if mark != that.Turn {
		return Outcome{}, fmt.Errorf("%w: %s to move", apperror.ErrNotYourTurn, that.Turn)
	}

	outcome, err := that.Board.ApplyMove(position, mark)
	if err != nil {
		return Outcome{}, err
	}

	that.Moves++

	switch outcome.Kind {
	case OutcomeWin:
		outcome.Winner = identity
		that.finish(outcome)
	case OutcomeDraw:
		that.finish(outcome)
	default:
		that.Turn = that.Turn.Opponent()
	}

	return outcome, nil
}

// Forfeit ends an ongoing game in favour of identity's opponent.
func (that *Game) Forfeit(identity string) (Outcome, error) {
	if !that.IsInProgress() {
		return Outcome{}, fmt.Errorf("%w: status %s", apperror.ErrGameNotInProgress, that.Status)
	}

	mark := that.MarkOf(identity)
	if mark == MarkNone {
		return Outcome{}, fmt.Errorf("%w: %s has no seat", apperror.ErrProtocolViolation, identity)
	}

	winnerMark := mark.Opponent()
	outcome := Outcome{
		Kind:    OutcomeWin,
		Mark:    winnerMark,
		Winner:  that.seatHolder(winnerMark),
		Forfeit: true,
	}
	that.finish(outcome)

	return outcome, nil
}

// Unseat frees identity's seat. It never changes the status.
func (that *Game) Unseat(identity string) {
	switch that.MarkOf(identity) {
	case MarkX:
		that.Players.X = ""
	case MarkO:
		that.Players.O = ""
	}
}

// Reset clears the board for a new match. It is allowed once the game finished or when a seat is free.
func (that *Game) Reset(swap bool) error {
	if that.IsInProgress() && that.Players.Full() {
		return apperror.ErrGameInProgress
	}

	if swap {
		that.Players.X, that.Players.O = that.Players.O, that.Players.X
	}

	that.Board = Board{}
	that.Turn = MarkX
	that.Outcome = nil
	that.Moves = 0
	that.Status = StatusWaiting

	if that.Players.Full() {
		that.Status = StatusInProgress
	}

	return nil
}

// Snapshot returns a copy that shares no memory with the game.
func (that *Game) Snapshot() Game {
	snapshot := *that
	if that.Outcome != nil {
		outcome := *that.Outcome
		snapshot.Outcome = &outcome
	}

	return snapshot
}

func (that *Game) finish(outcome Outcome) {
	that.Outcome = &outcome
	that.Status = StatusFinished
	that.Turn = MarkNone
}

func (that *Game) seatHolder(mark Mark) string {
	if mark == MarkX {
		return that.Players.X
	}

	return that.Players.O
}
