package entity

import (
	"fmt"

	"github.com/rocketscienceinc/tictactoe-hub/internal/apperror"
)

// Mark is a symbol placed on the board.
type Mark string

const (
	MarkNone Mark = ""
	MarkX    Mark = "X"
	MarkO    Mark = "O"
)

// Opponent returns the other mark.
func (that Mark) Opponent() Mark {
	switch that {
	case MarkX:
		return MarkO
	case MarkO:
		return MarkX
	default:
		return MarkNone
	}
}

const BoardSize = 9

var WinCombos = [][3]int{
	{0, 1, 2},
	{3, 4, 5},
	{6, 7, 8},
	{0, 3, 6},
	{1, 4, 7},
	{2, 5, 8},
	{0, 4, 8},
	{2, 4, 6},
}

// Board is a 3x3 grid in row-major order.
type Board [BoardSize]Mark

type OutcomeKind string

const (
	OutcomeContinue OutcomeKind = "continue"
	OutcomeWin      OutcomeKind = "win"
	OutcomeDraw     OutcomeKind = "draw"
)

// Outcome is the result of evaluating a board. Winner and Forfeit are filled in by the game session.
type Outcome struct {
	Kind    OutcomeKind `json:"kind"`
	Mark    Mark        `json:"mark,omitempty"`
	Winner  string      `json:"winner,omitempty"`
	Forfeit bool        `json:"forfeit,omitempty"`
}

func (that Outcome) IsFinal() bool {
	return that.Kind == OutcomeWin || that.Kind == OutcomeDraw
}

// CheckOutcome evaluates the 8 winning lines.
func CheckOutcome(board Board) Outcome {
	for _, combo := range WinCombos {
		a, b, c := board[combo[0]], board[combo[1]], board[combo[2]]
		if a != MarkNone && a == b && b == c {
			return Outcome{Kind: OutcomeWin, Mark: a}
		}
	}

	// the game continues until all the cells are full
	for _, cell := range board {
		if cell == MarkNone {
			return Outcome{Kind: OutcomeContinue}
		}
	}

	return Outcome{Kind: OutcomeDraw}
}

// Count returns how many cells hold mark.
func (that *Board) Count(mark Mark) int {
	n := 0
	for _, cell := range that {
		if cell == mark {
			n++
		}
	}

	return n
}

// NextMark returns the mark expected to move next. X always moves first.
func (that *Board) NextMark() Mark {
	if that.Count(MarkX) > that.Count(MarkO) {
		return MarkO
	}

	return MarkX
}

// ApplyMove places mark at position and returns the resulting outcome.
func (that *Board) ApplyMove(position int, mark Mark) (Outcome, error) {
	if mark != MarkX && mark != MarkO {
		return Outcome{}, fmt.Errorf("%w: unknown mark %q", apperror.ErrInvalidMove, mark)
	}

	if position < 0 || position >= BoardSize {
		return Outcome{}, fmt.Errorf("%w: cell %d is out of range", apperror.ErrInvalidMove, position)
	}

	if CheckOutcome(*that).IsFinal() {
		return Outcome{}, fmt.Errorf("%w: board is already decided", apperror.ErrInvalidMove)
	}

	if that[position] != MarkNone {
		return Outcome{}, fmt.Errorf("%w: cell %d is already occupied", apperror.ErrInvalidMove, position)
	}

	if next := that.NextMark(); mark != next {
		return Outcome{}, fmt.Errorf("%w: %s is expected to move", apperror.ErrInvalidMove, next)
	}

	that[position] = mark

	return CheckOutcome(*that), nil
}
