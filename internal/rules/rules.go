// Package rules defines the move-legality capability the room coordinator depends on.
// The coordinator never looks inside a Position; it only hands positions back to the Engine.
package rules

import (
	"errors"
	"strings"
)

// Side identifies a playable chess side.
type Side string

const (
	White Side = "White"
	Black Side = "Black"
)

// Opponent returns the other side.
func (s Side) Opponent() Side {
	if s == White {
		return Black
	}
	return White
}

func (s Side) String() string { return string(s) }

// Move is a from/to square pair with an optional promotion piece letter.
type Move struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Promotion string `json:"promotion,omitempty"`
}

// UCI renders the move in long algebraic form (e2e4, e7e8q).
func (m Move) UCI() string {
	return strings.ToLower(strings.TrimSpace(m.From) + strings.TrimSpace(m.To) + strings.TrimSpace(m.Promotion))
}

// Kind classifies a terminal position.
type Kind string

const (
	Checkmate Kind = "checkmate"
	Stalemate Kind = "stalemate"
	Draw      Kind = "draw"
)

// Termination describes why a position is terminal.
type Termination struct {
	Kind   Kind
	Method string
}

// Position is an opaque board state produced and consumed by an Engine.
type Position any

var (
	ErrIllegalMove     = errors.New("illegal move")
	ErrForeignPosition = errors.New("position was not produced by this engine")
	ErrBadPosition     = errors.New("cannot parse position")
)

// IllegalMoveError carries the engine's reason for rejecting a move.
type IllegalMoveError struct {
	Move   string
	Reason string
}

func (e *IllegalMoveError) Error() string {
	if e.Move == "" {
		return e.Reason
	}
	return e.Move + ": " + e.Reason
}

func (e *IllegalMoveError) Is(target error) bool { return target == ErrIllegalMove }

// Engine validates and applies moves. Implementations must be synchronous and must never
// mutate the Position passed in.
type Engine interface {
	Initial() Position
	TryApply(pos Position, mv Move) (Position, error)
	Terminal(pos Position) (bool, Termination)
	Turn(pos Position) Side
	Serialize(pos Position) string
	Deserialize(s string) (Position, error)
}

// History is implemented by engines that can report the moves leading to a position.
type History interface {
	History(pos Position) (startFEN string, uci []string, san []string)
}
