package room

import (
	"errors"

	"github.com/park285/chess-rooms/internal/rules"
)

var (
	ErrSessionNotFound    = errors.New("session not found")
	ErrDuplicateSession   = errors.New("session already exists")
	ErrGameNotStarted     = errors.New("game not started")
	ErrNotYourTurn        = errors.New("not your turn")
	ErrInvalidMove        = errors.New("invalid move")
	ErrWaitingForOpponent = errors.New("waiting for opponent")
	ErrGameOver           = errors.New("game is over")
	ErrResetNotAllowed    = errors.New("reset not allowed in current state")
	ErrMalformedRequest   = errors.New("malformed request")
)

// needsOpponentError is returned by StartGame when a seat is vacant; the caller also gets a
// needsOpponent hint describing its own seat.
type needsOpponentError struct {
	isWhite bool
	isBlack bool
}

func (e *needsOpponentError) Error() string { return ErrWaitingForOpponent.Error() }
func (e *needsOpponentError) Unwrap() error { return ErrWaitingForOpponent }

// invalidMoveError keeps the engine's explanation next to ErrInvalidMove.
type invalidMoveError struct {
	reason string
}

func (e *invalidMoveError) Error() string {
	if e.reason == "" {
		return ErrInvalidMove.Error()
	}
	return ErrInvalidMove.Error() + ": " + e.reason
}
func (e *invalidMoveError) Unwrap() error { return ErrInvalidMove }

func newInvalidMove(err error) error {
	var ill *rules.IllegalMoveError
	if errors.As(err, &ill) {
		return &invalidMoveError{reason: ill.Error()}
	}
	return &invalidMoveError{reason: err.Error()}
}

// messageKey maps an error onto its catalog key.
func messageKey(err error) string {
	switch {
	case errors.Is(err, ErrSessionNotFound):
		return "errors.game_not_found"
	case errors.Is(err, ErrDuplicateSession):
		return "errors.game_exists"
	case errors.Is(err, ErrGameNotStarted):
		return "errors.not_started"
	case errors.Is(err, ErrNotYourTurn):
		return "errors.not_your_turn"
	case errors.Is(err, ErrInvalidMove):
		return "errors.invalid_move"
	case errors.Is(err, ErrWaitingForOpponent):
		return "errors.waiting_for_opponent"
	case errors.Is(err, ErrGameOver):
		return "errors.game_over"
	case errors.Is(err, ErrResetNotAllowed):
		return "errors.reset_not_allowed"
	default:
		return "errors.malformed"
	}
}
