package room

import (
	"encoding/json"

	"github.com/park285/chess-rooms/internal/rules"
)

// Inbound event names.
const (
	EventCreateGame        = "createGame"
	EventJoinGame          = "joinGame"
	EventStartGame         = "startGame"
	EventMove              = "move"
	EventRequestBoardState = "requestBoardState"
	EventResetGame         = "resetGame"
)

// Outbound event names.
const (
	EventPlayerRole         = "playerRole"
	EventGameCreated        = "gameCreated"
	EventOpponentJoined     = "opponentJoined"
	EventNeedsOpponent      = "needsOpponent"
	EventGameStarted        = "gameStarted"
	EventBoardState         = "boardState"
	EventGameOver           = "gameOver"
	EventGameReset          = "gameReset"
	EventSpectator          = "spectator"
	EventPlayerDisconnected = "playerDisconnected"
	EventError              = "error"
)

// Frame is the wire envelope read from a client.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Event is the wire envelope written to a client.
type Event struct {
	Name string `json:"event"`
	Data any    `json:"data,omitempty"`
}

type GameCreated struct {
	GameID string `json:"gameId"`
}

type NeedsOpponent struct {
	IsWhite bool `json:"isWhite"`
	IsBlack bool `json:"isBlack"`
}

type MoveRelay struct {
	Player ConnID     `json:"player"`
	Move   rules.Move `json:"move"`
}

// MoveRequest is the payload of an inbound move event.
type MoveRequest struct {
	GameID string      `json:"gameId"`
	Move   *rules.Move `json:"move"`
}

// Outbox delivers events to single connections. Delivery is best effort; a failed send never
// undoes a state change.
type Outbox interface {
	Send(c ConnID, ev Event)
}

// OutboxFunc adapts a function to Outbox.
type OutboxFunc func(c ConnID, ev Event)

func (f OutboxFunc) Send(c ConnID, ev Event) { f(c, ev) }

// Observer is told about session changes after each event. Implementations must not block.
type Observer interface {
	SessionChanged(s Snapshot)
	SessionClosed(id string)
	GameFinished(f Finished)
}

type nopObserver struct{}

func (nopObserver) SessionChanged(Snapshot) {}
func (nopObserver) SessionClosed(string)    {}
func (nopObserver) GameFinished(Finished)   {}

// Texts renders user-facing strings by key.
type Texts interface {
	Render(key string, data any) (string, error)
}

func roleLetter(side rules.Side) string {
	if side == rules.Black {
		return "B"
	}
	return "W"
}
