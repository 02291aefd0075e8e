package room

import (
	"time"

	"github.com/park285/chess-rooms/internal/rules"
)

// ConnID identifies one live connection.
type ConnID string

// State is a session lifecycle state.
type State string

const (
	StateWaitingForOpponent State = "WAITING_FOR_OPPONENT"
	StateReadyToStart       State = "READY_TO_START"
	StateInProgress         State = "IN_PROGRESS"
	StateOver               State = "OVER"
)

// Session is the complete state of one game. It is owned by the Registry and only touched from
// the event loop.
type Session struct {
	ID    string
	State State

	white    ConnID
	black    ConnID
	position rules.Position
	// broadcast group, join order preserved
	members []ConnID

	Result    string
	CreatedAt time.Time
	UpdatedAt time.Time
	StartedAt time.Time
}

// Player returns the connection seated on side, if any.
func (s *Session) Player(side rules.Side) (ConnID, bool) {
	c := s.white
	if side == rules.Black {
		c = s.black
	}
	return c, c != ""
}

func (s *Session) seat(side rules.Side, c ConnID) {
	if side == rules.White {
		s.white = c
	} else {
		s.black = c
	}
}

// SideOf reports which side c occupies.
func (s *Session) SideOf(c ConnID) (rules.Side, bool) {
	switch {
	case c == "":
		return "", false
	case s.white == c:
		return rules.White, true
	case s.black == c:
		return rules.Black, true
	}
	return "", false
}

func (s *Session) full() bool  { return s.white != "" && s.black != "" }
func (s *Session) empty() bool { return s.white == "" && s.black == "" }

func (s *Session) isMember(c ConnID) bool {
	for _, m := range s.members {
		if m == c {
			return true
		}
	}
	return false
}

func (s *Session) addMember(c ConnID) {
	if !s.isMember(c) {
		s.members = append(s.members, c)
	}
}

func (s *Session) removeMember(c ConnID) {
	for i, m := range s.members {
		if m == c {
			s.members = append(s.members[:i], s.members[i+1:]...)
			return
		}
	}
}

// Members returns a copy of the broadcast group.
func (s *Session) Members() []ConnID { return append([]ConnID(nil), s.members...) }

// Spectators counts members without a seat.
func (s *Session) Spectators() int {
	n := 0
	for _, m := range s.members {
		if _, ok := s.SideOf(m); !ok {
			n++
		}
	}
	return n
}

// Snapshot is a read-only copy of a session handed to observers.
type Snapshot struct {
	ID         string    `json:"id"`
	State      State     `json:"state"`
	FEN        string    `json:"fen"`
	Turn       string    `json:"turn"`
	White      bool      `json:"white"`
	Black      bool      `json:"black"`
	Spectators int       `json:"spectators"`
	Result     string    `json:"result,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Finished describes a game that reached a terminal position.
type Finished struct {
	GameID     string    `json:"game_id"`
	StartFEN   string    `json:"start_fen"`
	FinalFEN   string    `json:"final_fen"`
	MovesUCI   []string  `json:"moves_uci"`
	MovesSAN   []string  `json:"moves_san"`
	Result     string    `json:"result"`
	Method     string    `json:"method"`
	ResultText string    `json:"result_text"`
	StartedAt  time.Time `json:"started_at"`
	EndedAt    time.Time `json:"ended_at"`
}
