package room

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/park285/chess-rooms/internal/obslog"
	"github.com/park285/chess-rooms/internal/rules"
	"go.uber.org/zap"
)

// Coordinator applies client events to the registry. Every method must be called from a single
// goroutine; the hub loop serializes events so no locking happens here.
type Coordinator struct {
	reg      *Registry
	engine   rules.Engine
	out      Outbox
	texts    Texts
	observer Observer
	policy   Policy
	now      func() time.Time
	log      *zap.Logger
	suffix   func() string
}

type Option func(*Coordinator)

// WithTexts sets the message catalog used for error and result strings.
func WithTexts(t Texts) Option { return func(c *Coordinator) { c.texts = t } }

func WithObserver(o Observer) Option {
	return func(c *Coordinator) {
		if o != nil {
			c.observer = o
		}
	}
}

func WithPolicy(p Policy) Option { return func(c *Coordinator) { c.policy = p } }

func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) {
		if now != nil {
			c.now = now
		}
	}
}

func WithLogger(l *zap.Logger) Option { return func(c *Coordinator) { c.log = l } }

// WithSuffix replaces the random suffix generator used by the suffix duplicate policy.
func WithSuffix(fn func() string) Option {
	return func(c *Coordinator) {
		if fn != nil {
			c.suffix = fn
		}
	}
}

func NewCoordinator(reg *Registry, engine rules.Engine, out Outbox, opts ...Option) *Coordinator {
	c := &Coordinator{
		reg:      reg,
		engine:   engine,
		out:      out,
		observer: nopObserver{},
		policy:   DefaultPolicy(),
		now:      time.Now,
		suffix:   func() string { return secureRandSuffix(3) },
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Coordinator) logger() *zap.Logger {
	if c.log != nil {
		return c.log
	}
	return obslog.L()
}

// CreateGame opens a session with the caller seated as White.
func (c *Coordinator) CreateGame(conn ConnID, id string) error {
	if err := checkID(id); err != nil {
		return err
	}
	replace := false
	if c.reg.Has(id) {
		switch c.policy.Duplicate {
		case DuplicateJoin:
			return c.JoinGame(conn, id)
		case DuplicateSuffix:
			fresh, err := c.freshID(id)
			if err != nil {
				c.logger().Warn("room_suffix_exhausted", zap.String("game_id", id))
				return err
			}
			id = fresh
		case DuplicateReplace:
			replace = true
		default:
			return ErrDuplicateSession
		}
	}

	now := c.now()
	s := &Session{
		ID:        id,
		State:     StateWaitingForOpponent,
		position:  c.engine.Initial(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.seat(rules.White, conn)
	s.addMember(conn)
	if replace {
		if old := c.reg.Replace(s); old != nil {
			c.logger().Warn("room_replaced",
				zap.String("game_id", id),
				zap.Int("orphaned_members", len(old.members)),
			)
		}
	} else if err := c.reg.Create(s); err != nil {
		return err
	}
	c.reg.Attach(conn, id)

	c.send(conn, EventPlayerRole, roleLetter(rules.White))
	c.send(conn, EventGameCreated, GameCreated{GameID: id})
	c.logger().Info("room_create", zap.String("game_id", id), zap.String("conn", string(conn)))
	c.touch(s)
	return nil
}

// JoinGame seats the caller on the first free side, or attaches it as a spectator.
func (c *Coordinator) JoinGame(conn ConnID, id string) error {
	if err := checkID(id); err != nil {
		return err
	}
	s, err := c.reg.Get(id)
	if err != nil {
		return err
	}
	if side, ok := s.SideOf(conn); ok {
		c.send(conn, EventPlayerRole, roleLetter(side))
		return nil
	}

	if s.full() {
		s.addMember(conn)
		c.reg.Attach(conn, id)
		c.send(conn, EventSpectator, nil)
		if s.State == StateInProgress {
			c.send(conn, EventBoardState, c.engine.Serialize(s.position))
		}
		c.logger().Info("room_spectate", zap.String("game_id", id), zap.String("conn", string(conn)))
		c.touch(s)
		return nil
	}

	side := rules.White
	if _, taken := s.Player(rules.White); taken {
		side = rules.Black
	}
	s.seat(side, conn)
	s.addMember(conn)
	c.reg.Attach(conn, id)
	c.send(conn, EventPlayerRole, roleLetter(side))
	if other, ok := s.Player(side.Opponent()); ok {
		c.send(other, EventOpponentJoined, nil)
	}
	if s.full() && s.State == StateWaitingForOpponent {
		s.State = StateReadyToStart
	}
	c.logger().Info("room_join",
		zap.String("game_id", id),
		zap.String("conn", string(conn)),
		zap.String("side", side.String()),
		zap.String("state", string(s.State)),
	)
	c.touch(s)
	return nil
}

// StartGame moves a full session into play. Repeating it while in progress rebroadcasts the
// current position.
func (c *Coordinator) StartGame(conn ConnID, id string) error {
	if err := checkID(id); err != nil {
		return err
	}
	s, err := c.reg.Get(id)
	if err != nil {
		return err
	}
	if s.State == StateOver {
		return ErrGameOver
	}
	if !s.full() {
		return &needsOpponentError{isWhite: s.white == conn, isBlack: s.black == conn}
	}
	if s.State != StateInProgress {
		s.State = StateInProgress
		s.StartedAt = c.now()
	}
	c.broadcast(s, EventGameStarted, nil)
	c.broadcast(s, EventBoardState, c.engine.Serialize(s.position))
	c.logger().Info("room_start", zap.String("game_id", id), zap.String("conn", string(conn)))
	c.touch(s)
	return nil
}

// Move validates and relays one move from a seated player.
func (c *Coordinator) Move(conn ConnID, id string, mv rules.Move) error {
	if err := checkID(id); err != nil {
		return err
	}
	s, err := c.reg.Get(id)
	if err != nil {
		return err
	}
	if s.State != StateInProgress {
		return ErrGameNotStarted
	}
	side, seated := s.SideOf(conn)
	if !seated || side != c.engine.Turn(s.position) {
		return ErrNotYourTurn
	}

	next, err := c.engine.TryApply(s.position, mv)
	if err != nil {
		c.logger().Debug("room_move_rejected",
			zap.String("game_id", id),
			zap.String("move", mv.UCI()),
			zap.Error(err),
		)
		return newInvalidMove(err)
	}
	s.position = next
	c.broadcast(s, EventMove, MoveRelay{Player: conn, Move: mv})
	c.logger().Info("room_move",
		zap.String("game_id", id),
		zap.String("side", side.String()),
		zap.String("move", mv.UCI()),
	)

	if over, term := c.engine.Terminal(next); over {
		c.finish(s, side, term)
	}
	c.touch(s)
	return nil
}

func (c *Coordinator) finish(s *Session, mover rules.Side, term rules.Termination) {
	var text, result string
	switch term.Kind {
	case rules.Checkmate:
		text = c.text("result.checkmate", map[string]any{"Winner": mover.String()})
		result = strings.ToLower(mover.String())
	case rules.Stalemate:
		text = c.text("result.stalemate", map[string]any{})
		result = "draw"
	default:
		text = c.text("result.draw", map[string]any{})
		result = "draw"
	}
	s.State = StateOver
	s.Result = text
	c.broadcast(s, EventGameOver, text)

	now := c.now()
	f := Finished{
		GameID:     s.ID,
		FinalFEN:   c.engine.Serialize(s.position),
		Result:     result,
		Method:     string(term.Kind),
		ResultText: text,
		StartedAt:  s.StartedAt,
		EndedAt:    now,
	}
	if h, ok := c.engine.(rules.History); ok {
		f.StartFEN, f.MovesUCI, f.MovesSAN = h.History(s.position)
	} else {
		f.StartFEN = c.engine.Serialize(c.engine.Initial())
	}
	c.observer.GameFinished(f)
	c.logger().Info("room_game_over",
		zap.String("game_id", s.ID),
		zap.String("result", result),
		zap.String("method", term.Method),
		zap.Int("plies", len(f.MovesUCI)),
	)
}

// RequestBoardState resends the position to the caller while the game is in progress.
func (c *Coordinator) RequestBoardState(conn ConnID, id string) error {
	if err := checkID(id); err != nil {
		return err
	}
	s, err := c.reg.Get(id)
	if err != nil {
		return err
	}
	if s.State == StateInProgress {
		c.send(conn, EventBoardState, c.engine.Serialize(s.position))
	}
	return nil
}

// ResetGame puts the initial position back on the board.
func (c *Coordinator) ResetGame(conn ConnID, id string) error {
	if err := checkID(id); err != nil {
		return err
	}
	s, err := c.reg.Get(id)
	if err != nil {
		return err
	}
	if c.policy.Reset != ResetAny && (s.State != StateOver || !s.full()) {
		return ErrResetNotAllowed
	}

	s.position = c.engine.Initial()
	s.Result = ""
	if s.full() {
		s.State = StateInProgress
		s.StartedAt = c.now()
	} else {
		s.State = StateWaitingForOpponent
	}
	c.broadcast(s, EventGameReset, nil)
	c.broadcast(s, EventBoardState, c.engine.Serialize(s.position))
	c.logger().Info("room_reset",
		zap.String("game_id", id),
		zap.String("conn", string(conn)),
		zap.String("state", string(s.State)),
	)
	c.touch(s)
	return nil
}

// Disconnect releases every seat and membership held by conn. Sessions left without players are
// removed.
func (c *Coordinator) Disconnect(conn ConnID) {
	for _, id := range c.reg.SessionsOf(conn) {
		s, err := c.reg.Get(id)
		if err != nil {
			c.reg.Detach(conn, id)
			continue
		}
		s.removeMember(conn)
		c.reg.Detach(conn, id)

		if side, ok := s.SideOf(conn); ok {
			s.seat(side, "")
			c.broadcast(s, EventPlayerDisconnected, side.String())
			if c.policy.Vacancy == VacancyPause && (s.State == StateReadyToStart || s.State == StateInProgress) {
				s.State = StateWaitingForOpponent
			}
			c.logger().Info("room_disconnect",
				zap.String("game_id", id),
				zap.String("conn", string(conn)),
				zap.String("side", side.String()),
				zap.String("state", string(s.State)),
			)
		}

		if s.empty() {
			c.reg.Remove(id)
			c.observer.SessionClosed(id)
			c.logger().Info("room_removed", zap.String("game_id", id))
			continue
		}
		c.touch(s)
	}
}

// Snapshots returns a copy of every live session, ordered by id.
func (c *Coordinator) Snapshots() []Snapshot {
	out := make([]Snapshot, 0, c.reg.Len())
	c.reg.Each(func(s *Session) { out = append(out, c.snapshot(s)) })
	return out
}

func (c *Coordinator) snapshot(s *Session) Snapshot {
	snap := Snapshot{
		ID:         s.ID,
		State:      s.State,
		FEN:        c.engine.Serialize(s.position),
		Turn:       c.engine.Turn(s.position).String(),
		White:      s.white != "",
		Black:      s.black != "",
		Spectators: s.Spectators(),
		Result:     s.Result,
		CreatedAt:  s.CreatedAt,
		UpdatedAt:  s.UpdatedAt,
	}
	return snap
}

func (c *Coordinator) touch(s *Session) {
	s.UpdatedAt = c.now()
	c.observer.SessionChanged(c.snapshot(s))
}

func (c *Coordinator) send(conn ConnID, name string, data any) {
	c.out.Send(conn, Event{Name: name, Data: data})
}

func (c *Coordinator) broadcast(s *Session, name string, data any) {
	ev := Event{Name: name, Data: data}
	for _, m := range s.Members() {
		c.out.Send(m, ev)
	}
}

// fail reports err to the caller only.
func (c *Coordinator) fail(conn ConnID, err error) {
	c.send(conn, EventError, c.errorText(err))
	var need *needsOpponentError
	if errors.As(err, &need) {
		c.send(conn, EventNeedsOpponent, NeedsOpponent{IsWhite: need.isWhite, IsBlack: need.isBlack})
	}
}

func (c *Coordinator) errorText(err error) string {
	data := map[string]any{"Reason": ""}
	var inv *invalidMoveError
	if errors.As(err, &inv) {
		data["Reason"] = inv.reason
	}
	return c.text(messageKey(err), data)
}

func (c *Coordinator) text(key string, data map[string]any) string {
	if c.texts != nil {
		s, err := c.texts.Render(key, data)
		if err == nil {
			return s
		}
		c.logger().Warn("msgcat_render_failed", zap.String("key", key), zap.Error(err))
	}
	return fallbackText(key, data)
}

func fallbackText(key string, data map[string]any) string {
	switch key {
	case "errors.game_not_found":
		return "Game not found"
	case "errors.game_exists":
		return "Game already exists"
	case "errors.not_started":
		return "Game has not started yet"
	case "errors.not_your_turn":
		return "Not your turn"
	case "errors.invalid_move":
		if r, _ := data["Reason"].(string); r != "" {
			return "Invalid move: " + r
		}
		return "Invalid move"
	case "errors.waiting_for_opponent":
		return "Waiting for opponent to join"
	case "errors.game_over":
		return "Game is over"
	case "errors.reset_not_allowed":
		return "Game can only be reset after it ends"
	case "result.checkmate":
		w, _ := data["Winner"].(string)
		return "Checkmate! " + w + " wins!"
	case "result.stalemate":
		return "Game ended in stalemate"
	case "result.draw":
		return "Game ended in a draw"
	default:
		return "Malformed request"
	}
}

const maxSuffixAttempts = 8

// freshID derives an unused, valid id from base. It gives up with ErrDuplicateSession after
// maxSuffixAttempts suffixes.
func (c *Coordinator) freshID(base string) (string, error) {
	for i := 0; i < maxSuffixAttempts; i++ {
		suffix := c.suffix()
		keep := maxIDLen - 1 - len(suffix)
		if keep < 1 {
			continue
		}
		prefix := base
		if len(prefix) > keep {
			prefix = prefix[:keep]
		}
		id := prefix + "-" + suffix
		if checkID(id) != nil || c.reg.Has(id) {
			continue
		}
		return id, nil
	}
	return "", ErrDuplicateSession
}

func secureRandSuffix(n int) string {
	if n <= 0 {
		n = 3
	}
	b := make([]byte, n)
	if _, err := rand.Read(b); err == nil {
		return hex.EncodeToString(b)
	}
	return fmt.Sprintf("%06x", time.Now().UnixNano()%0xffffff)
}
