package rules

import (
	"fmt"
	"strings"

	nchess "github.com/corentings/chess/v2"
)

// StartFEN is the standard initial position.
const StartFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

// chessPosition keeps the move list so a game can be rebuilt instead of mutating a shared
// *nchess.Game. game is never touched after construction.
type chessPosition struct {
	start string
	uci   []string
	san   []string
	game  *nchess.Game
}

// ChessEngine is the Engine backed by github.com/corentings/chess/v2.
type ChessEngine struct{}

func NewChessEngine() *ChessEngine { return &ChessEngine{} }

func (e *ChessEngine) Initial() Position {
	return &chessPosition{start: StartFEN, game: nchess.NewGame()}
}

func (e *ChessEngine) TryApply(pos Position, mv Move) (Position, error) {
	cur, err := asChess(pos)
	if err != nil {
		return nil, err
	}
	game, err := replay(cur.start, cur.uci)
	if err != nil {
		return nil, err
	}
	claimDraw(game)
	if game.Outcome() != nchess.NoOutcome {
		return nil, &IllegalMoveError{Move: mv.UCI(), Reason: "game already finished"}
	}
	before := game.Position()
	m, err := decode(before, mv)
	if err != nil {
		return nil, err
	}
	if err := game.Move(m, nil); err != nil {
		return nil, &IllegalMoveError{Move: mv.UCI(), Reason: err.Error()}
	}
	claimDraw(game)

	uci := strings.ToLower(nchess.UCINotation{}.Encode(before, m))
	san := nchess.AlgebraicNotation{}.Encode(before, m)
	next := &chessPosition{
		start: cur.start,
		uci:   append(append(make([]string, 0, len(cur.uci)+1), cur.uci...), uci),
		san:   append(append(make([]string, 0, len(cur.san)+1), cur.san...), san),
		game:  game,
	}
	return next, nil
}

// decode accepts the promotion letter only when it yields a move; clients send "q" on every move.
func decode(pos *nchess.Position, mv Move) (*nchess.Move, error) {
	from := strings.ToLower(strings.TrimSpace(mv.From))
	to := strings.ToLower(strings.TrimSpace(mv.To))
	if from == "" || to == "" {
		return nil, &IllegalMoveError{Move: mv.UCI(), Reason: "missing square"}
	}
	notation := nchess.UCINotation{}
	if promo := strings.ToLower(strings.TrimSpace(mv.Promotion)); promo != "" {
		if m, err := notation.Decode(pos, from+to+promo); err == nil && legal(pos, m) {
			return m, nil
		}
	}
	m, err := notation.Decode(pos, from+to)
	if err != nil {
		return nil, &IllegalMoveError{Move: from + to, Reason: err.Error()}
	}
	return m, nil
}

// claimDraw ends the game on threefold repetition or the fifty-move rule, which the library
// only offers as claims.
func claimDraw(game *nchess.Game) {
	if game.Outcome() != nchess.NoOutcome {
		return
	}
	for _, m := range game.EligibleDraws() {
		switch m {
		case nchess.ThreefoldRepetition, nchess.FiftyMoveRule:
			if err := game.Draw(m); err == nil {
				return
			}
		}
	}
}

func legal(pos *nchess.Position, m *nchess.Move) bool {
	for _, v := range pos.ValidMoves() {
		if v.String() == m.String() {
			return true
		}
	}
	return false
}

func (e *ChessEngine) Terminal(pos Position) (bool, Termination) {
	cur, err := asChess(pos)
	if err != nil {
		return false, Termination{}
	}
	if cur.game.Outcome() == nchess.NoOutcome {
		return false, Termination{}
	}
	method := cur.game.Method()
	switch method {
	case nchess.Checkmate:
		return true, Termination{Kind: Checkmate, Method: methodName(method)}
	case nchess.Stalemate:
		return true, Termination{Kind: Stalemate, Method: methodName(method)}
	default:
		return true, Termination{Kind: Draw, Method: methodName(method)}
	}
}

func (e *ChessEngine) Turn(pos Position) Side {
	cur, err := asChess(pos)
	if err != nil {
		return White
	}
	return sideFrom(cur.game.Position().Turn())
}

func (e *ChessEngine) Serialize(pos Position) string {
	cur, err := asChess(pos)
	if err != nil {
		return ""
	}
	return cur.game.FEN()
}

func (e *ChessEngine) Deserialize(s string) (Position, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "startpos" {
		return e.Initial(), nil
	}
	game, err := gameFromFEN(s)
	if err != nil {
		return nil, err
	}
	return &chessPosition{start: s, game: game}, nil
}

func (e *ChessEngine) History(pos Position) (string, []string, []string) {
	cur, err := asChess(pos)
	if err != nil {
		return "", nil, nil
	}
	return cur.start, append([]string(nil), cur.uci...), append([]string(nil), cur.san...)
}

func asChess(pos Position) (*chessPosition, error) {
	cur, ok := pos.(*chessPosition)
	if !ok || cur == nil || cur.game == nil {
		return nil, ErrForeignPosition
	}
	return cur, nil
}

func gameFromFEN(fen string) (*nchess.Game, error) {
	if fen == StartFEN {
		return nchess.NewGame(), nil
	}
	opt, err := nchess.FEN(fen)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadPosition, err)
	}
	return nchess.NewGame(opt), nil
}

func replay(start string, moves []string) (*nchess.Game, error) {
	game, err := gameFromFEN(start)
	if err != nil {
		return nil, err
	}
	notation := nchess.UCINotation{}
	for _, mv := range moves {
		m, err := notation.Decode(game.Position(), mv)
		if err != nil {
			return nil, fmt.Errorf("decode move %s: %w", mv, err)
		}
		if err := game.Move(m, nil); err != nil {
			return nil, fmt.Errorf("apply move %s: %w", mv, err)
		}
	}
	return game, nil
}

func sideFrom(c nchess.Color) Side {
	if c == nchess.White {
		return White
	}
	return Black
}

func methodName(m nchess.Method) string { return strings.ToLower(m.String()) }
