// Package archive stores finished games in Postgres.
package archive

import (
    "context"
    "database/sql"
    "encoding/json"
    "fmt"
    "strings"
    "time"

    _ "github.com/lib/pq"
    "github.com/park285/chess-rooms/internal/room"
    "github.com/park285/chess-rooms/internal/rules"
)

const schema = `CREATE TABLE IF NOT EXISTS chess_rooms_games (
    game_id       TEXT PRIMARY KEY,
    result        TEXT NOT NULL,
    result_method TEXT NOT NULL,
    result_text   TEXT NOT NULL,
    start_fen     TEXT NOT NULL,
    final_fen     TEXT NOT NULL,
    moves_uci     JSONB NOT NULL,
    moves_san     JSONB NOT NULL,
    pgn           TEXT NOT NULL,
    started_at    TIMESTAMPTZ,
    ended_at      TIMESTAMPTZ NOT NULL,
    duration_ms   BIGINT NOT NULL
)`

type Repository struct {
    db *sql.DB
}

func New(db *sql.DB) *Repository { return &Repository{db: db} }

// Open connects to databaseURL, pings it and creates the games table when missing.
func Open(ctx context.Context, databaseURL string) (*Repository, error) {
    if strings.TrimSpace(databaseURL) == "" {
        return nil, fmt.Errorf("DATABASE_URL is required")
    }
    db, err := sql.Open("postgres", databaseURL)
    if err != nil {
        return nil, err
    }
    db.SetMaxOpenConns(8)
    db.SetMaxIdleConns(4)
    db.SetConnMaxLifetime(30 * time.Minute)
    pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
    defer cancel()
    if err := db.PingContext(pctx); err != nil {
        _ = db.Close()
        return nil, fmt.Errorf("postgres ping: %w", err)
    }
    r := New(db)
    if err := r.EnsureSchema(ctx); err != nil {
        _ = db.Close()
        return nil, err
    }
    return r, nil
}

func (r *Repository) EnsureSchema(ctx context.Context) error {
    if _, err := r.db.ExecContext(ctx, schema); err != nil {
        return fmt.Errorf("create chess_rooms_games: %w", err)
    }
    return nil
}

func (r *Repository) Close() error {
    if r == nil || r.db == nil { return nil }
    return r.db.Close()
}

// SaveResult upserts a finished game. A reset game that finishes again overwrites its row.
func (r *Repository) SaveResult(ctx context.Context, f room.Finished) error {
    if r == nil || r.db == nil {
        return nil
    }
    pgn := buildPGN(f)
    movesUCIRaw, _ := json.Marshal(nonNil(f.MovesUCI))
    movesSANRaw, _ := json.Marshal(nonNil(f.MovesSAN))
    var started any
    duration := int64(0)
    if !f.StartedAt.IsZero() {
        started = f.StartedAt
        duration = f.EndedAt.Sub(f.StartedAt).Milliseconds()
        if duration < 0 { duration = 0 }
    }

    q := `INSERT INTO chess_rooms_games (
        game_id, result, result_method, result_text,
        start_fen, final_fen, moves_uci, moves_san, pgn,
        started_at, ended_at, duration_ms
      ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12
      ) ON CONFLICT (game_id) DO UPDATE SET
        result=EXCLUDED.result,
        result_method=EXCLUDED.result_method,
        result_text=EXCLUDED.result_text,
        start_fen=EXCLUDED.start_fen,
        final_fen=EXCLUDED.final_fen,
        moves_uci=EXCLUDED.moves_uci,
        moves_san=EXCLUDED.moves_san,
        pgn=EXCLUDED.pgn,
        started_at=EXCLUDED.started_at,
        ended_at=EXCLUDED.ended_at,
        duration_ms=EXCLUDED.duration_ms`

    _, err := r.db.ExecContext(ctx, q,
        f.GameID, f.Result, strings.TrimSpace(f.Method), f.ResultText,
        f.StartFEN, f.FinalFEN, string(movesUCIRaw), string(movesSANRaw), pgn,
        started, f.EndedAt, duration,
    )
    if err != nil {
        return fmt.Errorf("save result %s: %w", f.GameID, err)
    }
    return nil
}

func nonNil(s []string) []string {
    if s == nil { return []string{} }
    return s
}

func mapResultToPGN(result string) string {
    switch strings.ToLower(strings.TrimSpace(result)) {
    case "white":
        return "1-0"
    case "black":
        return "0-1"
    case "draw":
        return "1/2-1/2"
    default:
        return "*"
    }
}

func buildPGN(f room.Finished) string {
    pgnResult := mapResultToPGN(f.Result)
    var b strings.Builder
    date := f.EndedAt
    if date.IsZero() {
        date = time.Now()
    }
    b.WriteString("[Event \"Chess Rooms\"]\n")
    b.WriteString(fmt.Sprintf("[Site \"%s\"]\n", sanitizePGN(f.GameID)))
    b.WriteString(fmt.Sprintf("[Date \"%04d.%02d.%02d\"]\n", date.Year(), int(date.Month()), date.Day()))
    b.WriteString("[White \"White\"]\n")
    b.WriteString("[Black \"Black\"]\n")
    if start := strings.TrimSpace(f.StartFEN); start != "" && start != rules.StartFEN {
        b.WriteString("[SetUp \"1\"]\n")
        b.WriteString(fmt.Sprintf("[FEN \"%s\"]\n", sanitizePGN(start)))
    }
    if m := strings.TrimSpace(f.Method); m != "" {
        b.WriteString(fmt.Sprintf("[Termination \"%s\"]\n", sanitizePGN(strings.ToLower(m))))
    }
    b.WriteString(fmt.Sprintf("[Result \"%s\"]\n\n", pgnResult))

    for i := 0; i < len(f.MovesSAN); i += 2 {
        turn := (i / 2) + 1
        b.WriteString(fmt.Sprintf("%d. %s", turn, strings.TrimSpace(f.MovesSAN[i])))
        if i+1 < len(f.MovesSAN) {
            b.WriteString(" ")
            b.WriteString(strings.TrimSpace(f.MovesSAN[i+1]))
        }
        b.WriteString(" ")
    }
    b.WriteString(pgnResult)
    return b.String()
}

func sanitizePGN(s string) string {
    s = strings.ReplaceAll(s, "\\", " ")
    s = strings.ReplaceAll(s, "\"", "'")
    return strings.TrimSpace(s)
}
