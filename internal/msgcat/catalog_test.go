package msgcat

import (
    "os"
    "path/filepath"
    "strings"
    "testing"
)

func TestEmbeddedTexts(t *testing.T) {
    c, err := New("")
    if err != nil { t.Fatalf("New: %v", err) }

    cases := []struct {
        key  string
        data map[string]any
        want string
    }{
        {"errors.not_your_turn", map[string]any{"Reason": ""}, "Not your turn"},
        {"errors.invalid_move", map[string]any{"Reason": ""}, "Invalid move"},
        {"errors.invalid_move", map[string]any{"Reason": "king in check"}, "Invalid move: king in check"},
        {"result.checkmate", map[string]any{"Winner": "White"}, "Checkmate! White wins!"},
        {"result.stalemate", map[string]any{}, "Game ended in stalemate"},
    }
    for _, tc := range cases {
        got, err := c.Render(tc.key, tc.data)
        if err != nil { t.Fatalf("%s: %v", tc.key, err) }
        if got != tc.want { t.Fatalf("%s = %q, want %q", tc.key, got, tc.want) }
    }
}

func TestEveryRoomKeyPresent(t *testing.T) {
    c, err := New("")
    if err != nil { t.Fatalf("New: %v", err) }
    for _, k := range []string{
        "errors.game_not_found", "errors.game_exists", "errors.not_started", "errors.not_your_turn",
        "errors.invalid_move", "errors.waiting_for_opponent", "errors.game_over",
        "errors.reset_not_allowed", "errors.malformed",
        "result.checkmate", "result.stalemate", "result.draw",
    } {
        if !c.Has(k) { t.Fatalf("missing key %s", k) }
    }
    if len(c.Keys()) != 12 { t.Fatalf("keys = %v", c.Keys()) }
}

func TestRenderErrors(t *testing.T) {
    c, _ := New("")
    if _, err := c.Render("errors.nope", nil); err == nil { t.Fatalf("expected unknown key error") }
    if _, err := c.Render("result.checkmate", map[string]any{}); err == nil { t.Fatalf("expected missing field error") }
}

func TestOverrideDir(t *testing.T) {
    dir := t.TempDir()
    write(t, dir, "a.yaml", "errors:\n  not_your_turn: \"Wait, {{.Reason}}it is not your move\"\n")
    write(t, dir, "notes.txt", "ignored")

    c, err := New(dir)
    if err != nil { t.Fatalf("New: %v", err) }
    got, err := c.Render("errors.not_your_turn", map[string]any{"Reason": ""})
    if err != nil || got != "Wait, it is not your move" { t.Fatalf("override = %q, %v", got, err) }
    if got, _ := c.Render("errors.game_over", nil); got != "Game is over" { t.Fatalf("default lost: %q", got) }
}

func TestOverrideDirRejectsDuplicatesAndBadTemplates(t *testing.T) {
    dir := t.TempDir()
    write(t, dir, "a.yaml", "errors:\n  game_over: one\n")
    write(t, dir, "b.yml", "errors:\n  game_over: two\n")
    if _, err := New(dir); err == nil || !strings.Contains(err.Error(), "duplicate") { t.Fatalf("err = %v", err) }

    bad := t.TempDir()
    write(t, bad, "a.yaml", "errors:\n  game_over: \"{{.Oops\"\n")
    if _, err := New(bad); err == nil { t.Fatalf("expected template parse error") }

    nested := t.TempDir()
    write(t, nested, "a.yaml", "errors:\n  game_over: 3\n")
    if _, err := New(nested); err == nil { t.Fatalf("expected non-string error") }
}

func write(t *testing.T, dir, name, body string) {
    t.Helper()
    if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil { t.Fatalf("write: %v", err) }
}
