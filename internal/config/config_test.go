package config

import (
	"strings"
	"testing"
	"time"

	"github.com/park285/chess-rooms/internal/room"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ListenAddr != ":3000" || cfg.WSPath != "/ws" {
		t.Fatalf("addr=%q path=%q", cfg.ListenAddr, cfg.WSPath)
	}
	if cfg.MaxMessageBytes != 4096 || cfg.SendBuffer != 64 || cfg.StatsInterval() != 30*time.Second {
		t.Fatalf("limits = %+v", cfg)
	}
	if cfg.SnapshotTTL() != 24*time.Hour || cfg.BoardSquarePx != 64 {
		t.Fatalf("ttl=%v square=%d", cfg.SnapshotTTL(), cfg.BoardSquarePx)
	}
	if cfg.Policy != room.DefaultPolicy() {
		t.Fatalf("policy = %+v", cfg.Policy)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("LISTEN_ADDR", " 127.0.0.1:9000 ")
	t.Setenv("ALLOWED_ORIGINS", "example.com, *.example.org ,")
	t.Setenv("DUPLICATE_GAME_POLICY", "Suffix")
	t.Setenv("RESET_POLICY", "any")
	t.Setenv("VACANCY_POLICY", "keep")
	t.Setenv("STATS_INTERVAL_SEC", "5")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ListenAddr != "127.0.0.1:9000" {
		t.Fatalf("addr = %q", cfg.ListenAddr)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "*.example.org" {
		t.Fatalf("origins = %q", cfg.AllowedOrigins)
	}
	want := room.Policy{Duplicate: room.DuplicateSuffix, Reset: room.ResetAny, Vacancy: room.VacancyKeep}
	if cfg.Policy != want {
		t.Fatalf("policy = %+v", cfg.Policy)
	}
	if cfg.StatsInterval() != 5*time.Second {
		t.Fatalf("stats = %v", cfg.StatsInterval())
	}
}

func TestLoadRejectsUnknownPolicy(t *testing.T) {
	t.Setenv("RESET_POLICY", "sometimes")
	if _, err := Load(); err == nil || !strings.Contains(err.Error(), "reset policy") {
		t.Fatalf("err = %v", err)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("MAX_MESSAGE_BYTES", "lots")
	if _, err := Load(); err == nil || !strings.Contains(err.Error(), "parse env:") {
		t.Fatalf("err = %v", err)
	}
	t.Setenv("MAX_MESSAGE_BYTES", "0")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for zero message size")
	}
	t.Setenv("MAX_MESSAGE_BYTES", "4096")
	t.Setenv("WS_PATH", "ws")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for relative ws path")
	}
}
