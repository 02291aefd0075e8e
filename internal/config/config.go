package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/park285/chess-rooms/internal/room"
)

type AppConfig struct {
	ListenAddr     string   `env:"LISTEN_ADDR" envDefault:":3000"`
	WSPath         string   `env:"WS_PATH" envDefault:"/ws"`
	StaticDir      string   `env:"STATIC_DIR"`
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:","`

	MaxMessageBytes  int `env:"MAX_MESSAGE_BYTES" envDefault:"4096"`
	SendBuffer       int `env:"SEND_BUFFER" envDefault:"64"`
	StatsIntervalSec int `env:"STATS_INTERVAL_SEC" envDefault:"30"`

	DuplicateGamePolicy string `env:"DUPLICATE_GAME_POLICY"`
	ResetPolicy         string `env:"RESET_POLICY"`
	VacancyPolicy       string `env:"VACANCY_POLICY"`

	MessagesDir string `env:"MESSAGES_DIR"`

	RedisURL       string `env:"REDIS_URL"`
	SnapshotTTLSec int    `env:"SNAPSHOT_TTL_SEC" envDefault:"86400"`
	DatabaseURL    string `env:"DATABASE_URL"`

	ResultWebhookURL   string `env:"RESULT_WEBHOOK_URL"`
	ResultWebhookToken string `env:"RESULT_WEBHOOK_TOKEN"`

	BoardSquarePx int `env:"BOARD_SQUARE_PX" envDefault:"64"`

	// Policy is derived from the three policy names.
	Policy room.Policy
}

func Load() (*AppConfig, error) {
	cfg := &AppConfig{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	cfg.ListenAddr = strings.TrimSpace(cfg.ListenAddr)
	cfg.WSPath = strings.TrimSpace(cfg.WSPath)
	cfg.StaticDir = strings.TrimSpace(cfg.StaticDir)
	cfg.MessagesDir = strings.TrimSpace(cfg.MessagesDir)
	cfg.RedisURL = strings.TrimSpace(cfg.RedisURL)
	cfg.DatabaseURL = strings.TrimSpace(cfg.DatabaseURL)
	cfg.ResultWebhookURL = strings.TrimSpace(cfg.ResultWebhookURL)
	cfg.AllowedOrigins = trimAll(cfg.AllowedOrigins)

	if cfg.ListenAddr == "" {
		return nil, errors.New("LISTEN_ADDR is required")
	}
	if !strings.HasPrefix(cfg.WSPath, "/") {
		return nil, fmt.Errorf("WS_PATH must start with '/': %q", cfg.WSPath)
	}
	if cfg.MaxMessageBytes <= 0 {
		return nil, errors.New("MAX_MESSAGE_BYTES must be positive")
	}
	if cfg.SendBuffer <= 0 {
		return nil, errors.New("SEND_BUFFER must be positive")
	}

	p, err := room.ParsePolicy(cfg.DuplicateGamePolicy, cfg.ResetPolicy, cfg.VacancyPolicy)
	if err != nil {
		return nil, err
	}
	cfg.Policy = p
	return cfg, nil
}

func (c *AppConfig) StatsInterval() time.Duration {
	return time.Duration(c.StatsIntervalSec) * time.Second
}

func (c *AppConfig) SnapshotTTL() time.Duration {
	return time.Duration(c.SnapshotTTLSec) * time.Second
}

func trimAll(in []string) []string {
	var out []string
	for _, p := range in {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
