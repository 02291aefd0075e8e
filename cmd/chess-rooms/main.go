package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	appcfg "github.com/park285/chess-rooms/internal/config"
	"github.com/park285/chess-rooms/internal/archive"
	"github.com/park285/chess-rooms/internal/board"
	"github.com/park285/chess-rooms/internal/httpapi"
	"github.com/park285/chess-rooms/internal/hub"
	"github.com/park285/chess-rooms/internal/mirror"
	"github.com/park285/chess-rooms/internal/msgcat"
	"github.com/park285/chess-rooms/internal/notify"
	"github.com/park285/chess-rooms/internal/obslog"
	"github.com/park285/chess-rooms/internal/recorder"
	"github.com/park285/chess-rooms/internal/room"
	"github.com/park285/chess-rooms/internal/rules"
	"go.uber.org/zap"
)

func main() {
	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	logger := obslog.L()
	defer func() { _ = logger.Sync() }()

	cfg, err := appcfg.Load()
	if err != nil {
		logger.Fatal("config_error", zap.Error(err))
	}

	texts, err := msgcat.New(cfg.MessagesDir)
	if err != nil {
		logger.Fatal("messages_error", zap.Error(err))
	}

	initCtx, initCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer initCancel()

	var recOpts []recorder.Option
	var snapshots httpapi.Snapshots
	if cfg.RedisURL != "" {
		store, err := mirror.Open(initCtx, cfg.RedisURL, cfg.SnapshotTTL())
		if err != nil {
			logger.Fatal("mirror_init_error", zap.Error(err))
		}
		defer func() { _ = store.Close() }()
		recOpts = append(recOpts, recorder.WithMirror(store))
		snapshots = store
		logger.Info("mirror_enabled", zap.Duration("ttl", cfg.SnapshotTTL()))
	}
	if cfg.DatabaseURL != "" {
		repo, err := archive.Open(initCtx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("archive_init_error", zap.Error(err))
		}
		defer func() { _ = repo.Close() }()
		recOpts = append(recOpts, recorder.WithArchive(repo))
		logger.Info("archive_enabled")
	}
	if cfg.ResultWebhookURL != "" {
		var nopts []notify.Option
		if cfg.ResultWebhookToken != "" {
			nopts = append(nopts, notify.WithHeader("Authorization", "Bearer "+cfg.ResultWebhookToken))
		}
		recOpts = append(recOpts, recorder.WithNotifier(notify.NewClient(cfg.ResultWebhookURL, nopts...)))
		logger.Info("notifier_enabled")
	}
	rec := recorder.New(recOpts...)

	h := hub.New(
		hub.WithMaxMessageBytes(int64(cfg.MaxMessageBytes)),
		hub.WithSendBuffer(cfg.SendBuffer),
		hub.WithStatsInterval(cfg.StatsInterval()),
		hub.WithOriginPatterns(cfg.AllowedOrigins),
	)
	coordinator := room.NewCoordinator(room.NewRegistry(), rules.NewChessEngine(), h,
		room.WithTexts(texts),
		room.WithObserver(rec),
		room.WithPolicy(cfg.Policy),
		room.WithLogger(logger),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		h.Run(ctx, coordinator)
	}()

	api := httpapi.NewServer(
		httpapi.WithSnapshots(snapshots),
		httpapi.WithRenderer(board.NewRenderer(board.WithSquareSize(cfg.BoardSquarePx))),
		httpapi.WithWebSocket(cfg.WSPath, h),
		httpapi.WithStaticDir(cfg.StaticDir),
	)
	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           api,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("server_start",
			zap.String("addr", cfg.ListenAddr),
			zap.String("ws_path", cfg.WSPath),
			zap.String("duplicate_policy", string(cfg.Policy.Duplicate)),
			zap.String("reset_policy", string(cfg.Policy.Reset)),
			zap.String("vacancy_policy", string(cfg.Policy.Vacancy)),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server_error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("server_shutdown")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server_shutdown_error", zap.Error(err))
	}
	<-loopDone
	if err := rec.Close(shutdownCtx); err != nil {
		logger.Warn("recorder_drain_error", zap.Error(err))
	}
}
