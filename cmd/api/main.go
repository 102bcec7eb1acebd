package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/common/version"
	"github.com/uber-go/tally/v4"
	promreporter "github.com/uber-go/tally/v4/prometheus"
	"go.uber.org/zap"

	leaderboardsvc "github.com/multitask/scoreboard/src/app/leaderboard"
	"github.com/multitask/scoreboard/src/domain/leaderboard"
	"github.com/multitask/scoreboard/src/domain/signature"
	infra "github.com/multitask/scoreboard/src/infra/leaderboard"
)

func main() {
	cfg, cfgErr := loadConfig()

	logger, err := newLogger(cfg.Log)
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	if cfgErr != nil {
		logger.Fatal("invalid configuration", zap.Error(cfgErr))
	}
	logger.Info("starting scoreboard", zap.String("version", version.Info()), zap.String("storage", cfg.Storage.Driver))

	baseCtx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	authenticator, err := signature.NewAuthenticator(cfg.Secret)
	if err != nil {
		logger.Fatal("failed to initialize signature authenticator", zap.Error(err))
	}

	repo, closeRepo, err := openRepository(baseCtx, cfg.Storage, logger)
	if err != nil {
		logger.Fatal("failed to open score storage", zap.Error(err))
	}
	defer func() {
		if err := closeRepo(); err != nil {
			logger.Error("failed to close score storage", zap.Error(err))
		}
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	scope, closeScope := tally.NewRootScope(tally.ScopeOptions{
		Prefix:         "scoreboard",
		CachedReporter: promreporter.NewReporter(promreporter.Options{Registerer: registry}),
		Separator:      promreporter.DefaultSeparator,
	}, time.Second)
	defer func() { _ = closeScope.Close() }()

	if cfg.APIKey == "" {
		logger.Warn("SCOREBOARD_API_KEY not set, API key check disabled")
	}

	leaderboardService := leaderboardsvc.NewService(repo, authenticator, logger, scope, cfg.policy())

	server := NewServer(ServerConfig{
		Logger:             logger,
		LeaderboardService: leaderboardService,
		APIKey:             cfg.APIKey,
		CORSOrigins:        cfg.CORSOrigins,
		Registry:           registry,
	})

	httpServer := &http.Server{
		Addr:         cfg.HTTPAddress,
		Handler:      server.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("scoreboard API listening", zap.String("addr", cfg.HTTPAddress))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-baseCtx.Done()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

// openRepository builds the configured storage backend and returns its closer.
func openRepository(ctx context.Context, cfg StorageConfig, logger *zap.Logger) (leaderboard.Repository, func() error, error) {
	switch cfg.Driver {
	case StorageMemory:
		return infra.NewMemoryRepository(), func() error { return nil }, nil
	case StoragePebble:
		repo, err := infra.OpenPebbleRepository(cfg.PebblePath, logger)
		if err != nil {
			return nil, nil, err
		}
		return repo, repo.Close, nil
	case StoragePostgres:
		db, err := infra.OpenPostgres(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		repo := infra.NewPostgresRepository(db)
		if err := repo.EnsureSchema(ctx); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		return repo, db.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}
