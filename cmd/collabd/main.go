package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"

	"github.com/redis/go-redis/v9"

	"github.com/TimyBen/cloud-file-management-system/internal/authz"
	"github.com/TimyBen/cloud-file-management-system/internal/gateway"
	"github.com/TimyBen/cloud-file-management-system/internal/gateway/bus"
	"github.com/TimyBen/cloud-file-management-system/internal/server"
	"github.com/TimyBen/cloud-file-management-system/internal/session"
	"github.com/TimyBen/cloud-file-management-system/internal/share"
	"github.com/TimyBen/cloud-file-management-system/internal/store/gormstore"
	"github.com/TimyBen/cloud-file-management-system/internal/store/memstore"
	"github.com/TimyBen/cloud-file-management-system/pkg/config"
	"github.com/TimyBen/cloud-file-management-system/pkg/logging"
)

func main() {
	logger := logging.New(logging.LevelInfo)
	slog.SetDefault(logger)

	cfg, err := config.Load(logger, "config")
	if err != nil {
		logger.Error("Failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}
	logger = logging.New(logging.ParseLevel(cfg.Log.Level))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	// Storage: postgres when a DSN is configured, in-memory otherwise. The
	// in-memory store is single-node only.
	var (
		files      authz.FileSource
		shares     authz.ShareSource
		shareStore share.Store
		sessStore  session.Store
	)
	if cfg.Database.DSN != "" {
		st, err := gormstore.Open(cfg.Database.DSN, logger)
		if err != nil {
			logger.Error("Failed to open database", slog.Any("error", err))
			os.Exit(1)
		}
		files, shares, shareStore, sessStore = st, st, st, st
		logger.Info("Using postgres store")
	} else {
		st := memstore.New(logger)
		files, shares, shareStore, sessStore = st, st, st, st
		logger.Warn("No database configured; using in-memory store")
	}

	resolver := authz.NewResolver(files, shares, logger)
	registry := share.NewRegistry(files, shareStore, logger)
	coordinator := session.NewCoordinator(resolver, sessStore, logger)

	// Fan-out: redis pub/sub when configured, otherwise process-local.
	var broadcaster bus.Broadcaster
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		broadcaster = bus.NewRedis(client, logger)
		logger.Info("Using redis broadcast bus", slog.String("addr", cfg.Redis.Addr))
	} else {
		broadcaster = bus.NewLocal()
		logger.Info("Using local broadcast bus; fan-out is per-instance")
	}
	defer broadcaster.Close()

	gw := gateway.New(coordinator, broadcaster, logger)

	app := server.NewApp(logger, ctx, cfg, registry, coordinator, gw)
	if err := app.Run(); err != nil {
		logger.Error("Application run failed", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("Application shut down successfully.")
}
