package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"petling/internal/bot"
	"petling/internal/config"
	"petling/internal/pet"
	"petling/internal/store"

	"github.com/robfig/cron/v3"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadFromEnv()
	if err != nil {
		slog.Error("load config", "err", err)
		os.Exit(1)
	}
	if cfg.BotToken == "" {
		slog.Error("BOT_TOKEN is required")
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	st, closeStore, err := store.Open(ctx, cfg)
	if err != nil {
		logger.Error("open store failed", "driver", cfg.StoreDriver, "err", err)
		os.Exit(1)
	}
	defer closeStore()

	pets := pet.NewService(st, logger)
	if cfg.SeedCatalog {
		if err := pets.SeedCatalog(ctx); err != nil {
			logger.Error("seed catalog failed", "err", err)
			os.Exit(1)
		}
	}

	b, err := bot.New(cfg, logger, pets)
	if err != nil {
		logger.Error("bot init failed", "err", err)
		os.Exit(1)
	}

	// Periodic snapshots of the flat-file database. Only meaningful for the
	// file backend; Postgres deployments rely on their own backups.
	if fs, ok := st.(*store.FileStore); ok && cfg.BackupSpec != "" {
		c := cron.New()
		if _, err := c.AddFunc(cfg.BackupSpec, func() {
			path, err := fs.Snapshot(cfg.BackupDir)
			if err != nil {
				logger.Error("backup snapshot failed", "err", err)
				return
			}
			if path != "" {
				logger.Info("backup snapshot written", "path", path)
			}
		}); err != nil {
			logger.Error("invalid backup spec", "spec", cfg.BackupSpec, "err", err)
			os.Exit(1)
		}
		c.Start()
		defer c.Stop()
	}

	go func() {
		<-ctx.Done()
		b.Stop()
	}()

	logger.Info("petling bot started", "store", cfg.StoreDriver)
	b.Start()
}
