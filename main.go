package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	clts "polytracker/clients"
	"polytracker/config"
	"polytracker/internal/app"
	"polytracker/internal/storage/sqlite"

	"go.uber.org/zap"
)

func main() {
	// Load config from environment variables
	cfg := config.Load()

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	if result := cfg.Validate(); !result.Valid {
		logger.Fatal("invalid configuration", zap.Error(result))
	}

	logger.Info("starting bot",
		zap.String("dbPath", cfg.Storage.DBPath),
		zap.String("logLevel", cfg.LogLevel),
	)

	store, err := sqlite.Open(cfg.Storage.DBPath)
	if err != nil {
		logger.Fatal("failed to open database", zap.Error(err))
	}
	defer store.Close()

	logger.Info("instantiating clients")
	clients, err := clts.NewClients(logger, cfg)
	if err != nil {
		logger.Fatal("failed to create clients", zap.Error(err))
	}
	defer clients.Close()

	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer stop()

	runner := app.NewRunner(clients, store, cfg)
	if err := runner.Run(ctx); err != nil {
		logger.Fatal("runner failed", zap.Error(err))
	}
	logger.Info("shutdown complete")
}

func newLogger(level string) (*zap.Logger, error) {
	if level == "debug" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
