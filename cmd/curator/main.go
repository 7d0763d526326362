package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/curatorapp/curator/internal/config"
	"github.com/curatorapp/curator/internal/database"
	"github.com/curatorapp/curator/internal/logger"
	"github.com/curatorapp/curator/internal/server"
)

func main() {
	configPath := os.Getenv("CURATOR_CONFIG_PATH")
	if configPath == "" {
		if _, err := os.Stat("./curator.yaml"); err == nil {
			configPath = "./curator.yaml"
		}
	}

	if err := config.Load(configPath); err != nil {
		logger.Warn("Failed to load configuration from %s: %v, using defaults", configPath, err)
	} else if configPath != "" {
		logger.Info("Configuration loaded from %s", configPath)
	}

	cfg := config.Get()
	logger.Configure(cfg.Logging.Level, cfg.Logging.Format)

	if err := database.Initialize(cfg); err != nil {
		logger.Error("Failed to initialize database: %v", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("Received signal %s, shutting down", sig)
		cancel()
	}()

	srv := server.New(cfg, database.GetDB())
	if err := srv.Start(ctx); err != nil {
		logger.Error("Server error: %v", err)
		os.Exit(1)
	}
}
