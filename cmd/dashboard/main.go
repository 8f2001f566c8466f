package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"HomePulse/internal/config"
	"HomePulse/internal/dependencies"
	"HomePulse/internal/server"
	"HomePulse/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %s", err)
	}

	logg := logger.Setup(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})

	logg.Info("starting HomePulse",
		"name", cfg.App.Name,
		"version", cfg.App.Version,
		"port", cfg.Server.Port,
	)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	container, err := dependencies.NewContainer(ctx, cfg, logg)
	cancel()
	if err != nil {
		logg.Error("failed to create dependency container", "error", err)
		os.Exit(1)
	}
	defer container.Close()

	container.Monitor.Start()
	defer container.Monitor.Stop()

	handlers := server.NewHandlers(container.Monitor, container.Alerts, container.Hub, logg)
	srv := server.New(&server.Config{
		Port: cfg.Server.Port,
		Mode: cfg.Server.Mode,
	}, handlers, container.Hub, logg)

	go func() {
		if err := srv.Start(); err != nil {
			logg.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logg.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logg.Error("server shutdown failed", "error", err)
		os.Exit(1)
	}

	logg.Info("server stopped gracefully")
}
