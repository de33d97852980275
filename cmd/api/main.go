package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"

	"zelyx-order-tracker/internal/client"
	"zelyx-order-tracker/internal/config"
	"zelyx-order-tracker/internal/repository"
	"zelyx-order-tracker/internal/scheduler"
	"zelyx-order-tracker/internal/server"
	"zelyx-order-tracker/internal/service"
)

func main() {
	// load .env into os.Environ
	if err := godotenv.Load(); err != nil {
		fmt.Println("No .env file found (ok in prod)")
	}

	cfg := &config.Config{}
	if err := env.Parse(cfg); err != nil {
		fmt.Printf("Failed to parse config: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Log)
	slog.SetDefault(logger)

	deadlineRepo, closeStorage, err := repository.CreateDeadlineRepository(&cfg.Storage)
	if err != nil {
		logger.Error("failed to open deadline storage", slog.String("driver", cfg.Storage.Driver), slog.Any("error", err))
		os.Exit(1)
	}
	shopClient := client.NewShopClient(&cfg.Shop)

	trackerService := service.NewTrackerService(
		shopClient,
		deadlineRepo,
		scheduler.New(),
		cfg.Tracker,
		cfg.Receipt,
		cfg.Shop.Timeout,
		logger,
	)

	serverAddr := cfg.HTTP.Host + ":" + cfg.HTTP.Port

	// Init HTTP server
	srv := server.NewServer(trackerService, cfg.HTTP, cfg.Receipt)

	logger.Info("starting HTTP server",
		slog.String("addr", serverAddr),
		slog.String("environment", cfg.Environment.Name),
		slog.String("storage", cfg.Storage.Driver),
	)
	go func() {
		if err := srv.Start(serverAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

	<-sigChan
	logger.Info("signal received, starting graceful shutdown")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", slog.Any("error", err))
	}

	trackerService.Shutdown()

	if err := closeStorage(); err != nil {
		logger.Error("failed to close deadline storage", slog.Any("error", err))
	}
}

func newLogger(logCfg config.Log) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(logCfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	if strings.EqualFold(logCfg.Format, "text") {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}
