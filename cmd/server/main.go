package main

import (
	"context"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/iho/accounter/internal/infrastructure/config"
	"github.com/iho/accounter/internal/infrastructure/logger"
	"github.com/iho/accounter/internal/infrastructure/metrics"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	// Setup logger
	log.Logger = logger.New(logger.Config{
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
		Service: "accounter",
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := newApp(ctx, cfg, log.Logger, metrics.New())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to start")
	}

	ln, err := net.Listen("tcp", net.JoinHostPort("", cfg.HTTPPort))
	if err != nil {
		_ = app.queue.Shutdown(context.Background())
		log.Fatal().Err(err).Str("port", cfg.HTTPPort).Msg("failed to listen")
	}

	if err := app.Run(ctx, ln); err != nil {
		log.Error().Err(err).Msg("server stopped with error")
		os.Exit(1)
	}

	log.Info().Msg("server stopped")
}
