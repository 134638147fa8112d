package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/avreyes/deepgen/internal/config"
	"github.com/avreyes/deepgen/internal/llm"
	"github.com/avreyes/deepgen/internal/pipeline"
	"github.com/avreyes/deepgen/internal/ratelimit"
	"github.com/avreyes/deepgen/internal/storage"
)

func main() {
	// Parse flags
	configPath := flag.String("config", "config/config.yaml", "Path to configuration file")
	flag.Parse()

	// Setup logger
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	logger := log.With().Str("component", "main").Logger()

	// Load configuration
	logger.Info().Str("path", *configPath).Msg("Loading configuration...")
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Apply logging settings
	level, err := zerolog.ParseLevel(cfg.Logging.Level)
	if err != nil {
		logger.Fatal().Err(err).Msg("Invalid logging level")
	}
	zerolog.SetGlobalLevel(level)
	if cfg.Logging.Format == "json" {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}

	// Fatal exits skip deferred cleanup, so everything that owns a
	// connection runs inside run and only the exit happens here.
	if err := run(*configPath, cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("Pipeline failed")
	}
}

func run(configPath string, cfg *config.Config, logger zerolog.Logger) error {
	client, err := llm.NewClient(cfg.API, log.With().Str("component", "llm").Logger())
	if err != nil {
		return fmt.Errorf("failed to create API client: %w", err)
	}

	// Optional shared rate limiter
	var limiter *ratelimit.Limiter
	if cfg.Redis.Enabled() {
		store, err := storage.NewClient(cfg.Redis)
		if err != nil {
			return fmt.Errorf("failed to connect to Redis: %w", err)
		}
		defer store.Close()

		limiter, err = ratelimit.NewLimiter(store)
		if err != nil {
			return fmt.Errorf("failed to create rate limiter: %w", err)
		}
	}

	runner := pipeline.NewRunner(client, limiter, cfg, log.With().Str("component", "pipeline").Logger())

	// Generations run for minutes; pick up edits to retry, pause and limit
	// settings without restarting the run
	watcher, err := config.NewWatcher(configPath, runner.UpdateConfig, logger)
	if err != nil {
		return fmt.Errorf("failed to watch configuration: %w", err)
	}
	watcher.Start()
	defer watcher.Stop()

	// Run the pipeline until done or interrupted
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return runner.Run(ctx)
}
