package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Alias1177/SanityCheck/internal/config"
)

// failureExitCode is returned for any failed check, anomalies included
const failureExitCode = 200

func main() {
	setupLogging("info")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	setupLogging(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCommand(cfg)
	if err := root.ExecuteContext(ctx); err != nil {
		log.Error().Err(err).Msg("Sanity check failed")
		stop()
		os.Exit(failureExitCode)
	}
	log.Debug().Strs("args", os.Args).Msg("Success")
}

// setupLogging configures the global logger
func setupLogging(logLevel string) {
	output := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	log.Logger = log.Output(output)

	// Set log level from config
	level, err := zerolog.ParseLevel(logLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log.Logger = log.Logger.Level(level)
}
