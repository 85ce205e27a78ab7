package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"soundwatch/internal/config"
	"soundwatch/internal/logger"
	"soundwatch/internal/processor"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config (defaults to $SOUNDWATCH_CONFIG)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Logger.Fatal().Err(err).Msg("failed to load config")
	}

	logger.Init(cfg.Logging.Level)
	log := logger.WithComponent("main")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	p := processor.New(cfg)

	log.Info().
		Str("source", cfg.Source.Kind).
		Str("classifier", cfg.Classifier.Kind).
		Str("addr", cfg.Server.Address).
		Msg("soundwatch starting")

	if err := p.Run(ctx); err != nil {
		log.Error().Err(err).Msg("processor exited")
		stop()
		os.Exit(1)
	}

	log.Info().Msg("exited")
}
