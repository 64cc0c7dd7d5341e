package main

import (
	"os"

	"kasirinaja/salecore/internal/config"
	"kasirinaja/salecore/internal/kv/postgres"
	"kasirinaja/salecore/internal/logging"
)

func main() {
	cfg, err := config.Load()
	logger := logging.New("info", true)
	if err != nil {
		logger.Fatal().Err(err).Msg("config")
	}
	if cfg.DatabaseURL == "" {
		logger.Error().Msg("DATABASE_URL is required")
		os.Exit(1)
	}
	if err := postgres.Migrate(cfg.DatabaseURL); err != nil {
		logger.Fatal().Err(err).Msg("migrate")
	}
	logger.Info().Msg("kv schema up to date")
}
