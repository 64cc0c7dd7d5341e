package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"kasirinaja/salecore/internal/config"
	"kasirinaja/salecore/internal/httpapi"
	"kasirinaja/salecore/internal/inventory"
	"kasirinaja/salecore/internal/kv"
	"kasirinaja/salecore/internal/kv/memory"
	"kasirinaja/salecore/internal/kv/postgres"
	"kasirinaja/salecore/internal/kv/redis"
	"kasirinaja/salecore/internal/logging"
	"kasirinaja/salecore/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.LogLevel, !cfg.IsProduction())
	if err := validateSecurityConfig(*cfg); err != nil {
		logger.Fatal().Err(err).Msg("invalid security configuration")
	}
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	store, closers, err := openStore(ctx, *cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Str("backend", cfg.KVBackend).Msg("kv store unavailable")
	}

	svc := service.New(store, service.Settings{
		DefaultTenantID:    cfg.DefaultTenantID,
		RequireTenant:      cfg.RequireTenant,
		MaxBasketItems:     cfg.MaxBasketItems,
		MinPayment:         cfg.MinPayment,
		DefaultTaxRate:     cfg.DefaultTaxRate,
		DefaultMinStock:    cfg.DefaultMinStock,
		TargetLookbackDays: cfg.TargetLookbackDays,
	}, logger)

	if cfg.SeedDemoInventory {
		if err := svc.SeedInventory(ctx, "", inventory.DemoCatalog()); err != nil {
			logger.Fatal().Err(err).Msg("seed demo inventory")
		}
		logger.Info().Str("tenant", svc.DefaultTenant()).Msg("demo inventory seeded")
	}

	var tokens *httpapi.TokenManager
	if cfg.AuthSecret != "" {
		tokens, err = httpapi.NewTokenManager(cfg.AuthSecret, 0)
		if err != nil {
			logger.Fatal().Err(err).Msg("token manager")
		}
	}
	limiter := httpapi.NewTenantLimiter(cfg.CommitRatePerSecond, cfg.CommitBurst)
	api := httpapi.New(svc, tokens, limiter, cfg.AllowedOrigin, logger)

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", cfg.Address()).Str("backend", cfg.KVBackend).Msg("salecore listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("shutdown error")
	}

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			logger.Error().Err(err).Msg("close error")
		}
	}

	logger.Info().Msg("server stopped")
}

// openStore connects the configured backend. A configured backend that is
// unreachable is fatal; there is no silent in-memory fallback.
func openStore(ctx context.Context, cfg config.Config, logger zerolog.Logger) (kv.Store, []func() error, error) {
	switch cfg.KVBackend {
	case "redis":
		rs, err := redis.NewFromURL(cfg.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		if err := rs.Ping(ctx); err != nil {
			_ = rs.Close()
			return nil, nil, fmt.Errorf("ping redis: %w", err)
		}
		logger.Info().Msg("kv store: redis")
		return rs, []func() error{rs.Close}, nil
	case "postgres":
		if err := postgres.Migrate(cfg.DatabaseURL); err != nil {
			return nil, nil, err
		}
		pg, err := postgres.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		logger.Info().Msg("kv store: postgres")
		return pg, []func() error{pg.Close}, nil
	default:
		if cfg.IsProduction() {
			logger.Warn().Msg("kv store: in-memory in production, data is lost on restart")
		} else {
			logger.Info().Msg("kv store: in-memory")
		}
		return memory.New(), nil, nil
	}
}

func validateSecurityConfig(cfg config.Config) error {
	if cfg.AuthSecret != "" && len(cfg.AuthSecret) < 32 {
		return fmt.Errorf("AUTH_SECRET must be at least 32 characters")
	}
	if !cfg.IsProduction() {
		return nil
	}
	if cfg.AuthSecret == "" {
		return fmt.Errorf("AUTH_SECRET must be set in production")
	}
	if !cfg.RequireTenant {
		return fmt.Errorf("REQUIRE_TENANT must be enabled in production")
	}
	if cfg.AllowedOrigin == "*" {
		return fmt.Errorf("ALLOWED_ORIGIN must not be a wildcard in production")
	}
	return nil
}
