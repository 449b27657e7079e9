package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"time"

	"fintrack/internal/amqp"
	"fintrack/internal/cache"
	"fintrack/internal/cli"
	"fintrack/internal/config"
	"fintrack/internal/core"
	"fintrack/internal/fx"
	apphttp "fintrack/internal/http"
	"fintrack/internal/identity"
	"fintrack/internal/log"
	"fintrack/internal/middleware/ratelimit"
	"fintrack/internal/services"
)

const (
	recordCacheSize = 500
	recordCacheTTL  = 5 * time.Minute
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger, (*config.Config).ValidateServer)

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	provider, err := fx.NewProvider(cfg.RatesProvider, cfg.RatesURL, cfg.RatesCacheTTL)
	if err != nil {
		logger.Error("Failed to configure rates provider", "error", err)
		os.Exit(1)
	}
	converter := fx.NewConverter(provider, cfg.RatesTimeout)
	reporting := cfg.Reporting()

	recordCache := cache.NewLRUCache[[]core.Record](recordCacheSize, recordCacheTTL)
	cacheManager := cache.NewManager()
	cacheManager.Register(recordCache)
	cacheManager.StartCleanup(time.Minute)
	defer cacheManager.Stop()

	dashboard := services.NewDashboardService(repo, repo, converter, recordCache, reporting, cfg.CategoryTopN)
	opts := []services.LedgerOption{services.WithInvalidator(dashboard)}

	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, record changes will not be mirrored", "error", err)
		} else {
			defer client.Close()
			opts = append(opts, services.WithPublisher(client))
			logger.Info("AMQP client initialized", "exchange", cfg.AMQPExchange)
		}
	} else {
		logger.Info("AMQP disabled, record changes will not be mirrored")
	}

	ledgerSvc := services.NewLedgerService(repo, repo, converter, reporting, opts...)

	srv, err := apphttp.NewServer(apphttp.ServerConfig{
		Addr:           net.JoinHostPort("", cfg.Port),
		Verifier:       identity.NewVerifier(cfg.AuthJWTSecret, cfg.AuthAudience),
		RateLimit:      ratelimit.Config{RequestsPerMinute: cfg.RateLimitPerMinute},
		TrustedProxies: cfg.TrustedProxies,
		Logger:         logger,
	}, apphttp.Deps{
		Ledger:    ledgerSvc,
		Dashboard: dashboard,
		Payments:  services.NewPaymentService(ledgerSvc, repo),
		Profiles:  services.NewProfileService(repo),
		Rates:     services.NewRateRefresher(provider, repo, reporting),
		Converter: converter,
		Reporting: reporting,
		Ready:     repo.Ping,
	})
	if err != nil {
		logger.Error("Failed to configure HTTP server", "error", err)
		os.Exit(1)
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
	})

	logger.Info("Starting fintrack server",
		"port", cfg.Port,
		"reporting_currency", reporting,
		"rates_provider", converter.ProviderName())
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
