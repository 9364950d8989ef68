package main

import (
	"context"
	"errors"
	"net/http"
	"os"

	"ahorro/internal/adapters"
	"ahorro/internal/advisor"
	"ahorro/internal/amqp"
	"ahorro/internal/backend"
	"ahorro/internal/cache"
	"ahorro/internal/cli"
	apphttp "ahorro/internal/http"
	"ahorro/internal/log"
	"ahorro/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger)

	startupCtx := context.Background()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", "error", err)
		os.Exit(1)
	}
	res, err := backend.NewFactory(logger.WithComponent(log.ComponentBackend)).CreateBackend(startupCtx, backendCfg)
	if err != nil {
		logger.Error("Failed to initialize data backend", "error", err, "backend", backendCfg.Type)
		os.Exit(1)
	}

	// Ledger events are optional: without a broker the app still works.
	var (
		publisher  services.EventPublisher
		amqpClient *amqp.Client
	)
	if cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("AMQP unavailable, ledger events disabled", "error", err)
		} else {
			publisher = amqpClient
			logger.Info("AMQP publisher initialized", "exchange", cfg.AMQPExchange)
		}
	}

	adv := advisor.NewFromAPIKey(startupCtx, cfg.GeminiAPIKey, cfg.GeminiModel)
	if !adv.Configured() {
		logger.Info("Advisor disabled - no Gemini API key provided")
	}

	store := adapters.NewSavingsStore(res.Store, logger.WithComponent(log.ComponentStorage))
	svc := services.NewSavingsService(store, services.Options{
		Publisher: publisher,
		Advisor:   adv,
		Logger:    logger.WithComponent(log.ComponentSavings),
	})
	if err := svc.Restore(startupCtx); err != nil {
		logger.Info("No session restored", "reason", err)
	}

	srv := apphttp.NewServer(":"+cfg.Port, svc, apphttp.Options{
		Logger:            logger.WithComponent(log.ComponentHTTP),
		RequestsPerMinute: cfg.RateLimitPerMinute,
		Ready:             res.Ready,
	})

	ctx, done := cli.GracefulShutdown(logger, cfg.ShutdownTimeout, func(shutdownCtx context.Context) {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		if amqpClient != nil {
			if err := amqpClient.Close(); err != nil {
				logger.Warn("AMQP close failed", "error", err)
			}
		}
		if res.Cleanup != nil {
			if err := res.Cleanup(); err != nil {
				logger.Error("Backend cleanup failed", "error", err)
			}
		}
	})

	if len(res.Cleaners) > 0 {
		go cache.NewJanitor(res.Cleaners...).Run(ctx, cfg.CacheCleanup)
	}

	logger.Info("Starting ahorro server", "port", cfg.Port, "backend", backendCfg.Type)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
