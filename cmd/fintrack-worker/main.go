package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"fintrack/internal/amqp"
	"fintrack/internal/backend"
	"fintrack/internal/cli"
	"fintrack/internal/config"
	"fintrack/internal/log"
	"fintrack/internal/worker"
)

func validate(cfg *config.Config) error {
	if cfg.MirrorBackend == string(backend.SheetsMirror) {
		return cfg.ValidateSheets()
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.AMQPURL == "" {
		return fmt.Errorf("configuration validation failed:\n- AMQP URL is required for the sync worker")
	}
	return nil
}

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentWorker)
	logger.Info("Starting fintrack-worker")
	cfg := cli.LoadAndValidateConfig(logger, validate)

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	mirrorCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid mirror configuration", "error", err)
		os.Exit(1)
	}
	startCtx, cancelStart := context.WithTimeout(context.Background(), 30*time.Second)
	mirror, err := backend.NewMirror(startCtx, mirrorCfg)
	cancelStart()
	if err != nil {
		logger.Error("Failed to initialize record mirror", "error", err, "backend", mirrorCfg.Type)
		os.Exit(1)
	}

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer client.Close()

	mirrorWorker := worker.NewMirrorWorker(repo, mirror)
	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, nil)

	logger.Info("Consuming record changes", "queue", cfg.AMQPQueue, "backend", mirrorCfg.Type)
	if err := client.ConsumeRecordChanges(ctx, mirrorWorker.HandleRecordChanged); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Message consumption failed", "error", err)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped gracefully")
}
