package main

import (
	"context"
	"os"
	"time"

	"fintrack/internal/amqp"
	"fintrack/internal/cli"
	"fintrack/internal/fx"
	"fintrack/internal/log"
	"fintrack/internal/services"
	"fintrack/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentWorker)
	logger.Info("Starting rates-worker")
	cfg := cli.LoadAndValidateConfig(logger, nil)

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	provider, err := fx.NewProvider(cfg.RatesProvider, cfg.RatesURL, cfg.RatesCacheTTL)
	if err != nil {
		logger.Error("Failed to configure rates provider", "error", err)
		os.Exit(1)
	}
	reporting := cfg.Reporting()
	converter := fx.NewConverter(provider, cfg.RatesTimeout)

	var opts []services.LedgerOption
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, auto-paid records will not be mirrored", "error", err)
		} else {
			defer client.Close()
			opts = append(opts, services.WithPublisher(client))
		}
	}
	ledgerSvc := services.NewLedgerService(repo, repo, converter, reporting, opts...)
	payments := services.NewPaymentService(ledgerSvc, repo)
	refresher := services.NewRateRefresher(provider, repo, reporting)

	var mailer services.Mailer
	if cfg.SMTPHost != "" {
		mailer = &services.SMTPMailer{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
		}
	} else {
		logger.Info("SMTP disabled, reminders will only be logged")
	}
	reminders := services.NewReminderService(repo, repo, mailer)

	refreshRates := func(ctx context.Context, _ time.Time) error {
		_, err := refresher.Refresh(ctx)
		return err
	}
	dailyPayments := func(ctx context.Context, now time.Time) error {
		paid, err := payments.ProcessAutoPay(ctx, now)
		if err != nil {
			return err
		}
		sent, err := reminders.Run(ctx, now)
		if err != nil {
			return err
		}
		logger.InfoContext(ctx, "Daily payments processed", "auto_paid", paid, "reminders_sent", sent)
		return nil
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, nil)
	scheduler := worker.NewScheduler(ctx, time.UTC)
	if err := scheduler.Add("refresh-rates", cfg.RatesRefreshSpec, refreshRates); err != nil {
		logger.Error("Failed to schedule rate refresh", "error", err)
		os.Exit(1)
	}
	if err := scheduler.Add("daily-payments", cfg.ReminderSpec, dailyPayments); err != nil {
		logger.Error("Failed to schedule payment processing", "error", err)
		os.Exit(1)
	}

	// Catch up on anything missed while the worker was down.
	scheduler.RunNow("refresh-rates", refreshRates)
	scheduler.RunNow("daily-payments", dailyPayments)
	scheduler.Start()

	cli.WaitForShutdown(ctx, done)
	stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	scheduler.Stop(stopCtx)
	logger.Info("Rates worker stopped gracefully")
}
