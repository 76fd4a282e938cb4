package main

import (
	"context"
	"errors"
	"os"
	"time"

	"conti/internal/cli"
	"conti/internal/config"
	"conti/internal/log"
	"conti/internal/sheets"
	gsheet "conti/internal/sheets/google"
	mem "conti/internal/sheets/memory"
	"conti/internal/worker"

	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentWorker, os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"))
	logger.Info("Starting conti-worker")

	cfg := cli.LoadAndValidateConfig(logger)

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	ctx, done := cli.GracefulShutdown(logger, shutdownTimeout, nil)

	writer, err := newWriter(ctx, cfg)
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", log.FieldError, err)
		os.Exit(1)
	}

	// The worker only reads; its services never publish.
	amqpClient := cli.InitPublisher(ctx, logger, cfg)
	svc := cli.NewServices(repo, cfg, nil)
	snapshots := worker.NewSnapshotWorker(svc.Accounts, svc.Budgets, writer)
	snapshots.DropRatesOn(svc.Rates.Snapshots().Clear)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return snapshots.RunPeriodic(gctx, cfg.ExportInterval)
	})
	if amqpClient != nil {
		defer amqpClient.Close()
		g.Go(func() error {
			err := amqpClient.ConsumeEvents(gctx, snapshots.HandleEvent)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	} else {
		logger.Info("Skipping AMQP event consumption - exporting on interval only",
			"interval", cfg.ExportInterval)
	}

	if err := g.Wait(); err != nil {
		logger.Error("Worker stopped with error", log.FieldError, err)
		os.Exit(1)
	}
	<-done
	logger.Info("Worker shutdown complete")
}

func newWriter(ctx context.Context, cfg *config.Config) (sheets.SnapshotWriter, error) {
	if !cfg.SheetsEnabled() {
		log.FromContext(ctx).Info("Google Sheets disabled - snapshots kept in memory")
		return mem.New(), nil
	}
	client, err := gsheet.New(ctx, gsheet.Config{
		SpreadsheetID:      cfg.GoogleSpreadsheetID,
		BalanceSheet:       cfg.GoogleBalanceSheet,
		BudgetSheet:        cfg.GoogleBudgetSheet,
		ServiceAccountJSON: cfg.GoogleServiceAccountJSON,
		ServiceAccountFile: cfg.GoogleServiceAccountFile,
		OAuthClientFile:    cfg.GoogleOAuthClientFile,
		OAuthTokenFile:     cfg.GoogleOAuthTokenFile,
	})
	if err != nil {
		return nil, err
	}
	log.FromContext(ctx).Info("Google Sheets client initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	return client, nil
}
