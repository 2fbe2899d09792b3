package main

import (
	"context"
	"errors"
	"os"
	"time"

	"weekspend/internal/amqp"
	"weekspend/internal/cli"
	"weekspend/internal/log"
	"weekspend/internal/sheets"
	gsheet "weekspend/internal/sheets/google"
	memsheet "weekspend/internal/sheets/memory"
	"weekspend/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg).WithComponent(log.ComponentWorker)

	logger.Info("Starting weekspend-worker")

	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the export worker")
		os.Exit(1)
	}

	startCtx, startCancel := context.WithTimeout(context.Background(), time.Minute)
	defer startCancel()

	store := cli.OpenBackend(startCtx, logger, cfg)

	// Without a spreadsheet the worker still drains the queue into an
	// in-process exporter so rows get marked synced.
	var exporter sheets.ExpenseExporter
	if cfg.GoogleSpreadsheetID != "" {
		if err := cfg.ValidateExport(); err != nil {
			logger.Error("Export configuration invalid", log.FieldError, err)
			os.Exit(1)
		}
		creds, err := gsheet.LoadCredentials(cfg.GoogleServiceAccountJSON, cfg.GoogleServiceAccountFile)
		if err != nil {
			logger.Error("Failed to load Google credentials", log.FieldError, err)
			os.Exit(1)
		}
		client, err := gsheet.New(context.Background(), gsheet.Config{
			SpreadsheetID:   cfg.GoogleSpreadsheetID,
			SheetName:       cfg.GoogleSheetName,
			CredentialsJSON: creds,
		}, logger)
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", log.FieldError, err)
			os.Exit(1)
		}
		exporter = client
		logger.Info("Google Sheets exporter initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID, "sheet", cfg.GoogleSheetName)
	} else {
		exporter = memsheet.New()
		logger.Warn("GOOGLE_SPREADSHEET_ID not set - exporting to an in-process sink")
	}

	amqpClient, err := amqp.NewClient(startCtx, cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}

	exportWorker := worker.NewExportWorker(store.Store, exporter, cfg.SyncBatchSize, cfg.SyncInterval, logger)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(context.Context) {
		logger.Info("Shutting down worker...")
		if err := amqpClient.Close(); err != nil {
			logger.Warn("AMQP close error", log.FieldError, err)
		}
		if err := store.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", log.FieldError, err)
		}
	})

	logger.Info("Performing startup catch-up...")
	if err := exportWorker.StartupCatchUp(ctx); err != nil {
		logger.Error("Startup catch-up failed", log.FieldError, err)
	}

	go func() {
		if err := amqpClient.ConsumeExpenseExports(ctx, exportWorker.HandleExportMessage); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Message consumption failed", log.FieldError, err)
		}
	}()
	go exportWorker.RunPeriodic(ctx, cfg.SyncInterval)

	logger.Info("Worker running", "sync_interval", cfg.SyncInterval, "batch_size", cfg.SyncBatchSize)
	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker shutdown complete")
}
