package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"splittab/internal/amqp"
	"splittab/internal/config"
	apphttp "splittab/internal/http"
	applog "splittab/internal/log"
	"splittab/internal/services"
	ports "splittab/internal/sheets"
	gsheet "splittab/internal/sheets/google"
	mem "splittab/internal/sheets/memory"
	"splittab/internal/storage"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	// Load configuration
	cfg := config.Load()

	// Setup structured logging
	logger := applog.New(applog.Config{
		Level:     slog.LevelInfo,
		Component: "splittab",
		Format:    cfg.LogFormat,
	})
	slog.SetDefault(logger.Logger)

	logger.Info("Starting splittab server")

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	// Initialize SQLite repository
	sqliteRepo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer sqliteRepo.Close()

	// Initialize AMQP client for publishing reminders (optional)
	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, reminders will be disabled", "error", err)
			amqpClient = nil
		} else {
			defer amqpClient.Close()
			logger.Info("AMQP client initialized", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	} else {
		logger.Info("AMQP disabled - reminders will not be published")
	}

	// Choose export backend: Google Sheets when configured, in-memory otherwise.
	var exporter ports.BillExporter
	if cfg.GoogleSpreadsheetID != "" {
		client, err := gsheet.New(context.Background(), cfg.GoogleSpreadsheetID, cfg.GoogleSheetName)
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", "error", err)
			os.Exit(1)
		}
		exporter = client
		logger.Info("Google Sheets export enabled", "spreadsheet_id", cfg.GoogleSpreadsheetID, "sheet", cfg.GoogleSheetName)
	} else {
		exporter = mem.New()
		logger.Info("Google Sheets disabled - exports are kept in memory")
	}

	// The archiver flushes HTTP caches after each batch commit; the server
	// is created below, so the callback goes through this indirection.
	var srv *apphttp.Server
	archiver := services.NewArchiver(sqliteRepo, cfg.ArchiveDelay, func(billIDs []string) {
		logger.Info("Auto-archived settled bills", "count", len(billIDs))
		if srv != nil {
			srv.FlushCaches()
		}
	})

	billService := services.NewBillService(sqliteRepo, archiver, cfg.OwnerName, cfg.PageSize)
	defer billService.Close()

	reminderService := services.NewReminderService(sqliteRepo, publisherOrNil(amqpClient), cfg.OwnerName)

	srv = apphttp.NewServer(":"+cfg.Port, billService, reminderService, exporter, cfg.FreshnessWindow)

	// Configure server timeouts and limits
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := archiver.Start(ctx); err != nil {
		logger.Error("Failed to start archiver", "error", err)
		os.Exit(1)
	}

	// Kick the archiver once on startup so bills settled while the
	// server was down still get picked up.
	archiver.Schedule()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting HTTP server", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutdown signal received")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := archiver.Stop(shutdownCtx); err != nil {
			logger.Error("Archiver shutdown error", "error", err)
		}
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server error", "error", err)
		os.Exit(1)
	}

	logger.Info("Server stopped gracefully")
}

// publisherOrNil keeps a typed nil *amqp.Client from sneaking into the
// ReminderPublisher interface, which would defeat the nil check downstream.
func publisherOrNil(client *amqp.Client) services.ReminderPublisher {
	if client == nil {
		return nil
	}
	return client
}
