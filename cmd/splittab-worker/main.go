package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"splittab/internal/amqp"
	"splittab/internal/config"
	applog "splittab/internal/log"
	"splittab/internal/worker"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	// Load configuration
	cfg := config.Load()

	// Setup structured logging
	logger := applog.New(applog.Config{
		Level:     slog.LevelInfo,
		Component: "splittab-worker",
		Format:    cfg.LogFormat,
	})
	slog.SetDefault(logger.Logger)

	logger.Info("Starting splittab-worker")

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the reminder worker")
		os.Exit(1)
	}

	// Initialize AMQP client for consuming reminder messages
	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	// The worker falls back to logging rendered reminders when no
	// delivery channel is wired in. Plugging an SMS or email gateway
	// means implementing worker.Notifier and passing it here.
	reminderWorker := worker.NewReminderWorker(nil)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	consumeErr := make(chan error, 1)
	go func() {
		consumeErr <- amqpClient.ConsumeReminders(ctx, func(msg *amqp.ReminderMessage) error {
			return reminderWorker.HandleReminder(ctx, msg)
		})
	}()

	logger.Info("Consuming reminder messages", "queue", cfg.AMQPQueue)

	select {
	case err := <-consumeErr:
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Message consumption failed", "error", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
		// Give the consume loop a moment to wind down before closing the channel.
		select {
		case <-consumeErr:
		case <-time.After(5 * time.Second):
			logger.Warn("Shutdown timeout reached")
		}
	}

	logger.Info("Worker shutdown complete")
}
