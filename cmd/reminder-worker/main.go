package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"feeledger/internal/amqp"
	"feeledger/internal/config"
	"feeledger/internal/log"
	"feeledger/internal/notify"
	"feeledger/internal/services"
	"feeledger/internal/storage"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := log.New(log.Config{Component: log.ComponentReminder})
	log.SetDefault(logger)

	logger.Info("Starting reminder-worker")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", log.FieldError, err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPPaymentQueue, cfg.AMQPReminderQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	resolver, err := services.GetStatusResolver(cfg.ReminderStatusMode)
	if err != nil {
		logger.Error("Invalid status mode", log.FieldError, err)
		os.Exit(1)
	}

	processor := services.NewReminderProcessor(
		repo,
		notify.NewAMQPNotifier(amqpClient),
		resolver,
		logger.WithComponent(log.ComponentReminder),
		cfg.AcademicYear,
		cfg.UpcomingWindowDays,
		notify.Channel(cfg.ReminderChannel),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		// Sweep once on startup, then on the configured interval.
		if _, err := processor.ProcessReminders(gctx, time.Now()); err != nil {
			logger.Error("Startup reminder sweep failed", log.FieldError, err)
		}

		ticker := time.NewTicker(cfg.ReminderInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return gctx.Err()
			case <-ticker.C:
				if _, err := processor.ProcessReminders(gctx, time.Now()); err != nil {
					logger.Error("Reminder sweep failed", log.FieldError, err)
				}
			}
		}
	})

	g.Go(func() error {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		select {
		case sig := <-sigChan:
			logger.Info("Shutdown signal received", "signal", sig.String())
			cancel()
			return nil
		case <-gctx.Done():
			return gctx.Err()
		}
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker error", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Reminder worker stopped gracefully")
}
