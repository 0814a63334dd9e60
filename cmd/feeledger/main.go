package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"feeledger/internal/amqp"
	"feeledger/internal/config"
	apphttp "feeledger/internal/http"
	"feeledger/internal/log"
	"feeledger/internal/services"
	"feeledger/internal/session"
	"feeledger/internal/storage"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := log.New(log.Config{Component: log.ComponentApp})
	log.SetDefault(logger)

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

	// The broker is best effort for the API server: payments are durable in
	// SQLite and the export worker's pending scan recovers missed messages.
	var publisher services.PaymentPublisher
	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPPaymentQueue, cfg.AMQPReminderQueue)
	if err != nil {
		logger.Warn("AMQP unavailable, payment events will rely on the pending scan", log.FieldError, err)
	} else {
		defer amqpClient.Close()
		publisher = amqpClient
	}

	ledger := services.NewLedgerService(repo, publisher, logger.WithComponent(log.ComponentLedger))

	resolver, err := services.GetStatusResolver(cfg.ReminderStatusMode)
	if err != nil {
		logger.Error("Invalid status mode", log.FieldError, err)
		os.Exit(1)
	}

	credentials := make(map[string]apphttp.Credential)
	if cfg.AdminPassword != "" {
		credentials["admin"] = apphttp.Credential{Password: cfg.AdminPassword, Role: session.RoleAdmin}
	}
	if cfg.ClerkPassword != "" {
		credentials["clerk"] = apphttp.Credential{Password: cfg.ClerkPassword, Role: session.RoleClerk}
	}
	if len(credentials) == 0 {
		logger.Error("No credentials configured, set ADMIN_PASSWORD and/or CLERK_PASSWORD")
		os.Exit(1)
	}

	sessions := session.NewManager(cfg.JWTSecret, cfg.SessionTTL)

	srv := apphttp.NewServer(":"+cfg.Port, ledger, sessions, apphttp.Options{
		AcademicYear: cfg.AcademicYear,
		WindowDays:   cfg.UpcomingWindowDays,
		Resolver:     resolver,
		Credentials:  credentials,
	})
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		cancel()
	}()

	logger.Info("Starting feeledger server",
		"port", cfg.Port,
		log.FieldAcademicYear, cfg.AcademicYear,
		"status_mode", cfg.ReminderStatusMode)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("Server stopped gracefully")
}
