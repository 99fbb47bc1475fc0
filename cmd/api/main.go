package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Dan9191/bank-cards/internal/config"
	"github.com/Dan9191/bank-cards/internal/handler"
	"github.com/Dan9191/bank-cards/internal/jobs"
	"github.com/Dan9191/bank-cards/internal/repository"
	"github.com/Dan9191/bank-cards/internal/repository/memory"
	"github.com/Dan9191/bank-cards/internal/service"
	"github.com/Dan9191/bank-cards/internal/utils"
	"github.com/Dan9191/bank-cards/internal/utils/email"
	"github.com/sirupsen/logrus"
)

func main() {
	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	// Load configuration
	cfg, err := config.NewConfig()
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}
	logLevel, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize storage
	var store repository.Store
	switch cfg.Storage {
	case config.StorageMemory:
		logger.Warn("Using in-memory storage, data is lost on restart")
		store = memory.NewStore()
	default:
		db, err := repository.NewPostgresDB(cfg.DBConn)
		if err != nil {
			logger.Fatalf("Failed to connect to database: %v", err)
		}
		defer db.Close()
		if err := repository.Migrate(ctx, db); err != nil {
			logger.Fatalf("Failed to migrate database: %v", err)
		}
		store = repository.NewPostgresStore(db, logger)
	}

	cipher, err := utils.NewCardCipher(cfg.CipherMode, cfg.EncryptionKey, cfg.EncryptionIV)
	if err != nil {
		logger.Fatalf("Failed to initialize card cipher: %v", err)
	}
	if cfg.CipherMode == utils.CipherModeCBC {
		logger.Warn("CIPHER_MODE=cbc uses a fixed IV, equal card numbers produce equal ciphertexts")
	}

	var notifier service.Notifier
	if cfg.NotificationsEnabled() {
		notifier = email.NewSender(cfg, logger)
	}

	// Initialize layers
	svc := service.NewService(store, cipher, utils.NewHMACIndex(cfg.HMACSecret), notifier, logger, cfg)
	if cfg.AdminPassword != "" {
		created, err := svc.SeedAdmin(ctx, cfg.AdminUsername, cfg.AdminPassword, cfg.AdminFullName)
		if err != nil {
			logger.Fatalf("Failed to seed admin account: %v", err)
		}
		if created {
			logger.Infof("Admin account %q created", cfg.AdminUsername)
		}
	}

	expiryJob := jobs.NewExpiryJob(svc, cfg.ExpiryReminderDays, logger)
	if err := expiryJob.Start(cfg.ExpiryReminderSchedule); err != nil {
		logger.Fatalf("Failed to start expiry reminder job: %v", err)
	}

	// Start server
	addr := fmt.Sprintf(":%s", cfg.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      handler.NewRouter(handler.NewHandler(svc, logger)),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		logger.Infof("Starting server on %s", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("Server failed: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Server shutdown failed: %v", err)
	}
	select {
	case <-expiryJob.Stop().Done():
	case <-shutdownCtx.Done():
		logger.Warn("Expiry reminder job did not stop in time")
	}
}
