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

	"github.com/Dan9191/gente-bank/internal/audit"
	"github.com/Dan9191/gente-bank/internal/auth"
	"github.com/Dan9191/gente-bank/internal/config"
	"github.com/Dan9191/gente-bank/internal/database"
	"github.com/Dan9191/gente-bank/internal/events"
	"github.com/Dan9191/gente-bank/internal/handler"
	"github.com/Dan9191/gente-bank/internal/middleware"
	"github.com/Dan9191/gente-bank/internal/notify"
	"github.com/Dan9191/gente-bank/internal/repository"
	"github.com/Dan9191/gente-bank/internal/service"
	"github.com/sirupsen/logrus"
)

const (
	eventStreamMaxLen = 100000
	shutdownTimeout   = 15 * time.Second
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
	var store repository.AccountStore
	switch cfg.DBDriver {
	case config.DriverMemory:
		logger.Warn("Using in-memory storage, data is lost on restart")
		store = repository.NewMemoryStore()
	default:
		if cfg.RunMigrations {
			if err := database.RunMigrations(logger, cfg.DBConn); err != nil {
				logger.Fatalf("Failed to run migrations: %v", err)
			}
		}
		db, err := database.Open(ctx, cfg.DBConn)
		if err != nil {
			logger.Fatalf("Failed to connect to database: %v", err)
		}
		defer db.Close()
		store = repository.NewPostgresStore(db)
	}

	// Event publishing
	var publisher events.Publisher = events.NopPublisher{}
	if cfg.RedisAddr != "" {
		client, err := events.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			logger.Fatalf("Failed to connect to redis: %v", err)
		}
		defer client.Close()
		publisher = events.NewRedisPublisher(client, eventStreamMaxLen)
		logger.Infof("Publishing events to redis at %s", cfg.RedisAddr)
	}

	// Alerts
	var notifier notify.Notifier = notify.Nop{}
	if cfg.SMTPHost != "" {
		notifier = notify.NewEmailNotifier(notify.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SenderEmail,
			To:       cfg.AlertEmail,
		}, logger)
		logger.Infof("Sending alerts via %s", cfg.SMTPAddr())
	}

	// Initialize layers
	tokens := auth.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL)
	svc := service.NewService(store, auth.NewHasher(cfg.BcryptCost), tokens, publisher, notifier, logger, service.Options{
		MaxAmount:                 cfg.MaxAmount,
		LargeTransactionThreshold: cfg.LargeTxThreshold,
	})
	h := handler.NewHandler(svc, logger)

	reconciler := audit.NewReconciler(store, notifier, logger)
	if err := reconciler.Start(cfg.ReconcileSchedule); err != nil {
		logger.Fatalf("Failed to schedule reconciliation: %v", err)
	}

	// Setup router
	r := handler.NewRouter(h, tokens, middleware.NewRateLimiter(cfg.LoginRateLimit, cfg.LoginRateBurst), logger)

	// Start server
	addr := fmt.Sprintf(":%s", cfg.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Infof("Starting server on %s", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			logger.Errorf("Server failed: %v", err)
		}
	case <-ctx.Done():
		logger.Info("Shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Server shutdown failed: %v", err)
	}
	reconciler.Stop()
	svc.Wait()
	logger.Info("Server stopped")
}
