// Package cli provides common CLI initialization utilities shared by
// cmd/conti and cmd/conti-worker.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"conti/internal/amqp"
	"conti/internal/cache"
	"conti/internal/config"
	"conti/internal/fx"
	apphttp "conti/internal/http"
	"conti/internal/log"
	"conti/internal/services"
	"conti/internal/storage"

	"github.com/joho/godotenv"
)

// snapshotCacheDays bounds how many dated rate tables stay cached.
const snapshotCacheDays = 8

// SetupLogger builds the process logger from LOG_LEVEL and LOG_FORMAT and
// installs it as the default.
func SetupLogger(component, level, format string) *log.Logger {
	cfg := log.DefaultConfig()
	cfg.Component = component
	cfg.Level = log.ParseLevel(level)
	cfg.Format = log.ParseFormat(format)
	logger := log.New(cfg)
	log.SetDefault(logger)
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and validates it.
// Returns the config or exits the process on validation failure.
func LoadAndValidateConfig(logger *log.Logger) *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}
	return cfg
}

// InitSQLite initializes a SQLite repository with the given path.
// Returns the repository or exits the process on failure.
func InitSQLite(logger *log.Logger, dbPath string) *storage.SQLiteRepository {
	repo, err := storage.NewSQLiteRepository(dbPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", log.FieldError, err, "path", dbPath)
		os.Exit(1)
	}
	return repo
}

// InitPublisher dials the broker when AMQP_URL is set. Without it the
// returned client is nil and events are not published.
func InitPublisher(ctx context.Context, logger *log.Logger, cfg *config.Config) *amqp.Client {
	if cfg.AMQPURL == "" {
		logger.Info("Ledger events disabled - no AMQP_URL provided")
		return nil
	}
	client, err := amqp.NewClient(ctx, cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("AMQP client initialized", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	return client
}

// NewServices wires every use case over repo. A nil client leaves the
// publisher unset so services skip event publication.
func NewServices(repo *storage.SQLiteRepository, cfg *config.Config, client *amqp.Client) apphttp.Services {
	var pub services.Publisher
	if client != nil {
		pub = client
	}

	rateSvc := services.NewRateService(repo, cache.NewLRUCache[fx.Table](snapshotCacheDays, cfg.RateCacheTTL), pub)
	settings := services.NewSettingsService(repo, pub)
	return apphttp.Services{
		Accounts:     services.NewAccountService(repo, settings, rateSvc, pub),
		Transactions: services.NewTransactionService(repo, pub),
		Transfers:    services.NewTransferService(repo, rateSvc, pub),
		Categories:   services.NewCategoryService(repo, pub),
		Budgets:      services.NewBudgetService(repo, settings, rateSvc, pub),
		Rates:        rateSvc,
		Settings:     settings,
	}
}

// GracefulShutdown returns a context that is cancelled on SIGINT or SIGTERM.
// cleanup runs with a context bounded by timeout before the returned
// channel closes.
func GracefulShutdown(logger *log.Logger, timeout time.Duration, cleanup func(context.Context)) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()

		cancel()
		if cleanup != nil {
			cleanup(shutdownCtx)
		}

		if shutdownCtx.Err() != nil {
			logger.Warn("Shutdown timeout reached")
		} else {
			logger.Info("Shutdown complete")
		}
		close(done)
	}()

	return ctx, done
}
