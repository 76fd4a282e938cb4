package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"conti/internal/cache"
	"conti/internal/cli"
	apphttp "conti/internal/http"
	"conti/internal/log"

	"golang.org/x/sync/errgroup"
)

const (
	shutdownTimeout      = 30 * time.Second
	cacheCleanupInterval = time.Minute
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentApp, os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"))
	cfg := cli.LoadAndValidateConfig(logger)

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	startCtx, startCancel := context.WithTimeout(context.Background(), time.Minute)
	amqpClient := cli.InitPublisher(startCtx, logger, cfg)
	svc := cli.NewServices(repo, cfg, amqpClient)

	if cfg.SeedDefaultRates {
		if _, err := svc.Rates.Seed(startCtx); err != nil {
			logger.Error("Failed to seed default exchange rates", log.FieldError, err)
			startCancel()
			os.Exit(1)
		}
	}
	startCancel()

	caches := cache.NewManager()
	caches.Register("rate_snapshots", svc.Rates.Snapshots())

	srv := apphttp.NewServer(apphttp.Config{
		Addr:           ":" + cfg.Port,
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
		CORSOrigins:    cfg.CORSOrigins,
		Logger:         logger,
	}, svc, repo)

	ctx, done := cli.GracefulShutdown(logger, shutdownTimeout, func(shutdownCtx context.Context) {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		caches.Stop()
		if amqpClient != nil {
			if err := amqpClient.Close(); err != nil {
				logger.Error("AMQP close error", log.FieldError, err)
			}
		}
	})
	caches.StartCleanup(ctx, cacheCleanupInterval)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting conti server",
			"port", cfg.Port,
			"events", amqpClient != nil,
			"cors_origins", cfg.CORSOrigins)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}
	<-done
	logger.Info("Server stopped gracefully")
}
