package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"pivotboard/internal/amqp"
	"pivotboard/internal/backend"
	"pivotboard/internal/cache"
	"pivotboard/internal/cli"
	"pivotboard/internal/config"
	apphttp "pivotboard/internal/http"
	"pivotboard/internal/log"
	"pivotboard/internal/services"
	"pivotboard/internal/worker"
)

const (
	shutdownTimeout = 30 * time.Second
	sweepInterval   = time.Minute
	warmupWorkers   = 4
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	cfg := cli.LoadAndValidateConfig(logger)

	if err := run(logger, cfg); err != nil {
		logger.Error("pivotboard stopped with error", log.FieldError, err.Error())
		os.Exit(1)
	}
	logger.Info("pivotboard stopped gracefully")
}

func run(logger *log.Logger, cfg *config.Config) error {
	ctx, stop := cli.SignalContext(logger)
	defer stop()

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	sourceCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return err
	}
	src, err := backend.NewFactory(logger).Create(ctx, sourceCfg)
	if err != nil {
		return fmt.Errorf("create result source: %w", err)
	}
	defer func() {
		if err := src.Close(); err != nil {
			logger.Warn("Failed to close result source", log.FieldError, err.Error())
		}
	}()

	svc := services.NewWidgetService(repo, src.Source, logger, services.Options{
		CacheSize:       cfg.CacheSize,
		CacheTTL:        cfg.CacheTTL,
		DefaultCurrency: cfg.DefaultCurrency,
		FetchTimeout:    cfg.FetchTimeout,
	})

	caches := cache.NewManager(logger)
	for _, c := range svc.Caches() {
		caches.Register(c)
	}

	checks := map[string]apphttp.ReadinessCheck{"storage": repo.Ping}
	if p, ok := src.Source.(interface{ Ping(context.Context) error }); ok {
		checks["source"] = p.Ping
	}
	srv, err := apphttp.NewServer(cfg.Addr(), svc, logger, apphttp.Options{ReadinessChecks: checks})
	if err != nil {
		return fmt.Errorf("create http server: %w", err)
	}

	refresher := worker.NewRefreshWorker(svc, logger, warmupWorkers)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting pivotboard server",
			"addr", cfg.Addr(), log.FieldSource, cfg.DataSource, "amqp", cfg.AMQPURL != "")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		return caches.Run(gctx, sweepInterval)
	})
	g.Go(func() error {
		if err := refresher.Warmup(gctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Warn("Warmup failed", log.FieldError, err.Error())
		}
		return nil
	})

	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			return fmt.Errorf("create amqp client: %w", err)
		}
		defer client.Close()

		g.Go(func() error {
			err := client.Consume(gctx, refresher.HandleRefreshMessage)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}

	return g.Wait()
}
