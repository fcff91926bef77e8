package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/flood-risk-monitor/internal/adapter/httpadapter"
	kafkaadapter "github.com/couchcryptid/flood-risk-monitor/internal/adapter/kafka"
	"github.com/couchcryptid/flood-risk-monitor/internal/adapter/postgres"
	"github.com/couchcryptid/flood-risk-monitor/internal/adapter/weather"
	"github.com/couchcryptid/flood-risk-monitor/internal/config"
	"github.com/couchcryptid/flood-risk-monitor/internal/monitor"
	"github.com/couchcryptid/flood-risk-monitor/internal/observability"
	"github.com/jonboulle/clockwork"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := postgres.EnsureSchema(ctx, pool); err != nil {
		return err
	}
	repo := postgres.NewAreaRepository(pool, logger)

	clock := clockwork.NewRealClock()
	client := weather.NewClient(cfg.WeatherAPIKey, cfg.WeatherBaseURL, cfg.WeatherTimeout, metrics, logger)
	fetcher := weather.NewCachedFetcher(client, cfg.WeatherCacheSize, cfg.WeatherCacheTTL, clock, metrics)
	logger.Info("weather client configured",
		"base_url", cfg.WeatherBaseURL,
		"timeout", cfg.WeatherTimeout,
		"cache_size", cfg.WeatherCacheSize,
		"cache_ttl", cfg.WeatherCacheTTL,
	)

	var notifier monitor.ChangeNotifier = monitor.LogNotifier{Logger: logger}
	var publisher *kafkaadapter.Publisher
	if cfg.KafkaEnabled() {
		publisher = kafkaadapter.NewPublisher(cfg, logger)
		notifier = publisher
		logger.Info("publishing risk changes to kafka", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaRiskTopic)
	} else {
		logger.Info("kafka disabled, risk changes are logged only")
	}

	sched := monitor.New(monitor.Config{
		Repository: repo,
		Fetcher:    fetcher,
		Notifier:   notifier,
		Logger:     logger,
		Metrics:    metrics,
		Clock:      clock,
		Interval:   cfg.MonitorInterval,
		BatchSize:  cfg.MonitorBatchSize,
		BatchDelay: cfg.MonitorBatchDelay,
	})

	srv := httpadapter.NewServer(ctx, cfg.HTTPAddr, sched, repo, logger)

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	if cfg.MonitorAutostart {
		if err := sched.Start(ctx); err != nil {
			// The service stays up so an operator can fix the key and start
			// the monitor over HTTP.
			logger.Error("monitor not started", "error", err)
		}
	}

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}

	sched.Stop()
	waitOrTimeout(shutdownCtx, sched, logger)

	if publisher != nil {
		if err := publisher.Close(); err != nil {
			logger.Error("kafka publisher close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
	return nil
}

func waitOrTimeout(ctx context.Context, sched *monitor.Scheduler, logger *slog.Logger) {
	done := make(chan struct{})
	go func() {
		sched.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		logger.Warn("in-flight cycle did not finish before shutdown timeout")
	}
}
