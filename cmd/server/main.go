package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"go.temporal.io/sdk/client"
	tlog "go.temporal.io/sdk/log"
	"go.temporal.io/sdk/worker"

	"github.com/leowmjw/go-temporal-trajectory/pkg/config"
	"github.com/leowmjw/go-temporal-trajectory/pkg/http"
	"github.com/leowmjw/go-temporal-trajectory/pkg/metrics"
	"github.com/leowmjw/go-temporal-trajectory/pkg/publisher"
	"github.com/leowmjw/go-temporal-trajectory/pkg/storage"
	"github.com/leowmjw/go-temporal-trajectory/pkg/temporal"
	"github.com/leowmjw/go-temporal-trajectory/pkg/trajectory"
)

func newLogger(level string) *slog.Logger {
	var logHandler slog.Handler
	switch level {
	case "debug":
		logHandler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})
	case "warn":
		logHandler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelWarn})
	case "error":
		logHandler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError})
	default:
		logHandler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	}
	return slog.New(logHandler)
}

func main() {
	var (
		configPath = flag.String("config", "", "Path to YAML config file (optional)")
		logLevel   = flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	)
	flag.Parse()

	logger := newLogger(*logLevel)
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Info("Starting trajectory summary service",
		"version", trajectory.Info().Version,
		"http_addr", cfg.Server.Addr,
		"temporal_addr", cfg.Temporal.HostPort,
		"namespace", cfg.Temporal.Namespace,
		"task_queue", cfg.Temporal.TaskQueue,
		"storage", cfg.Storage.Driver,
	)

	temporalClient, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
		Logger:    tlog.NewStructuredLogger(logger),
	})
	if err != nil {
		logger.Error("Failed to create Temporal client", "error", err)
		os.Exit(1)
	}
	defer temporalClient.Close()

	store, err := storage.Open(cfg.Storage.Driver, cfg.Storage.Path)
	if err != nil {
		logger.Error("Failed to open observation store", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	collector := metrics.NewCollector()

	// Publishing is optional; without NATS the publish flag is rejected per run
	var pub temporal.Publisher
	if cfg.NATS.URL != "" {
		natsPub, err := publisher.NewNATSPublisher(cfg.NATS.URL, cfg.NATS.SubjectPrefix, cfg.NATS.LogSubjects, collector, logger)
		if err != nil {
			logger.Error("Failed to connect to NATS", "url", cfg.NATS.URL, "error", err)
			os.Exit(1)
		}
		defer natsPub.Close()
		pub = natsPub
	}

	activities := temporal.NewActivitiesImpl(logger, store, pub, collector)

	w := worker.New(temporalClient, cfg.Temporal.TaskQueue, worker.Options{})
	temporal.Register(w, activities)

	go func() {
		logger.Info("Starting Temporal worker", "task_queue", cfg.Temporal.TaskQueue)
		if err := w.Run(worker.InterruptCh()); err != nil {
			logger.Error("Temporal worker failed", "error", err)
			os.Exit(1)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Metrics.Addr != "" {
		collector.Serve(ctx, cfg.Metrics.Addr, logger)
	}

	server := http.NewServer(logger, temporalClient, cfg.Server.Addr,
		http.WithTaskQueue(cfg.Temporal.TaskQueue),
		http.WithMetrics(collector),
	)

	go func() {
		if err := server.Start(ctx); err != nil {
			logger.Error("HTTP server failed", "error", err)
			os.Exit(1)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	<-sigChan
	logger.Info("Received shutdown signal, stopping services...")

	cancel()

	logger.Info("Trajectory summary service stopped")
}
