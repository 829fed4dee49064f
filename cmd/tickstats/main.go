package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-logr/logr"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/vjranagit/tickstats/internal/config"
	"github.com/vjranagit/tickstats/pkg/api"
	"github.com/vjranagit/tickstats/pkg/collector"
	"github.com/vjranagit/tickstats/pkg/event"
	"github.com/vjranagit/tickstats/pkg/host"
	"github.com/vjranagit/tickstats/pkg/measure"
	"github.com/vjranagit/tickstats/pkg/sink/influx"
	"github.com/vjranagit/tickstats/pkg/storage"
	"github.com/vjranagit/tickstats/pkg/writer"
)

const version = "0.1.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, syncLogs, err := cfg.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	defer syncLogs()

	if err := run(cfg, logger); err != nil {
		logger.Error(err, "tickstats exited")
		syncLogs()
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger logr.Logger) error {
	logger.Info("starting tickstats",
		"version", version,
		"sink", cfg.Sink,
		"listenAddr", cfg.Server.ListenAddr,
		"flushInterval", cfg.Writer.FlushInterval.String())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	// Sink
	var (
		sink    writer.Sink
		querier api.Querier
	)
	switch cfg.Sink {
	case config.SinkLocal:
		store, err := storage.NewStorage(cfg.StorageConfig(), logger)
		if err != nil {
			return fmt.Errorf("failed to initialize storage: %w", err)
		}
		defer store.Close()
		go store.RunGC(ctx, cfg.Storage.GCInterval)
		sink, querier = store, store

	default:
		client, err := influx.NewClient(cfg.InfluxConfig(), nil, logger)
		if err != nil {
			return fmt.Errorf("failed to initialize influx sink: %w", err)
		}
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := client.Ping(pingCtx); err != nil {
			logger.Error(err, "influx is not reachable yet", "url", cfg.Influx.URL)
		}
		cancel()
		sink = client
	}

	w, err := writer.NewWriter(cfg.WriterConfig(), sink, logger, reg)
	if err != nil {
		return fmt.Errorf("failed to create writer: %w", err)
	}

	// Host snapshot and event handling
	items := host.NewItemDB()
	if cfg.Host.ItemsPath != "" {
		items, err = host.LoadItemDB(cfg.Host.ItemsPath)
		if err != nil {
			return err
		}
		logger.Info("item database loaded", "path", cfg.Host.ItemsPath, "items", items.Len())
	}
	state := host.NewState(items)
	state.SetUsername(cfg.Host.Username)

	containers, err := cfg.ContainerTopN()
	if err != nil {
		return err
	}

	dispatcher := event.NewDispatcher(logger)
	collector.New(cfg.Tracking(), containers, measure.NewCreator(state, state), w, logger).
		Register(dispatcher)
	bridge := host.NewBridge(state, dispatcher, logger)

	// Flush actor. It outlives the signal context so requests still in
	// flight during server shutdown reach the final flush.
	writerCtx, stopWriter := context.WithCancel(context.Background())
	defer stopWriter()
	writerDone := make(chan error, 1)
	go func() { writerDone <- w.Run(writerCtx) }()

	// API server
	server := api.NewServer(api.Config{
		ListenAddr:   cfg.Server.ListenAddr,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}, w, querier, bridge, reg, logger)

	serverErr := make(chan error, 1)
	go func() { serverErr <- server.Start() }()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			logger.Error(err, "server error")
		}
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Stop(shutdownCtx); err != nil {
		logger.Error(err, "server shutdown error")
	}

	// Run performs the final flush once cancelled
	stopWriter()
	if err := <-writerDone; err != nil {
		return fmt.Errorf("final flush failed: %w", err)
	}

	h := w.Health()
	logger.Info("stopped", "flushed", h.Flushed, "dropped", h.Dropped)
	return nil
}
