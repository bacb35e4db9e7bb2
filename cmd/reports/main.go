package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/urbanriskmap/cognicity-reports-powertrack/internal/archive/clickhouse"
	"github.com/urbanriskmap/cognicity-reports-powertrack/internal/config"
	"github.com/urbanriskmap/cognicity-reports-powertrack/internal/domain"
	"github.com/urbanriskmap/cognicity-reports-powertrack/internal/logger"
	"github.com/urbanriskmap/cognicity-reports-powertrack/internal/messages"
	"github.com/urbanriskmap/cognicity-reports-powertrack/internal/metrics"
	"github.com/urbanriskmap/cognicity-reports-powertrack/internal/notify"
	"github.com/urbanriskmap/cognicity-reports-powertrack/internal/ops"
	"github.com/urbanriskmap/cognicity-reports-powertrack/internal/orchestrator"
	"github.com/urbanriskmap/cognicity-reports-powertrack/internal/pipeline"
	"github.com/urbanriskmap/cognicity-reports-powertrack/internal/repository/postgres"
	"github.com/urbanriskmap/cognicity-reports-powertrack/internal/stream"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	// Initialize logger
	log, err := logger.New(cfg.Service.Environment)
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer func(log *zap.Logger) {
		err := log.Sync()
		if err != nil {
			log.Error("Failed to sync logger", zap.Error(err))
		}
	}(log)

	log.Info("Starting report worker",
		zap.String("environment", cfg.Service.Environment))

	ctx := context.Background()

	// Initialize the report store
	pgClient, err := postgres.NewClient(ctx, &cfg.Postgres, log)
	if err != nil {
		log.Fatal("Failed to create Postgres client", zap.Error(err))
	}

	store := postgres.NewRepository(pgClient, log)
	defer store.Close()

	if err := store.InitSchema(ctx); err != nil {
		log.Fatal("Failed to initialize report schema", zap.Error(err))
	}
	log.Info("Report schema initialized")

	// Initialize the raw event archive
	chClient, err := clickhouse.NewClient(ctx, &cfg.ClickHouse, log)
	if err != nil {
		log.Fatal("Failed to create ClickHouse client", zap.Error(err))
	}

	archiver := clickhouse.NewRepository(chClient, log)
	defer func() {
		if err := archiver.Close(); err != nil {
			log.Error("Failed to close archiver", zap.Error(err))
		}
	}()

	if err := archiver.InitSchema(ctx); err != nil {
		log.Fatal("Failed to initialize archive schema", zap.Error(err))
	}
	log.Info("Archive schema initialized")

	// Load the reply text catalog
	catalog, err := messages.Load(cfg.Messages.Path, cfg.Messages.DefaultLanguage)
	if err != nil {
		log.Fatal("Failed to load message catalog", zap.Error(err))
	}

	m := metrics.New(prometheus.DefaultRegisterer)

	// Provision the upstream filter rules. This must succeed before the
	// stream opens; it is the one unrecoverable startup condition.
	ruleSet := stream.NewRuleSet(stream.BuildRules(
		cfg.Stream.BoundingBoxQuery,
		cfg.Stream.AddressedQuery,
		cfg.Stream.LocationQueries,
	))

	provisioner := stream.NewProvisioner(cfg.Stream.RulesURL, cfg.Stream.AuthToken, log)
	if err := provisioner.Push(ctx, ruleSet); err != nil {
		log.Fatal("Failed to provision stream rules", zap.Error(err))
	}

	manager := stream.NewManager(stream.NewWebsocketDialer(), ruleSet, stream.ManagerConfig{
		URL:            cfg.Stream.URL,
		AuthToken:      cfg.Stream.AuthToken,
		IdleTimeout:    time.Duration(cfg.Stream.IdleTimeoutSec) * time.Second,
		BackoffFloor:   time.Duration(cfg.Stream.BackoffFloorMS) * time.Millisecond,
		BackoffCeiling: time.Duration(cfg.Stream.BackoffCeilMS) * time.Millisecond,
	}, m, log)

	notifier := notify.NewHTTPNotifier(cfg.Notifier, m, log)
	orch := orchestrator.New(store, notifier, catalog, log)
	pipe := pipeline.New(cfg, orch, archiver, m, log)

	// Start the ops server
	go func() {
		server := ops.NewServer(store, log)
		addr := ":" + cfg.Service.OpsPort
		log.Info("Ops server starting", zap.String("address", addr))
		if err := server.Run(addr); err != nil {
			log.Error("Ops server error", zap.Error(err))
		}
	}()

	workerCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	events := make(chan *domain.StreamEvent, cfg.Stream.EventBufferSize)

	log.Info("Stream manager starting", zap.String("url", cfg.Stream.URL))
	go manager.Start(workerCtx, events)

	pipelineDone := make(chan struct{})
	go func() {
		defer close(pipelineDone)
		if err := pipe.Start(workerCtx, events); err != nil {
			log.Error("Pipeline error", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Info("Shutting down report worker gracefully")
	cancel()
	<-pipelineDone
}
