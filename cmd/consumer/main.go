package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"example.com/activities/internal/backend"
	"example.com/activities/internal/config"
	"example.com/activities/internal/consumer"
	"example.com/activities/internal/events"
	"example.com/activities/internal/lifecycle"
	"example.com/activities/internal/logging"
	"example.com/activities/internal/persistence/postgres"
	httptransport "example.com/activities/internal/transport/http"
)

func main() {
	cfg, err := config.Load(os.Getenv("ACTIVITIES_CONFIG_FILE"))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := backend.Open(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("open store", zap.Error(err))
	}
	defer store.Close()

	publisher, closePublisher := backend.NewPublisher(cfg)
	defer func() { _ = closePublisher() }()
	service := store.Service(logger, lifecycle.WithPublisher(publisher))

	pool := store.Pool
	if pool == nil {
		pool, err = backend.OpenPool(ctx, cfg.Postgres.URL)
		if err != nil {
			logger.Fatal("open event log", zap.Error(err))
		}
		defer pool.Close()
	}

	router := consumer.NewRouter(logger).
		RouteAll(consumer.NewAuditHandler(postgres.NewEventLog(pool))).
		Route(events.TypeActivityCloseRequested, consumer.NewCloseHandler(service, logger))

	metricsSrv := &http.Server{Addr: cfg.Metrics.Address, Handler: promhttp.Handler()}
	go func() {
		if err := httptransport.Serve(ctx, metricsSrv, 5*time.Second, logger); err != nil {
			logger.Warn("metrics server stopped", zap.Error(err))
		}
	}()

	var wg sync.WaitGroup
	for _, topic := range []string{cfg.Kafka.Topics.Lifecycle, cfg.Kafka.Topics.CloseRequests} {
		reader := kafka.NewReader(kafka.ReaderConfig{
			Brokers:         cfg.Kafka.Brokers,
			GroupID:         cfg.Kafka.GroupID,
			Topic:           topic,
			MinBytes:        1e3,
			MaxBytes:        10e6,
			RetentionTime:   24 * time.Hour,
			ReadLagInterval: -1,
		})
		proc := consumer.NewProcessor(reader, router, consumer.WithLogger(logger))

		wg.Add(1)
		go func(topic string, r *kafka.Reader) {
			defer wg.Done()
			defer r.Close()

			logger.Info("consumer started", zap.String("topic", topic), zap.String("group", cfg.Kafka.GroupID))
			if err := proc.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("consumer stopped", zap.String("topic", topic), zap.Error(err))
				stop()
			}
		}(topic, reader)
	}

	wg.Wait()
	logger.Info("consumer shut down")
}
