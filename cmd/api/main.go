package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"example.com/activities/internal/api"
	"example.com/activities/internal/auth"
	"example.com/activities/internal/backend"
	"example.com/activities/internal/config"
	"example.com/activities/internal/lifecycle"
	"example.com/activities/internal/logging"
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

	var opts []lifecycle.Option
	if cfg.Kafka.Enabled {
		publisher, closePublisher := backend.NewPublisher(cfg)
		defer func() {
			if err := closePublisher(); err != nil {
				logger.Warn("close kafka producer", zap.Error(err))
			}
		}()
		opts = append(opts, lifecycle.WithPublisher(publisher))
	}
	service := store.Service(logger, opts...)

	var authenticate func(http.Handler) http.Handler
	if cfg.Auth.Enabled {
		authenticate = auth.Authenticate(auth.Config{Secret: cfg.Auth.JWTSecret, Issuer: cfg.Auth.JWTIssuer})
	}

	handler := api.NewHandler(service, logger)
	server := httptransport.NewServer(cfg.HTTP, handler.Router(authenticate))

	logger.Info("activity-service starting",
		zap.String("backend", cfg.Store.Backend),
		zap.Bool("kafka", cfg.Kafka.Enabled),
		zap.Bool("auth", cfg.Auth.Enabled),
	)
	if err := httptransport.Serve(ctx, server, cfg.HTTP.ShutdownTimeout, logger); err != nil {
		logger.Error("http server stopped", zap.Error(err))
	}
}
