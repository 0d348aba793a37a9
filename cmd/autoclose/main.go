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

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"example.com/activities/internal/autoclose"
	"example.com/activities/internal/backend"
	"example.com/activities/internal/config"
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
	service := store.Service(logger)

	var closer autoclose.Closer = autoclose.NewDirectCloser(service)
	if cfg.AutoClose.Mode == "kafka" {
		publisher, closePublisher := backend.NewPublisher(cfg)
		defer func() { _ = closePublisher() }()
		closer = autoclose.NewEventCloser(publisher)
	}

	sweeper := autoclose.NewSweeper(service, closer, cfg.AutoClose.MaxOpen, autoclose.WithLogger(logger))

	metricsSrv := &http.Server{Addr: cfg.Metrics.Address, Handler: promhttp.Handler()}
	go func() {
		if err := httptransport.Serve(ctx, metricsSrv, 5*time.Second, logger); err != nil {
			logger.Warn("metrics server stopped", zap.Error(err))
		}
	}()

	logger.Info("autoclose starting", zap.String("mode", cfg.AutoClose.Mode))
	if err := sweeper.Run(ctx, cfg.AutoClose.Interval); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("autoclose stopped", zap.Error(err))
	}
}
