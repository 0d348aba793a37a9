// Package backend opens the store gateway and event publisher selected by configuration.
package backend

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"example.com/activities/internal/config"
	"example.com/activities/internal/lifecycle"
	"example.com/activities/internal/persistence/dynamo"
	"example.com/activities/internal/persistence/memory"
	"example.com/activities/internal/persistence/postgres"
	"example.com/activities/internal/publish"
	"example.com/activities/internal/query"
	"example.com/activities/internal/validation"
)

// Backend holds an opened store gateway and what it needs to be released.
type Backend struct {
	Gateway lifecycle.Gateway
	Builder query.Builder
	// Pool is set for the postgres backend only.
	Pool *pgxpool.Pool

	closers []func()
}

// Open connects the gateway named by cfg.Store.Backend.
func Open(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Backend, error) {
	b := &Backend{Builder: query.NewBuilder(cfg.Dynamo.ActivityTypeIndex, cfg.Dynamo.StaffIndex)}

	switch cfg.Store.Backend {
	case config.BackendDynamo:
		client, err := dynamo.NewClient(ctx, cfg.Dynamo.Region, cfg.Dynamo.Endpoint)
		if err != nil {
			return nil, err
		}
		b.Gateway = dynamo.New(client, cfg.Dynamo.Table, dynamo.WithLogger(logger))
	case config.BackendPostgres:
		pool, err := OpenPool(ctx, cfg.Postgres.URL)
		if err != nil {
			return nil, err
		}
		b.Pool = pool
		b.closers = append(b.closers, pool.Close)
		b.Gateway = postgres.NewGateway(pool, cfg.Store.PageSize)
	case config.BackendMemory:
		b.Gateway = memory.New(memory.WithPageSize(cfg.Store.PageSize))
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}

	logger.Info("store gateway opened", zap.String("backend", cfg.Store.Backend))
	return b, nil
}

// OpenPool connects to PostgreSQL and checks the connection.
func OpenPool(ctx context.Context, url string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return pool, nil
}

// Service builds the lifecycle service over the gateway.
func (b *Backend) Service(logger *zap.Logger, opts ...lifecycle.Option) *lifecycle.Service {
	base := []lifecycle.Option{lifecycle.WithLogger(logger), lifecycle.WithBuilder(b.Builder)}
	return lifecycle.NewService(b.Gateway, validation.New(), append(base, opts...)...)
}

// Close releases every connection opened by Open.
func (b *Backend) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

// NewPublisher wires the Kafka producer and Schema Registry client. The returned close
// function flushes the producer.
func NewPublisher(cfg *config.Config) (*publish.Publisher, func() error) {
	producer := publish.NewKafkaProducer(cfg.Kafka.Brokers)
	registry := publish.NewRegistryClient(cfg.SchemaRegistry.URL)
	catalog := publish.Catalog(publish.Topics{
		Lifecycle:     cfg.Kafka.Topics.Lifecycle,
		CloseRequests: cfg.Kafka.Topics.CloseRequests,
	})
	return publish.NewPublisher(producer, registry, catalog), producer.Close
}
