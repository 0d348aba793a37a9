package main

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"example.com/activities/internal/backend"
	"example.com/activities/internal/cli"
	"example.com/activities/internal/config"
	"example.com/activities/internal/persistence/postgres"
)

func main() {
	var (
		configPath string
		verbose    bool
	)

	open := func(ctx context.Context) (*cli.Env, func(), error) {
		cfg, err := config.Load(configPath)
		if err != nil {
			return nil, nil, err
		}
		logger := zap.NewNop()
		if verbose {
			if logger, err = zap.NewDevelopment(); err != nil {
				return nil, nil, err
			}
		}

		store, err := backend.Open(ctx, cfg, logger)
		if err != nil {
			return nil, nil, err
		}
		env := &cli.Env{Service: store.Service(logger)}
		release := store.Close

		pool := store.Pool
		if pool == nil && cfg.Postgres.URL != "" {
			// Event log and schema live in postgres even when activities do not.
			if p, err := backend.OpenPool(ctx, cfg.Postgres.URL); err == nil {
				pool = p
				release = func() {
					p.Close()
					store.Close()
				}
			}
		}
		if pool != nil {
			env.History = postgres.NewEventLog(pool)
			env.Migrate = func(ctx context.Context) error { return postgres.EnsureSchema(ctx, pool) }
		}
		return env, release, nil
	}

	root := cli.RootCmd(open)
	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to a config file")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log store calls to stderr")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
