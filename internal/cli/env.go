// Package cli implements the activitiesctl operator commands.
package cli

import (
	"context"
	"time"

	"example.com/activities/internal/domain"
	"example.com/activities/internal/persistence/postgres"
	"example.com/activities/internal/results"
)

// Service is the lifecycle surface the operator commands use.
type Service interface {
	GetActivity(ctx context.Context, id string) (*domain.Activity, error)
	DeleteActivity(ctx context.Context, id string) (*domain.Activity, error)
	HasOpenVisit(ctx context.Context, staffID string) (bool, error)
	ListActivities(ctx context.Context, req domain.ListRequest) (results.Result, error)
	EndActivity(ctx context.Context, id string, endTime *time.Time) (domain.EndResult, error)
}

// History reads the audit event log.
type History interface {
	ListForActivity(ctx context.Context, activityID string) ([]postgres.EventRecord, error)
}

// Env is what a command runs against. History and Migrate are nil unless PostgreSQL is
// configured.
type Env struct {
	Service Service
	History History
	Migrate func(ctx context.Context) error
}

// Opener builds an Env on demand so help and flag errors never touch the store. The
// returned function releases it.
type Opener func(ctx context.Context) (*Env, func(), error)

func withEnv(ctx context.Context, open Opener, fn func(*Env) error) error {
	env, release, err := open(ctx)
	if err != nil {
		return err
	}
	defer release()
	return fn(env)
}
