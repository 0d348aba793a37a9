//go:build integration

package postgres

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	postgrescontainer "github.com/testcontainers/testcontainers-go/modules/postgres"

	"example.com/activities/internal/domain"
	"example.com/activities/internal/query"
)

func startPostgres(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	pg, err := postgrescontainer.RunContainer(ctx,
		postgrescontainer.WithDatabase("activities"),
		postgrescontainer.WithUsername("activities"),
		postgrescontainer.WithPassword("activities"),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pg.Terminate(ctx) })

	connStr, err := pg.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	require.NoError(t, waitForDatabase(ctx, connStr))

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, EnsureSchema(ctx, pool))
	return pool
}

func TestGatewayRoundTrip(t *testing.T) {
	ctx := context.Background()
	gw := NewGateway(startPostgres(t), 3)
	start := time.Date(2024, time.February, 1, 8, 0, 0, 0, time.UTC)

	var ids []string
	for i := 0; i < 8; i++ {
		a := domain.Activity{
			ID:                 fmt.Sprintf("a-%02d", i),
			ActivityType:       domain.ActivityTypeVisit,
			TestStationPNumber: "87-1369569",
			TesterStaffID:      "132",
			StartTime:          start.Add(time.Duration(i) * time.Minute),
			ActivityDay:        "2024-02-01",
		}
		if i%2 == 0 {
			end := a.StartTime.Add(time.Minute)
			a.EndTime = &end
		}
		prev, err := gw.Put(ctx, a)
		require.NoError(t, err)
		require.Nil(t, prev)
		ids = append(ids, a.ID)
	}

	open, err := gw.QueryIndex(ctx, query.NewBuilder("", "").Open(domain.ActivityTypeVisit))
	require.NoError(t, err)
	require.Len(t, open, 4)

	all, err := gw.QueryIndex(ctx, query.NewBuilder("", "").Ranged(query.Filter{
		ActivityType:  domain.ActivityTypeVisit,
		FromStartTime: start,
		ToStartTime:   start.Add(time.Hour),
	}))
	require.NoError(t, err)
	require.Len(t, all, 8)

	notes := "late"
	first := all[0]
	first.Notes = &notes
	require.NoError(t, gw.BatchPut(ctx, []domain.Activity{first}))

	got, err := gw.Get(ctx, first.ID)
	require.NoError(t, err)
	require.Equal(t, "late", *got.Notes)

	removed, err := gw.Delete(ctx, ids[0])
	require.NoError(t, err)
	require.Equal(t, ids[0], removed.ID)

	missing, err := gw.Get(ctx, ids[0])
	require.NoError(t, err)
	require.Nil(t, missing)
}

func TestEventLogIgnoresRedelivery(t *testing.T) {
	ctx := context.Background()
	log := NewEventLog(startPostgres(t))

	rec := EventRecord{
		EventType:  "activity.started",
		ActivityID: "a-1",
		Payload:    []byte(`{"activity_id":"a-1"}`),
		Topic:      "activity_lifecycle",
		Partition:  0,
		Offset:     42,
	}
	require.NoError(t, log.Append(ctx, rec))
	require.NoError(t, log.Append(ctx, rec))

	records, err := log.ListForActivity(ctx, "a-1")
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, "activity.started", records[0].EventType)
}

func waitForDatabase(ctx context.Context, connStr string) error {
	deadline := time.Now().Add(30 * time.Second)
	for {
		pool, err := pgxpool.New(ctx, connStr)
		if err == nil {
			err = pool.Ping(ctx)
			pool.Close()
			if err == nil {
				return nil
			}
		}
		if time.Now().After(deadline) {
			return err
		}
		time.Sleep(time.Second)
	}
}
