//go:build integration

package consumer

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	postgrescontainer "github.com/testcontainers/testcontainers-go/modules/postgres"

	"example.com/activities/internal/events"
	"example.com/activities/internal/persistence/postgres"
)

func TestAuditHandlerStoresEvent(t *testing.T) {
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

	var pool *pgxpool.Pool
	require.Eventually(t, func() bool {
		pool, err = pgxpool.New(ctx, connStr)
		return err == nil && pool.Ping(ctx) == nil
	}, 30*time.Second, time.Second)
	t.Cleanup(pool.Close)
	require.NoError(t, postgres.EnsureSchema(ctx, pool))

	handler := NewAuditHandler(postgres.NewEventLog(pool))
	payload := json.RawMessage(`{"activity_id":"abc","activity_type":"visit"}`)
	msg := Message{
		EventType: events.TypeActivityStarted,
		SchemaID:  42,
		Topic:     "activity_lifecycle",
		Partition: 0,
		Offset:    5,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	}

	require.NoError(t, handler.Handle(ctx, msg))
	require.NoError(t, handler.Handle(ctx, msg))

	var count int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM activity_event_log`).Scan(&count))
	require.Equal(t, 1, count)

	var stored []byte
	require.NoError(t, pool.QueryRow(ctx, `SELECT payload FROM activity_event_log LIMIT 1`).Scan(&stored))
	require.JSONEq(t, string(payload), string(stored))
}
