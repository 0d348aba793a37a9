package cli

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/require"

	"example.com/activities/internal/domain"
	"example.com/activities/internal/lifecycle"
	"example.com/activities/internal/persistence/memory"
	"example.com/activities/internal/persistence/postgres"
	"example.com/activities/internal/validation"
)

var fixedNow = time.Date(2024, time.March, 5, 9, 30, 0, 0, time.UTC)

type fakeHistory struct {
	records []postgres.EventRecord
}

func (f fakeHistory) ListForActivity(_ context.Context, id string) ([]postgres.EventRecord, error) {
	var out []postgres.EventRecord
	for _, rec := range f.records {
		if rec.ActivityID == id {
			out = append(out, rec)
		}
	}
	return out, nil
}

func newEnv(t *testing.T) (*Env, *lifecycle.Service) {
	t.Helper()
	color.NoColor = true
	svc := lifecycle.NewService(memory.New(), validation.New(),
		lifecycle.WithClock(func() time.Time { return fixedNow }),
	)
	return &Env{Service: svc}, svc
}

func run(t *testing.T, env *Env, args ...string) (string, error) {
	t.Helper()
	root := RootCmd(func(context.Context) (*Env, func(), error) {
		return env, func() {}, nil
	})
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func seedVisit(t *testing.T, svc *lifecycle.Service, staffID string) string {
	t.Helper()
	id, err := svc.CreateActivity(context.Background(), domain.CreateRequest{
		ActivityType:       domain.ActivityTypeVisit,
		TestStationName:    "Rowe, Wunsch and Wisoky",
		TestStationPNumber: "87-1369569",
		TestStationType:    domain.StationTypeGVTS,
		TesterName:         "Gica",
		TesterStaffID:      staffID,
		TesterEmail:        "tester@example.com",
	})
	require.NoError(t, err)
	return id
}

func TestGetCommand(t *testing.T) {
	env, svc := newEnv(t)
	id := seedVisit(t, svc, "132")

	out, err := run(t, env, "get", id)
	require.NoError(t, err)
	require.Contains(t, out, "id: "+id)
	require.Contains(t, out, "tester: Gica (132)")
	require.Contains(t, out, "end: open")

	_, err = run(t, env, "get", "missing")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDeleteCommandRequiresForce(t *testing.T) {
	env, svc := newEnv(t)
	id := seedVisit(t, svc, "132")

	_, err := run(t, env, "delete", id)
	require.Error(t, err)

	out, err := run(t, env, "delete", id, "--force")
	require.NoError(t, err)
	require.Contains(t, out, "deleted "+id)

	_, err = svc.GetActivity(context.Background(), id)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestOpenVisitAndEndCommands(t *testing.T) {
	env, svc := newEnv(t)
	id := seedVisit(t, svc, "132")

	out, err := run(t, env, "open-visit", "132")
	require.NoError(t, err)
	require.Contains(t, out, "OPEN")

	_, err = run(t, env, "end", id, "--at", "not-a-time")
	require.Error(t, err)

	out, err = run(t, env, "end", id, "--at", "2024-03-05T18:00:00Z")
	require.NoError(t, err)
	require.Contains(t, out, "ended "+id)

	out, err = run(t, env, "end", id)
	require.NoError(t, err)
	require.Contains(t, out, "was already closed")

	stored, err := svc.GetActivity(context.Background(), id)
	require.NoError(t, err)
	require.True(t, stored.EndTime.Equal(time.Date(2024, time.March, 5, 18, 0, 0, 0, time.UTC)))

	out, err = run(t, env, "open-visit", "132")
	require.NoError(t, err)
	require.Contains(t, out, "none open")
}

func TestListCommand(t *testing.T) {
	env, svc := newEnv(t)
	id := seedVisit(t, svc, "132")

	out, err := run(t, env, "list", "--from", "2024-03-05", "--to", "2024-03-06")
	require.NoError(t, err)
	require.Contains(t, out, id)
	require.Contains(t, out, "1 activities (recent)")

	out, err = run(t, env, "list", "--open")
	require.NoError(t, err)
	require.Contains(t, out, "(cleanup)")

	_, err = run(t, env, "list", "--type", "wait", "--open")
	require.ErrorIs(t, err, domain.ErrNoResourcesFound)
}

func TestPostgresOnlyCommands(t *testing.T) {
	env, _ := newEnv(t)

	_, err := run(t, env, "migrate")
	require.ErrorIs(t, err, errNeedsPostgres)
	_, err = run(t, env, "history", "a-1")
	require.ErrorIs(t, err, errNeedsPostgres)

	migrated := false
	env.Migrate = func(context.Context) error {
		migrated = true
		return nil
	}
	env.History = fakeHistory{records: []postgres.EventRecord{{
		EventType:  "activity.started",
		ActivityID: "a-1",
		Topic:      "activity_lifecycle",
		Partition:  2,
		Offset:     41,
		ReceivedAt: fixedNow,
	}}}

	out, err := run(t, env, "migrate")
	require.NoError(t, err)
	require.True(t, migrated)
	require.Contains(t, out, "schema is up to date")

	out, err = run(t, env, "history", "a-1")
	require.NoError(t, err)
	require.Contains(t, out, "activity.started")
	require.Contains(t, out, "activity_lifecycle/2@41")

	out, err = run(t, env, "history", "a-2")
	require.NoError(t, err)
	require.Contains(t, out, "no events recorded for a-2")
}

func TestOpenerErrorsSurface(t *testing.T) {
	root := RootCmd(func(context.Context) (*Env, func(), error) {
		return nil, nil, errors.New("dial tcp: refused")
	})
	root.SetArgs([]string{"get", "a-1"})
	root.SetOut(&bytes.Buffer{})
	require.EqualError(t, root.Execute(), "dial tcp: refused")
}
