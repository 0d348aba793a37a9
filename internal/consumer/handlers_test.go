package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"example.com/activities/internal/domain"
	"example.com/activities/internal/events"
	"example.com/activities/internal/lifecycle"
	"example.com/activities/internal/persistence/memory"
	"example.com/activities/internal/persistence/postgres"
	"example.com/activities/internal/validation"
)

type stubEnder struct {
	ids []string
	at  []*time.Time
	res domain.EndResult
	err error
}

func (e *stubEnder) EndActivity(_ context.Context, id string, endTime *time.Time) (domain.EndResult, error) {
	e.ids = append(e.ids, id)
	e.at = append(e.at, endTime)
	return e.res, e.err
}

func closeMessage(t *testing.T, req events.CloseRequested) Message {
	t.Helper()
	payload, err := json.Marshal(req)
	require.NoError(t, err)
	return Message{EventType: events.TypeActivityCloseRequested, Payload: payload, Key: req.ActivityID}
}

func TestCloseHandlerPassesSuppliedEndTime(t *testing.T) {
	ender := &stubEnder{}
	end := time.Date(2024, time.April, 2, 18, 0, 0, 0, time.UTC)

	err := NewCloseHandler(ender, zap.NewNop()).Handle(context.Background(), closeMessage(t, events.CloseRequested{ActivityID: "a-1", EndTime: &end}))
	require.NoError(t, err)
	require.Equal(t, []string{"a-1"}, ender.ids)
	require.True(t, ender.at[0].Equal(end))
}

func TestCloseHandlerAcknowledgesUnknownAndMalformed(t *testing.T) {
	ender := &stubEnder{err: domain.ErrNotFound}
	h := NewCloseHandler(ender, nil)

	require.NoError(t, h.Handle(context.Background(), closeMessage(t, events.CloseRequested{ActivityID: "gone"})))
	require.NoError(t, h.Handle(context.Background(), Message{Payload: json.RawMessage(`{"activity_id":""}`)}))
	require.NoError(t, h.Handle(context.Background(), Message{Payload: json.RawMessage(`[]`)}))
	require.Len(t, ender.ids, 1)
}

func TestCloseHandlerReturnsStorageFailures(t *testing.T) {
	ender := &stubEnder{err: domain.NewStorageFailure("get", errors.New("throttled"))}

	err := NewCloseHandler(ender, nil).Handle(context.Background(), closeMessage(t, events.CloseRequested{ActivityID: "a-1"}))
	require.ErrorIs(t, err, domain.ErrStorage)
}

func TestCloseHandlerRedeliveryKeepsFirstEndTime(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	svc := lifecycle.NewService(store, validation.New())

	id, err := svc.CreateActivity(ctx, domain.CreateRequest{
		ActivityType:       domain.ActivityTypeVisit,
		TestStationName:    "Station",
		TestStationPNumber: "87-1369569",
		TestStationType:    domain.StationTypeATF,
		TesterName:         "Gica",
		TesterStaffID:      "132",
		TesterEmail:        "tester@example.com",
	})
	require.NoError(t, err)

	h := NewCloseHandler(svc, nil)
	first := time.Date(2030, time.January, 1, 17, 0, 0, 0, time.UTC)
	second := first.Add(time.Hour)
	require.NoError(t, h.Handle(ctx, closeMessage(t, events.CloseRequested{ActivityID: id, EndTime: &first})))
	require.NoError(t, h.Handle(ctx, closeMessage(t, events.CloseRequested{ActivityID: id, EndTime: &second})))

	stored, err := store.Get(ctx, id)
	require.NoError(t, err)
	require.True(t, stored.EndTime.Equal(first))
}

type memoryLog struct {
	records []postgres.EventRecord
	err     error
}

func (l *memoryLog) Append(_ context.Context, rec postgres.EventRecord) error {
	if l.err != nil {
		return l.err
	}
	l.records = append(l.records, rec)
	return nil
}

func TestAuditHandlerRecordsEvent(t *testing.T) {
	log := &memoryLog{}
	msg := Message{
		Topic:     "activity_lifecycle",
		Partition: 2,
		Offset:    5,
		Key:       "fallback",
		EventType: events.TypeActivityStarted,
		Payload:   json.RawMessage(`{"activity_id":"a-7"}`),
	}

	require.NoError(t, NewAuditHandler(log).Handle(context.Background(), msg))
	require.Len(t, log.records, 1)
	require.Equal(t, "a-7", log.records[0].ActivityID)
	require.Equal(t, int64(5), log.records[0].Offset)

	msg.Payload = json.RawMessage(`{}`)
	require.NoError(t, NewAuditHandler(log).Handle(context.Background(), msg))
	require.Equal(t, "fallback", log.records[1].ActivityID)
}

func TestRouterFansOutInOrder(t *testing.T) {
	var order []string
	record := func(name string, err error) Handler {
		return HandlerFunc(func(context.Context, Message) error {
			order = append(order, name)
			return err
		})
	}

	router := NewRouter(nil).
		RouteAll(record("audit", nil)).
		Route(events.TypeActivityCloseRequested, record("close", nil))

	require.NoError(t, router.Handle(context.Background(), Message{EventType: events.TypeActivityCloseRequested}))
	require.NoError(t, router.Handle(context.Background(), Message{EventType: events.TypeActivityStarted}))
	require.Equal(t, []string{"audit", "close", "audit"}, order)

	failing := NewRouter(nil).RouteAll(record("broken", errors.New("db down"))).Route("x", record("never", nil))
	require.Error(t, failing.Handle(context.Background(), Message{EventType: "x"}))
	require.NotContains(t, order, "never")

	require.NoError(t, NewRouter(nil).Handle(context.Background(), Message{EventType: "unrouted"}))
}
