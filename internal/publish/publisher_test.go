package publish

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"

	"example.com/activities/internal/events"
)

type captureWriter struct {
	mu      sync.Mutex
	written map[string][]kafka.Message
	err     error
}

func (w *captureWriter) WriteMessages(_ context.Context, topic string, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	if w.written == nil {
		w.written = make(map[string][]kafka.Message)
	}
	w.written[topic] = append(w.written[topic], msgs...)
	return nil
}

type countingRegistry struct {
	calls int
	id    int
	err   error
}

func (r *countingRegistry) EnsureSchema(context.Context, string, string) (int, error) {
	r.calls++
	return r.id, r.err
}

var testTopics = Topics{Lifecycle: "activity_lifecycle", CloseRequests: "activity_close_requests"}

func header(msg kafka.Message, key string) string {
	for _, h := range msg.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func TestPublishFramesAndRoutesEvents(t *testing.T) {
	writer := &captureWriter{}
	registry := &countingRegistry{id: 7}
	pub := NewPublisher(writer, registry, Catalog(testTopics))
	before := testutil.ToFloat64(publishedCounter.WithLabelValues(events.TypeActivityEnded))

	end := time.Date(2024, time.May, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 2; i++ {
		err := pub.Publish(context.Background(), events.Envelope{
			Type:    events.TypeActivityEnded,
			Key:     "a-1",
			Payload: events.ActivityEnded{ActivityID: "a-1", ActivityType: "visit", TesterStaffID: "132", StartTime: end.Add(-time.Hour), EndTime: end},
		})
		require.NoError(t, err)
	}

	require.Equal(t, 1, registry.calls)
	msgs := writer.written["activity_lifecycle"]
	require.Len(t, msgs, 2)
	require.Equal(t, "a-1", string(msgs[0].Key))
	require.Equal(t, events.TypeActivityEnded, header(msgs[0], events.HeaderEventType))
	require.Equal(t, "activity_lifecycle-activity.ended", header(msgs[0], events.HeaderSchemaSubject))

	id, payload, err := events.DecodeWireFormat(msgs[0].Value)
	require.NoError(t, err)
	require.Equal(t, 7, id)
	var decoded events.ActivityEnded
	require.NoError(t, json.Unmarshal(payload, &decoded))
	require.True(t, decoded.EndTime.Equal(end))
	require.Equal(t, before+2, testutil.ToFloat64(publishedCounter.WithLabelValues(events.TypeActivityEnded)))
}

func TestPublishCloseRequestUsesCloseTopic(t *testing.T) {
	writer := &captureWriter{}
	pub := NewPublisher(writer, &countingRegistry{id: 3}, Catalog(testTopics))

	require.NoError(t, pub.Publish(context.Background(), events.Envelope{
		Type:    events.TypeActivityCloseRequested,
		Key:     "a-9",
		Payload: events.CloseRequested{ActivityID: "a-9"},
	}))
	require.Len(t, writer.written["activity_close_requests"], 1)
}

func TestPublishFailures(t *testing.T) {
	pub := NewPublisher(&captureWriter{}, &countingRegistry{}, Catalog(testTopics))
	require.Error(t, pub.Publish(context.Background(), events.Envelope{Type: "activity.unknown"}))

	pub = NewPublisher(&captureWriter{}, &countingRegistry{err: errors.New("registry down")}, Catalog(testTopics))
	require.ErrorContains(t, pub.Publish(context.Background(), events.Envelope{Type: events.TypeActivityStarted}), "registry down")

	before := testutil.ToFloat64(failedCounter.WithLabelValues(events.TypeActivityUpdated))
	pub = NewPublisher(&captureWriter{err: errors.New("broker down")}, &countingRegistry{id: 1}, Catalog(testTopics))
	require.Error(t, pub.Publish(context.Background(), events.Envelope{Type: events.TypeActivityUpdated, Payload: events.ActivityUpdated{ActivityID: "a-1"}}))
	require.Equal(t, before+1, testutil.ToFloat64(failedCounter.WithLabelValues(events.TypeActivityUpdated)))
}

func TestRegistryClientRegistersMissingSubject(t *testing.T) {
	var registered bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && !registered:
			w.WriteHeader(http.StatusNotFound)
		case r.Method == http.MethodGet:
			_, _ = w.Write([]byte(`{"id": 11}`))
		case r.Method == http.MethodPost:
			require.Equal(t, "/subjects/activity_lifecycle-activity.started/versions", r.URL.Path)
			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			require.Equal(t, "JSON", body["schemaType"])
			registered = true
			_, _ = w.Write([]byte(`{"id": 11}`))
		}
	}))
	defer srv.Close()

	client := NewRegistryClient(srv.URL)
	id, err := client.EnsureSchema(context.Background(), "activity_lifecycle-activity.started", activityStartedSchema)
	require.NoError(t, err)
	require.Equal(t, 11, id)
	require.True(t, registered)

	id, err = client.EnsureSchema(context.Background(), "activity_lifecycle-activity.started", activityStartedSchema)
	require.NoError(t, err)
	require.Equal(t, 11, id)
}

func TestRegistryClientSurfacesServerErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := NewRegistryClient(srv.URL).EnsureSchema(context.Background(), "s", "{}")
	require.ErrorContains(t, err, "500")
}
