// Package publish delivers lifecycle events to Kafka as Schema Registry framed JSON.
package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"example.com/activities/internal/events"
)

// MessageWriter writes records to a topic.
type MessageWriter interface {
	WriteMessages(ctx context.Context, topic string, msgs ...kafka.Message) error
}

// SchemaRegistrar resolves the schema id of a subject.
type SchemaRegistrar interface {
	EnsureSchema(ctx context.Context, subject, schema string) (int, error)
}

// Route says where an event type is written and which schema describes it.
type Route struct {
	Topic   string
	Subject string
	Schema  string
}

// Topics names the topics events are routed to.
type Topics struct {
	Lifecycle     string
	CloseRequests string
}

// Catalog maps every event type to its route.
func Catalog(topics Topics) map[string]Route {
	route := func(topic, eventType, schema string) Route {
		return Route{Topic: topic, Subject: fmt.Sprintf("%s-%s", topic, eventType), Schema: schema}
	}
	return map[string]Route{
		events.TypeActivityStarted:        route(topics.Lifecycle, events.TypeActivityStarted, activityStartedSchema),
		events.TypeActivityEnded:          route(topics.Lifecycle, events.TypeActivityEnded, activityEndedSchema),
		events.TypeActivityUpdated:        route(topics.Lifecycle, events.TypeActivityUpdated, activityUpdatedSchema),
		events.TypeActivityCloseRequested: route(topics.CloseRequests, events.TypeActivityCloseRequested, closeRequestedSchema),
	}
}

// Publisher frames events with their schema id and writes them synchronously.
type Publisher struct {
	writer   MessageWriter
	registry SchemaRegistrar
	catalog  map[string]Route
	schemaID sync.Map
	now      func() time.Time
}

// NewPublisher constructs a Publisher.
func NewPublisher(writer MessageWriter, registry SchemaRegistrar, catalog map[string]Route) *Publisher {
	return &Publisher{writer: writer, registry: registry, catalog: catalog, now: time.Now}
}

// Publish writes one event keyed by event.Key.
func (p *Publisher) Publish(ctx context.Context, event events.Envelope) error {
	if err := p.publish(ctx, event); err != nil {
		failedCounter.WithLabelValues(event.Type).Inc()
		return err
	}
	publishedCounter.WithLabelValues(event.Type).Inc()
	return nil
}

func (p *Publisher) publish(ctx context.Context, event events.Envelope) error {
	route, ok := p.catalog[event.Type]
	if !ok || route.Topic == "" {
		return fmt.Errorf("no route for event type %q", event.Type)
	}

	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return fmt.Errorf("encode %s: %w", event.Type, err)
	}
	schemaID, err := p.resolveSchema(ctx, route)
	if err != nil {
		return fmt.Errorf("resolve schema %s: %w", route.Subject, err)
	}

	msg := kafka.Message{
		Key:   []byte(event.Key),
		Value: events.EncodeWireFormat(schemaID, payload),
		Time:  p.now().UTC(),
		Headers: []kafka.Header{
			{Key: events.HeaderEventType, Value: []byte(event.Type)},
			{Key: events.HeaderSchemaSubject, Value: []byte(route.Subject)},
		},
	}
	return p.writer.WriteMessages(ctx, route.Topic, msg)
}

func (p *Publisher) resolveSchema(ctx context.Context, route Route) (int, error) {
	if id, ok := p.schemaID.Load(route.Subject); ok {
		return id.(int), nil
	}
	id, err := p.registry.EnsureSchema(ctx, route.Subject, route.Schema)
	if err != nil {
		return 0, err
	}
	p.schemaID.Store(route.Subject, id)
	return id, nil
}
