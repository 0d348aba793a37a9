package consumer

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func consumerOpts(name, help string) prometheus.Opts {
	return prometheus.Opts{Namespace: "activity_service", Subsystem: "consumer", Name: name, Help: help}
}

var (
	processedCounter = prometheus.NewCounterVec(prometheus.CounterOpts(
		consumerOpts("messages_processed_total", "Kafka records handled and committed, by topic and event type."),
	), []string{"topic", "event_type"})

	handlerErrorCounter = prometheus.NewCounterVec(prometheus.CounterOpts(
		consumerOpts("handler_errors_total", "Failed handler attempts, by topic and event type."),
	), []string{"topic", "event_type"})

	decodeErrorCounter = prometheus.NewCounterVec(prometheus.CounterOpts(
		consumerOpts("decode_errors_total", "Records dropped because they could not be decoded, by topic."),
	), []string{"topic"})

	closeOutcomeCounter = prometheus.NewCounterVec(prometheus.CounterOpts(
		consumerOpts("close_requests_total", "Close requests handled, by outcome."),
	), []string{"outcome"})

	messageAge = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "activity_service",
		Subsystem: "consumer",
		Name:      "message_age_seconds",
		Help:      "Delay between a record's broker timestamp and its commit.",
		Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
	}, []string{"topic"})
)

func init() {
	prometheus.MustRegister(processedCounter, handlerErrorCounter, decodeErrorCounter, closeOutcomeCounter, messageAge)
}

func recordProcessed(msg Message) {
	processedCounter.WithLabelValues(msg.Topic, msg.EventType).Inc()
	if !msg.Timestamp.IsZero() {
		messageAge.WithLabelValues(msg.Topic).Observe(time.Since(msg.Timestamp).Seconds())
	}
}

func recordHandlerError(msg Message) {
	handlerErrorCounter.WithLabelValues(msg.Topic, msg.EventType).Inc()
}

func recordDecodeError(topic string) {
	decodeErrorCounter.WithLabelValues(topic).Inc()
}

func recordCloseOutcome(outcome string) {
	closeOutcomeCounter.WithLabelValues(outcome).Inc()
}
