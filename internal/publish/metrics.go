package publish

import "github.com/prometheus/client_golang/prometheus"

var (
	publishedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "activity_service",
		Subsystem: "publisher",
		Name:      "events_published_total",
		Help:      "Number of lifecycle events written to Kafka, labeled by event type.",
	}, []string{"event_type"})

	failedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "activity_service",
		Subsystem: "publisher",
		Name:      "events_failed_total",
		Help:      "Number of lifecycle events that could not be published, labeled by event type.",
	}, []string{"event_type"})
)

func init() {
	prometheus.MustRegister(publishedCounter, failedCounter)
}
