// Package observability holds the Prometheus collectors of the activity lifecycle.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	activityPersistGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "activity_service",
		Subsystem: "lifecycle",
		Name:      "last_activity_persisted_timestamp_seconds",
		Help:      "Unix timestamp of the most recent activity write.",
	})

	createdCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "activity_service",
		Subsystem: "lifecycle",
		Name:      "activities_created_total",
		Help:      "Number of activities created, labeled by activity type.",
	}, []string{"activity_type"})

	endedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "activity_service",
		Subsystem: "lifecycle",
		Name:      "activities_ended_total",
		Help:      "Number of end calls, labeled by whether the activity was already closed.",
	}, []string{"already_closed"})

	updatedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "activity_service",
		Subsystem: "lifecycle",
		Name:      "activities_updated_total",
		Help:      "Number of activities rewritten by update batches.",
	})

	rejectedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "activity_service",
		Subsystem: "lifecycle",
		Name:      "requests_rejected_total",
		Help:      "Number of lifecycle calls rejected, labeled by operation and error kind.",
	}, []string{"operation", "kind"})

	queryPagesCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "activity_service",
		Subsystem: "store",
		Name:      "query_pages_total",
		Help:      "Number of store query pages fetched, labeled by index.",
	}, []string{"index"})

	storeLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "activity_service",
		Subsystem: "store",
		Name:      "operation_duration_seconds",
		Help:      "Latency of store gateway operations.",
		Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
	}, []string{"operation"})
)

func init() {
	prometheus.MustRegister(activityPersistGauge, createdCounter, endedCounter, updatedCounter,
		rejectedCounter, queryPagesCounter, storeLatency)
}

// RecordActivityPersisted updates the persistence watermark gauge.
func RecordActivityPersisted(ts time.Time) {
	if ts.IsZero() {
		return
	}
	activityPersistGauge.Set(float64(ts.Unix()))
}

// RecordCreated counts a created activity.
func RecordCreated(activityType string) {
	createdCounter.WithLabelValues(activityType).Inc()
}

// RecordEnded counts an end call.
func RecordEnded(alreadyClosed bool) {
	label := "false"
	if alreadyClosed {
		label = "true"
	}
	endedCounter.WithLabelValues(label).Inc()
}

// RecordUpdated counts activities rewritten by an update batch.
func RecordUpdated(n int) {
	updatedCounter.Add(float64(n))
}

// RecordRejected counts a rejected lifecycle call.
func RecordRejected(operation, kind string) {
	rejectedCounter.WithLabelValues(operation, kind).Inc()
}

// RecordQueryPage counts one page fetched from an index.
func RecordQueryPage(index string) {
	queryPagesCounter.WithLabelValues(index).Inc()
}

// ObserveStore records the duration of a store operation started at start.
func ObserveStore(operation string, start time.Time) {
	storeLatency.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// Counters exposed for tests in other packages.
var (
	CreatedCounter   = createdCounter
	EndedCounter     = endedCounter
	RejectedCounter  = rejectedCounter
	QueryPageCounter = queryPagesCounter
)
