package autoclose

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	closeRequestCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "activity_service",
		Subsystem: "autoclose",
		Name:      "close_requests_total",
		Help:      "Number of close requests issued for overdue visits, labeled by result.",
	}, []string{"result"})

	lastSweepGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "activity_service",
		Subsystem: "autoclose",
		Name:      "last_sweep_timestamp_seconds",
		Help:      "Unix timestamp of the most recent completed sweep.",
	})

	lastSweepClosedGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "activity_service",
		Subsystem: "autoclose",
		Name:      "last_sweep_closed",
		Help:      "Number of visits closed by the most recent sweep.",
	})
)

func init() {
	prometheus.MustRegister(closeRequestCounter, lastSweepGauge, lastSweepClosedGauge)
}

func recordCloseRequest(result string) {
	closeRequestCounter.WithLabelValues(result).Inc()
}

func recordSweep(at time.Time, closed int) {
	lastSweepGauge.Set(float64(at.Unix()))
	lastSweepClosedGauge.Set(float64(closed))
}
