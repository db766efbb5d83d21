package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	CardSavesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "card_saves_total",
			Help: "Business card saves by mode and result.",
		},
		[]string{"mode", "result"},
	)

	OverdueSweepUpdatesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "overdue_sweep_updates_total",
			Help: "Business cards changed by the overdue sweep, per pass.",
		},
		[]string{"pass"},
	)

	OverdueSweepRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "overdue_sweep_runs_total",
			Help: "Overdue sweep runs by result.",
		},
		[]string{"result"},
	)
)

var registerOnce sync.Once

// MustRegister registers every collector with the default registry. Safe to call more than once.
func MustRegister() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			HTTPRequestsTotal,
			HTTPRequestDurationSeconds,
			CardSavesTotal,
			OverdueSweepUpdatesTotal,
			OverdueSweepRunsTotal,
		)
	})
}
