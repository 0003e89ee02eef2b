// Package metrics provides Prometheus metrics for the failure browser service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Load outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeStale   = "stale"
)

var (
	RecordsIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "failscope_records_ingested_total",
			Help: "Total number of task records written to the store",
		},
		[]string{"project", "status"},
	)
	TaskQueries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "failscope_task_queries_total",
			Help: "Total number of task queries issued, by source and outcome",
		},
		[]string{"source", "outcome"},
	)
	TaskQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "failscope_task_query_duration_seconds",
			Help:    "Task query duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"source"},
	)
	ViewLoads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "failscope_view_loads_total",
			Help: "Total number of failure view loads, by project and outcome",
		},
		[]string{"project", "outcome"},
	)
	ViewLoadDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "failscope_view_load_duration_seconds",
			Help:    "Failure view load duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"project"},
	)
	ViewRows = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "failscope_view_rows",
			Help: "Number of rows currently displayed by a failure view",
		},
		[]string{"project"},
	)
	ViewsTracked = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "failscope_views_tracked",
			Help: "Number of failure views held by the dashboard",
		},
	)
	DigestsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "failscope_digests_sent_total",
			Help: "Total number of failure digests delivered",
		},
		[]string{"project"},
	)
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "failscope_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "failscope_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)
)

func RecordIngested(project, status string) {
	RecordsIngested.WithLabelValues(project, status).Inc()
}

func RecordTaskQuery(source string, err error, duration time.Duration) {
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeFailure
	}
	TaskQueries.WithLabelValues(source, outcome).Inc()
	TaskQueryDuration.WithLabelValues(source).Observe(duration.Seconds())
}

func RecordViewLoad(project, outcome string, duration time.Duration) {
	ViewLoads.WithLabelValues(project, outcome).Inc()
	ViewLoadDuration.WithLabelValues(project).Observe(duration.Seconds())
}

func UpdateViewRows(rowsByProject map[string]int) {
	ViewRows.Reset()
	for project, n := range rowsByProject {
		ViewRows.WithLabelValues(project).Set(float64(n))
	}
	ViewsTracked.Set(float64(len(rowsByProject)))
}

func RecordDigestSent(project string) {
	DigestsSent.WithLabelValues(project).Inc()
}

func RecordHTTPRequest(method, endpoint, status string, duration time.Duration) {
	HTTPRequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}
