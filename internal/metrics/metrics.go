// Package metrics holds the server's prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	Submissions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fairtest_submissions_total",
			Help: "Submissions received, by outcome",
		},
		[]string{"outcome"},
	)

	Evaluations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fairtest_evaluations_total",
			Help: "Evaluation runs, by path (auto, manual_merge, stateless)",
		},
		[]string{"path"},
	)

	LedgerWrites = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fairtest_ledger_writes_total",
			Help: "Objects appended to the ledger, by kind",
		},
		[]string{"kind"},
	)

	DedupHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fairtest_dedup_hits_total",
			Help: "Resubmissions detected, by cache layer",
		},
		[]string{"layer"},
	)

	PaymentSessions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fairtest_payment_sessions_total",
			Help: "Payment session transitions, by kind and state",
		},
		[]string{"kind", "state"},
	)

	WorkerFlushed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fairtest_worker_flushed_total",
			Help: "Queue items flushed to postgres, by queue and result",
		},
		[]string{"queue", "result"},
	)

	QueueDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "fairtest_queue_depth",
			Help: "Items waiting in a persistence queue, sampled on health checks",
		},
		[]string{"queue"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fairtest_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
)

func init() {
	prometheus.MustRegister(
		Submissions,
		Evaluations,
		LedgerWrites,
		DedupHits,
		PaymentSessions,
		WorkerFlushed,
		QueueDepth,
		RequestDuration,
	)
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
