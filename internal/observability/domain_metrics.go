package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	askOutcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aidb_ask_outcomes_total",
			Help: "Total number of ask requests by pipeline outcome.",
		},
		[]string{"outcome"},
	)
	gatewayCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aidb_gateway_calls_total",
			Help: "Total number of text-generation gateway calls by call site and result.",
		},
		[]string{"site", "result"},
	)
	synthesisAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aidb_synthesis_attempts_total",
			Help: "Total number of SQL synthesis attempts by attempt kind and validation result.",
		},
		[]string{"attempt", "result"},
	)
	pendingWrites = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "aidb_pending_writes",
			Help: "Current number of mutating statements awaiting confirmation.",
		},
	)
	schemaRefreshTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aidb_schema_refresh_total",
			Help: "Total number of schema catalog refreshes by result.",
		},
		[]string{"result"},
	)
	executionDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "aidb_execution_duration_seconds",
			Help:    "Statement execution latency by mode (read or write).",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"mode"},
	)
	archiveWritesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aidb_archive_writes_total",
			Help: "Total number of result archive writes by result.",
		},
		[]string{"result"},
	)
	rateLimitedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "aidb_rate_limited_total",
			Help: "Total number of requests rejected by the rate limiter.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		askOutcomesTotal,
		gatewayCallsTotal,
		synthesisAttemptsTotal,
		pendingWrites,
		schemaRefreshTotal,
		executionDurationSeconds,
		archiveWritesTotal,
		rateLimitedTotal,
	)
}

func ObserveAskOutcome(outcome string) {
	askOutcomesTotal.WithLabelValues(outcome).Inc()
}

func ObserveGatewayCall(site string, err error) {
	gatewayCallsTotal.WithLabelValues(site, resultLabel(err)).Inc()
}

func ObserveSynthesisAttempt(attempt string, grounded bool) {
	result := "grounded"
	if !grounded {
		result = "ungrounded"
	}
	synthesisAttemptsTotal.WithLabelValues(attempt, result).Inc()
}

func SetPendingWrites(count int) {
	if count < 0 {
		count = 0
	}
	pendingWrites.Set(float64(count))
}

func ObserveSchemaRefresh(err error) {
	schemaRefreshTotal.WithLabelValues(resultLabel(err)).Inc()
}

func ObserveExecution(mode string, elapsed time.Duration) {
	executionDurationSeconds.WithLabelValues(mode).Observe(elapsed.Seconds())
}

func ObserveArchiveWrite(err error) {
	archiveWritesTotal.WithLabelValues(resultLabel(err)).Inc()
}

func IncrementRateLimited() {
	rateLimitedTotal.Inc()
}

func resultLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
