package observability

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	completionRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sqlask_completion_requests_total",
			Help: "Total number of completion requests by provider and outcome.",
		},
		[]string{"provider", "outcome"},
	)
	completionDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sqlask_completion_duration_seconds",
			Help:    "Completion request latency by provider.",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30, 60},
		},
		[]string{"provider"},
	)
	completionTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sqlask_completion_tokens_total",
			Help: "Tokens consumed by completion requests, by direction.",
		},
		[]string{"provider", "direction"},
	)
	queryExecutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sqlask_query_executions_total",
			Help: "Total number of SQL executions by outcome.",
		},
		[]string{"driver", "outcome"},
	)
	queryDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sqlask_query_duration_seconds",
			Help:    "SQL execution latency.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"driver"},
	)
	queryRowsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sqlask_query_rows_total",
			Help: "Total number of rows returned by SQL executions.",
		},
		[]string{"driver"},
	)
)

func init() {
	prometheus.MustRegister(
		completionRequestsTotal,
		completionDurationSeconds,
		completionTokensTotal,
		queryExecutionsTotal,
		queryDurationSeconds,
		queryRowsTotal,
	)
}

func ObserveCompletion(provider string, elapsed time.Duration, inputTokens, outputTokens int, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	completionRequestsTotal.WithLabelValues(provider, outcome).Inc()
	completionDurationSeconds.WithLabelValues(provider).Observe(elapsed.Seconds())
	if inputTokens > 0 {
		completionTokensTotal.WithLabelValues(provider, "input").Add(float64(inputTokens))
	}
	if outputTokens > 0 {
		completionTokensTotal.WithLabelValues(provider, "output").Add(float64(outputTokens))
	}
}

func ObserveQuery(driver string, elapsed time.Duration, rows int, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	queryExecutionsTotal.WithLabelValues(driver, outcome).Inc()
	queryDurationSeconds.WithLabelValues(driver).Observe(elapsed.Seconds())
	if rows > 0 {
		queryRowsTotal.WithLabelValues(driver).Add(float64(rows))
	}
}

// WriteTextfile dumps the default registry in the text exposition format so a
// node-exporter textfile collector can pick up metrics from short-lived runs.
func WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, prometheus.DefaultGatherer); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
