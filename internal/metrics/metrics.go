// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EventsIngested = promauto.NewCounter(prometheus.CounterOpts{
		Name: "timeclock_events_ingested_total",
		Help: "Raw punches appended to the event log.",
	})

	EventsSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "timeclock_events_skipped_total",
		Help: "Raw punches that could not be grouped during a rebuild.",
	})

	SessionsWritten = promauto.NewCounter(prometheus.CounterOpts{
		Name: "timeclock_sessions_written_total",
		Help: "Sessions upserted by rebuild runs.",
	})

	WarningsWritten = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "timeclock_warnings_written_total",
		Help: "Warnings upserted by rebuild runs, by issue.",
	}, []string{"issue"})

	PayrollRecordsWritten = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payroll_records_written_total",
		Help: "Payroll records upserted.",
	})

	PayrollPeriodsSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payroll_periods_skipped_total",
		Help: "Pay periods skipped during generation, by reason.",
	}, []string{"reason"})

	JobDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "timeclock_job_duration_seconds",
		Help:    "Duration of rebuild and payroll runs.",
		Buckets: prometheus.DefBuckets,
	}, []string{"job", "outcome"})

	RateLimited = promauto.NewCounter(prometheus.CounterOpts{
		Name: "http_rate_limited_total",
		Help: "Requests rejected by the token bucket.",
	})
)

// Outcome labels a job run for JobDuration.
func Outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
