package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Maintenance job outcomes.
const (
	JobSucceeded = "success"
	JobFailed    = "failure"
	JobTimedOut  = "timeout"
	JobSkipped   = "skipped"
)

// CronJobMetrics records maintenance job runs.
type CronJobMetrics struct {
	runs        *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	lastSuccess *prometheus.GaugeVec
}

func NewCronJobMetrics(reg prometheus.Registerer) *CronJobMetrics {
	if reg == nil {
		return &CronJobMetrics{}
	}
	m := &CronJobMetrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "posdesk_cron_job_runs_total",
			Help: "Maintenance job runs by outcome. Skipped means another runner held the lock.",
		}, []string{"job", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "posdesk_cron_job_duration_seconds",
			Help:    "Duration of executed maintenance jobs.",
			Buckets: []float64{.01, .05, .1, .5, 1, 5, 15, 60, 300},
		}, []string{"job"}),
		lastSuccess: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "posdesk_cron_job_last_success_timestamp_seconds",
			Help: "Unix time of the last successful run per job.",
		}, []string{"job"}),
	}
	reg.MustRegister(m.runs, m.duration, m.lastSuccess)
	return m
}

// ObserveRun records one executed job and its outcome.
func (c *CronJobMetrics) ObserveRun(job, outcome string, took time.Duration) {
	if c == nil || c.runs == nil {
		return
	}
	job = normalizeLabel(job)
	c.runs.WithLabelValues(job, normalizeLabel(outcome)).Inc()
	c.duration.WithLabelValues(job).Observe(took.Seconds())
	if outcome == JobSucceeded {
		c.lastSuccess.WithLabelValues(job).SetToCurrentTime()
	}
}

func (c *CronJobMetrics) IncSkipped(job string) {
	if c == nil || c.runs == nil {
		return
	}
	c.runs.WithLabelValues(normalizeLabel(job), JobSkipped).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
