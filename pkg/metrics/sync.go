package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Replay attempt results.
const (
	ResultSuccess    = "success"
	ResultRetry      = "retry"
	ResultDeadLetter = "dead_letter"
	ResultDeferred   = "deferred"
)

// SyncMetrics tracks queue replay.
type SyncMetrics struct {
	attempts    *prometheus.CounterVec
	deadLetters *prometheus.CounterVec
	queueDepth  prometheus.Gauge
	passSeconds prometheus.Histogram
}

func NewSyncMetrics(reg prometheus.Registerer) *SyncMetrics {
	if reg == nil {
		return &SyncMetrics{}
	}
	attempts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "posdesk_sync_attempts_total",
		Help: "Queued mutation replay attempts by target table and result.",
	}, []string{"table", "result"})
	deadLetters := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "posdesk_sync_dead_letters_total",
		Help: "Queued mutations moved to the dead letter table.",
	}, []string{"reason"})
	queueDepth := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "posdesk_sync_queue_depth",
		Help: "Pending queued mutations after the last replay pass.",
	})
	passSeconds := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "posdesk_sync_pass_duration_seconds",
		Help:    "Duration of replay passes in seconds.",
		Buckets: prometheus.DefBuckets,
	})
	reg.MustRegister(attempts, deadLetters, queueDepth, passSeconds)
	return &SyncMetrics{
		attempts:    attempts,
		deadLetters: deadLetters,
		queueDepth:  queueDepth,
		passSeconds: passSeconds,
	}
}

func (m *SyncMetrics) IncAttempt(table, result string) {
	if m == nil || m.attempts == nil {
		return
	}
	m.attempts.WithLabelValues(normalizeLabel(table), normalizeLabel(result)).Inc()
}

func (m *SyncMetrics) IncDeadLetter(reason string) {
	if m == nil || m.deadLetters == nil {
		return
	}
	m.deadLetters.WithLabelValues(normalizeLabel(reason)).Inc()
}

func (m *SyncMetrics) SetQueueDepth(depth int64) {
	if m == nil || m.queueDepth == nil {
		return
	}
	m.queueDepth.Set(float64(depth))
}

func (m *SyncMetrics) ObservePass(duration time.Duration) {
	if m == nil || m.passSeconds == nil {
		return
	}
	m.passSeconds.Observe(duration.Seconds())
}
