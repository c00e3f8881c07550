package metrics

import "github.com/prometheus/client_golang/prometheus"

// Cache write outcomes.
const (
	CacheWritten = "written"
	CacheSkipped = "skipped"
	CacheFailed  = "failed"
)

// CacheMetrics tracks where reads were served from and how write-through behaved.
type CacheMetrics struct {
	reads  *prometheus.CounterVec
	writes *prometheus.CounterVec
}

func NewCacheMetrics(reg prometheus.Registerer) *CacheMetrics {
	if reg == nil {
		return &CacheMetrics{}
	}
	reads := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "posdesk_cache_reads_total",
		Help: "Query results by collection and source (network or cache).",
	}, []string{"collection", "source"})
	writes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "posdesk_cache_writes_total",
		Help: "Scoped cache replacements by collection and outcome.",
	}, []string{"collection", "outcome"})
	reg.MustRegister(reads, writes)
	return &CacheMetrics{reads: reads, writes: writes}
}

func (m *CacheMetrics) IncRead(collection, source string) {
	if m == nil || m.reads == nil {
		return
	}
	m.reads.WithLabelValues(normalizeLabel(collection), normalizeLabel(source)).Inc()
}

func (m *CacheMetrics) IncWrite(collection, outcome string) {
	if m == nil || m.writes == nil {
		return
	}
	m.writes.WithLabelValues(normalizeLabel(collection), normalizeLabel(outcome)).Inc()
}
