package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ImportMetrics instruments the receipt ingestion pipeline.
type ImportMetrics struct {
	parseDuration *prometheus.HistogramVec
	imports       *prometheus.CounterVec
	duplicates    prometheus.Counter
}

// Import outcome labels.
const (
	ImportOutcomeCreated  = "created"
	ImportOutcomeReplaced = "replaced"
	ImportOutcomeSkipped  = "skipped"
	ImportOutcomeFailed   = "failed"
)

// NewImportMetrics registers the ingestion metrics on the provided registerer.
func NewImportMetrics(reg prometheus.Registerer) *ImportMetrics {
	if reg == nil {
		return &ImportMetrics{}
	}
	parseDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "receipt_parse_duration_seconds",
		Help:    "Duration of document parser invocations in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"format"})
	imports := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "receipt_imports_total",
		Help: "Receipt import attempts by outcome.",
	}, []string{"outcome"})
	duplicates := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "source_file_duplicates_total",
		Help: "Uploads rejected because the content hash was already registered.",
	})
	reg.MustRegister(parseDuration, imports, duplicates)
	return &ImportMetrics{
		parseDuration: parseDuration,
		imports:       imports,
		duplicates:    duplicates,
	}
}

// ObserveParseDuration records a parser invocation for the given format tag.
func (m *ImportMetrics) ObserveParseDuration(format string, duration time.Duration) {
	if m == nil || m.parseDuration == nil {
		return
	}
	m.parseDuration.WithLabelValues(normalizeLabel(format)).Observe(duration.Seconds())
}

// IncImport counts an import attempt with the given outcome.
func (m *ImportMetrics) IncImport(outcome string) {
	if m == nil || m.imports == nil {
		return
	}
	m.imports.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// IncDuplicate counts a deduplicated upload.
func (m *ImportMetrics) IncDuplicate() {
	if m == nil || m.duplicates == nil {
		return
	}
	m.duplicates.Inc()
}
