package monitoring

import (
	"context"
	"fmt"
	"time"

	ingestModel "github.com/Avi18971911/Sibyl/internal/pipeline/ingest/model"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
)

const pushJobName = "sibyl_sibling_classifier"

// Metrics holds the Prometheus metrics of classification scans. Each instance
// owns its registry so that a process may build several without collisions.
type Metrics struct {
	registry *prometheus.Registry

	ScansTotal    *prometheus.CounterVec
	ScanDuration  *prometheus.HistogramVec
	FilesScanned  *prometheus.CounterVec
	FilesSkipped  *prometheus.CounterVec
	SpansAccepted *prometheus.CounterVec
	SpansSkipped  *prometheus.CounterVec
	Relationships *prometheus.GaugeVec
	Anomalies     *prometheus.GaugeVec
}

// NewMetrics creates a new metrics collector
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		ScansTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sibyl_scans_total",
				Help: "Total number of completed corpus scans",
			},
			[]string{"mode"},
		),
		ScanDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sibyl_scan_duration_seconds",
				Help:    "Corpus scan duration in seconds",
				Buckets: []float64{.01, .05, .1, .5, 1, 5, 10, 30, 60, 300},
			},
			[]string{"mode"},
		),
		FilesScanned: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sibyl_files_scanned_total",
				Help: "Corpus files decoded into traces",
			},
			[]string{"mode"},
		),
		FilesSkipped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sibyl_files_skipped_total",
				Help: "Corpus files skipped as unreadable",
			},
			[]string{"mode"},
		),
		SpansAccepted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sibyl_spans_accepted_total",
				Help: "Spans that passed validation",
			},
			[]string{"mode"},
		),
		SpansSkipped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sibyl_spans_skipped_total",
				Help: "Spans skipped for missing or malformed fields",
			},
			[]string{"mode"},
		),
		Relationships: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "sibyl_relationships",
				Help: "Classified relationships of the last scan by type",
			},
			[]string{"mode", "type"},
		),
		Anomalies: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "sibyl_anomalies",
				Help: "Anomalies detected in the last scan",
			},
			[]string{"mode"},
		),
	}
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveScan records one finished scan. byType maps relationship type to count.
func (m *Metrics) ObserveScan(
	mode string,
	elapsed time.Duration,
	stats ingestModel.IngestStats,
	byType map[string]int,
	anomalies int,
) {
	m.ScansTotal.WithLabelValues(mode).Inc()
	m.ScanDuration.WithLabelValues(mode).Observe(elapsed.Seconds())
	m.FilesScanned.WithLabelValues(mode).Add(float64(stats.FilesScanned))
	m.FilesSkipped.WithLabelValues(mode).Add(float64(stats.FilesSkipped))
	m.SpansAccepted.WithLabelValues(mode).Add(float64(stats.SpansAccepted))
	m.SpansSkipped.WithLabelValues(mode).Add(float64(stats.SpansSkipped))
	for relType, count := range byType {
		m.Relationships.WithLabelValues(mode, relType).Set(float64(count))
	}
	m.Anomalies.WithLabelValues(mode).Set(float64(anomalies))
}

// Push sends every metric of the registry to a Prometheus pushgateway.
func (m *Metrics) Push(ctx context.Context, url string) error {
	err := push.New(url, pushJobName).Gatherer(m.registry).PushContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to push metrics to %s: %w", url, err)
	}
	return nil
}
