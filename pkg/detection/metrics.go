package detection

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus metrics for the detection service.
type Metrics struct {
	AnalysesTotal   prometheus.Counter
	EventsTotal     prometheus.Counter
	FindingsTotal   *prometheus.CounterVec
	DetectorErrors  *prometheus.CounterVec
	AnalysisSeconds prometheus.Histogram
}

// NewMetrics registers the detection metrics on the given registerer.
// Pass prometheus.DefaultRegisterer in production; tests use their own
// registry to avoid duplicate registration.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		AnalysesTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "detection_analyses_total",
			Help: "Total number of analysis runs",
		}),
		EventsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "detection_events_total",
			Help: "Total number of events analyzed",
		}),
		FindingsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "detection_findings_total",
			Help: "Total findings emitted, by detector and risk level",
		}, []string{"detector", "risk_level"}),
		DetectorErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "detection_detector_errors_total",
			Help: "Total detector failures, by detector",
		}, []string{"detector"}),
		AnalysisSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "detection_analysis_duration_seconds",
			Help:    "Analysis run duration",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

// ObserveAnalysis records one completed analysis run.
func (m *Metrics) ObserveAnalysis(result *AnalysisResult) {
	m.AnalysesTotal.Inc()
	m.EventsTotal.Add(float64(result.EventCount))
	m.AnalysisSeconds.Observe(result.ProcessingTime.Seconds())
	for _, finding := range result.Findings {
		m.FindingsTotal.WithLabelValues(finding.DetectorName, string(finding.RiskLevel)).Inc()
	}
}
