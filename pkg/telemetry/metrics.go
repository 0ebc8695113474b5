// Package telemetry exposes Prometheus collectors for the analysis core.
//
// Every method is safe on a nil *Metrics, so components can run without
// instrumentation (tests, library use) without branching.
package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "activityguard"

// Metrics groups the collectors.
type Metrics struct {
	RecordsAnalyzed          prometheus.Counter
	AnalysisDuration         prometheus.Histogram
	AnomaliesDetected        *prometheus.CounterVec
	RecommendationsGenerated *prometheus.CounterVec
	DetectorFailures         *prometheus.CounterVec
	FeedbackApplied          *prometheus.CounterVec
	PatternMatches           *prometheus.CounterVec
	PatternConfidence        *prometheus.GaugeVec
}

// New creates the collectors and registers them on reg. A nil reg leaves
// them unregistered.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RecordsAnalyzed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_analyzed_total",
			Help:      "Activity records scored by the anomaly scorer",
		}),
		AnalysisDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "analysis_duration_seconds",
			Help:      "Wall time of one batch analysis (baseline build and scoring)",
			Buckets:   prometheus.DefBuckets,
		}),
		AnomaliesDetected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "anomalies_detected_total",
			Help:      "Records flagged as anomalous",
		}, []string{"severity", "type"}),
		RecommendationsGenerated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recommendations_generated_total",
			Help:      "Recommendations emitted after filtering",
		}, []string{"category", "severity"}),
		DetectorFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "detector_failures_total",
			Help:      "Detector invocations that failed and were skipped",
		}, []string{"detector"}),
		FeedbackApplied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feedback_applied_total",
			Help:      "Analyst feedback entries applied to threat patterns",
		}, []string{"outcome"}),
		PatternMatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pattern_matches_total",
			Help:      "Threat pattern firings",
		}, []string{"threat_type"}),
		PatternConfidence: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pattern_confidence",
			Help:      "Current confidence of each threat pattern",
		}, []string{"pattern_id"}),
	}

	if reg != nil {
		reg.MustRegister(
			m.RecordsAnalyzed,
			m.AnalysisDuration,
			m.AnomaliesDetected,
			m.RecommendationsGenerated,
			m.DetectorFailures,
			m.FeedbackApplied,
			m.PatternMatches,
			m.PatternConfidence,
		)
	}
	return m
}

func (m *Metrics) ObserveAnalysis(records int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.RecordsAnalyzed.Add(float64(records))
	m.AnalysisDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) Anomaly(severity, anomalyType string) {
	if m == nil {
		return
	}
	m.AnomaliesDetected.WithLabelValues(severity, anomalyType).Inc()
}

func (m *Metrics) Recommendation(category, severity string) {
	if m == nil {
		return
	}
	m.RecommendationsGenerated.WithLabelValues(category, severity).Inc()
}

func (m *Metrics) DetectorFailure(detector string) {
	if m == nil {
		return
	}
	m.DetectorFailures.WithLabelValues(detector).Inc()
}

func (m *Metrics) Feedback(outcome string) {
	if m == nil {
		return
	}
	m.FeedbackApplied.WithLabelValues(outcome).Inc()
}

func (m *Metrics) PatternMatch(threatType string) {
	if m == nil {
		return
	}
	m.PatternMatches.WithLabelValues(threatType).Inc()
}

func (m *Metrics) SetPatternConfidence(patternID string, confidence float64) {
	if m == nil {
		return
	}
	m.PatternConfidence.WithLabelValues(patternID).Set(confidence)
}

// ForgetPattern drops the confidence series of a removed pattern.
func (m *Metrics) ForgetPattern(patternID string) {
	if m == nil {
		return
	}
	m.PatternConfidence.DeleteLabelValues(patternID)
}
