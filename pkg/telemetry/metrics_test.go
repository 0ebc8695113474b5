package telemetry

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsRecordValues(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveAnalysis(42, 150*time.Millisecond)
	m.Anomaly("critical", "unusual_integration")
	m.Anomaly("critical", "unusual_integration")
	m.Feedback("true_positive")
	m.SetPatternConfidence("p1", 0.75)

	assert.Equal(t, 42.0, testutil.ToFloat64(m.RecordsAnalyzed))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.AnomaliesDetected.WithLabelValues("critical", "unusual_integration")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FeedbackApplied.WithLabelValues("true_positive")))
	assert.Equal(t, 0.75, testutil.ToFloat64(m.PatternConfidence.WithLabelValues("p1")))

	m.ForgetPattern("p1")
	assert.Equal(t, 0, testutil.CollectAndCount(m.PatternConfidence))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestNilMetricsAreNoops(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveAnalysis(1, time.Second)
		m.Anomaly("low", "unknown")
		m.Recommendation("policy_breach", "high")
		m.DetectorFailure("x")
		m.Feedback("false_positive")
		m.PatternMatch("data_exfiltration")
		m.SetPatternConfidence("p", 1)
		m.ForgetPattern("p")
	})
}
