package models

// AnomalyType tags the dominant signal behind an anomaly verdict.
type AnomalyType string

const (
	AnomalyUnusualTime         AnomalyType = "unusual_time"
	AnomalyTemporalBurst       AnomalyType = "temporal_burst"
	AnomalyVolumeSpike         AnomalyType = "volume_spike"
	AnomalyBehavioralDeviation AnomalyType = "behavioral_deviation"
	AnomalyUnusualIntegration  AnomalyType = "unusual_integration"
	AnomalyStatusConcern       AnomalyType = "status_concern"
	AnomalyUnknown             AnomalyType = "unknown"
)

// Severity is shared by anomaly results and recommendations.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Rank orders severities for sorting; unknown values rank lowest.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 4
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	default:
		return 0
	}
}

// AnomalyResult is the verdict produced for a single scored record.
//
// The scorer does NOT block or quarantine anything. It returns a score,
// a severity and the list of contributing factors so that the presentation
// layer and the analyst can make their own decision.
type AnomalyResult struct {
	// RecordID and User identify the scored record.
	RecordID string `json:"recordId"`
	User     string `json:"user"`

	// IsAnomaly is true when Score reached the adaptive Threshold.
	IsAnomaly bool    `json:"isAnomaly"`
	Score     float64 `json:"score"`
	Threshold float64 `json:"threshold"`

	Type       AnomalyType `json:"anomalyType"`
	Confidence float64     `json:"confidence"`
	Severity   Severity    `json:"severity"`

	// Factors lists every human-readable reason that contributed,
	// in the order the sub-detectors produced them.
	Factors []string `json:"factors"`

	// SuggestedAction is set when analyst history supports a recommendation.
	SuggestedAction string `json:"suggestedAction,omitempty"`
}
