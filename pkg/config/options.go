// Package config holds the flat options structure shared by every
// analysis component.
package config

import (
	"errors"
	"fmt"
)

// ErrInvalidOptions is returned by Validate for out-of-range settings.
var ErrInvalidOptions = errors.New("invalid options")

// Options is the recognized options table for the analysis core.
//
// Thresholds and weights are plain numbers; a zero value means "use the
// default" and is filled by ApplyDefaults. Boolean switches cannot be
// defaulted that way, so callers should start from Default() (Load does).
type Options struct {
	// Scorer thresholds (0-1).
	LowThreshold    float64 `mapstructure:"low_threshold" yaml:"low_threshold"`
	MediumThreshold float64 `mapstructure:"medium_threshold" yaml:"medium_threshold"`
	HighThreshold   float64 `mapstructure:"high_threshold" yaml:"high_threshold"`

	// Sub-detector switches.
	EnableTimeAnalysis        bool `mapstructure:"enable_time_analysis" yaml:"enable_time_analysis"`
	EnableBurstDetection      bool `mapstructure:"enable_burst_detection" yaml:"enable_burst_detection"`
	EnableVolumeAnalysis      bool `mapstructure:"enable_volume_analysis" yaml:"enable_volume_analysis"`
	EnableBehaviorAnalysis    bool `mapstructure:"enable_behavior_analysis" yaml:"enable_behavior_analysis"`
	EnableIntegrationAnalysis bool `mapstructure:"enable_integration_analysis" yaml:"enable_integration_analysis"`

	// Status handling.
	TrustTrustedActivities bool    `mapstructure:"trust_trusted_activities" yaml:"trust_trusted_activities"`
	ConcernWeight          float64 `mapstructure:"concern_weight" yaml:"concern_weight"`
	UnderReviewWeight      float64 `mapstructure:"under_review_weight" yaml:"under_review_weight"`

	// Temporal burst analysis. Bursts are bucketed per hour of day, so
	// BurstWindowMinutes only accepts 60.
	BurstWindowMinutes int     `mapstructure:"burst_window_minutes" yaml:"burst_window_minutes"`
	BurstMultiplier    float64 `mapstructure:"burst_multiplier" yaml:"burst_multiplier"`
	CriticalHours      []int   `mapstructure:"critical_hours" yaml:"critical_hours"`

	MinimumBaselineSize int `mapstructure:"minimum_baseline_size" yaml:"minimum_baseline_size"`

	// HighRiskScore is the externally supplied risk score that counts as
	// high risk (USB override, department and discovery detectors).
	HighRiskScore       float64 `mapstructure:"high_risk_score" yaml:"high_risk_score"`
	BulkVolumeThreshold float64 `mapstructure:"bulk_volume_threshold" yaml:"bulk_volume_threshold"`

	// Pattern learner.
	PatternMatchThreshold float64 `mapstructure:"pattern_match_threshold" yaml:"pattern_match_threshold"`
	AdaptationRate        float64 `mapstructure:"adaptation_rate" yaml:"adaptation_rate"`
	FeedbackRetention     int     `mapstructure:"feedback_retention" yaml:"feedback_retention"`

	// Recommendation generator.
	MaxRecommendations  int     `mapstructure:"max_recommendations" yaml:"max_recommendations"`
	ConfidenceThreshold float64 `mapstructure:"confidence_threshold" yaml:"confidence_threshold"`

	// Suggested action from analyst history.
	ActionMinObservations int     `mapstructure:"action_min_observations" yaml:"action_min_observations"`
	ActionShareThreshold  float64 `mapstructure:"action_share_threshold" yaml:"action_share_threshold"`

	// Batch scoring resources.
	Workers   int `mapstructure:"workers" yaml:"workers"`
	ChunkSize int `mapstructure:"chunk_size" yaml:"chunk_size"`
}

// Default returns the options with every documented default applied.
func Default() Options {
	o := Options{
		EnableTimeAnalysis:        true,
		EnableBurstDetection:      true,
		EnableVolumeAnalysis:      true,
		EnableBehaviorAnalysis:    true,
		EnableIntegrationAnalysis: true,
		TrustTrustedActivities:    true,
	}
	o.ApplyDefaults()
	return o
}

// ApplyDefaults fills every zero-valued numeric field with its default.
func (o *Options) ApplyDefaults() {
	if o.LowThreshold == 0 {
		o.LowThreshold = 0.4
	}
	if o.MediumThreshold == 0 {
		o.MediumThreshold = 0.6
	}
	if o.HighThreshold == 0 {
		o.HighThreshold = 0.8
	}
	if o.ConcernWeight == 0 {
		o.ConcernWeight = 1.5
	}
	if o.UnderReviewWeight == 0 {
		o.UnderReviewWeight = 0.1
	}
	if o.BurstWindowMinutes == 0 {
		o.BurstWindowMinutes = 60
	}
	if o.BurstMultiplier == 0 {
		o.BurstMultiplier = 5.0
	}
	if o.CriticalHours == nil {
		o.CriticalHours = []int{1, 2, 3}
	}
	if o.MinimumBaselineSize == 0 {
		o.MinimumBaselineSize = 10
	}
	if o.HighRiskScore == 0 {
		o.HighRiskScore = 2000
	}
	if o.BulkVolumeThreshold == 0 {
		o.BulkVolumeThreshold = 100 * 1024 * 1024
	}
	if o.PatternMatchThreshold == 0 {
		o.PatternMatchThreshold = 0.65
	}
	if o.AdaptationRate == 0 {
		o.AdaptationRate = 0.1
	}
	if o.FeedbackRetention == 0 {
		o.FeedbackRetention = 1000
	}
	if o.MaxRecommendations == 0 {
		o.MaxRecommendations = 50
	}
	if o.ConfidenceThreshold == 0 {
		o.ConfidenceThreshold = 0.65
	}
	if o.ActionMinObservations == 0 {
		o.ActionMinObservations = 5
	}
	if o.ActionShareThreshold == 0 {
		o.ActionShareThreshold = 0.6
	}
	if o.Workers == 0 {
		o.Workers = 4
	}
	if o.ChunkSize == 0 {
		o.ChunkSize = 500
	}
}

// Validate checks ranges and ordering of the options.
func (o Options) Validate() error {
	if !(o.LowThreshold > 0 && o.LowThreshold <= o.MediumThreshold && o.MediumThreshold <= o.HighThreshold && o.HighThreshold <= 1) {
		return fmt.Errorf("%w: thresholds must satisfy 0 < low <= medium <= high <= 1 (got %.2f/%.2f/%.2f)",
			ErrInvalidOptions, o.LowThreshold, o.MediumThreshold, o.HighThreshold)
	}
	for _, h := range o.CriticalHours {
		if h < 0 || h > 23 {
			return fmt.Errorf("%w: critical hour %d out of range", ErrInvalidOptions, h)
		}
	}
	if o.BurstWindowMinutes != 60 {
		return fmt.Errorf("%w: burst window must be 60 minutes (got %d)", ErrInvalidOptions, o.BurstWindowMinutes)
	}
	if o.BurstMultiplier <= 1 {
		return fmt.Errorf("%w: burst multiplier must be > 1", ErrInvalidOptions)
	}
	if o.AdaptationRate <= 0 || o.AdaptationRate > 1 {
		return fmt.Errorf("%w: adaptation rate must be in (0, 1]", ErrInvalidOptions)
	}
	if o.PatternMatchThreshold <= 0 || o.PatternMatchThreshold > 1 {
		return fmt.Errorf("%w: pattern match threshold must be in (0, 1]", ErrInvalidOptions)
	}
	if o.ConfidenceThreshold < 0 || o.ConfidenceThreshold > 1 {
		return fmt.Errorf("%w: confidence threshold must be in [0, 1]", ErrInvalidOptions)
	}
	if o.MaxRecommendations < 1 || o.Workers < 1 || o.ChunkSize < 1 || o.MinimumBaselineSize < 1 {
		return fmt.Errorf("%w: counts must be positive", ErrInvalidOptions)
	}
	return nil
}

// IsCriticalHour reports whether hour is in the configured critical window.
func (o Options) IsCriticalHour(hour int) bool {
	for _, h := range o.CriticalHours {
		if h == hour {
			return true
		}
	}
	return false
}
