package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix is the environment prefix honoured by Load.
const EnvPrefix = "ACTIVITYGUARD"

// Load reads options from a YAML file (optional) and ACTIVITYGUARD_*
// environment variables on top of Default().
//
// This is used by the service binary; the analysis packages only ever
// receive the resulting Options value.
func Load(path string) (Options, error) {
	v := viper.New()
	setDefaults(v, Default())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Options{}, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	var opts Options
	if err := v.Unmarshal(&opts); err != nil {
		return Options{}, fmt.Errorf("failed to decode config: %w", err)
	}
	opts.ApplyDefaults()

	if err := opts.Validate(); err != nil {
		return Options{}, err
	}
	return opts, nil
}

func setDefaults(v *viper.Viper, d Options) {
	v.SetDefault("low_threshold", d.LowThreshold)
	v.SetDefault("medium_threshold", d.MediumThreshold)
	v.SetDefault("high_threshold", d.HighThreshold)
	v.SetDefault("enable_time_analysis", d.EnableTimeAnalysis)
	v.SetDefault("enable_burst_detection", d.EnableBurstDetection)
	v.SetDefault("enable_volume_analysis", d.EnableVolumeAnalysis)
	v.SetDefault("enable_behavior_analysis", d.EnableBehaviorAnalysis)
	v.SetDefault("enable_integration_analysis", d.EnableIntegrationAnalysis)
	v.SetDefault("trust_trusted_activities", d.TrustTrustedActivities)
	v.SetDefault("concern_weight", d.ConcernWeight)
	v.SetDefault("under_review_weight", d.UnderReviewWeight)
	v.SetDefault("burst_window_minutes", d.BurstWindowMinutes)
	v.SetDefault("burst_multiplier", d.BurstMultiplier)
	v.SetDefault("critical_hours", d.CriticalHours)
	v.SetDefault("minimum_baseline_size", d.MinimumBaselineSize)
	v.SetDefault("high_risk_score", d.HighRiskScore)
	v.SetDefault("bulk_volume_threshold", d.BulkVolumeThreshold)
	v.SetDefault("pattern_match_threshold", d.PatternMatchThreshold)
	v.SetDefault("adaptation_rate", d.AdaptationRate)
	v.SetDefault("feedback_retention", d.FeedbackRetention)
	v.SetDefault("max_recommendations", d.MaxRecommendations)
	v.SetDefault("confidence_threshold", d.ConfidenceThreshold)
	v.SetDefault("action_min_observations", d.ActionMinObservations)
	v.SetDefault("action_share_threshold", d.ActionShareThreshold)
	v.SetDefault("workers", d.Workers)
	v.SetDefault("chunk_size", d.ChunkSize)
}
