package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	o := Default()

	assert.Equal(t, 0.4, o.LowThreshold)
	assert.Equal(t, 0.6, o.MediumThreshold)
	assert.Equal(t, 0.8, o.HighThreshold)
	assert.Equal(t, []int{1, 2, 3}, o.CriticalHours)
	assert.Equal(t, 5.0, o.BurstMultiplier)
	assert.Equal(t, 0.65, o.PatternMatchThreshold)
	assert.Equal(t, 0.65, o.ConfidenceThreshold)
	assert.True(t, o.TrustTrustedActivities)
	assert.True(t, o.EnableBurstDetection)
	require.NoError(t, o.Validate())
}

func TestApplyDefaultsKeepsExplicitValues(t *testing.T) {
	o := Options{BurstMultiplier: 3, CriticalHours: []int{}, MaxRecommendations: 7}
	o.ApplyDefaults()

	assert.Equal(t, 3.0, o.BurstMultiplier)
	assert.Empty(t, o.CriticalHours)
	assert.Equal(t, 7, o.MaxRecommendations)
	assert.Equal(t, 0.6, o.MediumThreshold)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Options)
	}{
		{"thresholds out of order", func(o *Options) { o.LowThreshold = 0.9 }},
		{"critical hour out of range", func(o *Options) { o.CriticalHours = []int{25} }},
		{"burst window other than an hour", func(o *Options) { o.BurstWindowMinutes = 15 }},
		{"burst multiplier too small", func(o *Options) { o.BurstMultiplier = 1 }},
		{"adaptation rate too large", func(o *Options) { o.AdaptationRate = 1.5 }},
		{"no workers", func(o *Options) { o.Workers = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := Default()
			tt.mutate(&o)
			assert.ErrorIs(t, o.Validate(), ErrInvalidOptions)
		})
	}
}

func TestIsCriticalHour(t *testing.T) {
	o := Default()
	assert.True(t, o.IsCriticalHour(2))
	assert.False(t, o.IsCriticalHour(4))
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "activityguard.yaml")
	content := []byte("burst_multiplier: 4\ncritical_hours: [0, 1]\nenable_volume_analysis: false\n")
	require.NoError(t, os.WriteFile(path, content, 0o600))

	o, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 4.0, o.BurstMultiplier)
	assert.Equal(t, []int{0, 1}, o.CriticalHours)
	assert.False(t, o.EnableVolumeAnalysis)
	assert.True(t, o.EnableTimeAnalysis)
	assert.Equal(t, 0.6, o.MediumThreshold)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
