package learner

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/justinvu22/LTU-Academic-Weapon-sub002/pkg/models"
)

func TestIndicatorMatch(t *testing.T) {
	r := &models.ActivityRecord{
		User:           "alice",
		Hour:           hour(23),
		Activity:       "Export",
		Integration:    "Cloud",
		Status:         models.StatusConcern,
		RiskScore:      150,
		FailedAttempts: 2,
		PolicyBreaches: map[string]interface{}{"sensitiveData": []interface{}{"ssn"}, "retention": false},
	}

	tests := []struct {
		name string
		ind  models.Indicator
		want float64
	}{
		{"greater than graded", models.Indicator{Field: "riskScore", Condition: models.ConditionGreaterThan, Value: 100}, 0.75},
		{"greater than saturates", models.Indicator{Field: "riskScore", Condition: models.ConditionGreaterThan, Value: 50}, 1},
		{"greater than misses", models.Indicator{Field: "riskScore", Condition: models.ConditionGreaterThan, Value: 150}, 0},
		{"greater than zero threshold", models.Indicator{Field: "policyCount", Condition: models.ConditionGreaterThan, Value: 0}, 1},
		{"less than graded", models.Indicator{Field: "failedAttempts", Condition: models.ConditionLessThan, Value: 4}, 0.75},
		{"less than misses", models.Indicator{Field: "failedAttempts", Condition: models.ConditionLessThan, Value: 2}, 0},
		{"numeric threshold as string", models.Indicator{Field: "riskScore", Condition: models.ConditionGreaterThan, Value: "100"}, 0.75},
		{"equals folds case", models.Indicator{Field: "activity", Condition: models.ConditionEquals, Value: "EXPORT"}, 1},
		{"equals status", models.Indicator{Field: "status", Condition: models.ConditionEquals, Value: "concern"}, 1},
		{"not equals", models.Indicator{Field: "integration", Condition: models.ConditionNotEquals, Value: "usb"}, 1},
		{"not equals on missing field", models.Indicator{Field: "country", Condition: models.ConditionNotEquals, Value: "US"}, 0},
		{"contains", models.Indicator{Field: "integration", Condition: models.ConditionContains, Value: "clo"}, 1},
		{"in list", models.Indicator{Field: "activity", Condition: models.ConditionIn, Value: []interface{}{"download", "export"}}, 1},
		{"in csv", models.Indicator{Field: "activity", Condition: models.ConditionIn, Value: "download, upload"}, 0},
		{"exists policy category", models.Indicator{Field: "policiesBreached.sensitiveData", Condition: models.ConditionExists}, 1},
		{"false evidence does not exist", models.Indicator{Field: "policiesBreached.retention", Condition: models.ConditionExists}, 0},
		{"off hours", models.Indicator{Field: "timestamp", Condition: models.ConditionOffHours}, 1},
		{"unknown field", models.Indicator{Field: "shoeSize", Condition: models.ConditionExists}, 0},
		{"unknown condition", models.Indicator{Field: "riskScore", Condition: "between", Value: 1}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, IndicatorMatch(r, tt.ind), 1e-9)
		})
	}
}

func TestOffHoursNeedsKnownHour(t *testing.T) {
	ind := models.Indicator{Field: "timestamp", Condition: models.ConditionOffHours}

	assert.Zero(t, IndicatorMatch(&models.ActivityRecord{Timestamp: "2024-03-01"}, ind))
	assert.Zero(t, IndicatorMatch(&models.ActivityRecord{Hour: hour(8)}, ind))
	assert.Equal(t, 1.0, IndicatorMatch(&models.ActivityRecord{Hour: hour(18)}, ind))
	assert.Equal(t, 1.0, IndicatorMatch(&models.ActivityRecord{Timestamp: "2024-03-01T07:59:00Z"}, ind))
}

func TestMatchConfidenceIsWeightedMean(t *testing.T) {
	r := &models.ActivityRecord{RiskScore: 150, Integration: "email"}
	p := models.ThreatPattern{Indicators: []models.Indicator{
		{Field: "riskScore", Condition: models.ConditionGreaterThan, Value: 100, Weight: 2},
		{Field: "integration", Condition: models.ConditionEquals, Value: "usb", Weight: 1},
		{Field: "integration", Condition: models.ConditionEquals, Value: "email", Weight: 1},
		{Field: "riskScore", Condition: models.ConditionExists, Weight: 0},
	}}

	assert.InDelta(t, (0.75*2+0+1)/4, MatchConfidence(r, p), 1e-9)
	assert.Zero(t, MatchConfidence(r, models.ThreatPattern{}))
}

func TestFieldAccessors(t *testing.T) {
	r := &models.ActivityRecord{UserID: "u-7", FileSize: 42, Department: "Finance"}

	assert.Equal(t, FieldValue{Kind: KindString, Text: "u-7"}, Field(r, "user"))
	assert.Equal(t, 42.0, Field(r, "dataVolume").Number)
	assert.Equal(t, "Finance", Field(r, "department").Text)
	assert.False(t, Field(r, "hour").Present())
	assert.False(t, Field(r, "country").Present())
	assert.False(t, Field(nil, "riskScore").Present())

	assert.True(t, IsKnownField("policiesBreached.pii"))
	assert.False(t, IsKnownField("policiesBreached."))
	assert.Contains(t, KnownFields(), "failedAttempts")
}
