package learner

import (
	"fmt"
	"math"
	"strings"

	"github.com/justinvu22/LTU-Academic-Weapon-sub002/pkg/models"
)

// Working hours for the off_hours condition: [8, 18).
const (
	workdayStart = 8
	workdayEnd   = 18
)

// IndicatorMatch returns the graded match degree of one indicator in [0,1].
//
// Numeric comparisons are graded: greater_than yields 0.5 just past the
// threshold and approaches 1.0 as the value reaches twice the threshold,
// so near-miss patterns still carry partial signal. Everything else is
// 0 or 1.
func IndicatorMatch(r *models.ActivityRecord, ind models.Indicator) float64 {
	v := Field(r, ind.Field)

	switch ind.Condition {
	case models.ConditionExists:
		if v.Present() {
			return 1
		}
		return 0

	case models.ConditionOffHours:
		if v.Kind != KindHour && v.Kind != KindNumber {
			return 0
		}
		if v.Number < workdayStart || v.Number >= workdayEnd {
			return 1
		}
		return 0

	case models.ConditionGreaterThan:
		t, ok := toFloat64(ind.Value)
		if !ok || !numeric(v) || v.Number <= t {
			return 0
		}
		if t <= 0 {
			return 1
		}
		return 0.5 + 0.5*math.Min(1, (v.Number-t)/t)

	case models.ConditionLessThan:
		t, ok := toFloat64(ind.Value)
		if !ok || !numeric(v) || v.Number >= t {
			return 0
		}
		if t <= 0 {
			return 1
		}
		return 0.5 + 0.5*math.Min(1, (t-v.Number)/t)

	case models.ConditionEquals:
		if v.Present() && equalValue(v, ind.Value) {
			return 1
		}
		return 0

	case models.ConditionNotEquals:
		if v.Present() && !equalValue(v, ind.Value) {
			return 1
		}
		return 0

	case models.ConditionContains:
		needle := strings.ToLower(toString(ind.Value))
		if v.Kind == KindString && needle != "" && strings.Contains(strings.ToLower(v.Text), needle) {
			return 1
		}
		return 0

	case models.ConditionIn:
		if !v.Present() {
			return 0
		}
		for _, candidate := range listValues(ind.Value) {
			if equalValue(v, candidate) {
				return 1
			}
		}
		return 0
	}
	return 0
}

// MatchConfidence is the weighted mean of the indicator match degrees.
func MatchConfidence(r *models.ActivityRecord, p models.ThreatPattern) float64 {
	total, matched := 0.0, 0.0
	for _, ind := range p.Indicators {
		if ind.Weight <= 0 {
			continue
		}
		total += ind.Weight
		matched += IndicatorMatch(r, ind) * ind.Weight
	}
	if total == 0 {
		return 0
	}
	return matched / total
}

// describe renders an indicator for PatternMatch.MatchedIndicators.
func describe(ind models.Indicator) string {
	if ind.Condition == models.ConditionExists || ind.Condition == models.ConditionOffHours {
		return fmt.Sprintf("%s %s", ind.Field, ind.Condition)
	}
	return fmt.Sprintf("%s %s %v", ind.Field, ind.Condition, ind.Value)
}

func numeric(v FieldValue) bool {
	return v.Kind == KindNumber || v.Kind == KindHour
}

func equalValue(v FieldValue, expected interface{}) bool {
	if numeric(v) {
		f, ok := toFloat64(expected)
		return ok && f == v.Number
	}
	return strings.EqualFold(v.Text, toString(expected))
}

func listValues(val interface{}) []interface{} {
	switch v := val.(type) {
	case []interface{}:
		return v
	case []string:
		out := make([]interface{}, len(v))
		for i := range v {
			out[i] = v[i]
		}
		return out
	case string:
		parts := strings.Split(v, ",")
		out := make([]interface{}, 0, len(parts))
		for _, p := range parts {
			out = append(out, strings.TrimSpace(p))
		}
		return out
	default:
		return nil
	}
}
