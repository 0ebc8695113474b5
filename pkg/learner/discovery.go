package learner

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/justinvu22/LTU-Academic-Weapon-sub002/pkg/models"
)

// Discovery thresholds.
const (
	minDiscoveryRecords = 100
	minHighRiskRecords  = 10
	minGroupSize        = 5
	minFeatures         = 2

	skewUpper        = 1.5 // group mean above this multiple of the batch mean
	skewLower        = 0.5 // group mean below this multiple of the batch mean
	dominantShare    = 0.6 // share for an equals feature
	offHoursShare    = 0.7 // share for an off_hours feature
	discoveredWeight = 1.0

	discoveredConfidence = 0.5
)

var (
	numericFeatureFields = []string{"riskScore", "dataVolume", "fileSize", "failedAttempts", "policyCount"}
	stringFeatureFields  = []string{"activity", "integration", "status", "department", "country"}
)

// Discover proposes new patterns from clusters of high-risk records and
// stores those that do not duplicate an existing pattern.
//
// It needs at least 100 records with at least 10 high-risk ones
// (RiskScore >= HighRiskScore). High-risk records are grouped by activity
// type; each group of 5 or more is profiled against the whole batch and
// becomes a candidate when it yields at least 2 significant features.
func (l *Learner) Discover(ctx context.Context, records []models.ActivityRecord) ([]models.ThreatPattern, error) {
	ctx, span := l.tracer.Start(ctx, "learner.discover")
	defer span.End()

	if len(records) < minDiscoveryRecords {
		l.logger.Debug("Not enough records for pattern discovery", zap.Int("records", len(records)))
		return nil, nil
	}

	groups := make(map[string][]*models.ActivityRecord)
	highRisk := 0
	for i := range records {
		if records[i].RiskScore >= l.opts.HighRiskScore {
			highRisk++
			key := records[i].ActivityType()
			groups[key] = append(groups[key], &records[i])
		}
	}
	if highRisk < minHighRiskRecords {
		l.logger.Debug("Not enough high-risk records for pattern discovery", zap.Int("high_risk", highRisk))
		return nil, nil
	}

	existing, err := l.Patterns(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	population := make([]*models.ActivityRecord, len(records))
	for i := range records {
		population[i] = &records[i]
	}

	var created []models.ThreatPattern
	for _, activity := range keys {
		group := groups[activity]
		if len(group) < minGroupSize {
			continue
		}

		features := commonFeatures(group, population)
		if len(features) < minFeatures {
			continue
		}

		candidate := models.ThreatPattern{
			Name:        fmt.Sprintf("Discovered: high-risk %s cluster", activity),
			Description: fmt.Sprintf("Derived from %d high-risk %s records", len(group), activity),
			ThreatType:  inferThreatType(features),
			Indicators:  features,
			Confidence:  discoveredConfidence,
			Source:      models.PatternSourceDiscovered,
		}
		if isDuplicate(candidate, existing) {
			l.logger.Debug("Suppressed duplicate discovered pattern", zap.String("activity", activity))
			continue
		}

		candidate.ID = uuid.New().String()
		saved, err := l.AddPattern(ctx, candidate)
		if err != nil {
			span.RecordError(err)
			return created, err
		}
		existing = append(existing, saved)
		created = append(created, saved)

		l.logger.Info("Discovered new threat pattern",
			zap.String("pattern_id", saved.ID),
			zap.String("threat_type", string(saved.ThreatType)),
			zap.Int("indicators", len(saved.Indicators)),
		)
	}

	span.SetAttributes(attribute.Int("discovered", len(created)))
	return created, nil
}

// commonFeatures profiles a group against the population.
func commonFeatures(group, population []*models.ActivityRecord) []models.Indicator {
	var features []models.Indicator

	for _, field := range numericFeatureFields {
		groupMean, ok := meanOf(group, field)
		if !ok {
			continue
		}
		popMean, ok := meanOf(population, field)
		if !ok || popMean <= 0 {
			continue
		}
		switch {
		case groupMean >= popMean*skewUpper:
			features = append(features, models.Indicator{
				Field:     field,
				Condition: models.ConditionGreaterThan,
				Value:     math.Round((popMean + groupMean) / 2),
				Weight:    discoveredWeight,
			})
		case groupMean <= popMean*skewLower:
			features = append(features, models.Indicator{
				Field:     field,
				Condition: models.ConditionLessThan,
				Value:     math.Round((popMean + groupMean) / 2),
				Weight:    discoveredWeight,
			})
		}
	}

	for _, field := range stringFeatureFields {
		value, share := dominantValue(group, field)
		if value != "" && share >= dominantShare {
			features = append(features, models.Indicator{
				Field:     field,
				Condition: models.ConditionEquals,
				Value:     value,
				Weight:    math.Round(share*100) / 100,
			})
		}
	}

	offHours := 0
	for _, r := range group {
		if IndicatorMatch(r, models.Indicator{Field: "timestamp", Condition: models.ConditionOffHours}) > 0 {
			offHours++
		}
	}
	if share := float64(offHours) / float64(len(group)); share >= offHoursShare {
		features = append(features, models.Indicator{
			Field:     "timestamp",
			Condition: models.ConditionOffHours,
			Weight:    math.Round(share*100) / 100,
		})
	}

	return features
}

// meanOf averages a numeric field over all records, missing values
// counting as zero. A field that is zero everywhere reports false.
func meanOf(records []*models.ActivityRecord, field string) (float64, bool) {
	sum, n := 0.0, 0
	for _, r := range records {
		v := Field(r, field)
		if v.Kind == KindNumber && v.Number > 0 {
			sum += v.Number
			n++
		}
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(len(records)), true
}

// dominantValue returns the most common non-empty value and its share of
// the whole group. Ties resolve alphabetically.
func dominantValue(group []*models.ActivityRecord, field string) (string, float64) {
	counts := make(map[string]int)
	for _, r := range group {
		if v := Field(r, field); v.Kind == KindString {
			counts[strings.ToLower(v.Text)]++
		}
	}

	best := ""
	for value, count := range counts {
		if best == "" || count > counts[best] || (count == counts[best] && value < best) {
			best = value
		}
	}
	if best == "" {
		return "", 0
	}
	return best, float64(counts[best]) / float64(len(group))
}

// inferThreatType maps the implicated fields to a threat type, most
// specific first.
func inferThreatType(features []models.Indicator) models.ThreatType {
	has := func(pred func(models.Indicator) bool) bool {
		for _, f := range features {
			if pred(f) {
				return true
			}
		}
		return false
	}

	switch {
	case has(func(f models.Indicator) bool { return f.Field == "fileSize" || f.Field == "dataVolume" }):
		return models.ThreatDataExfiltration
	case has(func(f models.Indicator) bool {
		return f.Field == "failedAttempts" || strings.Contains(strings.ToLower(toString(f.Value)), "login")
	}):
		return models.ThreatUnauthorizedAccess
	case has(func(f models.Indicator) bool { return f.Condition == models.ConditionOffHours }):
		return models.ThreatUnusualTiming
	case has(func(f models.Indicator) bool {
		return f.Field == "policyCount" || strings.HasPrefix(f.Field, policyFieldPrefix)
	}):
		return models.ThreatPolicyViolation
	default:
		return models.ThreatAnomalousBehavior
	}
}

// groupingFields are present in nearly every discovered candidate: groups
// are keyed by activity and made of records above HighRiskScore.
var groupingFields = map[string]bool{"riskScore": true, "activity": true}

// isDuplicate reports whether an existing pattern has the same threat
// type and shares at least one (field, condition) indicator. Grouping
// fields are ignored unless the candidate has nothing else.
func isDuplicate(candidate models.ThreatPattern, existing []models.ThreatPattern) bool {
	indicators := make([]models.Indicator, 0, len(candidate.Indicators))
	for _, ind := range candidate.Indicators {
		if !groupingFields[ind.Field] {
			indicators = append(indicators, ind)
		}
	}
	if len(indicators) == 0 {
		indicators = candidate.Indicators
	}

	for _, p := range existing {
		if p.ThreatType != candidate.ThreatType {
			continue
		}
		for _, a := range p.Indicators {
			for _, b := range indicators {
				if a.Field == b.Field && a.Condition == b.Condition {
					return true
				}
			}
		}
	}
	return false
}
