package learner

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/justinvu22/LTU-Academic-Weapon-sub002/pkg/models"
	"github.com/justinvu22/LTU-Academic-Weapon-sub002/pkg/storage"
)

const seedConfidence = 0.7

// SeedPatterns returns the fixed starter set of threat patterns.
func SeedPatterns() []models.ThreatPattern {
	return []models.ThreatPattern{
		{
			ID:          "seed-off-hours-bulk-transfer",
			Name:        "Off-hours bulk transfer",
			Description: "Large outbound transfer outside working hours",
			ThreatType:  models.ThreatDataExfiltration,
			Indicators: []models.Indicator{
				{Field: "dataVolume", Condition: models.ConditionGreaterThan, Value: 100 * 1024 * 1024, Weight: 0.5},
				{Field: "timestamp", Condition: models.ConditionOffHours, Weight: 0.3},
				{Field: "activity", Condition: models.ConditionIn, Value: []interface{}{"download", "export", "upload", "copy", "transfer", "share"}, Weight: 0.2},
			},
		},
		{
			ID:          "seed-usb-exfiltration",
			Name:        "High-risk USB exfiltration",
			Description: "High-risk transfer to a removable device",
			ThreatType:  models.ThreatDataExfiltration,
			Indicators: []models.Indicator{
				{Field: "integration", Condition: models.ConditionContains, Value: "usb", Weight: 0.5},
				{Field: "riskScore", Condition: models.ConditionGreaterThan, Value: 2000, Weight: 0.3},
				{Field: "dataVolume", Condition: models.ConditionGreaterThan, Value: 10 * 1024 * 1024, Weight: 0.2},
			},
		},
		{
			ID:          "seed-policy-breach-concern",
			Name:        "Policy breach under concern",
			Description: "Record breaching a policy while already flagged as a concern",
			ThreatType:  models.ThreatPolicyViolation,
			Indicators: []models.Indicator{
				{Field: "policyCount", Condition: models.ConditionGreaterThan, Value: 0, Weight: 0.5},
				{Field: "status", Condition: models.ConditionEquals, Value: string(models.StatusConcern), Weight: 0.5},
			},
		},
		{
			ID:          "seed-repeated-failed-logins",
			Name:        "Repeated failed logins",
			Description: "Several failed authentication attempts in one event",
			ThreatType:  models.ThreatUnauthorizedAccess,
			Indicators: []models.Indicator{
				{Field: "failedAttempts", Condition: models.ConditionGreaterThan, Value: 3, Weight: 0.6},
				{Field: "activity", Condition: models.ConditionContains, Value: "login", Weight: 0.4},
			},
		},
		{
			ID:          "seed-off-hours-sensitive-access",
			Name:        "Off-hours sensitive data access",
			Description: "Sensitive data touched outside working hours",
			ThreatType:  models.ThreatUnusualTiming,
			Indicators: []models.Indicator{
				{Field: "timestamp", Condition: models.ConditionOffHours, Weight: 0.5},
				{Field: "policiesBreached.sensitiveData", Condition: models.ConditionExists, Weight: 0.5},
			},
		},
	}
}

// Seed stores every seed pattern that is not already present, leaving
// adapted confidences of existing ones untouched. It returns the number
// of patterns inserted.
func (l *Learner) Seed(ctx context.Context) (int, error) {
	inserted := 0
	for _, p := range SeedPatterns() {
		_, err := l.patterns.GetPattern(ctx, p.ID)
		if err == nil {
			continue
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return inserted, fmt.Errorf("failed to check seed pattern %s: %w", p.ID, err)
		}

		p.Confidence = seedConfidence
		p.Source = models.PatternSourceSeed
		if _, err := l.AddPattern(ctx, p); err != nil {
			return inserted, err
		}
		inserted++
	}

	if inserted > 0 {
		l.logger.Info("Seed patterns installed", zap.Int("count", inserted))
	}
	return inserted, nil
}
