package engine

import (
	"fmt"
	"math"
	"strings"

	"go.uber.org/zap"

	"github.com/justinvu22/LTU-Academic-Weapon-sub002/pkg/baseline"
	"github.com/justinvu22/LTU-Academic-Weapon-sub002/pkg/models"
	"github.com/justinvu22/LTU-Academic-Weapon-sub002/pkg/rules"
	"github.com/justinvu22/LTU-Academic-Weapon-sub002/pkg/telemetry"
)

const (
	trustedConfidence  = 0.95
	highRiskBaseScore  = 0.2
	usbThresholdFactor = 0.75
	usbThresholdFloor  = 0.25
	minConfidence      = 0.1
	maxConfidence      = 0.99
)

// Snapshot is the finalized, read-only state a batch is scored against.
// It is safe to share between goroutines.
type Snapshot struct {
	rules.Context
	Actions *baseline.ActionHistory
}

// Scorer turns one record into an AnomalyResult.
//
// Scoring is a pure function of the record and the snapshot; the scorer
// itself holds no per-batch state.
type Scorer struct {
	detectors []rules.Detector
	logger    *zap.Logger
	metrics   *telemetry.Metrics
}

// NewScorer creates a scorer. With no detectors, rules.Default() is used.
func NewScorer(logger *zap.Logger, metrics *telemetry.Metrics, detectors ...rules.Detector) *Scorer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(detectors) == 0 {
		detectors = rules.Default()
	}
	return &Scorer{detectors: detectors, logger: logger, metrics: metrics}
}

// Score evaluates a record.
//
// Flow:
//  1. trusted records short-circuit unless a critical override fires
//  2. base score from status (and a high external risk score)
//  3. every enabled sub-detector runs independently
//  4. weighted fusion: base + (weightedSum - base) * usedWeight
//  5. adaptive threshold (lower in critical hours and for USB)
//  6. severity, confidence, anomaly type and suggested action
//
// A nil record or snapshot never panics; it yields a zero-confidence
// non-anomaly carrying an explanatory factor.
func (s *Scorer) Score(record *models.ActivityRecord, snap *Snapshot) models.AnomalyResult {
	if record == nil {
		return models.AnomalyResult{
			Type:     models.AnomalyUnknown,
			Severity: models.SeverityLow,
			Factors:  []string{"no record supplied"},
		}
	}
	if snap == nil {
		snap = &Snapshot{}
	}
	opts := snap.Options

	result := models.AnomalyResult{
		RecordID: record.ID,
		User:     record.EnsureUser(),
		Type:     models.AnomalyUnknown,
		Severity: models.SeverityLow,
		Factors:  make([]string, 0, 4),
	}
	if snap.Global == nil {
		result.Factors = append(result.Factors, "no baseline available")
		return result
	}

	hour, hasHour := record.HourOfDay()
	criticalHour := hasHour && opts.IsCriticalHour(hour)
	highRisk := record.RiskScore >= opts.HighRiskScore
	result.Threshold = adaptiveThreshold(opts.MediumThreshold, opts.LowThreshold, criticalHour, record.IsUSB())

	// Step 1: trust gate.
	if opts.TrustTrustedActivities && record.Status == models.StatusTrusted {
		reason, override := criticalOverride(record, snap)
		if !override {
			result.Confidence = trustedConfidence
			result.Factors = append(result.Factors, "explicitly trusted")
			return result
		}
		result.Factors = append(result.Factors, "trusted status overridden: "+reason)
	}

	// Step 2: base score.
	base := 0.0
	switch record.Status {
	case models.StatusConcern:
		base += 0.3 * opts.ConcernWeight
		result.Factors = append(result.Factors, "status marked as concern")
	case models.StatusUnderReview:
		base += opts.UnderReviewWeight
		result.Factors = append(result.Factors, "status under review")
	}
	if highRisk {
		base += highRiskBaseScore
		result.Factors = append(result.Factors, fmt.Sprintf("high external risk score (%.0f)", record.RiskScore))
	}

	// Step 3 and 4: sub-detectors and fusion.
	weightedSum := base
	usedWeight := 0.0
	var topType models.AnomalyType
	topContribution := 0.0

	for _, d := range s.detectors {
		if !d.Enabled(opts) {
			continue
		}
		finding, ok := s.evaluate(d, record, &snap.Context)
		usedWeight += d.Weight()
		if !ok {
			continue
		}
		for _, note := range finding.Notes {
			s.logger.Debug("Detector degraded",
				zap.String("detector", d.Name()),
				zap.String("record_id", record.ID),
				zap.String("note", note),
			)
		}
		if finding.Score <= 0 {
			continue
		}
		contribution := d.Weight() * finding.Score
		weightedSum += contribution
		result.Factors = append(result.Factors, finding.Factors...)
		if contribution > topContribution {
			topContribution = contribution
			topType = d.Type()
		}
	}

	result.Score = rules.Clamp01(base + (weightedSum-base)*usedWeight)
	result.IsAnomaly = result.Score >= result.Threshold

	switch {
	case topType != "":
		result.Type = topType
	case base > 0:
		result.Type = models.AnomalyStatusConcern
	}

	result.Severity = s.severity(result, opts.HighThreshold, opts.MediumThreshold, criticalHour && record.IsUSB() && highRisk)
	result.Confidence = confidence(result)

	if snap.Actions != nil {
		if sug, ok := snap.Actions.Suggest(record, opts.ActionMinObservations, opts.ActionShareThreshold); ok {
			result.SuggestedAction = fmt.Sprintf("%s (%d of %d similar cases)", sug.Action, sug.Count, sug.Total)
		}
	}

	return result
}

// evaluate runs one detector, isolating the batch from a misbehaving one.
func (s *Scorer) evaluate(d rules.Detector, record *models.ActivityRecord, ctx *rules.Context) (finding rules.Finding, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Warn("Detector failed, skipping",
				zap.String("detector", d.Name()),
				zap.String("record_id", record.ID),
				zap.Any("panic", r),
			)
			s.metrics.DetectorFailure(d.Name())
			finding, ok = rules.Finding{}, false
		}
	}()
	return d.Evaluate(record, ctx), true
}

// criticalOverride decides whether a trusted record is still dangerous
// enough to be scored.
func criticalOverride(record *models.ActivityRecord, snap *Snapshot) (string, bool) {
	opts := snap.Options
	if hour, ok := record.HourOfDay(); ok && opts.IsCriticalHour(hour) {
		if info, ok := snap.Bursts.Lookup(hour); ok && info.IsCritical {
			return fmt.Sprintf("critical burst at %02d:00", hour), true
		}
	}
	if record.IsUSB() && record.RiskScore > opts.HighRiskScore {
		return fmt.Sprintf("USB transfer with risk score %.0f", record.RiskScore), true
	}
	return "", false
}

func adaptiveThreshold(medium, low float64, criticalHour, usb bool) float64 {
	threshold := medium
	if criticalHour {
		threshold = low
	}
	if usb {
		threshold = math.Max(threshold*usbThresholdFactor, usbThresholdFloor)
	}
	return threshold
}

func (s *Scorer) severity(r models.AnomalyResult, high, medium float64, criticalCombination bool) models.Severity {
	switch {
	case r.IsAnomaly && criticalCombination:
		return models.SeverityCritical
	case r.Score >= high && mentionsAny(r.Factors, "burst", "critical", "usb"):
		return models.SeverityCritical
	case r.Score >= high:
		return models.SeverityHigh
	case r.Score >= medium:
		return models.SeverityMedium
	default:
		return models.SeverityLow
	}
}

func confidence(r models.AnomalyResult) float64 {
	c := 0.0
	if r.Threshold > 0 {
		c = r.Score / r.Threshold
	}
	c = math.Min(math.Max(c, minConfidence), maxConfidence)

	if len(r.Factors) >= 3 {
		c = math.Min(c*1.1, maxConfidence)
	}
	if mentionsAny(r.Factors, "burst") {
		c = math.Min(c*1.15, maxConfidence)
	}
	if mentionsAny(r.Factors, "usb") {
		c = math.Min(c*1.1, maxConfidence)
	}
	return c
}

func mentionsAny(factors []string, keywords ...string) bool {
	for _, f := range factors {
		lower := strings.ToLower(f)
		for _, k := range keywords {
			if strings.Contains(lower, k) {
				return true
			}
		}
	}
	return false
}
