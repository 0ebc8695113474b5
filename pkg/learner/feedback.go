package learner

import (
	"context"
	"fmt"
	"math"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/justinvu22/LTU-Academic-Weapon-sub002/pkg/models"
)

// trueNegativeStep is the flat confidence increase for a true negative.
const trueNegativeStep = 0.02

// falseNegativeDecay is the multiplicative decay for a false negative.
const falseNegativeDecay = 0.9

// UpdateConfidence applies one feedback outcome to confidence c.
//
// The rule moves multiplicatively toward the bounds, so a true positive
// followed by a false positive does not return to c.
func UpdateConfidence(c float64, outcome models.FeedbackOutcome, rate float64) float64 {
	switch outcome {
	case models.OutcomeTruePositive:
		c += rate * (1 - c)
	case models.OutcomeFalsePositive:
		c = math.Max(MinConfidence, c-rate*c)
	case models.OutcomeFalseNegative:
		c = math.Max(MinConfidence, c*falseNegativeDecay)
	case models.OutcomeTrueNegative:
		c = math.Min(MaxConfidence, c+trueNegativeStep)
	}
	return clampConfidence(c)
}

// ApplyFeedback records an analyst disposition and adapts the pattern.
//
// The read-modify-write of the pattern is a critical section per pattern
// id. The entry is appended to the feedback log after the pattern is saved;
// ids and timestamps are filled when missing.
func (l *Learner) ApplyFeedback(ctx context.Context, entry models.FeedbackEntry) (models.ThreatPattern, error) {
	ctx, span := l.tracer.Start(ctx, "learner.apply_feedback")
	defer span.End()
	span.SetAttributes(
		attribute.String("pattern_id", entry.PatternID),
		attribute.String("outcome", string(entry.Outcome)),
	)

	if !entry.Outcome.Valid() {
		err := fmt.Errorf("%w: %q", ErrInvalidOutcome, entry.Outcome)
		span.RecordError(err)
		return models.ThreatPattern{}, err
	}

	lock := l.lockFor(entry.PatternID)
	lock.Lock()
	defer lock.Unlock()

	p, err := l.Pattern(ctx, entry.PatternID)
	if err != nil {
		span.RecordError(err)
		return models.ThreatPattern{}, err
	}

	before := p.Confidence
	p.Confidence = UpdateConfidence(p.Confidence, entry.Outcome, l.opts.AdaptationRate)
	switch entry.Outcome {
	case models.OutcomeTruePositive:
		p.TruePositives++
	case models.OutcomeFalsePositive:
		p.FalsePositives++
	case models.OutcomeTrueNegative:
		p.TrueNegatives++
	case models.OutcomeFalseNegative:
		p.FalseNegatives++
	}
	p.UpdatedAt = l.now()

	if err := l.patterns.SavePattern(ctx, p); err != nil {
		span.RecordError(err)
		return models.ThreatPattern{}, fmt.Errorf("failed to save pattern %s: %w", p.ID, err)
	}

	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = l.now()
	}
	if err := l.feedback.AppendFeedback(ctx, entry, l.opts.FeedbackRetention); err != nil {
		// The pattern is already updated; a lost log entry only loses history.
		l.logger.Warn("Failed to append feedback entry",
			zap.String("pattern_id", p.ID),
			zap.Error(err),
		)
	}

	l.metrics.Feedback(string(entry.Outcome))
	l.metrics.SetPatternConfidence(p.ID, p.Confidence)
	l.logger.Debug("Feedback applied",
		zap.String("pattern_id", p.ID),
		zap.String("outcome", string(entry.Outcome)),
		zap.Float64("confidence_before", before),
		zap.Float64("confidence_after", p.Confidence),
	)
	return p, nil
}

// Feedback returns the logged entries of one pattern ("" for all).
func (l *Learner) Feedback(ctx context.Context, patternID string) ([]models.FeedbackEntry, error) {
	entries, err := l.feedback.ListFeedback(ctx, patternID)
	if err != nil {
		return nil, fmt.Errorf("failed to list feedback: %w", err)
	}
	return entries, nil
}
