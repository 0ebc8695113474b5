// Package learner maintains the threat pattern store, matches records
// against patterns and adapts pattern confidence from analyst feedback.
package learner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/justinvu22/LTU-Academic-Weapon-sub002/pkg/config"
	"github.com/justinvu22/LTU-Academic-Weapon-sub002/pkg/models"
	"github.com/justinvu22/LTU-Academic-Weapon-sub002/pkg/storage"
	"github.com/justinvu22/LTU-Academic-Weapon-sub002/pkg/telemetry"
)

var (
	// ErrUnknownPattern is returned for operations on a missing pattern id.
	ErrUnknownPattern = errors.New("unknown pattern")

	// ErrInvalidOutcome is returned for a feedback outcome outside the
	// four known dispositions.
	ErrInvalidOutcome = errors.New("invalid feedback outcome")

	// ErrInvalidPattern is returned when a pattern cannot be matched
	// (no indicators, unknown field or condition).
	ErrInvalidPattern = errors.New("invalid pattern")
)

// Confidence bounds of a ThreatPattern.
const (
	MinConfidence = 0.3
	MaxConfidence = 1.0
)

// Learner owns a pattern store and a feedback log. Several learners with
// independent stores can coexist.
//
// Confidence updates are serialized per pattern id; reads go straight
// to the store, which hands out copies.
type Learner struct {
	patterns storage.PatternStore
	feedback storage.FeedbackLog
	opts     config.Options
	logger   *zap.Logger
	tracer   trace.Tracer
	metrics  *telemetry.Metrics
	now      func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// Option customizes a Learner.
type Option func(*Learner)

// WithMetrics attaches Prometheus collectors.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(l *Learner) { l.metrics = m }
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Learner) { l.now = now }
}

// New creates a learner over the given stores.
func New(patterns storage.PatternStore, feedback storage.FeedbackLog, opts config.Options, logger *zap.Logger, options ...Option) *Learner {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts.ApplyDefaults()

	l := &Learner{
		patterns: patterns,
		feedback: feedback,
		opts:     opts,
		logger:   logger,
		tracer:   otel.Tracer("activityguard/learner"),
		now:      time.Now,
		locks:    make(map[string]*sync.Mutex),
	}
	for _, o := range options {
		o(l)
	}
	return l
}

// lockFor returns the mutex guarding one pattern id.
func (l *Learner) lockFor(id string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()

	m, ok := l.locks[id]
	if !ok {
		m = &sync.Mutex{}
		l.locks[id] = m
	}
	return m
}

// Patterns returns every stored pattern.
func (l *Learner) Patterns(ctx context.Context) ([]models.ThreatPattern, error) {
	patterns, err := l.patterns.ListPatterns(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list patterns: %w", err)
	}
	return patterns, nil
}

// Pattern returns one pattern, or ErrUnknownPattern.
func (l *Learner) Pattern(ctx context.Context, id string) (models.ThreatPattern, error) {
	p, err := l.patterns.GetPattern(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return models.ThreatPattern{}, fmt.Errorf("%w: %s", ErrUnknownPattern, id)
	}
	if err != nil {
		return models.ThreatPattern{}, fmt.Errorf("failed to load pattern %s: %w", id, err)
	}
	return p, nil
}

// AddPattern validates and stores a pattern. A missing id is generated,
// the confidence is clamped and the timestamps are set.
func (l *Learner) AddPattern(ctx context.Context, p models.ThreatPattern) (models.ThreatPattern, error) {
	if err := Validate(p); err != nil {
		return models.ThreatPattern{}, err
	}

	now := l.now()
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.Confidence == 0 {
		p.Confidence = 0.5
	}
	p.Confidence = clampConfidence(p.Confidence)
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now

	lock := l.lockFor(p.ID)
	lock.Lock()
	defer lock.Unlock()

	if err := l.patterns.SavePattern(ctx, p); err != nil {
		return models.ThreatPattern{}, fmt.Errorf("failed to save pattern %s: %w", p.ID, err)
	}
	l.metrics.SetPatternConfidence(p.ID, p.Confidence)
	return p, nil
}

// RemovePattern deletes a pattern. Its feedback history is kept.
func (l *Learner) RemovePattern(ctx context.Context, id string) error {
	lock := l.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	err := l.patterns.DeletePattern(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrUnknownPattern, id)
	}
	if err != nil {
		return fmt.Errorf("failed to delete pattern %s: %w", id, err)
	}

	l.metrics.ForgetPattern(id)
	l.logger.Info("Pattern removed", zap.String("pattern_id", id))
	return nil
}

// Analyze matches every record against every stored pattern and returns
// the firings (match confidence >= PatternMatchThreshold), in record order.
func (l *Learner) Analyze(ctx context.Context, records []models.ActivityRecord) ([]models.PatternMatch, error) {
	ctx, span := l.tracer.Start(ctx, "learner.analyze")
	defer span.End()

	patterns, err := l.Patterns(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	matches := make([]models.PatternMatch, 0)
	for i := range records {
		r := &records[i]
		for _, p := range patterns {
			mc := MatchConfidence(r, p)
			if mc < l.opts.PatternMatchThreshold {
				continue
			}

			matched := make([]string, 0, len(p.Indicators))
			for _, ind := range p.Indicators {
				if IndicatorMatch(r, ind) > 0 {
					matched = append(matched, describe(ind))
				}
			}
			user, _ := r.ResolveUser()
			matches = append(matches, models.PatternMatch{
				PatternID:         p.ID,
				PatternName:       p.Name,
				ThreatType:        p.ThreatType,
				RecordID:          r.ID,
				User:              user,
				MatchConfidence:   mc,
				PatternConfidence: p.Confidence,
				MatchedIndicators: matched,
			})
			l.metrics.PatternMatch(string(p.ThreatType))
		}
	}

	span.SetAttributes(
		attribute.Int("records", len(records)),
		attribute.Int("patterns", len(patterns)),
		attribute.Int("matches", len(matches)),
	)
	return matches, nil
}

// Validate checks that every indicator uses a known field and condition.
func Validate(p models.ThreatPattern) error {
	if len(p.Indicators) == 0 {
		return fmt.Errorf("%w: pattern %q has no indicators", ErrInvalidPattern, p.Name)
	}
	for _, ind := range p.Indicators {
		if !IsKnownField(ind.Field) {
			return fmt.Errorf("%w: unknown field %q", ErrInvalidPattern, ind.Field)
		}
		switch ind.Condition {
		case models.ConditionEquals, models.ConditionNotEquals, models.ConditionContains,
			models.ConditionGreaterThan, models.ConditionLessThan, models.ConditionIn,
			models.ConditionExists, models.ConditionOffHours:
		default:
			return fmt.Errorf("%w: unknown condition %q", ErrInvalidPattern, ind.Condition)
		}
		if ind.Weight < 0 {
			return fmt.Errorf("%w: negative weight on %s", ErrInvalidPattern, ind.Field)
		}
	}
	return nil
}

func clampConfidence(c float64) float64 {
	if c < MinConfidence {
		return MinConfidence
	}
	if c > MaxConfidence {
		return MaxConfidence
	}
	return c
}
