// Package recommend turns a scored batch into higher-level security
// findings by running per-user and cross-user pattern detectors.
package recommend

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/justinvu22/LTU-Academic-Weapon-sub002/pkg/config"
	"github.com/justinvu22/LTU-Academic-Weapon-sub002/pkg/models"
	"github.com/justinvu22/LTU-Academic-Weapon-sub002/pkg/telemetry"
)

// Generator runs the recommendation detectors over a batch.
//
// Detectors are independent: a detector that errors or panics for one
// user is logged and skipped, and the rest of the pass continues.
type Generator struct {
	opts    config.Options
	logger  *zap.Logger
	tracer  trace.Tracer
	metrics *telemetry.Metrics
	now     func() time.Time

	userDetectors  []UserDetector
	batchDetectors []BatchDetector
}

// Option customizes a Generator.
type Option func(*Generator)

// WithMetrics attaches Prometheus collectors.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(g *Generator) { g.metrics = m }
}

// WithClock overrides the creation timestamp source.
func WithClock(now func() time.Time) Option {
	return func(g *Generator) { g.now = now }
}

// WithUserDetectors replaces the per-user detectors.
func WithUserDetectors(detectors ...UserDetector) Option {
	return func(g *Generator) { g.userDetectors = detectors }
}

// WithBatchDetectors replaces the cross-user detectors.
func WithBatchDetectors(detectors ...BatchDetector) Option {
	return func(g *Generator) { g.batchDetectors = detectors }
}

// New creates a generator with the default detectors.
func New(opts config.Options, logger *zap.Logger, options ...Option) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts.ApplyDefaults()

	g := &Generator{
		opts:           opts,
		logger:         logger,
		tracer:         otel.Tracer("activityguard/recommend"),
		now:            time.Now,
		userDetectors:  DefaultUserDetectors(),
		batchDetectors: DefaultBatchDetectors(),
	}
	for _, o := range options {
		o(g)
	}
	return g
}

// Generate produces the recommendations for records. anomalies may be nil;
// when present they feed the anomaly-sourced detector.
//
// The result is filtered by ConfidenceThreshold, ordered by severity then
// confidence (both descending) and holds at most MaxRecommendations items.
func (g *Generator) Generate(ctx context.Context, records []models.ActivityRecord, anomalies []models.AnomalyResult) []models.Recommendation {
	_, span := g.tracer.Start(ctx, "recommend.generate")
	defer span.End()

	batch := withIDs(records)
	byID := make(map[string]*models.ActivityRecord, len(batch))
	byUser := make(map[string][]*models.ActivityRecord)
	for _, r := range batch {
		byID[r.ID] = r
		u := userOf(r)
		byUser[u] = append(byUser[u], r)
	}

	// Scorer verdicts are index-aligned with records; records without an id
	// only got one from withIDs, so carry it over.
	aligned := len(anomalies) == len(batch)
	anomaliesByUser := make(map[string][]models.AnomalyResult)
	for i, a := range anomalies {
		if a.RecordID == "" && aligned {
			a.RecordID = batch[i].ID
		}
		u := a.User
		if u == "" {
			if r, ok := byID[a.RecordID]; ok {
				u = userOf(r)
			}
		}
		anomaliesByUser[u] = append(anomaliesByUser[u], a)
	}

	users := make([]string, 0, len(byUser))
	for u := range byUser {
		users = append(users, u)
	}
	sort.Strings(users)

	var recs []models.Recommendation
	for _, user := range users {
		in := UserInput{
			User:      user,
			Records:   byUser[user],
			Anomalies: anomaliesByUser[user],
			Options:   g.opts,
		}
		for _, d := range g.userDetectors {
			if rec := g.runUser(d, in); rec != nil {
				recs = append(recs, *rec)
			}
		}
	}

	for _, d := range g.batchDetectors {
		recs = append(recs, g.runBatch(d, BatchInput{Records: batch, Options: g.opts})...)
	}

	produced := len(recs)
	now := g.now()
	for i := range recs {
		recs[i].ID = uuid.New().String()
		recs[i].CreatedAt = now
		adjustForDispositions(&recs[i], byID)
	}
	recs = g.finalize(recs)

	for _, r := range recs {
		g.metrics.Recommendation(string(r.Category), string(r.Severity))
	}
	span.SetAttributes(
		attribute.Int("records", len(records)),
		attribute.Int("users", len(users)),
		attribute.Int("produced", produced),
		attribute.Int("recommendations", len(recs)),
	)
	g.logger.Info("Recommendations generated",
		zap.Int("records", len(records)),
		zap.Int("produced", produced),
		zap.Int("kept", len(recs)),
	)
	return recs
}

func (g *Generator) runUser(d UserDetector, in UserInput) (rec *models.Recommendation) {
	defer func() {
		if p := recover(); p != nil {
			g.detectorFailed(d.Name(), in.User, fmt.Errorf("panic: %v", p))
			rec = nil
		}
	}()

	rec, err := d.Detect(in)
	if err != nil {
		g.detectorFailed(d.Name(), in.User, err)
		return nil
	}
	return rec
}

func (g *Generator) runBatch(d BatchDetector, in BatchInput) (recs []models.Recommendation) {
	defer func() {
		if p := recover(); p != nil {
			g.detectorFailed(d.Name(), "", fmt.Errorf("panic: %v", p))
			recs = nil
		}
	}()

	recs, err := d.Detect(in)
	if err != nil {
		g.detectorFailed(d.Name(), "", err)
		return nil
	}
	return recs
}

func (g *Generator) detectorFailed(name, user string, err error) {
	g.metrics.DetectorFailure(name)
	g.logger.Warn("Recommendation detector failed",
		zap.String("detector", name),
		zap.String("user", user),
		zap.Error(err),
	)
}

func (g *Generator) finalize(recs []models.Recommendation) []models.Recommendation {
	kept := recs[:0]
	for _, r := range recs {
		if r.Confidence >= g.opts.ConfidenceThreshold {
			kept = append(kept, r)
		}
	}

	sort.SliceStable(kept, func(i, j int) bool {
		if ri, rj := kept[i].Severity.Rank(), kept[j].Severity.Rank(); ri != rj {
			return ri > rj
		}
		return kept[i].Confidence > kept[j].Confidence
	})

	if len(kept) > g.opts.MaxRecommendations {
		kept = kept[:g.opts.MaxRecommendations]
	}
	return kept
}

// withIDs returns pointers into a copy of records in which every record
// has an id, so related-record lists are always resolvable.
func withIDs(records []models.ActivityRecord) []*models.ActivityRecord {
	batch := make([]models.ActivityRecord, len(records))
	copy(batch, records)

	out := make([]*models.ActivityRecord, len(batch))
	for i := range batch {
		if batch[i].ID == "" {
			batch[i].ID = fmt.Sprintf("record-%d", i)
		}
		out[i] = &batch[i]
	}
	return out
}
