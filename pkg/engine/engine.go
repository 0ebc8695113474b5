package engine

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/justinvu22/LTU-Academic-Weapon-sub002/pkg/baseline"
	"github.com/justinvu22/LTU-Academic-Weapon-sub002/pkg/config"
	"github.com/justinvu22/LTU-Academic-Weapon-sub002/pkg/models"
	"github.com/justinvu22/LTU-Academic-Weapon-sub002/pkg/rules"
	"github.com/justinvu22/LTU-Academic-Weapon-sub002/pkg/telemetry"
)

// Engine is the batch anomaly analysis engine.
//
// Architecture Principles:
//   - Engine is detector-agnostic: it only sees the rules.Detector interface
//   - Baselines are rebuilt from scratch for every batch, never merged
//   - Explainable: each detector contributes factor strings to the verdict
//   - The finalized snapshot is read-only, so scoring runs in parallel
//
// The engine never listens for external events; the calling layer decides
// when to call Rebuild or Analyze (e.g. after an upload).
//
// Usage:
//
//	eng := engine.New(config.Default(), logger)
//	results, err := eng.Analyze(ctx, records)
type Engine struct {
	opts    config.Options
	logger  *zap.Logger
	tracer  trace.Tracer
	metrics *telemetry.Metrics
	builder *baseline.Builder
	scorer  *Scorer

	detectors []rules.Detector

	mu       sync.RWMutex
	snapshot *Snapshot
}

// Option customizes an Engine.
type Option func(*Engine)

// WithMetrics attaches Prometheus collectors.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithDetectors replaces the default sub-detectors.
// Detectors are evaluated in the order given.
func WithDetectors(detectors ...rules.Detector) Option {
	return func(e *Engine) { e.detectors = detectors }
}

// New creates an engine. Options are completed with ApplyDefaults; a nil
// logger disables logging.
func New(opts config.Options, logger *zap.Logger, options ...Option) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts.ApplyDefaults()

	e := &Engine{
		opts:   opts,
		logger: logger,
		tracer: otel.Tracer("activityguard/engine"),
	}
	for _, o := range options {
		o(e)
	}

	e.builder = baseline.NewBuilder(logger)
	e.scorer = NewScorer(logger, e.metrics, e.detectors...)
	return e
}

// Options returns the effective options.
func (e *Engine) Options() config.Options {
	return e.opts
}

// Rebuild replaces the current snapshot with one built from records.
//
// Records missing a canonical user get one filled in; nothing else in the
// slice is modified.
func (e *Engine) Rebuild(records []models.ActivityRecord) *Snapshot {
	global, users := e.builder.Build(records)
	snap := &Snapshot{
		Context: rules.Context{
			Options: e.opts,
			Global:  global,
			Users:   users,
			Bursts:  baseline.DetectBursts(records, e.opts),
		},
		Actions: baseline.BuildActionHistory(records, e.opts.HighRiskScore),
	}

	bursts := 0
	for _, info := range snap.Bursts {
		if info.IsBurst {
			bursts++
		}
	}
	e.logger.Info("Baselines rebuilt",
		zap.Int("records", len(records)),
		zap.Int("users", len(users)),
		zap.Int("burst_hours", bursts),
		zap.Int("action_buckets", snap.Actions.Len()),
	)

	e.mu.Lock()
	e.snapshot = snap
	e.mu.Unlock()
	return snap
}

// Snapshot returns the current snapshot, or nil before the first Rebuild.
func (e *Engine) Snapshot() *Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.snapshot
}

// Score evaluates a single record against the current snapshot.
func (e *Engine) Score(record *models.ActivityRecord) models.AnomalyResult {
	return e.scorer.Score(record, e.Snapshot())
}

// Analyze rebuilds the baselines from records and scores every record.
//
// Scoring runs on Workers goroutines over ChunkSize-record chunks; the
// returned slice is index-aligned with records. The context is only
// checked between chunks: the core has no mid-record cancellation.
func (e *Engine) Analyze(ctx context.Context, records []models.ActivityRecord) ([]models.AnomalyResult, error) {
	ctx, span := e.tracer.Start(ctx, "engine.analyze")
	defer span.End()
	span.SetAttributes(attribute.Int("records", len(records)))

	start := time.Now()
	snap := e.Rebuild(records)
	results := make([]models.AnomalyResult, len(records))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Workers)

	for lo := 0; lo < len(records); lo += e.opts.ChunkSize {
		lo := lo
		hi := lo + e.opts.ChunkSize
		if hi > len(records) {
			hi = len(records)
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			for i := lo; i < hi; i++ {
				results[i] = e.scorer.Score(&records[i], snap)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		span.RecordError(err)
		return nil, err
	}

	anomalies := 0
	for i := range results {
		if results[i].IsAnomaly {
			anomalies++
			e.metrics.Anomaly(string(results[i].Severity), string(results[i].Type))
		}
	}
	e.metrics.ObserveAnalysis(len(records), time.Since(start))
	span.SetAttributes(attribute.Int("anomalies", anomalies))

	e.logger.Info("Batch analyzed",
		zap.Int("records", len(records)),
		zap.Int("anomalies", anomalies),
		zap.Duration("elapsed", time.Since(start)),
	)
	return results, nil
}
