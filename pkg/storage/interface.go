package storage

import (
	"context"
	"errors"
	"sort"

	"github.com/justinvu22/LTU-Academic-Weapon-sub002/pkg/models"
)

// ErrNotFound is returned when a requested pattern does not exist.
var ErrNotFound = errors.New("not found")

// RecordStore persists activity batches across sessions.
// Implementations can use any backend: in-memory, Redis, PostgreSQL, etc.
//
// The analysis core never reads from the store on its own; the calling
// layer loads a batch and hands it to the engine.
type RecordStore interface {
	// SaveRecords appends records to the stored batch.
	SaveRecords(ctx context.Context, records []models.ActivityRecord) error

	// LoadRecords returns every stored record in insertion order.
	LoadRecords(ctx context.Context) ([]models.ActivityRecord, error)

	// ClearRecords drops the stored batch.
	ClearRecords(ctx context.Context) error
}

// PatternStore persists threat patterns. Implementations return copies,
// never shared references.
type PatternStore interface {
	// ListPatterns returns all patterns ordered by creation time, then ID.
	ListPatterns(ctx context.Context) ([]models.ThreatPattern, error)

	// GetPattern returns ErrNotFound for an unknown id.
	GetPattern(ctx context.Context, id string) (models.ThreatPattern, error)

	// SavePattern inserts or replaces a pattern.
	SavePattern(ctx context.Context, pattern models.ThreatPattern) error

	// DeletePattern returns ErrNotFound for an unknown id.
	DeletePattern(ctx context.Context, id string) error
}

// FeedbackLog is the append-only analyst feedback log.
type FeedbackLog interface {
	// AppendFeedback adds an entry and discards the oldest entries beyond
	// retention (retention <= 0 keeps everything).
	AppendFeedback(ctx context.Context, entry models.FeedbackEntry, retention int) error

	// ListFeedback returns the entries for patternID, or all entries when
	// patternID is empty, oldest first.
	ListFeedback(ctx context.Context, patternID string) ([]models.FeedbackEntry, error)
}

// Store combines every storage concern behind one backend.
type Store interface {
	RecordStore
	PatternStore
	FeedbackLog
}

func sortPatterns(patterns []models.ThreatPattern) {
	sort.Slice(patterns, func(i, j int) bool {
		a, b := patterns[i], patterns[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}
