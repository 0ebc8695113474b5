package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/justinvu22/LTU-Academic-Weapon-sub002/pkg/models"
)

var _ Store = (*MemoryStore)(nil)

// MemoryStore keeps everything in process memory. It is safe for
// concurrent use; readers never block each other.
type MemoryStore struct {
	mu       sync.RWMutex
	records  []models.ActivityRecord
	patterns map[string]models.ThreatPattern // key: pattern ID
	feedback []models.FeedbackEntry
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		patterns: make(map[string]models.ThreatPattern),
	}
}

func (m *MemoryStore) SaveRecords(_ context.Context, records []models.ActivityRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.records = append(m.records, records...)
	return nil
}

func (m *MemoryStore) LoadRecords(_ context.Context) ([]models.ActivityRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.ActivityRecord, len(m.records))
	copy(out, m.records)
	return out, nil
}

func (m *MemoryStore) ClearRecords(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.records = nil
	return nil
}

func (m *MemoryStore) ListPatterns(_ context.Context) ([]models.ThreatPattern, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.ThreatPattern, 0, len(m.patterns))
	for _, p := range m.patterns {
		out = append(out, p.Clone())
	}
	sortPatterns(out)
	return out, nil
}

func (m *MemoryStore) GetPattern(_ context.Context, id string) (models.ThreatPattern, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.patterns[id]
	if !ok {
		return models.ThreatPattern{}, fmt.Errorf("pattern %s: %w", id, ErrNotFound)
	}
	return p.Clone(), nil
}

func (m *MemoryStore) SavePattern(_ context.Context, pattern models.ThreatPattern) error {
	if pattern.ID == "" {
		return fmt.Errorf("pattern id must not be empty")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.patterns[pattern.ID] = pattern.Clone()
	return nil
}

func (m *MemoryStore) DeletePattern(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.patterns[id]; !ok {
		return fmt.Errorf("pattern %s: %w", id, ErrNotFound)
	}
	delete(m.patterns, id)
	return nil
}

func (m *MemoryStore) AppendFeedback(_ context.Context, entry models.FeedbackEntry, retention int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.feedback = append(m.feedback, entry)
	if retention > 0 && len(m.feedback) > retention {
		trimmed := make([]models.FeedbackEntry, retention)
		copy(trimmed, m.feedback[len(m.feedback)-retention:])
		m.feedback = trimmed
	}
	return nil
}

func (m *MemoryStore) ListFeedback(_ context.Context, patternID string) ([]models.FeedbackEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.FeedbackEntry, 0, len(m.feedback))
	for _, e := range m.feedback {
		if patternID == "" || e.PatternID == patternID {
			out = append(out, e)
		}
	}
	return out, nil
}
