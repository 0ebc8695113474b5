package learner

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/justinvu22/LTU-Academic-Weapon-sub002/pkg/config"
	"github.com/justinvu22/LTU-Academic-Weapon-sub002/pkg/models"
	"github.com/justinvu22/LTU-Academic-Weapon-sub002/pkg/storage"
)

const mb = 1024 * 1024

func hour(h int) *int { return &h }

var fixedNow = time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC)

func newTestLearner(t *testing.T, opts config.Options) (*Learner, *storage.MemoryStore) {
	t.Helper()
	store := storage.NewMemoryStore()
	l := New(store, store, opts, zap.NewNop(), WithClock(func() time.Time { return fixedNow }))
	return l, store
}

func seeded(t *testing.T) *Learner {
	t.Helper()
	l, _ := newTestLearner(t, config.Default())
	n, err := l.Seed(context.Background())
	require.NoError(t, err)
	require.Equal(t, 5, n)
	return l
}

func TestUpdateConfidence(t *testing.T) {
	tests := []struct {
		name    string
		start   float64
		outcome models.FeedbackOutcome
		want    float64
	}{
		{"true positive moves toward 1", 0.5, models.OutcomeTruePositive, 0.55},
		{"false positive moves toward floor", 0.5, models.OutcomeFalsePositive, 0.45},
		{"false positive respects floor", 0.32, models.OutcomeFalsePositive, 0.3},
		{"false negative decays", 0.5, models.OutcomeFalseNegative, 0.45},
		{"false negative respects floor", 0.31, models.OutcomeFalseNegative, 0.3},
		{"true negative nudges up", 0.5, models.OutcomeTrueNegative, 0.52},
		{"true negative respects cap", 0.99, models.OutcomeTrueNegative, 1.0},
		{"unknown outcome is a no-op", 0.5, models.FeedbackOutcome("maybe"), 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, UpdateConfidence(tt.start, tt.outcome, 0.1), 1e-9)
		})
	}
}

func TestTruePositiveThenFalsePositiveDoesNotRestoreConfidence(t *testing.T) {
	for _, c := range []float64{0.5, 0.7, 0.9} {
		after := UpdateConfidence(UpdateConfidence(c, models.OutcomeTruePositive, 0.1), models.OutcomeFalsePositive, 0.1)
		assert.NotEqual(t, c, after, "start %.2f", c)
		assert.Less(t, after, c, "start %.2f", c)

		reversed := UpdateConfidence(UpdateConfidence(c, models.OutcomeFalsePositive, 0.1), models.OutcomeTruePositive, 0.1)
		assert.NotEqual(t, after, reversed, "start %.2f", c)
	}
}

func TestApplyFeedback(t *testing.T) {
	ctx := context.Background()
	l := seeded(t)

	p, err := l.ApplyFeedback(ctx, models.FeedbackEntry{PatternID: "seed-usb-exfiltration", RecordID: "f1", Outcome: models.OutcomeTruePositive})
	require.NoError(t, err)
	assert.InDelta(t, 0.73, p.Confidence, 1e-9)
	assert.Equal(t, 1, p.TruePositives)
	assert.Equal(t, fixedNow, p.UpdatedAt)

	stored, err := l.Pattern(ctx, "seed-usb-exfiltration")
	require.NoError(t, err)
	assert.InDelta(t, 0.73, stored.Confidence, 1e-9)

	entries, err := l.Feedback(ctx, "seed-usb-exfiltration")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.NotEmpty(t, entries[0].ID)
	assert.Equal(t, fixedNow, entries[0].Timestamp)

	_, err = l.ApplyFeedback(ctx, models.FeedbackEntry{PatternID: "seed-usb-exfiltration", Outcome: "meh"})
	assert.ErrorIs(t, err, ErrInvalidOutcome)

	_, err = l.ApplyFeedback(ctx, models.FeedbackEntry{PatternID: "nope", Outcome: models.OutcomeFalsePositive})
	assert.ErrorIs(t, err, ErrUnknownPattern)
}

func TestFeedbackRetention(t *testing.T) {
	opts := config.Default()
	opts.FeedbackRetention = 2
	l, _ := newTestLearner(t, opts)
	ctx := context.Background()
	_, err := l.Seed(ctx)
	require.NoError(t, err)

	for _, id := range []string{"a", "b", "c"} {
		_, err := l.ApplyFeedback(ctx, models.FeedbackEntry{ID: id, PatternID: "seed-policy-breach-concern", Outcome: models.OutcomeTrueNegative})
		require.NoError(t, err)
	}

	entries, err := l.Feedback(ctx, "")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "b", entries[0].ID)

	p, err := l.Pattern(ctx, "seed-policy-breach-concern")
	require.NoError(t, err)
	assert.Equal(t, 3, p.TrueNegatives)
}

func TestConcurrentFeedbackIsSerializedPerPattern(t *testing.T) {
	ctx := context.Background()
	l := seeded(t)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := l.ApplyFeedback(ctx, models.FeedbackEntry{PatternID: "seed-repeated-failed-logins", Outcome: models.OutcomeTruePositive})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	p, err := l.Pattern(ctx, "seed-repeated-failed-logins")
	require.NoError(t, err)
	assert.Equal(t, 50, p.TruePositives)

	want := seedConfidence
	for i := 0; i < 50; i++ {
		want = UpdateConfidence(want, models.OutcomeTruePositive, 0.1)
	}
	assert.InDelta(t, want, p.Confidence, 1e-9)
}

// gatedStore blocks the first GetPattern until release is closed.
type gatedStore struct {
	*storage.MemoryStore
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (g *gatedStore) GetPattern(ctx context.Context, id string) (models.ThreatPattern, error) {
	g.once.Do(func() {
		close(g.entered)
		<-g.release
	})
	return g.MemoryStore.GetPattern(ctx, id)
}

func TestAddPatternWaitsForFeedbackOnSamePattern(t *testing.T) {
	ctx := context.Background()
	mem := storage.NewMemoryStore()
	original := models.ThreatPattern{
		ID:         "custom",
		Name:       "old",
		ThreatType: models.ThreatAnomalousBehavior,
		Confidence: 0.5,
		Indicators: []models.Indicator{{Field: "riskScore", Condition: models.ConditionGreaterThan, Value: 100.0, Weight: 1}},
	}
	require.NoError(t, mem.SavePattern(ctx, original))

	store := &gatedStore{MemoryStore: mem, entered: make(chan struct{}), release: make(chan struct{})}
	l := New(store, mem, config.Default(), zap.NewNop(), WithClock(func() time.Time { return fixedNow }))

	feedbackDone := make(chan error, 1)
	go func() {
		_, err := l.ApplyFeedback(ctx, models.FeedbackEntry{PatternID: "custom", Outcome: models.OutcomeTruePositive})
		feedbackDone <- err
	}()
	<-store.entered

	replacement := original
	replacement.Name = "new"
	replacement.Indicators = []models.Indicator{{Field: "country", Condition: models.ConditionNotEquals, Value: "US", Weight: 1}}
	addDone := make(chan error, 1)
	go func() {
		_, err := l.AddPattern(ctx, replacement)
		addDone <- err
	}()

	select {
	case <-addDone:
		t.Fatal("AddPattern finished while feedback held the pattern lock")
	case <-time.After(50 * time.Millisecond):
	}

	close(store.release)
	require.NoError(t, <-feedbackDone)
	require.NoError(t, <-addDone)

	got, err := mem.GetPattern(ctx, "custom")
	require.NoError(t, err)
	assert.Equal(t, "new", got.Name)
	assert.Equal(t, "country", got.Indicators[0].Field)
	assert.Equal(t, 0.5, got.Confidence)
}

func TestIndependentLearnersDoNotShareState(t *testing.T) {
	ctx := context.Background()
	a := seeded(t)
	b := seeded(t)

	_, err := a.ApplyFeedback(ctx, models.FeedbackEntry{PatternID: "seed-usb-exfiltration", Outcome: models.OutcomeFalsePositive})
	require.NoError(t, err)

	pb, err := b.Pattern(ctx, "seed-usb-exfiltration")
	require.NoError(t, err)
	assert.Equal(t, seedConfidence, pb.Confidence)
}

func TestSeedKeepsAdaptedConfidence(t *testing.T) {
	ctx := context.Background()
	l := seeded(t)

	_, err := l.ApplyFeedback(ctx, models.FeedbackEntry{PatternID: "seed-usb-exfiltration", Outcome: models.OutcomeFalseNegative})
	require.NoError(t, err)

	n, err := l.Seed(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	p, err := l.Pattern(ctx, "seed-usb-exfiltration")
	require.NoError(t, err)
	assert.InDelta(t, 0.63, p.Confidence, 1e-9)
}

func TestAnalyzeFiresPatterns(t *testing.T) {
	l := seeded(t)
	records := []models.ActivityRecord{
		{ID: "usb", User: "frank", Hour: hour(2), Integration: "USB", Activity: "file copy", RiskScore: 2500, DataVolume: 50 * mb},
		{ID: "mail", User: "erin", Hour: hour(10), Integration: "email", Activity: "email", RiskScore: 20},
		{ID: "login", Username: "mallory", Hour: hour(11), Activity: "Login", FailedAttempts: 8},
	}

	matches, err := l.Analyze(context.Background(), records)
	require.NoError(t, err)

	byRecord := map[string][]string{}
	for _, m := range matches {
		byRecord[m.RecordID] = append(byRecord[m.RecordID], m.PatternID)
		assert.GreaterOrEqual(t, m.MatchConfidence, 0.65)
	}
	assert.Contains(t, byRecord["usb"], "seed-usb-exfiltration")
	assert.Empty(t, byRecord["mail"])
	assert.Equal(t, []string{"seed-repeated-failed-logins"}, byRecord["login"])

	for _, m := range matches {
		if m.PatternID == "seed-usb-exfiltration" {
			assert.InDelta(t, 0.5+0.3*0.625+0.2, m.MatchConfidence, 1e-9)
			assert.Equal(t, "frank", m.User)
			assert.Len(t, m.MatchedIndicators, 3)
		}
		if m.PatternID == "seed-repeated-failed-logins" {
			assert.Equal(t, "mallory", m.User)
		}
	}
}

func TestAddAndRemovePattern(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLearner(t, config.Default())

	p, err := l.AddPattern(ctx, models.ThreatPattern{
		Name:       "custom",
		ThreatType: models.ThreatAnomalousBehavior,
		Confidence: 5,
		Indicators: []models.Indicator{{Field: "country", Condition: models.ConditionNotEquals, Value: "US", Weight: 1}},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, p.ID)
	assert.Equal(t, MaxConfidence, p.Confidence)
	assert.Equal(t, fixedNow, p.CreatedAt)

	_, err = l.AddPattern(ctx, models.ThreatPattern{Name: "bad", Indicators: []models.Indicator{{Field: "nope", Condition: models.ConditionExists}}})
	assert.ErrorIs(t, err, ErrInvalidPattern)
	_, err = l.AddPattern(ctx, models.ThreatPattern{Name: "empty"})
	assert.ErrorIs(t, err, ErrInvalidPattern)

	require.NoError(t, l.RemovePattern(ctx, p.ID))
	assert.ErrorIs(t, l.RemovePattern(ctx, p.ID), ErrUnknownPattern)

	patterns, err := l.Patterns(ctx)
	require.NoError(t, err)
	assert.Empty(t, patterns)
}

func TestExportImportYAML(t *testing.T) {
	ctx := context.Background()
	src := seeded(t)

	var buf bytes.Buffer
	require.NoError(t, src.ExportPatterns(ctx, &buf))
	assert.Contains(t, buf.String(), "seed-usb-exfiltration")
	assert.Contains(t, buf.String(), "off_hours")

	dst, _ := newTestLearner(t, config.Default())
	n, err := dst.ImportPatterns(ctx, &buf)
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	p, err := dst.Pattern(ctx, "seed-usb-exfiltration")
	require.NoError(t, err)
	assert.Equal(t, models.PatternSourceSeed, p.Source)
	assert.Equal(t, seedConfidence, p.Confidence)

	matches, err := dst.Analyze(ctx, []models.ActivityRecord{
		{ID: "usb", Hour: hour(2), Integration: "usb", RiskScore: 2500, DataVolume: 50 * mb},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, matches)
}

func TestImportRejectsInvalidFile(t *testing.T) {
	l, _ := newTestLearner(t, config.Default())
	doc := `
patterns:
  - name: ok
    threatType: anomalous_behavior
    indicators:
      - {field: riskScore, condition: greater_than, value: 10, weight: 1}
  - name: broken
    threatType: anomalous_behavior
    indicators:
      - {field: shoeSize, condition: equals, value: 42, weight: 1}
`
	n, err := l.ImportPatterns(context.Background(), strings.NewReader(doc))
	assert.ErrorIs(t, err, ErrInvalidPattern)
	assert.Zero(t, n)

	patterns, err := l.Patterns(context.Background())
	require.NoError(t, err)
	assert.Empty(t, patterns)

	n, err = l.ImportPatterns(context.Background(), strings.NewReader(""))
	require.NoError(t, err)
	assert.Zero(t, n)
}
