package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/justinvu22/LTU-Academic-Weapon-sub002/pkg/config"
	"github.com/justinvu22/LTU-Academic-Weapon-sub002/pkg/engine"
	"github.com/justinvu22/LTU-Academic-Weapon-sub002/pkg/learner"
	"github.com/justinvu22/LTU-Academic-Weapon-sub002/pkg/models"
	"github.com/justinvu22/LTU-Academic-Weapon-sub002/pkg/recommend"
	"github.com/justinvu22/LTU-Academic-Weapon-sub002/pkg/storage"
	"github.com/justinvu22/LTU-Academic-Weapon-sub002/pkg/telemetry"
)

const mb = 1024 * 1024

type staticEnricher map[string]string

func (e staticEnricher) Enrich(records []models.ActivityRecord) int {
	n := 0
	for i := range records {
		if c, ok := e[records[i].SourceIP]; ok {
			records[i].Country = c
			n++
		}
	}
	return n
}

func newTestServer(t *testing.T, seed bool) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	opts := config.Default()
	logger := zap.NewNop()
	store := storage.NewMemoryStore()
	registry := prometheus.NewRegistry()
	metrics := telemetry.New(registry)

	s := &Server{
		logger:    logger,
		engine:    engine.New(opts, logger, engine.WithMetrics(metrics)),
		generator: recommend.New(opts, logger, recommend.WithMetrics(metrics)),
		learner:   learner.New(store, store, opts, logger, learner.WithMetrics(metrics)),
		records:   store,
		enricher:  staticEnricher{"81.2.69.142": "GB"},
		gatherer:  registry,
	}
	if seed {
		_, err := s.learner.Seed(context.Background())
		require.NoError(t, err)
	}
	return s
}

func do(t *testing.T, s *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)
	return w
}

func scenarioBatch() []models.ActivityRecord {
	breach := map[string]interface{}{"sensitiveData": true}
	return []models.ActivityRecord{
		{ID: "d1", User: "dave", Timestamp: "2024-03-04T23:00:00Z", Activity: "file access", Integration: "cloud", Status: models.StatusConcern, RiskScore: 1500, DataVolume: 2 * mb, PolicyBreaches: breach},
		{ID: "d2", User: "dave", Timestamp: "2024-03-04T22:30:00Z", Activity: "file access", Integration: "cloud", Status: models.StatusConcern, RiskScore: 1500, DataVolume: 2 * mb, PolicyBreaches: breach},
		{ID: "e1", User: "erin", Timestamp: "2024-03-04T10:00:00Z", Activity: "email", Integration: "email", Status: models.StatusTrusted, RiskScore: 50, DataVolume: 1000},
		{ID: "e2", User: "erin", Timestamp: "2024-03-04T11:00:00Z", Activity: "email", Integration: "email", Status: models.StatusTrusted, RiskScore: 50, DataVolume: 1000},
		{ID: "f0", User: "frank", Timestamp: "2024-03-04T09:00:00Z", Activity: "email", Integration: "email", Status: models.StatusNonConcern, RiskScore: 100, DataVolume: 1000, SourceIP: "81.2.69.142"},
		{ID: "f2", User: "frank", Timestamp: "2024-03-04T10:00:00Z", Activity: "email", Integration: "email", Status: models.StatusNonConcern, RiskScore: 100, DataVolume: 1000},
		{ID: "f1", User: "frank", Timestamp: "2024-03-05T02:00:00Z", Activity: "file copy", Integration: "USB", Status: models.StatusUnderReview, RiskScore: 2500, DataVolume: 50 * mb},
		{ID: "g1", User: "grace", Timestamp: "2024-03-04T14:00:00Z", Activity: "application", Integration: "application", Status: models.StatusNonConcern, RiskScore: 10, DataVolume: 1000},
	}
}

func TestAnalyzeEndpoint(t *testing.T) {
	s := newTestServer(t, true)

	w := do(t, s, http.MethodPost, "/api/v1/analyze", AnalyzeRequest{Records: scenarioBatch(), Persist: true})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp AnalyzeResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Results, 8)
	assert.GreaterOrEqual(t, resp.Anomalies, 1)

	var usb models.AnomalyResult
	for _, r := range resp.Results {
		if r.RecordID == "f1" {
			usb = r
		}
	}
	assert.True(t, usb.IsAnomaly)
	assert.Equal(t, models.SeverityCritical, usb.Severity)

	categories := map[models.Category]bool{}
	for _, r := range resp.Recommendations {
		categories[r.Category] = true
	}
	assert.True(t, categories[models.CategoryPolicyBreach])
	assert.True(t, categories[models.CategorySuspiciousTiming])

	fired := map[string]bool{}
	for _, m := range resp.PatternMatches {
		fired[m.RecordID+"/"+m.PatternID] = true
	}
	assert.True(t, fired["f1/seed-usb-exfiltration"])

	stored, err := s.records.LoadRecords(context.Background())
	require.NoError(t, err)
	require.Len(t, stored, 8)
	assert.Equal(t, "GB", stored[4].Country)
}

func TestAnalyzeRejectsBadBody(t *testing.T) {
	s := newTestServer(t, false)
	w := do(t, s, http.MethodPost, "/api/v1/analyze", "{not json")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestFeedbackEndpoint(t *testing.T) {
	s := newTestServer(t, true)

	w := do(t, s, http.MethodPost, "/api/v1/feedback", models.FeedbackEntry{PatternID: "seed-usb-exfiltration", RecordID: "f1", Outcome: models.OutcomeTruePositive})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var p models.ThreatPattern
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &p))
	assert.InDelta(t, 0.73, p.Confidence, 1e-9)
	assert.Equal(t, 1, p.TruePositives)

	w = do(t, s, http.MethodPost, "/api/v1/feedback", models.FeedbackEntry{PatternID: "nope", Outcome: models.OutcomeTruePositive})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, s, http.MethodPost, "/api/v1/feedback", models.FeedbackEntry{PatternID: "seed-usb-exfiltration", Outcome: "maybe"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, s, http.MethodGet, "/api/v1/feedback?patternId=seed-usb-exfiltration", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var entries []models.FeedbackEntry
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &entries))
	assert.Len(t, entries, 1)
}

func TestPatternEndpoints(t *testing.T) {
	s := newTestServer(t, true)

	w := do(t, s, http.MethodGet, "/api/v1/patterns", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var patterns []models.ThreatPattern
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &patterns))
	assert.Len(t, patterns, 5)

	w = do(t, s, http.MethodDelete, "/api/v1/patterns/seed-usb-exfiltration", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = do(t, s, http.MethodDelete, "/api/v1/patterns/seed-usb-exfiltration", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, s, http.MethodPost, "/api/v1/patterns", models.ThreatPattern{
		Name:       "foreign access",
		ThreatType: models.ThreatAnomalousBehavior,
		Indicators: []models.Indicator{{Field: "country", Condition: models.ConditionNotEquals, Value: "US", Weight: 1}},
	})
	assert.Equal(t, http.StatusCreated, w.Code)

	w = do(t, s, http.MethodPost, "/api/v1/patterns", models.ThreatPattern{Name: "empty"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestExportImportEndpoints(t *testing.T) {
	src := newTestServer(t, true)
	w := do(t, src, http.MethodGet, "/api/v1/patterns/export", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "seed-repeated-failed-logins")

	dst := newTestServer(t, false)
	w = do(t, dst, http.MethodPost, "/api/v1/patterns/import", w.Body.String())
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"imported":5}`, w.Body.String())

	w = do(t, dst, http.MethodPost, "/api/v1/patterns/import", "patterns:\n  - name: bad\n    indicators: []\n")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDiscoverEndpoint(t *testing.T) {
	s := newTestServer(t, false)

	var records []models.ActivityRecord
	for i := 0; i < 100; i++ {
		h := 9 + i%8
		records = append(records, models.ActivityRecord{ID: fmt.Sprintf("n%d", i), User: "staff", Hour: &h, Activity: "email", Integration: "email", RiskScore: 100, DataVolume: 1000})
	}
	for i := 0; i < 12; i++ {
		h := 23
		records = append(records, models.ActivityRecord{ID: fmt.Sprintf("h%d", i), User: "mallory", Hour: &h, Activity: "download", Integration: "usb", RiskScore: 3000, DataVolume: 500 * mb})
	}
	require.NoError(t, s.records.SaveRecords(context.Background(), records))

	w := do(t, s, http.MethodPost, "/api/v1/patterns/discover", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Records    int                    `json:"records"`
		Discovered []models.ThreatPattern `json:"discovered"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 112, resp.Records)
	require.Len(t, resp.Discovered, 1)
	assert.Equal(t, models.ThreatDataExfiltration, resp.Discovered[0].ThreatType)
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t, true)
	do(t, s, http.MethodPost, "/api/v1/analyze", AnalyzeRequest{Records: scenarioBatch()})

	w := do(t, s, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.True(t, strings.Contains(body, "activityguard_records_analyzed_total 8"), body)
	assert.Contains(t, body, "activityguard_pattern_matches_total")
}
