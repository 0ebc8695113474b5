package main

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/justinvu22/LTU-Academic-Weapon-sub002/pkg/engine"
	"github.com/justinvu22/LTU-Academic-Weapon-sub002/pkg/learner"
	"github.com/justinvu22/LTU-Academic-Weapon-sub002/pkg/models"
	"github.com/justinvu22/LTU-Academic-Weapon-sub002/pkg/recommend"
	"github.com/justinvu22/LTU-Academic-Weapon-sub002/pkg/storage"
)

// Enricher adds derived fields (the country) to incoming records.
type Enricher interface {
	Enrich(records []models.ActivityRecord) int
}

// Server holds the HTTP handlers over the analysis core.
type Server struct {
	logger    *zap.Logger
	engine    *engine.Engine
	generator *recommend.Generator
	learner   *learner.Learner
	records   storage.RecordStore
	enricher  Enricher
	gatherer  prometheus.Gatherer
}

// AnalyzeRequest is the body of POST /api/v1/analyze.
type AnalyzeRequest struct {
	Records []models.ActivityRecord `json:"records" binding:"required"`
	// Persist appends the batch to the record store for later discovery.
	Persist bool `json:"persist"`
}

// AnalyzeResponse is the combined verdict for one batch.
type AnalyzeResponse struct {
	Results         []models.AnomalyResult  `json:"results"`
	Recommendations []models.Recommendation `json:"recommendations"`
	PatternMatches  []models.PatternMatch   `json:"patternMatches"`
	Anomalies       int                     `json:"anomalies"`
}

// Router builds the gin routes.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	if s.gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))
	}

	v1 := r.Group("/api/v1")
	v1.POST("/analyze", s.handleAnalyze)
	v1.POST("/feedback", s.handleFeedback)
	v1.GET("/feedback", s.handleListFeedback)
	v1.GET("/patterns", s.handleListPatterns)
	v1.POST("/patterns", s.handleAddPattern)
	v1.DELETE("/patterns/:id", s.handleRemovePattern)
	v1.POST("/patterns/discover", s.handleDiscover)
	v1.GET("/patterns/export", s.handleExport)
	v1.POST("/patterns/import", s.handleImport)
	return r
}

func (s *Server) handleAnalyze(c *gin.Context) {
	var req AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ctx := c.Request.Context()

	if s.enricher != nil {
		s.enricher.Enrich(req.Records)
	}

	results, err := s.engine.Analyze(ctx, req.Records)
	if err != nil {
		s.fail(c, http.StatusInternalServerError, "analysis failed", err)
		return
	}
	matches, err := s.learner.Analyze(ctx, req.Records)
	if err != nil {
		s.fail(c, http.StatusInternalServerError, "pattern matching failed", err)
		return
	}
	recs := s.generator.Generate(ctx, req.Records, results)

	if req.Persist {
		if err := s.records.SaveRecords(ctx, req.Records); err != nil {
			s.fail(c, http.StatusInternalServerError, "failed to store records", err)
			return
		}
	}

	anomalies := 0
	for _, r := range results {
		if r.IsAnomaly {
			anomalies++
		}
	}
	c.JSON(http.StatusOK, AnalyzeResponse{
		Results:         results,
		Recommendations: recs,
		PatternMatches:  matches,
		Anomalies:       anomalies,
	})
}

func (s *Server) handleFeedback(c *gin.Context) {
	var entry models.FeedbackEntry
	if err := c.ShouldBindJSON(&entry); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	p, err := s.learner.ApplyFeedback(c.Request.Context(), entry)
	switch {
	case errors.Is(err, learner.ErrInvalidOutcome):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, learner.ErrUnknownPattern):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case err != nil:
		s.fail(c, http.StatusInternalServerError, "failed to apply feedback", err)
	default:
		c.JSON(http.StatusOK, p)
	}
}

func (s *Server) handleListFeedback(c *gin.Context) {
	entries, err := s.learner.Feedback(c.Request.Context(), c.Query("patternId"))
	if err != nil {
		s.fail(c, http.StatusInternalServerError, "failed to list feedback", err)
		return
	}
	c.JSON(http.StatusOK, entries)
}

func (s *Server) handleListPatterns(c *gin.Context) {
	patterns, err := s.learner.Patterns(c.Request.Context())
	if err != nil {
		s.fail(c, http.StatusInternalServerError, "failed to list patterns", err)
		return
	}
	c.JSON(http.StatusOK, patterns)
}

func (s *Server) handleAddPattern(c *gin.Context) {
	var p models.ThreatPattern
	if err := c.ShouldBindJSON(&p); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	saved, err := s.learner.AddPattern(c.Request.Context(), p)
	switch {
	case errors.Is(err, learner.ErrInvalidPattern):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case err != nil:
		s.fail(c, http.StatusInternalServerError, "failed to add pattern", err)
	default:
		c.JSON(http.StatusCreated, saved)
	}
}

func (s *Server) handleRemovePattern(c *gin.Context) {
	err := s.learner.RemovePattern(c.Request.Context(), c.Param("id"))
	switch {
	case errors.Is(err, learner.ErrUnknownPattern):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case err != nil:
		s.fail(c, http.StatusInternalServerError, "failed to remove pattern", err)
	default:
		c.Status(http.StatusNoContent)
	}
}

// handleDiscover runs pattern discovery over the stored records.
func (s *Server) handleDiscover(c *gin.Context) {
	ctx := c.Request.Context()
	records, err := s.records.LoadRecords(ctx)
	if err != nil {
		s.fail(c, http.StatusInternalServerError, "failed to load records", err)
		return
	}
	created, err := s.learner.Discover(ctx, records)
	if err != nil {
		s.fail(c, http.StatusInternalServerError, "pattern discovery failed", err)
		return
	}
	if created == nil {
		created = []models.ThreatPattern{}
	}
	c.JSON(http.StatusOK, gin.H{"records": len(records), "discovered": created})
}

func (s *Server) handleExport(c *gin.Context) {
	c.Header("Content-Type", "application/x-yaml")
	if err := s.learner.ExportPatterns(c.Request.Context(), c.Writer); err != nil {
		s.fail(c, http.StatusInternalServerError, "failed to export patterns", err)
	}
}

func (s *Server) handleImport(c *gin.Context) {
	n, err := s.learner.ImportPatterns(c.Request.Context(), c.Request.Body)
	switch {
	case errors.Is(err, learner.ErrInvalidPattern):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case err != nil:
		s.fail(c, http.StatusBadRequest, "failed to import patterns", err)
	default:
		c.JSON(http.StatusOK, gin.H{"imported": n})
	}
}

func (s *Server) fail(c *gin.Context, status int, msg string, err error) {
	s.logger.Error(msg, zap.String("path", c.FullPath()), zap.Error(err))
	c.JSON(status, gin.H{"error": msg})
}
