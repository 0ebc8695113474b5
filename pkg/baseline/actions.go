package baseline

import (
	"fmt"
	"sort"
	"strings"

	"github.com/justinvu22/LTU-Academic-Weapon-sub002/pkg/models"
)

// ActionStats counts analyst dispositions recorded for one coarse bucket.
type ActionStats struct {
	Total   int            `json:"total"`
	Actions map[string]int `json:"actions"`
}

// ActionHistory is the manager-action pattern table, keyed by
// (hour bucket, risk bucket, integration).
type ActionHistory struct {
	highRiskScore float64
	buckets       map[string]*ActionStats
}

// Suggestion is the most common analyst action of a bucket.
type Suggestion struct {
	Action string  `json:"action"`
	Count  int     `json:"count"`
	Total  int     `json:"total"`
	Share  float64 `json:"share"`
}

// BuildActionHistory folds every record carrying a ManagerAction.
func BuildActionHistory(records []models.ActivityRecord, highRiskScore float64) *ActionHistory {
	h := &ActionHistory{
		highRiskScore: highRiskScore,
		buckets:       make(map[string]*ActionStats),
	}
	for i := range records {
		action := strings.TrimSpace(records[i].ManagerAction)
		if action == "" {
			continue
		}
		key := h.Key(&records[i])
		stats, ok := h.buckets[key]
		if !ok {
			stats = &ActionStats{Actions: make(map[string]int)}
			h.buckets[key] = stats
		}
		stats.Total++
		stats.Actions[action]++
	}
	return h
}

// Key returns the coarse bucket of a record.
func (h *ActionHistory) Key(r *models.ActivityRecord) string {
	return fmt.Sprintf("%s|%s|%s", hourBucket(r), h.riskBucket(r.RiskScore), r.IntegrationType())
}

// Len is the number of populated buckets.
func (h *ActionHistory) Len() int {
	if h == nil {
		return 0
	}
	return len(h.buckets)
}

// Suggest returns the dominant action for the record's bucket when the
// bucket has at least minObservations entries and the action's share
// exceeds minShare.
func (h *ActionHistory) Suggest(r *models.ActivityRecord, minObservations int, minShare float64) (Suggestion, bool) {
	if h == nil || r == nil {
		return Suggestion{}, false
	}
	stats, ok := h.buckets[h.Key(r)]
	if !ok || stats.Total < minObservations {
		return Suggestion{}, false
	}

	actions := make([]string, 0, len(stats.Actions))
	for a := range stats.Actions {
		actions = append(actions, a)
	}
	sort.Strings(actions)

	best := ""
	for _, a := range actions {
		if best == "" || stats.Actions[a] > stats.Actions[best] {
			best = a
		}
	}

	share := float64(stats.Actions[best]) / float64(stats.Total)
	if share <= minShare {
		return Suggestion{}, false
	}
	return Suggestion{Action: best, Count: stats.Actions[best], Total: stats.Total, Share: share}, true
}

func hourBucket(r *models.ActivityRecord) string {
	hour, ok := r.HourOfDay()
	switch {
	case !ok:
		return models.UnknownValue
	case hour < 6:
		return "night"
	case hour < 12:
		return "morning"
	case hour < 18:
		return "afternoon"
	default:
		return "evening"
	}
}

func (h *ActionHistory) riskBucket(score float64) string {
	switch {
	case score >= h.highRiskScore:
		return "critical"
	case score >= h.highRiskScore/2:
		return "high"
	case score >= h.highRiskScore/4:
		return "medium"
	default:
		return "low"
	}
}
