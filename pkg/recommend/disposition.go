package recommend

import (
	"strings"

	"github.com/justinvu22/LTU-Academic-Weapon-sub002/pkg/models"
)

var (
	escalateKeywords  = []string{"escalat", "flag", "investigat", "block", "report"}
	authorizeKeywords = []string{"authoriz", "legitimate", "approved", "no action", "dismiss"}
)

const (
	escalateBoost    = 0.2
	authorizePenalty = 0.3
	minAdjusted      = 0.05
	maxAdjusted      = 0.99
)

// adjustForDispositions revises rec.Confidence from the manager actions
// recorded on its related records. The shift is scaled by the share of
// related records that carry a disposition, so undisposed records never
// dilute the ratio of escalations to authorizations.
func adjustForDispositions(rec *models.Recommendation, byID map[string]*models.ActivityRecord) {
	if len(rec.RelatedRecords) == 0 {
		return
	}

	disposed, escalated, authorized := 0, 0, 0
	for _, id := range rec.RelatedRecords {
		r, ok := byID[id]
		if !ok {
			continue
		}
		action := strings.ToLower(strings.TrimSpace(r.ManagerAction))
		if action == "" {
			continue
		}
		disposed++
		// Authorization keywords win: "approved, no escalation" is an approval.
		switch {
		case containsAny(action, authorizeKeywords):
			authorized++
		case containsAny(action, escalateKeywords):
			escalated++
		}
	}
	if disposed == 0 {
		return
	}

	coverage := float64(disposed) / float64(len(rec.RelatedRecords))
	switch {
	case escalated > authorized:
		rec.Confidence += escalateBoost * float64(escalated) / float64(disposed) * coverage
	case authorized > escalated:
		rec.Confidence -= authorizePenalty * float64(authorized) / float64(disposed) * coverage
	default:
		return
	}

	if rec.Confidence < minAdjusted {
		rec.Confidence = minAdjusted
	}
	if rec.Confidence > maxAdjusted {
		rec.Confidence = maxAdjusted
	}
}
