package recommend

import (
	"sort"
	"strings"
	"unicode"

	"github.com/justinvu22/LTU-Academic-Weapon-sub002/pkg/config"
	"github.com/justinvu22/LTU-Academic-Weapon-sub002/pkg/models"
)

// UserInput is everything a per-user detector sees: one user's records
// and that user's anomaly verdicts from the scorer (possibly none).
type UserInput struct {
	User      string
	Records   []*models.ActivityRecord
	Anomalies []models.AnomalyResult
	Options   config.Options
}

// BatchInput is the whole batch, for cross-user detectors.
type BatchInput struct {
	Records []*models.ActivityRecord
	Options config.Options
}

// UserDetector emits zero or one recommendation for a single user.
type UserDetector interface {
	Name() string
	Detect(in UserInput) (*models.Recommendation, error)
}

// BatchDetector correlates records across users.
type BatchDetector interface {
	Name() string
	Detect(in BatchInput) ([]models.Recommendation, error)
}

// DefaultUserDetectors returns the per-user detectors in evaluation order.
func DefaultUserDetectors() []UserDetector {
	return []UserDetector{
		SensitiveDataDetector{},
		BulkTransferDetector{},
		OffHoursDetector{},
		HighRiskSequenceDetector{},
		AnomalyClusterDetector{},
		LocationDetector{},
	}
}

// DefaultBatchDetectors returns the cross-user detectors in evaluation order.
func DefaultBatchDetectors() []BatchDetector {
	return []BatchDetector{
		DepartmentRiskDetector{},
		CoordinatedAccessDetector{},
	}
}

var (
	transferKeywords = []string{"download", "export", "share", "upload", "copy", "transfer"}
	exportKeywords   = []string{"download", "export"}
	externalChannels = []string{"usb", "cloud", "email", "share", "drive"}
)

func containsAny(s string, keywords []string) bool {
	s = strings.ToLower(s)
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}

// looksLikeCleanup matches evidence-removal activity. "log" is matched as
// a whole word so logins do not count.
func looksLikeCleanup(activity string) bool {
	words := strings.FieldsFunc(strings.ToLower(activity), func(r rune) bool {
		return !unicode.IsLetter(r)
	})
	for _, w := range words {
		switch {
		case w == "log", w == "logs":
			return true
		case strings.HasPrefix(w, "delet"), strings.HasPrefix(w, "remov"),
			strings.HasPrefix(w, "clear"), strings.HasPrefix(w, "histor"),
			strings.HasPrefix(w, "wip"), strings.HasPrefix(w, "purg"):
			return true
		}
	}
	return false
}

func touchesSensitiveData(r *models.ActivityRecord) bool {
	for _, category := range r.BreachedPolicies() {
		if strings.Contains(strings.ToLower(category), "sensitive") {
			return true
		}
	}
	return false
}

// isOffHours reports an hour inside the 20:00-06:00 window.
func isOffHours(r *models.ActivityRecord) bool {
	h, ok := r.HourOfDay()
	return ok && (h >= 20 || h < 6)
}

func concernRatio(records []*models.ActivityRecord) float64 {
	if len(records) == 0 {
		return 0
	}
	n := 0
	for _, r := range records {
		if r.Status == models.StatusConcern {
			n++
		}
	}
	return float64(n) / float64(len(records))
}

func recordIDs(records []*models.ActivityRecord) []string {
	ids := make([]string, 0, len(records))
	for _, r := range records {
		ids = append(ids, r.ID)
	}
	return ids
}

func userOf(r *models.ActivityRecord) string {
	u, _ := r.ResolveUser()
	return u
}

func distinctUsers(records []*models.ActivityRecord) []string {
	seen := make(map[string]struct{})
	for _, r := range records {
		seen[userOf(r)] = struct{}{}
	}
	users := make([]string, 0, len(seen))
	for u := range seen {
		users = append(users, u)
	}
	sort.Strings(users)
	return users
}

func filter(records []*models.ActivityRecord, keep func(*models.ActivityRecord) bool) []*models.ActivityRecord {
	var out []*models.ActivityRecord
	for _, r := range records {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out
}

func capConfidence(c float64) float64 {
	if c > 0.95 {
		return 0.95
	}
	return c
}
