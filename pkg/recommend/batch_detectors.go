package recommend

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/justinvu22/LTU-Academic-Weapon-sub002/pkg/models"
)

const (
	minDepartmentUsers  = 3
	minCoordinatedUsers = 3
	minCoordinatedHits  = 5
	coordinationWindow  = 24 * time.Hour
)

// DepartmentRiskDetector reports departments where several users each
// have at least one high-risk record.
type DepartmentRiskDetector struct{}

func (DepartmentRiskDetector) Name() string { return "department_risk" }

func (DepartmentRiskDetector) Detect(in BatchInput) ([]models.Recommendation, error) {
	members := make(map[string]map[string]struct{})
	risky := make(map[string][]*models.ActivityRecord)
	for _, r := range in.Records {
		dept := strings.TrimSpace(r.Department)
		if dept == "" {
			continue
		}
		if members[dept] == nil {
			members[dept] = make(map[string]struct{})
		}
		members[dept][userOf(r)] = struct{}{}
		if r.RiskScore >= in.Options.HighRiskScore {
			risky[dept] = append(risky[dept], r)
		}
	}

	departments := make([]string, 0, len(risky))
	for d := range risky {
		departments = append(departments, d)
	}
	sort.Strings(departments)

	var out []models.Recommendation
	for _, dept := range departments {
		users := distinctUsers(risky[dept])
		if len(users) < minDepartmentUsers {
			continue
		}
		share := float64(len(users)) / float64(len(members[dept]))
		out = append(out, models.Recommendation{
			Title:          fmt.Sprintf("Department-wide risk in %s", dept),
			Description:    fmt.Sprintf("%d of %d users in %s have high-risk activity", len(users), len(members[dept]), dept),
			Category:       models.CategoryUnusualBehavior,
			Severity:       models.SeverityHigh,
			Confidence:     capConfidence(0.6 + 0.05*float64(len(users)) + 0.1*share),
			AffectedUsers:  users,
			RelatedRecords: recordIDs(risky[dept]),
			SuggestedActions: []string{
				"Brief the department head on the findings",
				"Audit department-level access rights and shared accounts",
				"Schedule security awareness training for the department",
			},
		})
	}
	return out, nil
}

// CoordinatedAccessDetector reports sensitive data touched by several
// users inside one 24 hour window.
type CoordinatedAccessDetector struct{}

func (CoordinatedAccessDetector) Name() string { return "coordinated_access" }

type timedRecord struct {
	at time.Time
	r  *models.ActivityRecord
}

func (CoordinatedAccessDetector) Detect(in BatchInput) ([]models.Recommendation, error) {
	var hits []timedRecord
	for _, r := range in.Records {
		if !touchesSensitiveData(r) {
			continue
		}
		if at, ok := r.ParsedTime(); ok {
			hits = append(hits, timedRecord{at: at, r: r})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].at.Before(hits[j].at) })

	var out []models.Recommendation
	for i := 0; i < len(hits); {
		j := i
		for j < len(hits) && hits[j].at.Sub(hits[i].at) <= coordinationWindow {
			j++
		}

		window := make([]*models.ActivityRecord, 0, j-i)
		for _, h := range hits[i:j] {
			window = append(window, h.r)
		}
		users := distinctUsers(window)
		if len(users) < minCoordinatedUsers || len(window) < minCoordinatedHits {
			i++
			continue
		}

		out = append(out, models.Recommendation{
			Title:          "Coordinated sensitive data access",
			Description:    fmt.Sprintf("%d users touched sensitive data %d times between %s and %s", len(users), len(window), hits[i].at.Format(time.RFC3339), hits[j-1].at.Format(time.RFC3339)),
			Category:       models.CategoryPolicyBreach,
			Severity:       models.SeverityHigh,
			Confidence:     capConfidence(0.6 + 0.05*float64(len(users)) + 0.02*float64(len(window))),
			AffectedUsers:  users,
			RelatedRecords: recordIDs(window),
			SuggestedActions: []string{
				"Check whether the users share a project that explains the access",
				"Look for a common external recipient of the data",
				"Escalate to the security team if no business reason exists",
			},
		})
		// Continue after the reported cluster.
		i = j
	}
	return out, nil
}
