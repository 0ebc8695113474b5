package recommend

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/justinvu22/LTU-Academic-Weapon-sub002/pkg/models"
)

// SensitiveDataDetector flags users whose records breach policies.
type SensitiveDataDetector struct{}

func (SensitiveDataDetector) Name() string { return "sensitive_data" }

func (SensitiveDataDetector) Detect(in UserInput) (*models.Recommendation, error) {
	breaches := filter(in.Records, (*models.ActivityRecord).HasPolicyBreach)
	if len(breaches) == 0 {
		return nil, nil
	}

	cr := concernRatio(breaches)
	severity := models.SeverityMedium
	if cr >= 0.5 || len(breaches) >= 5 {
		severity = models.SeverityHigh
	}

	categories := make(map[string]struct{})
	for _, r := range breaches {
		for _, c := range r.BreachedPolicies() {
			categories[c] = struct{}{}
		}
	}
	names := make([]string, 0, len(categories))
	for c := range categories {
		names = append(names, c)
	}
	sort.Strings(names)

	return &models.Recommendation{
		Title:          fmt.Sprintf("Policy breaches by %s", in.User),
		Description:    fmt.Sprintf("%d records breach policies (%s); %.0f%% are marked as concern", len(breaches), strings.Join(names, ", "), cr*100),
		Category:       models.CategoryPolicyBreach,
		Severity:       severity,
		Confidence:     capConfidence(0.5 + 0.1*float64(len(breaches)) + 0.3*cr),
		AffectedUsers:  []string{in.User},
		RelatedRecords: recordIDs(breaches),
		SuggestedActions: []string{
			"Review the breached policy categories with the user's manager",
			"Verify the user's access to sensitive data is still required",
			"Enable enhanced monitoring for this user",
		},
	}, nil
}

// BulkTransferDetector flags large transfer-type activity. Transfers
// through an external channel are reported as exfiltration.
type BulkTransferDetector struct{}

func (BulkTransferDetector) Name() string { return "bulk_transfer" }

func (BulkTransferDetector) Detect(in UserInput) (*models.Recommendation, error) {
	transfers := filter(in.Records, func(r *models.ActivityRecord) bool {
		return containsAny(r.Activity, transferKeywords)
	})
	total := 0.0
	external := false
	for _, r := range transfers {
		total += r.Volume()
		if containsAny(r.Integration, externalChannels) {
			external = true
		}
	}
	floor := in.Options.BulkVolumeThreshold
	if len(transfers) == 0 || total <= floor {
		return nil, nil
	}

	cr := concernRatio(transfers)
	rec := &models.Recommendation{
		Confidence:     capConfidence(0.45 + 0.1*math.Min(3, total/floor) + 0.2*cr),
		AffectedUsers:  []string{in.User},
		RelatedRecords: recordIDs(transfers),
	}
	if external {
		rec.Title = fmt.Sprintf("Possible data exfiltration by %s", in.User)
		rec.Description = fmt.Sprintf("%d transfers moved %.1f MiB through external channels", len(transfers), total/(1024*1024))
		rec.Category = models.CategoryDataExfiltration
		rec.Severity = models.SeverityHigh
		if total > 10*floor {
			rec.Severity = models.SeverityCritical
		}
		rec.SuggestedActions = []string{
			"Suspend external transfer rights pending review",
			"Identify the files transferred and their classification",
			"Interview the user about the business need",
		}
	} else {
		rec.Title = fmt.Sprintf("Bulk data operations by %s", in.User)
		rec.Description = fmt.Sprintf("%d transfers moved %.1f MiB", len(transfers), total/(1024*1024))
		rec.Category = models.CategoryBulkOperations
		rec.Severity = models.SeverityMedium
		rec.SuggestedActions = []string{
			"Confirm the bulk operation was authorized",
			"Review data handling procedures with the user",
		}
	}
	return rec, nil
}

// OffHoursDetector flags users who work mostly between 20:00 and 06:00.
type OffHoursDetector struct{}

func (OffHoursDetector) Name() string { return "off_hours" }

func (OffHoursDetector) Detect(in UserInput) (*models.Recommendation, error) {
	if len(in.Records) == 0 {
		return nil, nil
	}
	late := filter(in.Records, isOffHours)
	ratio := float64(len(late)) / float64(len(in.Records))
	if ratio <= 0.25 || len(late) < 2 {
		return nil, nil
	}

	cr := concernRatio(late)
	severity := models.SeverityMedium
	if ratio > 0.5 && cr > 0 {
		severity = models.SeverityHigh
	}

	return &models.Recommendation{
		Title:          fmt.Sprintf("Suspicious off-hours activity by %s", in.User),
		Description:    fmt.Sprintf("%d of %d records (%.0f%%) fall between 20:00 and 06:00", len(late), len(in.Records), ratio*100),
		Category:       models.CategorySuspiciousTiming,
		Severity:       severity,
		Confidence:     capConfidence(0.4 + 0.3*ratio + 0.05*float64(len(late)) + 0.2*cr),
		AffectedUsers:  []string{in.User},
		RelatedRecords: recordIDs(late),
		SuggestedActions: []string{
			"Check whether the user has an approved remote or shift schedule",
			"Review what was accessed outside working hours",
		},
	}, nil
}

// HighRiskSequenceDetector flags the data-theft-and-cover-up combination:
// sensitive data access, a download or export, and evidence removal
// anywhere in the user's records.
type HighRiskSequenceDetector struct{}

func (HighRiskSequenceDetector) Name() string { return "high_risk_sequence" }

func (HighRiskSequenceDetector) Detect(in UserInput) (*models.Recommendation, error) {
	sensitive := filter(in.Records, (*models.ActivityRecord).HasPolicyBreach)
	exports := filter(in.Records, func(r *models.ActivityRecord) bool { return containsAny(r.Activity, exportKeywords) })
	cleanup := filter(in.Records, func(r *models.ActivityRecord) bool { return looksLikeCleanup(r.Activity) })
	if len(sensitive) == 0 || len(exports) == 0 || len(cleanup) == 0 {
		return nil, nil
	}

	related := make([]*models.ActivityRecord, 0, len(sensitive)+len(exports)+len(cleanup))
	seen := make(map[*models.ActivityRecord]struct{})
	for _, group := range [][]*models.ActivityRecord{sensitive, exports, cleanup} {
		for _, r := range group {
			if _, ok := seen[r]; !ok {
				seen[r] = struct{}{}
				related = append(related, r)
			}
		}
	}

	return &models.Recommendation{
		Title:          fmt.Sprintf("High-risk activity sequence by %s", in.User),
		Description:    "Sensitive data access, data export and evidence removal occur in the same activity set",
		Category:       models.CategoryHighRiskSequence,
		Severity:       models.SeverityCritical,
		Confidence:     capConfidence(0.85 + 0.1*concernRatio(related)),
		AffectedUsers:  []string{in.User},
		RelatedRecords: recordIDs(related),
		SuggestedActions: []string{
			"Escalate to the security incident response team immediately",
			"Preserve system and audit logs before they are removed",
			"Restrict the user's access pending investigation",
		},
	}, nil
}

// AnomalyClusterDetector turns repeated scorer anomalies into a finding.
type AnomalyClusterDetector struct{}

func (AnomalyClusterDetector) Name() string { return "anomaly_cluster" }

func (AnomalyClusterDetector) Detect(in UserInput) (*models.Recommendation, error) {
	var flagged []models.AnomalyResult
	for _, a := range in.Anomalies {
		if a.IsAnomaly {
			flagged = append(flagged, a)
		}
	}
	if len(flagged) < 2 {
		return nil, nil
	}

	sum := 0.0
	severity := models.SeverityLow
	types := make(map[models.AnomalyType]int)
	ids := make([]string, 0, len(flagged))
	for _, a := range flagged {
		sum += a.Confidence
		if a.Severity.Rank() > severity.Rank() {
			severity = a.Severity
		}
		types[a.Type]++
		ids = append(ids, a.RecordID)
	}

	kinds := make([]string, 0, len(types))
	for t := range types {
		kinds = append(kinds, string(t))
	}
	sort.Strings(kinds)

	return &models.Recommendation{
		Title:          fmt.Sprintf("Repeated anomalous behavior by %s", in.User),
		Description:    fmt.Sprintf("%d records scored as anomalous (%s)", len(flagged), strings.Join(kinds, ", ")),
		Category:       models.CategoryUnusualBehavior,
		Severity:       severity,
		Confidence:     sum / float64(len(flagged)),
		AffectedUsers:  []string{in.User},
		RelatedRecords: ids,
		SuggestedActions: []string{
			"Review the anomalous records and their contributing factors",
			"Compare against the user's role and recent changes",
		},
	}, nil
}

// LocationDetector flags users seen from more than one country where some
// country appears only once. It needs geoip-enriched records.
type LocationDetector struct{}

func (LocationDetector) Name() string { return "location" }

func (LocationDetector) Detect(in UserInput) (*models.Recommendation, error) {
	byCountry := make(map[string][]*models.ActivityRecord)
	for _, r := range in.Records {
		if c := strings.ToUpper(strings.TrimSpace(r.Country)); c != "" {
			byCountry[c] = append(byCountry[c], r)
		}
	}
	if len(byCountry) < 2 {
		return nil, nil
	}

	var rare []*models.ActivityRecord
	var countries []string
	for c, records := range byCountry {
		countries = append(countries, c)
		if len(records) == 1 {
			rare = append(rare, records...)
		}
	}
	if len(rare) == 0 {
		return nil, nil
	}
	sort.Strings(countries)
	sort.Slice(rare, func(i, j int) bool { return rare[i].ID < rare[j].ID })

	return &models.Recommendation{
		Title:          fmt.Sprintf("Access from unusual location by %s", in.User),
		Description:    fmt.Sprintf("Activity seen from %d countries (%s); %d records come from a one-off location", len(countries), strings.Join(countries, ", "), len(rare)),
		Category:       models.CategoryAccessViolation,
		Severity:       models.SeverityMedium,
		Confidence:     capConfidence(0.5 + 0.1*float64(len(countries)) + 0.2*concernRatio(rare)),
		AffectedUsers:  []string{in.User},
		RelatedRecords: recordIDs(rare),
		SuggestedActions: []string{
			"Confirm the user travelled or used an approved VPN",
			"Check the session for credential sharing",
		},
	}, nil
}
