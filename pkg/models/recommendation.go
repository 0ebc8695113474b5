package models

import "time"

// Category is the closed set of recommendation categories.
type Category string

const (
	CategoryDataExfiltration Category = "data_exfiltration"
	CategoryUnusualBehavior  Category = "unusual_behavior"
	CategoryPolicyBreach     Category = "policy_breach"
	CategoryAccessViolation  Category = "access_violation"
	CategorySuspiciousTiming Category = "suspicious_timing"
	CategoryBulkOperations   Category = "bulk_operations"
	CategoryHighRiskSequence Category = "high_risk_sequence"
)

// Recommendation is a higher-level security finding that may aggregate
// several records and several users.
type Recommendation struct {
	ID               string    `json:"id"`
	Title            string    `json:"title"`
	Description      string    `json:"description"`
	Category         Category  `json:"category"`
	Severity         Severity  `json:"severity"`
	Confidence       float64   `json:"confidence"`
	AffectedUsers    []string  `json:"affectedUsers"`
	RelatedRecords   []string  `json:"relatedRecords"`
	SuggestedActions []string  `json:"suggestedActions"`
	CreatedAt        time.Time `json:"createdAt"`
}
