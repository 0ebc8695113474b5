package models

import "time"

// ThreatType is inferred for discovered patterns from the implicated fields.
type ThreatType string

const (
	ThreatDataExfiltration   ThreatType = "data_exfiltration"
	ThreatUnauthorizedAccess ThreatType = "unauthorized_access"
	ThreatUnusualTiming      ThreatType = "unusual_timing"
	ThreatPolicyViolation    ThreatType = "policy_violation"
	ThreatAnomalousBehavior  ThreatType = "anomalous_behavior"
)

// Condition is the comparison applied by an Indicator.
type Condition string

const (
	ConditionEquals      Condition = "equals"
	ConditionNotEquals   Condition = "not_equals"
	ConditionContains    Condition = "contains"
	ConditionGreaterThan Condition = "greater_than"
	ConditionLessThan    Condition = "less_than"
	ConditionIn          Condition = "in"
	ConditionExists      Condition = "exists"
	ConditionOffHours    Condition = "off_hours"
)

// Indicator is one weighted field-path condition of a ThreatPattern.
type Indicator struct {
	Field     string      `json:"field" yaml:"field"`
	Condition Condition   `json:"condition" yaml:"condition"`
	Value     interface{} `json:"value,omitempty" yaml:"value,omitempty"`
	Weight    float64     `json:"weight" yaml:"weight"`
}

// PatternSource records where a pattern came from.
type PatternSource string

const (
	PatternSourceSeed       PatternSource = "seed"
	PatternSourceDiscovered PatternSource = "discovered"
	PatternSourceImported   PatternSource = "imported"
)

// ThreatPattern is a named, weighted rule whose confidence adapts to
// analyst feedback. Confidence stays within [0.3, 1.0].
type ThreatPattern struct {
	ID          string        `json:"id" yaml:"id"`
	Name        string        `json:"name" yaml:"name"`
	Description string        `json:"description,omitempty" yaml:"description,omitempty"`
	ThreatType  ThreatType    `json:"threatType" yaml:"threatType"`
	Indicators  []Indicator   `json:"indicators" yaml:"indicators"`
	Confidence  float64       `json:"confidence" yaml:"confidence"`
	Source      PatternSource `json:"source" yaml:"source"`

	TruePositives  int `json:"truePositives" yaml:"truePositives"`
	FalsePositives int `json:"falsePositives" yaml:"falsePositives"`
	TrueNegatives  int `json:"trueNegatives" yaml:"trueNegatives"`
	FalseNegatives int `json:"falseNegatives" yaml:"falseNegatives"`

	CreatedAt time.Time `json:"createdAt" yaml:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" yaml:"updatedAt"`
}

// Clone returns a deep copy so store snapshots are never shared.
// Indicator values decoded from JSON or YAML are copied recursively.
func (p ThreatPattern) Clone() ThreatPattern {
	out := p
	out.Indicators = make([]Indicator, len(p.Indicators))
	for i, ind := range p.Indicators {
		ind.Value = cloneValue(ind.Value)
		out.Indicators[i] = ind
	}
	return out
}

func cloneValue(v interface{}) interface{} {
	switch t := v.(type) {
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	case []string:
		return append([]string(nil), t...)
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, e := range t {
			out[k] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}

// FeedbackOutcome is the analyst disposition of one pattern match.
type FeedbackOutcome string

const (
	OutcomeTruePositive  FeedbackOutcome = "true_positive"
	OutcomeFalsePositive FeedbackOutcome = "false_positive"
	OutcomeTrueNegative  FeedbackOutcome = "true_negative"
	OutcomeFalseNegative FeedbackOutcome = "false_negative"
)

// Valid reports whether the outcome is one of the four known dispositions.
func (o FeedbackOutcome) Valid() bool {
	switch o {
	case OutcomeTruePositive, OutcomeFalsePositive, OutcomeTrueNegative, OutcomeFalseNegative:
		return true
	}
	return false
}

// FeedbackEntry records one analyst disposition. Entries are append-only.
type FeedbackEntry struct {
	ID        string          `json:"id" yaml:"id"`
	PatternID string          `json:"patternId" yaml:"patternId"`
	RecordID  string          `json:"recordId" yaml:"recordId"`
	Outcome   FeedbackOutcome `json:"outcome" yaml:"outcome"`
	Timestamp time.Time       `json:"timestamp" yaml:"timestamp"`
}

// PatternMatch is emitted when a ThreatPattern fires on a record.
type PatternMatch struct {
	PatternID         string     `json:"patternId"`
	PatternName       string     `json:"patternName"`
	ThreatType        ThreatType `json:"threatType"`
	RecordID          string     `json:"recordId"`
	User              string     `json:"user"`
	MatchConfidence   float64    `json:"matchConfidence"`
	PatternConfidence float64    `json:"patternConfidence"`
	MatchedIndicators []string   `json:"matchedIndicators"`
}
