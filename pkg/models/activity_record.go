package models

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Status is the review status attached to a record by the ingestion side.
type Status string

const (
	StatusUnderReview Status = "underReview"
	StatusTrusted     Status = "trusted"
	StatusConcern     Status = "concern"
	StatusNonConcern  Status = "nonConcern"
)

// UnknownValue is used for activity/integration buckets when the field is empty.
const UnknownValue = "unknown"

// ActivityRecord represents one observed user action as delivered by the
// ingestion collaborator (already normalized from CSV/JSON uploads).
//
// The record is read-only inside the core. The only mutation allowed is
// EnsureUser, which fills the canonical User field when the record arrived
// with an alias (username/userId) or without any identity at all.
//
// Optional fields may be absent:
//   - identity: User, Username or UserID (in that order of preference)
//   - time: Hour, Timestamp, or Date + Time (free text)
//   - volume: DataVolume or FileSize
type ActivityRecord struct {
	ID string `json:"id" yaml:"id"`

	// Identity aliases. User is canonical after EnsureUser.
	User            string `json:"user,omitempty" yaml:"user,omitempty"`
	Username        string `json:"username,omitempty" yaml:"username,omitempty"`
	UserID          string `json:"userId,omitempty" yaml:"userId,omitempty"`
	UserSynthesized bool   `json:"userSynthesized,omitempty" yaml:"userSynthesized,omitempty"`
	Department      string `json:"department,omitempty" yaml:"department,omitempty"`

	// Time information, resolved by HourOfDay / ParsedTime.
	Timestamp string `json:"timestamp,omitempty" yaml:"timestamp,omitempty"`
	Date      string `json:"date,omitempty" yaml:"date,omitempty"`
	Time      string `json:"time,omitempty" yaml:"time,omitempty"`
	Hour      *int   `json:"hour,omitempty" yaml:"hour,omitempty"`

	Activity    string `json:"activity,omitempty" yaml:"activity,omitempty"`
	Integration string `json:"integration,omitempty" yaml:"integration,omitempty"`

	// RiskScore is supplied externally; the core never computes it.
	RiskScore      float64 `json:"riskScore" yaml:"riskScore"`
	DataVolume     float64 `json:"dataVolume,omitempty" yaml:"dataVolume,omitempty"`
	FileSize       float64 `json:"fileSize,omitempty" yaml:"fileSize,omitempty"`
	FailedAttempts int     `json:"failedAttempts,omitempty" yaml:"failedAttempts,omitempty"`

	Status        Status `json:"status,omitempty" yaml:"status,omitempty"`
	ManagerAction string `json:"managerAction,omitempty" yaml:"managerAction,omitempty"`

	// PolicyBreaches maps a policy category to its evidence: a boolean,
	// a list of matched items, a count or a free-text note.
	PolicyBreaches map[string]interface{} `json:"policiesBreached,omitempty" yaml:"policiesBreached,omitempty"`

	// SourceIP is optional; Country is filled by geoip enrichment.
	SourceIP string `json:"sourceIp,omitempty" yaml:"sourceIp,omitempty"`
	Country  string `json:"country,omitempty" yaml:"country,omitempty"`
}

// ResolveUser returns the canonical identity without modifying the record.
// The boolean is true when the identity had to be synthesized.
func (r *ActivityRecord) ResolveUser() (string, bool) {
	switch {
	case strings.TrimSpace(r.User) != "":
		return strings.TrimSpace(r.User), r.UserSynthesized
	case strings.TrimSpace(r.Username) != "":
		return strings.TrimSpace(r.Username), false
	case strings.TrimSpace(r.UserID) != "":
		return strings.TrimSpace(r.UserID), false
	}
	if r.ID != "" {
		return "unidentified:" + r.ID, true
	}
	return "unidentified", true
}

// EnsureUser fills the canonical User field and flags synthesized identities.
func (r *ActivityRecord) EnsureUser() string {
	user, synthesized := r.ResolveUser()
	r.User = user
	r.UserSynthesized = synthesized
	return user
}

var timestampLayouts = []struct {
	layout   string
	hasClock bool
}{
	{time.RFC3339Nano, true},
	{time.RFC3339, true},
	{"2006-01-02T15:04:05", true},
	{"2006-01-02 15:04:05", true},
	{"2006-01-02 15:04", true},
	{"01/02/2006 15:04:05", true},
	{"01/02/2006 15:04", true},
	{"2006-01-02", false},
	{"01/02/2006", false},
}

func parseTimestamp(value string) (time.Time, bool, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false, false
	}
	for _, l := range timestampLayouts {
		if t, err := time.Parse(l.layout, value); err == nil {
			return t, l.hasClock, true
		}
	}
	return time.Time{}, false, false
}

// ParsedTime returns the record time from Timestamp or Date+Time.
func (r *ActivityRecord) ParsedTime() (time.Time, bool) {
	if t, _, ok := parseTimestamp(r.Timestamp); ok {
		return t, true
	}
	if r.Date != "" {
		if t, _, ok := parseTimestamp(strings.TrimSpace(r.Date + " " + r.Time)); ok {
			return t, true
		}
		if t, _, ok := parseTimestamp(r.Date); ok {
			return t, true
		}
	}
	return time.Time{}, false
}

var leadingHour = regexp.MustCompile(`^\s*(\d{1,2})(?::(\d{1,2}))?(?::\d{1,2})?\s*([AaPp][Mm])?`)

// ExtractHour parses a leading "H", "H:mm" or "H:mm AM" pattern from free text.
func ExtractHour(text string) (int, bool) {
	m := leadingHour.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	hour, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	if m[2] != "" {
		if minute, err := strconv.Atoi(m[2]); err != nil || minute > 59 {
			return 0, false
		}
	}
	switch strings.ToLower(m[3]) {
	case "am":
		if hour < 1 || hour > 12 {
			return 0, false
		}
		if hour == 12 {
			hour = 0
		}
	case "pm":
		if hour < 1 || hour > 12 {
			return 0, false
		}
		if hour != 12 {
			hour += 12
		}
	}
	if hour < 0 || hour > 23 {
		return 0, false
	}
	return hour, true
}

// HourOfDay resolves the hour (0-23) of the record.
//
// Resolution order: explicit Hour field, a timestamp carrying a clock,
// Date + Time, then a leading hour in the free-text Time field. A record
// whose hour cannot be resolved reports false and must be excluded from
// time-based statistics (it is never treated as hour 0).
func (r *ActivityRecord) HourOfDay() (int, bool) {
	if r.Hour != nil && *r.Hour >= 0 && *r.Hour <= 23 {
		return *r.Hour, true
	}
	if t, hasClock, ok := parseTimestamp(r.Timestamp); ok && hasClock {
		return t.Hour(), true
	}
	if r.Date != "" && r.Time != "" {
		if t, hasClock, ok := parseTimestamp(r.Date + " " + r.Time); ok && hasClock {
			return t.Hour(), true
		}
	}
	if r.Time != "" {
		return ExtractHour(r.Time)
	}
	return 0, false
}

// Volume returns the transferred data volume, preferring DataVolume.
func (r *ActivityRecord) Volume() float64 {
	if r.DataVolume > 0 {
		return r.DataVolume
	}
	if r.FileSize > 0 {
		return r.FileSize
	}
	return 0
}

// ActivityType is the lower-cased activity category.
func (r *ActivityRecord) ActivityType() string {
	if a := strings.ToLower(strings.TrimSpace(r.Activity)); a != "" {
		return a
	}
	return UnknownValue
}

// IntegrationType is the lower-cased integration category.
func (r *ActivityRecord) IntegrationType() string {
	if i := strings.ToLower(strings.TrimSpace(r.Integration)); i != "" {
		return i
	}
	return UnknownValue
}

// IsUSB reports whether the integration mentions a USB device.
func (r *ActivityRecord) IsUSB() bool {
	return strings.Contains(strings.ToLower(r.Integration), "usb")
}

// BreachedPolicies returns the sorted policy categories with positive evidence.
func (r *ActivityRecord) BreachedPolicies() []string {
	var out []string
	for category, evidence := range r.PolicyBreaches {
		if evidenceIsPositive(evidence) {
			out = append(out, category)
		}
	}
	sort.Strings(out)
	return out
}

// HasPolicyBreach reports whether any policy category carries evidence.
func (r *ActivityRecord) HasPolicyBreach() bool {
	for _, evidence := range r.PolicyBreaches {
		if evidenceIsPositive(evidence) {
			return true
		}
	}
	return false
}

func evidenceIsPositive(evidence interface{}) bool {
	switch v := evidence.(type) {
	case nil:
		return false
	case bool:
		return v
	case string:
		s := strings.ToLower(strings.TrimSpace(v))
		return s != "" && s != "false" && s != "0" && s != "no"
	case []interface{}:
		return len(v) > 0
	case []string:
		return len(v) > 0
	case map[string]interface{}:
		return len(v) > 0
	case float64:
		return v > 0
	case float32:
		return v > 0
	case int:
		return v > 0
	case int64:
		return v > 0
	case int32:
		return v > 0
	default:
		return fmt.Sprint(v) != ""
	}
}
