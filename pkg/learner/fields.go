package learner

import (
	"sort"
	"strconv"
	"strings"

	"github.com/justinvu22/LTU-Academic-Weapon-sub002/pkg/models"
)

// FieldKind is the type of a resolved field value.
type FieldKind int

const (
	KindMissing FieldKind = iota
	KindNumber
	KindString
	KindHour
)

// FieldValue is the typed result of resolving a field path on a record.
// A missing field is not an error; indicators simply do not match it.
type FieldValue struct {
	Kind   FieldKind
	Number float64 // KindNumber and KindHour
	Text   string  // KindString
}

// Present reports whether the field resolved to a value.
func (v FieldValue) Present() bool { return v.Kind != KindMissing }

func number(n float64) FieldValue { return FieldValue{Kind: KindNumber, Number: n} }

func text(s string) FieldValue {
	if strings.TrimSpace(s) == "" {
		return FieldValue{}
	}
	return FieldValue{Kind: KindString, Text: s}
}

const policyFieldPrefix = "policiesBreached."

// fieldAccessors is the closed set of known field paths.
var fieldAccessors = map[string]func(r *models.ActivityRecord) FieldValue{
	"riskScore":      func(r *models.ActivityRecord) FieldValue { return number(r.RiskScore) },
	"dataVolume":     func(r *models.ActivityRecord) FieldValue { return number(r.Volume()) },
	"fileSize":       func(r *models.ActivityRecord) FieldValue { return number(r.FileSize) },
	"failedAttempts": func(r *models.ActivityRecord) FieldValue { return number(float64(r.FailedAttempts)) },
	"policyCount":    func(r *models.ActivityRecord) FieldValue { return number(float64(len(r.BreachedPolicies()))) },
	"hour": func(r *models.ActivityRecord) FieldValue {
		if h, ok := r.HourOfDay(); ok {
			return number(float64(h))
		}
		return FieldValue{}
	},
	"timestamp": func(r *models.ActivityRecord) FieldValue {
		if h, ok := r.HourOfDay(); ok {
			return FieldValue{Kind: KindHour, Number: float64(h)}
		}
		return FieldValue{}
	},
	"activity":      func(r *models.ActivityRecord) FieldValue { return text(strings.ToLower(r.Activity)) },
	"integration":   func(r *models.ActivityRecord) FieldValue { return text(strings.ToLower(r.Integration)) },
	"status":        func(r *models.ActivityRecord) FieldValue { return text(string(r.Status)) },
	"department":    func(r *models.ActivityRecord) FieldValue { return text(r.Department) },
	"user":          func(r *models.ActivityRecord) FieldValue { u, _ := r.ResolveUser(); return text(u) },
	"country":       func(r *models.ActivityRecord) FieldValue { return text(r.Country) },
	"managerAction": func(r *models.ActivityRecord) FieldValue { return text(r.ManagerAction) },
}

// KnownFields returns the sorted list of supported field paths, excluding
// the open-ended policiesBreached.<category> family.
func KnownFields() []string {
	out := make([]string, 0, len(fieldAccessors))
	for k := range fieldAccessors {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// IsKnownField reports whether path can be resolved.
func IsKnownField(path string) bool {
	if strings.HasPrefix(path, policyFieldPrefix) {
		return len(path) > len(policyFieldPrefix)
	}
	_, ok := fieldAccessors[path]
	return ok
}

// Field resolves path on r. policiesBreached.<category> resolves to the
// string "true" when the category carries positive evidence.
func Field(r *models.ActivityRecord, path string) FieldValue {
	if r == nil {
		return FieldValue{}
	}
	if strings.HasPrefix(path, policyFieldPrefix) {
		category := strings.TrimPrefix(path, policyFieldPrefix)
		for _, c := range r.BreachedPolicies() {
			if strings.EqualFold(c, category) {
				return text("true")
			}
		}
		return FieldValue{}
	}
	if accessor, ok := fieldAccessors[path]; ok {
		return accessor(r)
	}
	return FieldValue{}
}

func toFloat64(val interface{}) (float64, bool) {
	switch v := val.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint64:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func toString(val interface{}) string {
	switch v := val.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case bool:
		return strconv.FormatBool(v)
	default:
		if f, ok := toFloat64(v); ok {
			return strconv.FormatFloat(f, 'f', -1, 64)
		}
		return ""
	}
}
