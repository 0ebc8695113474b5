package rules

import (
	"github.com/justinvu22/LTU-Academic-Weapon-sub002/pkg/baseline"
	"github.com/justinvu22/LTU-Academic-Weapon-sub002/pkg/config"
	"github.com/justinvu22/LTU-Academic-Weapon-sub002/pkg/models"
)

// Detector is the contract every scorer sub-detector implements.
//
// Detectors are pure: they read the record and the shared, already
// finalized Context and return a score in [0,1] with the factors that
// produced it. They never mutate the context, so the scorer may run
// them concurrently for independent records.
type Detector interface {
	// Name is the unique detector name (e.g. "TimePattern").
	Name() string

	// Description is a short human-readable summary.
	Description() string

	// Type is the anomaly type reported when this detector dominates.
	Type() models.AnomalyType

	// Weight is the fixed fusion weight.
	Weight() float64

	// Enabled reports whether the options switch this detector on.
	Enabled(opts config.Options) bool

	// Evaluate scores one record.
	Evaluate(record *models.ActivityRecord, ctx *Context) Finding
}

// Finding is the output of a single detector.
type Finding struct {
	Score   float64
	Factors []string

	// Notes carry insufficient-data diagnostics. They are logged, not
	// reported as contributing factors.
	Notes []string
}

// Context is the read-only analysis state shared by all detectors.
type Context struct {
	Options config.Options
	Global  *baseline.GlobalBaseline
	Users   map[string]*baseline.UserBaseline
	Bursts  baseline.BurstMap
}

// UserBaseline returns the profile of user, or nil.
func (c *Context) UserBaseline(user string) *baseline.UserBaseline {
	if c == nil || c.Users == nil {
		return nil
	}
	return c.Users[user]
}

// HasUserHistory reports whether ub is large enough for user-level analysis.
func (c *Context) HasUserHistory(ub *baseline.UserBaseline) bool {
	return ub != nil && ub.TotalActivities >= c.Options.MinimumBaselineSize
}

// Default returns the five sub-detectors in fusion order.
func Default() []Detector {
	return []Detector{
		NewTimePatternDetector(),
		NewBurstDetector(),
		NewVolumeDetector(),
		NewBehaviorDetector(),
		NewIntegrationDetector(),
	}
}
