package rules

import (
	"fmt"

	"github.com/justinvu22/LTU-Academic-Weapon-sub002/pkg/config"
	"github.com/justinvu22/LTU-Academic-Weapon-sub002/pkg/models"
)

// BehaviorDetector scores activity types the user rarely performs.
type BehaviorDetector struct {
	// Sensitivity scales the frequency; a type covering 1/Sensitivity
	// of the user's activity or more scores 0.
	Sensitivity float64
}

func NewBehaviorDetector() *BehaviorDetector {
	return &BehaviorDetector{Sensitivity: 10}
}

func (d *BehaviorDetector) Name() string { return "Behavior" }

func (d *BehaviorDetector) Description() string {
	return "Flags activity types that are rare in the user's own history."
}

func (d *BehaviorDetector) Type() models.AnomalyType { return models.AnomalyBehavioralDeviation }

func (d *BehaviorDetector) Weight() float64 { return 0.15 }

func (d *BehaviorDetector) Enabled(opts config.Options) bool { return opts.EnableBehaviorAnalysis }

func (d *BehaviorDetector) Evaluate(r *models.ActivityRecord, ctx *Context) Finding {
	ub := ctx.UserBaseline(r.User)
	if !ctx.HasUserHistory(ub) {
		return Finding{Notes: []string{"user baseline too small for behavior analysis"}}
	}

	activity := r.ActivityType()
	freq := ratio(ub.ActivityTypes[activity], ub.TotalActivities)
	score := 1 - clamp(freq*d.Sensitivity, 0, 1)
	if score <= 0 {
		return Finding{}
	}
	return Finding{
		Score:   score,
		Factors: []string{fmt.Sprintf("rare activity for user: %s (%.1f%% of their activity)", activity, freq*100)},
	}
}
