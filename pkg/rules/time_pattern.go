package rules

import (
	"fmt"

	"github.com/justinvu22/LTU-Academic-Weapon-sub002/pkg/config"
	"github.com/justinvu22/LTU-Academic-Weapon-sub002/pkg/models"
)

// TimePatternDetector scores the hour of day of a record against the
// critical window, the user's own hour histogram and the global one.
type TimePatternDetector struct {
	CriticalHourScore float64 // flat score inside the critical window
	RareHourScore     float64 // max score for an hour the user rarely works
	RareHourFrequency float64 // user hour share below which the hour is rare
	BusyHourScore     float64 // score for a globally overloaded hour
	BusyHourFactor    float64 // multiple of the uniform 1/24 share
}

// NewTimePatternDetector creates the detector with its standard constants.
func NewTimePatternDetector() *TimePatternDetector {
	return &TimePatternDetector{
		CriticalHourScore: 0.3,
		RareHourScore:     0.4,
		RareHourFrequency: 0.02,
		BusyHourScore:     0.2,
		BusyHourFactor:    3,
	}
}

func (d *TimePatternDetector) Name() string { return "TimePattern" }

func (d *TimePatternDetector) Description() string {
	return "Flags activity in critical hours or in hours the user rarely works."
}

func (d *TimePatternDetector) Type() models.AnomalyType { return models.AnomalyUnusualTime }

func (d *TimePatternDetector) Weight() float64 { return 0.25 }

func (d *TimePatternDetector) Enabled(opts config.Options) bool { return opts.EnableTimeAnalysis }

func (d *TimePatternDetector) Evaluate(r *models.ActivityRecord, ctx *Context) Finding {
	hour, ok := r.HourOfDay()
	if !ok {
		return Finding{Notes: []string{"hour unknown, time analysis skipped"}}
	}

	var f Finding
	if ctx.Options.IsCriticalHour(hour) {
		f.Score += d.CriticalHourScore
		f.Factors = append(f.Factors, fmt.Sprintf("activity during critical hour %02d:00", hour))
	}

	ub := ctx.UserBaseline(r.User)
	if ctx.HasUserHistory(ub) {
		freq := ub.HourFrequency(hour)
		if freq < d.RareHourFrequency {
			f.Score += d.RareHourScore * (1 - freq/d.RareHourFrequency)
			f.Factors = append(f.Factors, fmt.Sprintf("unusual hour for user (%.1f%% of their activity at %02d:00)", freq*100, hour))
		}
	} else {
		f.Notes = append(f.Notes, "user baseline too small for hour analysis")
	}

	if share := ctx.Global.HourShare(hour); share > d.BusyHourFactor/24 {
		f.Score += d.BusyHourScore
		f.Factors = append(f.Factors, fmt.Sprintf("hour %02d:00 is disproportionately active (%.0f%% of all activity)", hour, share*100))
	}

	f.Score = Clamp01(f.Score)
	return f
}
