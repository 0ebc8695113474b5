package rules

import (
	"fmt"

	"github.com/justinvu22/LTU-Academic-Weapon-sub002/pkg/config"
	"github.com/justinvu22/LTU-Academic-Weapon-sub002/pkg/models"
)

// BurstDetector reads the batch burst map for the record's hour.
// An hour absent from the map means "no information", which scores 0.
type BurstDetector struct {
	BurstScore    float64
	CriticalScore float64
}

func NewBurstDetector() *BurstDetector {
	return &BurstDetector{BurstScore: 0.5, CriticalScore: 0.3}
}

func (d *BurstDetector) Name() string { return "TemporalBurst" }

func (d *BurstDetector) Description() string {
	return "Flags records in an hour whose volume far exceeds the batch average."
}

func (d *BurstDetector) Type() models.AnomalyType { return models.AnomalyTemporalBurst }

func (d *BurstDetector) Weight() float64 { return 0.35 }

func (d *BurstDetector) Enabled(opts config.Options) bool { return opts.EnableBurstDetection }

func (d *BurstDetector) Evaluate(r *models.ActivityRecord, ctx *Context) Finding {
	hour, ok := r.HourOfDay()
	if !ok {
		return Finding{Notes: []string{"hour unknown, burst analysis skipped"}}
	}
	info, ok := ctx.Bursts.Lookup(hour)
	if !ok {
		return Finding{Notes: []string{fmt.Sprintf("no burst information for %02d:00", hour)}}
	}

	var f Finding
	if info.IsBurst {
		f.Score += d.BurstScore
		f.Factors = append(f.Factors, fmt.Sprintf("temporal burst at %02d:00 (%.1fx the hourly average)", hour, info.Multiplier))
		if info.IsCritical {
			f.Score += d.CriticalScore
			f.Factors = append(f.Factors, "burst inside critical monitoring window")
		}
	}
	f.Score = Clamp01(f.Score)
	return f
}
