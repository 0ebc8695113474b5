package rules

import (
	"fmt"

	"github.com/justinvu22/LTU-Academic-Weapon-sub002/pkg/config"
	"github.com/justinvu22/LTU-Academic-Weapon-sub002/pkg/models"
)

// VolumeDetector computes a z-score of the record volume against the
// global volume statistics.
type VolumeDetector struct {
	ZThreshold float64 // z at or below this contributes nothing
	ZRange     float64 // z span mapped onto [0,1] above the threshold
	MinSamples int
}

func NewVolumeDetector() *VolumeDetector {
	return &VolumeDetector{ZThreshold: 2, ZRange: 6, MinSamples: 2}
}

func (d *VolumeDetector) Name() string { return "Volume" }

func (d *VolumeDetector) Description() string {
	return "Flags data volumes statistically far above the batch mean."
}

func (d *VolumeDetector) Type() models.AnomalyType { return models.AnomalyVolumeSpike }

func (d *VolumeDetector) Weight() float64 { return 0.15 }

func (d *VolumeDetector) Enabled(opts config.Options) bool { return opts.EnableVolumeAnalysis }

func (d *VolumeDetector) Evaluate(r *models.ActivityRecord, ctx *Context) Finding {
	v := r.Volume()
	if v <= 0 {
		return Finding{}
	}
	if ctx.Global == nil {
		return Finding{Notes: []string{"no global baseline"}}
	}

	stats := ctx.Global.DataVolume
	if len(stats.Samples) < d.MinSamples {
		return Finding{Notes: []string{"insufficient volume samples"}}
	}
	if stats.StdDev == 0 {
		return Finding{Notes: []string{"zero volume deviation"}}
	}

	z := (v - stats.Mean) / stats.StdDev
	if z <= d.ZThreshold {
		return Finding{}
	}
	return Finding{
		Score:   Clamp01((z - d.ZThreshold) / d.ZRange),
		Factors: []string{fmt.Sprintf("data volume spike (z-score %.1f)", z)},
	}
}
