package rules

import (
	"fmt"
	"strings"

	"github.com/justinvu22/LTU-Academic-Weapon-sub002/pkg/baseline"
	"github.com/justinvu22/LTU-Academic-Weapon-sub002/pkg/config"
	"github.com/justinvu22/LTU-Academic-Weapon-sub002/pkg/models"
)

// IntegrationDetector scores the channel a record went through.
type IntegrationDetector struct {
	USBScore        float64
	FirstUSBScore   float64
	RareScore       float64
	RareIntegration float64 // user share below which an integration is rare
}

func NewIntegrationDetector() *IntegrationDetector {
	return &IntegrationDetector{
		USBScore:        0.3,
		FirstUSBScore:   0.4,
		RareScore:       0.2,
		RareIntegration: 0.05,
	}
}

func (d *IntegrationDetector) Name() string { return "Integration" }

func (d *IntegrationDetector) Description() string {
	return "Flags USB transfers, first USB use and integrations the user rarely uses."
}

func (d *IntegrationDetector) Type() models.AnomalyType { return models.AnomalyUnusualIntegration }

func (d *IntegrationDetector) Weight() float64 { return 0.10 }

func (d *IntegrationDetector) Enabled(opts config.Options) bool {
	return opts.EnableIntegrationAnalysis
}

func (d *IntegrationDetector) Evaluate(r *models.ActivityRecord, ctx *Context) Finding {
	var f Finding
	ub := ctx.UserBaseline(r.User)

	if r.IsUSB() {
		f.Score += d.USBScore
		f.Factors = append(f.Factors, "USB device integration")

		// The baseline already contains this record, so one USB record
		// means this is the first.
		if usbRecords(ub) <= 1 {
			f.Score += d.FirstUSBScore
			f.Factors = append(f.Factors, "first USB use for user")
		}
	}

	if ub != nil && ub.TotalActivities > 0 {
		integration := r.IntegrationType()
		if freq := ub.IntegrationFrequency(integration); freq < d.RareIntegration {
			f.Score += d.RareScore
			f.Factors = append(f.Factors, fmt.Sprintf("rarely used integration: %s (%.1f%% of their activity)", integration, freq*100))
		}
	}

	f.Score = Clamp01(f.Score)
	return f
}

func usbRecords(ub *baseline.UserBaseline) int {
	if ub == nil {
		return 0
	}
	n := 0
	for integration, count := range ub.IntegrationTypes {
		if strings.Contains(integration, "usb") {
			n += count
		}
	}
	return n
}
