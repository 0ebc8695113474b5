package baseline

import (
	"github.com/justinvu22/LTU-Academic-Weapon-sub002/pkg/config"
	"github.com/justinvu22/LTU-Academic-Weapon-sub002/pkg/models"
)

// BurstInfo describes the activity concentration at one hour of day.
type BurstInfo struct {
	Hour       int     `json:"hour"`
	Count      int     `json:"count"`
	Multiplier float64 `json:"multiplier"`
	IsBurst    bool    `json:"isBurst"`
	IsCritical bool    `json:"isCritical"`
}

// BurstMap maps hour of day to its burst information. Hours without
// records are absent, which means "no information", not "no burst".
type BurstMap map[int]BurstInfo

// Lookup returns the burst info for hour, if any.
func (m BurstMap) Lookup(hour int) (BurstInfo, bool) {
	if m == nil {
		return BurstInfo{}, false
	}
	info, ok := m[hour]
	return info, ok
}

// DetectBursts groups records by hour and compares each hour's count with
// the batch-wide average per hour (total records / 24).
func DetectBursts(records []models.ActivityRecord, opts config.Options) BurstMap {
	bursts := make(BurstMap)
	if len(records) == 0 {
		return bursts
	}

	var counts [24]int
	for i := range records {
		if hour, ok := records[i].HourOfDay(); ok {
			counts[hour]++
		}
	}

	averagePerHour := float64(len(records)) / 24.0
	for hour, count := range counts {
		if count == 0 {
			continue
		}
		multiplier := float64(count) / averagePerHour
		isBurst := multiplier >= opts.BurstMultiplier
		bursts[hour] = BurstInfo{
			Hour:       hour,
			Count:      count,
			Multiplier: multiplier,
			IsBurst:    isBurst,
			IsCritical: isBurst && opts.IsCriticalHour(hour),
		}
	}

	return bursts
}
