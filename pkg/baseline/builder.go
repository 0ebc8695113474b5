// Package baseline builds the statistical profiles that describe "normal"
// behavior for every user and for the whole batch.
package baseline

import (
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/justinvu22/LTU-Academic-Weapon-sub002/pkg/models"
)

// maxRiskSamples bounds the rolling risk-score lists.
const maxRiskSamples = 1000

// VolumeStats holds moment statistics of a data-volume sample list.
// Mean, StdDev and Max are only meaningful after finalization.
type VolumeStats struct {
	Mean    float64   `json:"mean"`
	StdDev  float64   `json:"stdDev"`
	Max     float64   `json:"max"`
	Samples []float64 `json:"samples"`
}

func (v *VolumeStats) add(x float64) {
	v.Samples = append(v.Samples, x)
}

// finalize computes the mean and the population standard deviation.
// It needs the mean first, which is why building is two-pass.
func (v *VolumeStats) finalize() {
	n := len(v.Samples)
	if n == 0 {
		v.Mean, v.StdDev, v.Max = 0, 0, 0
		return
	}

	sum := 0.0
	max := v.Samples[0]
	for _, s := range v.Samples {
		sum += s
		if s > max {
			max = s
		}
	}
	mean := sum / float64(n)

	sq := 0.0
	for _, s := range v.Samples {
		d := s - mean
		sq += d * d
	}

	v.Mean = mean
	v.StdDev = math.Sqrt(sq / float64(n))
	v.Max = max
}

// UserBaseline is the behavioral profile of one user.
//
// Invariant: sum(HourlyActivity) + UnknownHour == TotalActivities.
type UserBaseline struct {
	User      string `json:"user"`
	Synthetic bool   `json:"synthetic"`

	HourlyActivity   [24]int        `json:"hourlyActivity"`
	UnknownHour      int            `json:"unknownHour"`
	ActivityTypes    map[string]int `json:"activityTypes"`
	IntegrationTypes map[string]int `json:"integrationTypes"`
	TotalActivities  int            `json:"totalActivities"`
	RiskScores       []float64      `json:"riskScores"`
	LastSeen         time.Time      `json:"lastSeen"`
}

func newUserBaseline(user string, synthetic bool) *UserBaseline {
	return &UserBaseline{
		User:             user,
		Synthetic:        synthetic,
		ActivityTypes:    make(map[string]int),
		IntegrationTypes: make(map[string]int),
	}
}

// HourFrequency is the share of the user's activity at the given hour.
func (u *UserBaseline) HourFrequency(hour int) float64 {
	if u == nil || u.TotalActivities == 0 || hour < 0 || hour > 23 {
		return 0
	}
	return float64(u.HourlyActivity[hour]) / float64(u.TotalActivities)
}

// ActivityFrequency is the share of the user's records with this activity type.
func (u *UserBaseline) ActivityFrequency(activity string) float64 {
	if u == nil || u.TotalActivities == 0 {
		return 0
	}
	return float64(u.ActivityTypes[activity]) / float64(u.TotalActivities)
}

// IntegrationFrequency is the share of the user's records with this integration.
func (u *UserBaseline) IntegrationFrequency(integration string) float64 {
	if u == nil || u.TotalActivities == 0 {
		return 0
	}
	return float64(u.IntegrationTypes[integration]) / float64(u.TotalActivities)
}

// GlobalBaseline is the batch-wide profile. Volume statistics are zero
// until Finalized is true.
type GlobalBaseline struct {
	HourlyActivity   [24]int        `json:"hourlyActivity"`
	UnknownHour      int            `json:"unknownHour"`
	ActivityTypes    map[string]int `json:"activityTypes"`
	IntegrationTypes map[string]int `json:"integrationTypes"`
	TotalActivities  int            `json:"totalActivities"`
	RiskScores       []float64      `json:"riskScores"`
	LastSeen         time.Time      `json:"lastSeen"`

	DataVolume   VolumeStats     `json:"dataVolume"`
	HourlyVolume [24]VolumeStats `json:"hourlyVolume"`
	Finalized    bool            `json:"finalized"`
}

func newGlobalBaseline() *GlobalBaseline {
	return &GlobalBaseline{
		ActivityTypes:    make(map[string]int),
		IntegrationTypes: make(map[string]int),
	}
}

// HourShare is the share of all records with a known hour that fall in hour.
func (g *GlobalBaseline) HourShare(hour int) float64 {
	if g == nil || hour < 0 || hour > 23 {
		return 0
	}
	known := g.TotalActivities - g.UnknownHour
	if known <= 0 {
		return 0
	}
	return float64(g.HourlyActivity[hour]) / float64(known)
}

// Builder folds a batch of records into baselines.
type Builder struct {
	logger *zap.Logger
}

// NewBuilder creates a builder. A nil logger disables logging.
func NewBuilder(logger *zap.Logger) *Builder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder{logger: logger}
}

// Build produces the global baseline and one baseline per user.
//
// Pass 1 folds every record into histograms, frequency tables and raw
// sample lists. Pass 2 finalizes the volume statistics. Every call starts
// from scratch; nothing from a previous build is merged.
//
// Records without a canonical user get one (EnsureUser), so no record is
// ever dropped from the per-user statistics. An empty batch logs a warning
// and yields an all-zero (finalized) baseline.
func (b *Builder) Build(records []models.ActivityRecord) (*GlobalBaseline, map[string]*UserBaseline) {
	global := newGlobalBaseline()
	users := make(map[string]*UserBaseline)

	if len(records) == 0 {
		b.logger.Warn("Baseline requested for an empty batch; returning zero baseline")
		global.Finalized = true
		return global, users
	}

	synthesized := 0
	for i := range records {
		r := &records[i]
		user := r.EnsureUser()
		if r.UserSynthesized {
			synthesized++
		}

		ub, ok := users[user]
		if !ok {
			ub = newUserBaseline(user, r.UserSynthesized)
			users[user] = ub
		}

		hour, hasHour := r.HourOfDay()
		activity := r.ActivityType()
		integration := r.IntegrationType()

		ub.TotalActivities++
		global.TotalActivities++
		if hasHour {
			ub.HourlyActivity[hour]++
			global.HourlyActivity[hour]++
		} else {
			ub.UnknownHour++
			global.UnknownHour++
		}
		ub.ActivityTypes[activity]++
		global.ActivityTypes[activity]++
		ub.IntegrationTypes[integration]++
		global.IntegrationTypes[integration]++

		ub.RiskScores = appendRolling(ub.RiskScores, r.RiskScore)
		global.RiskScores = appendRolling(global.RiskScores, r.RiskScore)

		if t, ok := r.ParsedTime(); ok {
			if t.After(ub.LastSeen) {
				ub.LastSeen = t
			}
			if t.After(global.LastSeen) {
				global.LastSeen = t
			}
		}

		if v := r.Volume(); v > 0 {
			global.DataVolume.add(v)
			if hasHour {
				global.HourlyVolume[hour].add(v)
			}
		}
	}

	global.DataVolume.finalize()
	for h := range global.HourlyVolume {
		global.HourlyVolume[h].finalize()
	}
	global.Finalized = true

	if synthesized > 0 {
		b.logger.Warn("Synthesized identities for records without a user",
			zap.Int("records", synthesized),
		)
	}
	if global.UnknownHour > 0 {
		b.logger.Debug("Records without a resolvable hour excluded from time statistics",
			zap.Int("records", global.UnknownHour),
		)
	}

	return global, users
}

func appendRolling(samples []float64, v float64) []float64 {
	samples = append(samples, v)
	if len(samples) > maxRiskSamples {
		samples = samples[len(samples)-maxRiskSamples:]
	}
	return samples
}
