package baseline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justinvu22/LTU-Academic-Weapon-sub002/pkg/models"
)

func TestActionHistorySuggest(t *testing.T) {
	var records []models.ActivityRecord
	for i := 0; i < 4; i++ {
		records = append(records, models.ActivityRecord{Hour: hour(2), RiskScore: 2500, Integration: "usb", ManagerAction: "Escalated"})
	}
	records = append(records,
		models.ActivityRecord{Hour: hour(3), RiskScore: 3000, Integration: "usb", ManagerAction: "Authorized"},
		models.ActivityRecord{Hour: hour(3), RiskScore: 3000, Integration: "usb"},
		models.ActivityRecord{Hour: hour(14), RiskScore: 10, Integration: "email", ManagerAction: "Authorized"},
	)

	h := BuildActionHistory(records, 2000)
	assert.Equal(t, 2, h.Len())

	rec := models.ActivityRecord{Hour: hour(1), RiskScore: 2100, Integration: "USB"}
	s, ok := h.Suggest(&rec, 5, 0.6)
	require.True(t, ok)
	assert.Equal(t, "Escalated", s.Action)
	assert.Equal(t, 4, s.Count)
	assert.Equal(t, 5, s.Total)
	assert.InDelta(t, 0.8, s.Share, 1e-9)

	_, ok = h.Suggest(&rec, 6, 0.6)
	assert.False(t, ok, "not enough observations")

	_, ok = h.Suggest(&rec, 5, 0.8)
	assert.False(t, ok, "share must exceed the threshold")

	email := models.ActivityRecord{Hour: hour(15), RiskScore: 10, Integration: "email"}
	_, ok = h.Suggest(&email, 5, 0.6)
	assert.False(t, ok)
}

func TestActionHistoryKeyBuckets(t *testing.T) {
	h := BuildActionHistory(nil, 2000)

	tests := []struct {
		name   string
		record models.ActivityRecord
		want   string
	}{
		{"night critical usb", models.ActivityRecord{Hour: hour(2), RiskScore: 2000, Integration: "usb"}, "night|critical|usb"},
		{"morning high", models.ActivityRecord{Hour: hour(7), RiskScore: 1200, Integration: "cloud"}, "morning|high|cloud"},
		{"afternoon medium", models.ActivityRecord{Hour: hour(13), RiskScore: 600}, "afternoon|medium|unknown"},
		{"unknown hour low", models.ActivityRecord{RiskScore: 1, Integration: "email"}, "unknown|low|email"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, h.Key(&tt.record))
		})
	}
}
