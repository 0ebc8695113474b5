package geoip

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/justinvu22/LTU-Academic-Weapon-sub002/pkg/models"
)

func TestNewServiceMissingDatabase(t *testing.T) {
	_, err := NewService(filepath.Join(t.TempDir(), "missing.mmdb"), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to open city database")
}

func TestCountryRejectsInvalidIP(t *testing.T) {
	s := &Service{logger: zap.NewNop()}
	_, err := s.Country("not-an-ip")
	assert.ErrorIs(t, err, ErrInvalidIP)
	assert.NoError(t, s.Close())
}

func TestEnrich(t *testing.T) {
	lookup := func(ip string) (string, error) {
		switch ip {
		case "81.2.69.142":
			return "GB", nil
		case "10.0.0.1":
			return "", nil
		default:
			return "", errors.New("not found")
		}
	}

	records := []models.ActivityRecord{
		{ID: "a", SourceIP: "81.2.69.142"},
		{ID: "b", SourceIP: "81.2.69.142", Country: "US"},
		{ID: "c"},
		{ID: "d", SourceIP: "10.0.0.1"},
		{ID: "e", SourceIP: "203.0.113.9"},
	}

	n := enrich(records, lookup, zap.NewNop())
	assert.Equal(t, 1, n)
	assert.Equal(t, "GB", records[0].Country)
	assert.Equal(t, "US", records[1].Country)
	assert.Empty(t, records[2].Country)
	assert.Empty(t, records[3].Country)
	assert.Empty(t, records[4].Country)
}
