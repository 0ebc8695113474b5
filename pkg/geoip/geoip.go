// Package geoip enriches activity records with the country of their
// source IP address using a MaxMind GeoLite2 City database.
package geoip

import (
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/oschwald/geoip2-golang"
	"go.uber.org/zap"

	"github.com/justinvu22/LTU-Academic-Weapon-sub002/pkg/models"
)

// ErrInvalidIP is returned for addresses that do not parse.
var ErrInvalidIP = errors.New("invalid ip address")

// Service resolves IP addresses against an opened .mmdb file.
type Service struct {
	cityReader *geoip2.Reader
	logger     *zap.Logger
}

// NewService opens the City database at cityDBPath.
func NewService(cityDBPath string, logger *zap.Logger) (*Service, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	cityReader, err := geoip2.Open(cityDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open city database: %w", err)
	}
	return &Service{cityReader: cityReader, logger: logger}, nil
}

// Close releases the database.
func (s *Service) Close() error {
	if s.cityReader == nil {
		return nil
	}
	return s.cityReader.Close()
}

// Country returns the ISO country code for ipAddress.
func (s *Service) Country(ipAddress string) (string, error) {
	ip := net.ParseIP(strings.TrimSpace(ipAddress))
	if ip == nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidIP, ipAddress)
	}

	record, err := s.cityReader.City(ip)
	if err != nil {
		return "", fmt.Errorf("city lookup for %s: %w", ip, err)
	}
	return record.Country.IsoCode, nil
}

// Enrich fills Country on records that carry a SourceIP but no country.
// Lookup failures leave the record unchanged. It returns the number of
// records enriched.
func (s *Service) Enrich(records []models.ActivityRecord) int {
	return enrich(records, s.Country, s.logger)
}

func enrich(records []models.ActivityRecord, lookup func(string) (string, error), logger *zap.Logger) int {
	enriched, failed := 0, 0
	for i := range records {
		r := &records[i]
		if r.Country != "" || strings.TrimSpace(r.SourceIP) == "" {
			continue
		}
		country, err := lookup(r.SourceIP)
		if err != nil || country == "" {
			failed++
			logger.Debug("Country lookup failed",
				zap.String("record_id", r.ID),
				zap.String("source_ip", r.SourceIP),
				zap.Error(err),
			)
			continue
		}
		r.Country = country
		enriched++
	}
	if failed > 0 {
		logger.Warn("Some records could not be geolocated",
			zap.Int("failed", failed),
			zap.Int("enriched", enriched),
		)
	}
	return enriched
}
