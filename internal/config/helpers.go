package config

import (
	"fmt"
	"net"
	"regexp"
	"strconv"
	"time"

	"github.com/ratecast/ratecast/internal/analytics/features"
	"github.com/ratecast/ratecast/internal/analytics/model"
)

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Logging.Level == "debug" && c.Logging.Format == "console"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Logging.Level == "info" && c.Logging.Format == "json"
}

// GetServerAddress returns the HTTP listen address
func (c *Config) GetServerAddress() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.HTTPPort))
}

// AssemblerConfig converts the forecast section into a feature layout
func (c *ForecastConfig) AssemblerConfig() features.Config {
	return features.Config{
		LagOffsets:          append([]int(nil), c.LagOffsets...),
		RollingOffsets:      append([]int(nil), c.RollingOffsets...),
		StationarityWindows: append(features.WindowSet(nil), c.StationarityWindows...),
		RowCaps: features.RowCapPolicy{
			ShortHorizonMax: c.RowCaps.ShortHorizonMax,
			LongHorizonMin:  c.RowCaps.LongHorizonMin,
			DefaultCap:      c.RowCaps.Default,
			MidCap:          c.RowCaps.Mid,
			RecursiveCap:    c.RowCaps.Recursive,
		},
	}
}

// Params converts the model section into model parameters seeded with seed
func (c *ModelConfig) Params(seed int64) model.Params {
	return model.Params{
		Type: c.Type,
		GBM: model.GBMParams{
			NumEstimators:   c.NumEstimators,
			LearningRate:    c.LearningRate,
			MaxDepth:        c.MaxDepth,
			NumLeaves:       c.NumLeaves,
			MinChildWeight:  c.MinChildWeight,
			MinDataInLeaf:   c.MinDataInLeaf,
			FeatureFraction: c.FeatureFraction,
			LambdaL1:        c.LambdaL1,
			LambdaL2:        c.LambdaL2,
			MinSplitGain:    c.MinSplitGain,
			MaxBin:          c.MaxBin,
			Seed:            seed,
		},
		RidgeAlpha: c.RidgeAlpha,
	}
}

// StartTime returns the configured start date in the data timezone.
// The zero time is returned when no start date is set.
func (c *DataConfig) StartTime() (time.Time, error) {
	if c.StartDate == "" {
		return time.Time{}, nil
	}
	return time.ParseInLocation(time.DateOnly, c.StartDate, c.Location())
}

// Location returns the configured timezone for parsing dates
// Returns UTC if not configured or invalid
// Supports formats:
//   - IANA timezone names: "Europe/Moscow", "America/New_York", "UTC"
//   - Offset format: "+03:00", "-05:00", "+00:00"
func (c *DataConfig) Location() *time.Location {
	if c.Timezone == "" {
		return time.UTC
	}

	// Try parsing as IANA timezone name first
	loc, err := time.LoadLocation(c.Timezone)
	if err == nil {
		return loc
	}

	// Try parsing as offset format (+03:00, -05:00, etc.)
	loc, err = parseOffsetTimezone(c.Timezone)
	if err == nil {
		return loc
	}

	// Default to UTC if parsing fails
	return time.UTC
}

var offsetPattern = regexp.MustCompile(`^([+-])(\d{2}):(\d{2})$`)

// parseOffsetTimezone parses timezone offset format like "+03:00", "-05:00"
func parseOffsetTimezone(offset string) (*time.Location, error) {
	matches := offsetPattern.FindStringSubmatch(offset)
	if len(matches) != 4 {
		return nil, fmt.Errorf("invalid offset format: %s", offset)
	}

	sign := 1
	if matches[1] == "-" {
		sign = -1
	}

	hours, err := strconv.Atoi(matches[2])
	if err != nil {
		return nil, fmt.Errorf("invalid hours: %s", matches[2])
	}

	minutes, err := strconv.Atoi(matches[3])
	if err != nil {
		return nil, fmt.Errorf("invalid minutes: %s", matches[3])
	}

	offsetSeconds := sign * (hours*3600 + minutes*60)
	return time.FixedZone(offset, offsetSeconds), nil
}
