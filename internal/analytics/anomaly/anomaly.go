// Package anomaly screens an input rate series for quotes that look like
// feed errors before the series is used for training: day-over-day moves far
// outside the usual range and stale runs where the quote does not change.
package anomaly

import (
	"fmt"
	"sort"
	"time"

	"github.com/ratecast/ratecast/internal/analytics"
)

// AnomalyType represents the type of anomaly detected
type AnomalyType string

const (
	AnomalyTypeSpike AnomalyType = "spike" // Sudden increase
	AnomalyTypeDrop  AnomalyType = "drop"  // Sudden decrease
	AnomalyTypeStale AnomalyType = "stale" // Quote repeated over a long run
)

// Anomaly is one flagged observation
type Anomaly struct {
	Time      time.Time   `json:"time"`
	Value     float64     `json:"value"`
	Change    float64     `json:"change"`
	Score     float64     `json:"score"` // higher is more abnormal
	Type      AnomalyType `json:"type"`
	Algorithm string      `json:"algorithm"`
}

// DetectorConfig holds configuration for anomaly detection
type DetectorConfig struct {
	// Threshold is the z-score for "zscore" and the IQR multiplier for "iqr"
	Threshold float64

	// StaleRun is the number of identical consecutive quotes flagged as stale.
	// Zero disables the stale check.
	StaleRun int

	// MinDataPoints is the number of changes required before detecting
	MinDataPoints int
}

// DefaultConfig returns default detector configuration
func DefaultConfig() DetectorConfig {
	return DetectorConfig{
		Threshold:     4.0,
		StaleRun:      10,
		MinDataPoints: 30,
	}
}

// Detector flags day-over-day changes. changes[i] is the move into
// observation i+1 of the series.
type Detector interface {
	Name() string
	Detect(changes []float64, config DetectorConfig) []Result
}

// Result contains the detection result for a single change
type Result struct {
	Index int // index into changes
	Score float64
	Type  AnomalyType
}

var detectorRegistry = make(map[string]Detector)

// RegisterDetector adds a detector to the registry
func RegisterDetector(name string, detector Detector) {
	detectorRegistry[name] = detector
}

// GetDetector returns a detector by name
func GetDetector(name string) (Detector, error) {
	if detector, ok := detectorRegistry[name]; ok {
		return detector, nil
	}
	return nil, fmt.Errorf("unknown anomaly detector: %s", name)
}

// ListDetectors returns the registered detector names, sorted
func ListDetectors() []string {
	names := make([]string, 0, len(detectorRegistry))
	for name := range detectorRegistry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Scan runs the named detector over the day-over-day changes of series and
// appends stale runs. Results are ordered by time.
func Scan(series analytics.Series, algorithm string, config DetectorConfig) ([]Anomaly, error) {
	detector, err := GetDetector(algorithm)
	if err != nil {
		return nil, err
	}
	if len(series) < 2 {
		return nil, nil
	}

	changes := make([]float64, len(series)-1)
	for i := 1; i < len(series); i++ {
		changes[i-1] = series[i].Value - series[i-1].Value
	}

	var out []Anomaly
	if len(changes) >= config.MinDataPoints {
		for _, r := range detector.Detect(changes, config) {
			p := series[r.Index+1]
			out = append(out, Anomaly{
				Time:      p.Time,
				Value:     p.Value,
				Change:    changes[r.Index],
				Score:     r.Score,
				Type:      r.Type,
				Algorithm: detector.Name(),
			})
		}
	}
	out = append(out, staleRuns(series, changes, config.StaleRun)...)

	sort.SliceStable(out, func(i, j int) bool { return out[i].Time.Before(out[j].Time) })
	return out, nil
}

// staleRuns flags the observation that completes each run of minRun
// identical quotes, once per run.
func staleRuns(series analytics.Series, changes []float64, minRun int) []Anomaly {
	if minRun < 2 {
		return nil
	}
	var out []Anomaly
	run := 1
	for i, c := range changes {
		if c != 0 {
			run = 1
			continue
		}
		run++
		if run == minRun {
			p := series[i+1]
			out = append(out, Anomaly{
				Time:      p.Time,
				Value:     p.Value,
				Score:     float64(run),
				Type:      AnomalyTypeStale,
				Algorithm: "stale",
			})
		}
	}
	return out
}

func directional(change float64) AnomalyType {
	if change > 0 {
		return AnomalyTypeSpike
	}
	return AnomalyTypeDrop
}
