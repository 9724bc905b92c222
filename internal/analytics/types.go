// Package analytics provides the common time-series types shared by the
// feature builders, the models and the forecasting strategies.
package analytics

import (
	"fmt"
	"math"
	"time"
)

// TimeSeriesPoint represents a single observation with time and value.
type TimeSeriesPoint struct {
	Time  time.Time
	Value float64
}

// Series is an ordered sequence of observations, strictly increasing by time.
// Gaps between timestamps are allowed.
type Series []TimeSeriesPoint

// NewSeries builds a Series from parallel time and value slices
func NewSeries(times []time.Time, values []float64) (Series, error) {
	if len(times) != len(values) {
		return nil, fmt.Errorf("times and values length mismatch: %d != %d", len(times), len(values))
	}
	s := make(Series, len(times))
	for i := range times {
		s[i] = TimeSeriesPoint{Time: times[i], Value: values[i]}
	}
	return s, nil
}

// Values extracts just the values from the series
func (s Series) Values() []float64 {
	values := make([]float64, len(s))
	for i, p := range s {
		values[i] = p.Value
	}
	return values
}

// Times extracts just the times from the series
func (s Series) Times() []time.Time {
	times := make([]time.Time, len(s))
	for i, p := range s {
		times[i] = p.Time
	}
	return times
}

// Len returns the number of observations
func (s Series) Len() int {
	return len(s)
}

// Clone returns a copy that shares no memory with s
func (s Series) Clone() Series {
	out := make(Series, len(s))
	copy(out, s)
	return out
}

// WithValues returns a copy of s with its values replaced, keeping timestamps.
func (s Series) WithValues(values []float64) (Series, error) {
	if len(values) != len(s) {
		return nil, fmt.Errorf("values length mismatch: %d != %d", len(values), len(s))
	}
	out := make(Series, len(s))
	for i, p := range s {
		out[i] = TimeSeriesPoint{Time: p.Time, Value: values[i]}
	}
	return out, nil
}

// Since returns the suffix of s starting at the first point not before t.
func (s Series) Since(t time.Time) Series {
	for i, p := range s {
		if !p.Time.Before(t) {
			return s[i:]
		}
	}
	return Series{}
}

// Validate checks ordering, uniqueness and finiteness of the observations
func (s Series) Validate() error {
	for i, p := range s {
		if math.IsNaN(p.Value) || math.IsInf(p.Value, 0) {
			return fmt.Errorf("non-finite value at %s", p.Time.Format(time.RFC3339))
		}
		if i == 0 {
			continue
		}
		prev := s[i-1].Time
		if p.Time.Equal(prev) {
			return fmt.Errorf("duplicate timestamp %s", p.Time.Format(time.RFC3339))
		}
		if p.Time.Before(prev) {
			return fmt.Errorf("timestamps not ascending at %s", p.Time.Format(time.RFC3339))
		}
	}
	return nil
}

// Mean calculates the mean of all values
func (s Series) Mean() float64 {
	if len(s) == 0 {
		return 0
	}
	sum := 0.0
	for _, p := range s {
		sum += p.Value
	}
	return sum / float64(len(s))
}
