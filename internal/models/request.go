package models

import (
	"fmt"
	"time"

	"github.com/ratecast/ratecast/internal/analytics"
)

// PointInput is one observation sent inline with a forecast request
type PointInput struct {
	Time  string   `json:"time" validate:"required"` // YYYY-MM-DD or RFC3339
	Value *float64 `json:"value" validate:"required"`
}

// ForecastRequest represents the POST /v1/forecasts body. Zero values fall
// back to the server configuration.
type ForecastRequest struct {
	Strategy         string       `json:"strategy,omitempty" validate:"omitempty,max=32"`
	Horizon          int          `json:"horizon,omitempty" validate:"gte=0,lte=365"`
	Step             int          `json:"step,omitempty" validate:"gte=0,lte=365"`
	FeatureSelection *bool        `json:"feature_selection,omitempty"`
	Points           []PointInput `json:"points,omitempty" validate:"omitempty,max=100000,dive"`
}

// ListQuery holds the GET /v1/forecasts query parameters
type ListQuery struct {
	Limit int `query:"limit" validate:"gte=0,lte=1000"`
}

// Series converts the inline points into a series
func (r *ForecastRequest) Series() (analytics.Series, error) {
	if len(r.Points) == 0 {
		return nil, nil
	}
	series := make(analytics.Series, len(r.Points))
	for i, p := range r.Points {
		ts, err := ParseTime(p.Time)
		if err != nil {
			return nil, fmt.Errorf("points[%d].time: %w", i, err)
		}
		series[i] = analytics.TimeSeriesPoint{Time: ts, Value: *p.Value}
	}
	return series, nil
}

// ParseTime accepts a date (YYYY-MM-DD, UTC) or an RFC3339 timestamp
func ParseTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%q is neither YYYY-MM-DD nor RFC3339", s)
	}
	return t, nil
}
