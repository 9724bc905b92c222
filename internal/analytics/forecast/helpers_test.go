package forecast

import (
	"errors"
	"math"
	"time"

	"github.com/ratecast/ratecast/internal/analytics"
	"github.com/ratecast/ratecast/internal/analytics/features"
	"github.com/ratecast/ratecast/internal/analytics/model"
)

// Common test data and helpers for all forecast tests

var testBaseTime = time.Date(2015, 4, 1, 0, 0, 0, 0, time.UTC)

// generateSeries creates n daily points with values from fn
func generateSeries(n int, fn func(i int) float64) analytics.Series {
	s := make(analytics.Series, n)
	for i := range s {
		s[i] = analytics.TimeSeriesPoint{
			Time:  testBaseTime.AddDate(0, 0, i),
			Value: fn(i),
		}
	}
	return s
}

// generateLinearSeries creates a series increasing by 1.0 per day
func generateLinearSeries(n int) analytics.Series {
	return generateSeries(n, func(i int) float64 { return 100 + float64(i) })
}

// generateRateSeries creates a trending, oscillating series resembling a daily rate
func generateRateSeries(n int) analytics.Series {
	return generateSeries(n, func(i int) float64 {
		x := float64(i)
		return 60 + 0.02*x + 1.5*math.Sin(2*math.Pi*x/30) + 0.4*math.Sin(0.7*x)
	})
}

func testAssembler() *features.Assembler {
	return features.NewAssembler(features.DefaultConfig(), nil)
}

func ridgeDeps() Deps {
	return Deps{
		Assembler: testAssembler(),
		NewModel:  func() model.Regressor { return model.NewRidge(1e-4) },
	}
}

func smallGBMParams() model.GBMParams {
	p := model.DefaultGBMParams(47)
	p.NumEstimators = 30
	p.LearningRate = 0.1
	p.NumLeaves = 8
	p.MaxDepth = 5
	p.MinDataInLeaf = 5
	p.FeatureFraction = 0.5
	return p
}

func gbmDeps() Deps {
	params := smallGBMParams()
	return Deps{
		Assembler: testAssembler(),
		NewModel:  func() model.Regressor { return model.NewGBM(params) },
	}
}

var errStubFit = errors.New("stub fit failure")

// stubRegressor predicts a constant and records every fit
type stubRegressor struct {
	value   float64
	fail    bool
	fitRows *[]int
	targets *[][]float64
}

func (s *stubRegressor) Name() string { return "stub" }

func (s *stubRegressor) Fit(x [][]float64, y []float64) error {
	if s.fail {
		return errStubFit
	}
	if s.fitRows != nil {
		*s.fitRows = append(*s.fitRows, len(x))
	}
	if s.targets != nil {
		*s.targets = append(*s.targets, append([]float64(nil), y...))
	}
	return nil
}

func (s *stubRegressor) Predict(x [][]float64) ([]float64, error) {
	out := make([]float64, len(x))
	for i := range out {
		out[i] = s.value
	}
	return out, nil
}
