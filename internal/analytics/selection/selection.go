// Package selection reduces a feature matrix to its most useful columns.
package selection

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/ratecast/ratecast/internal/analytics/features"
	"github.com/ratecast/ratecast/internal/analytics/model"
)

// ErrTimeout is returned by a selector wrapped with WithTimeout when the
// deadline elapses first.
var ErrTimeout = errors.New("feature selection timed out")

// Selector returns the subset of X's columns to keep for the given target and horizon
type Selector interface {
	Select(x *features.Frame, y []float64, horizon int) ([]string, error)
}

// SelectorFunc adapts a function to Selector
type SelectorFunc func(x *features.Frame, y []float64, horizon int) ([]string, error)

// Select calls f
func (f SelectorFunc) Select(x *features.Frame, y []float64, horizon int) ([]string, error) {
	return f(x, y, horizon)
}

// ModelSelector fits a boosted model and keeps columns whose importance is at
// least the median importance.
type ModelSelector struct {
	seed        int64
	shortCutoff int
	newModel    func(horizon int) model.Regressor
}

// NewModelSelector creates a selector whose model depends on the horizon:
// horizons up to shortCutoff use a larger, column-subsampled ensemble.
func NewModelSelector(seed int64, shortCutoff int) *ModelSelector {
	s := &ModelSelector{seed: seed, shortCutoff: shortCutoff}
	s.newModel = func(horizon int) model.Regressor {
		return model.NewGBM(s.ParamsFor(horizon))
	}
	return s
}

// ParamsFor returns the selector model hyperparameters for a horizon
func (s *ModelSelector) ParamsFor(horizon int) model.GBMParams {
	p := model.DefaultGBMParams(s.seed)
	if horizon <= s.shortCutoff {
		p.NumEstimators = 900
		p.LearningRate = 0.05
		p.NumLeaves = 32
		p.MaxDepth = -1
		p.FeatureFraction = 0.2
		p.LambdaL1 = 3
		p.LambdaL2 = 1
		p.MinSplitGain = 0.01
		p.MinChildWeight = 40
		return p
	}
	p.NumEstimators = 100
	p.LearningRate = 0.025
	p.MaxDepth = -1
	p.NumLeaves = 31
	return p
}

// Select implements Selector
func (s *ModelSelector) Select(x *features.Frame, y []float64, horizon int) ([]string, error) {
	if x.Len() == 0 {
		return nil, errors.New("empty feature matrix")
	}
	m := s.newModel(horizon)
	if err := m.Fit(x.Rows(), y); err != nil {
		return nil, fmt.Errorf("selector fit: %w", err)
	}
	imp, ok := m.(model.Importancer)
	if !ok {
		return nil, fmt.Errorf("model %s does not expose feature importance", m.Name())
	}
	return AboveMedian(x.Columns(), imp.FeatureImportance())
}

// AboveMedian keeps the columns whose importance is >= the median, in column order
func AboveMedian(columns []string, importance []float64) ([]string, error) {
	if len(columns) != len(importance) {
		return nil, fmt.Errorf("importance length %d does not match %d columns", len(importance), len(columns))
	}
	if len(columns) == 0 {
		return nil, errors.New("no columns to select from")
	}
	sorted := make([]float64, len(importance))
	copy(sorted, importance)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	median := sorted[mid]
	if len(sorted)%2 == 0 {
		median = (sorted[mid-1] + sorted[mid]) / 2
	}

	keep := make([]string, 0, len(columns))
	for i, c := range columns {
		if importance[i] >= median {
			keep = append(keep, c)
		}
	}
	return keep, nil
}

// WithTimeout bounds a selector's running time. The wrapped call keeps
// running in the background after the deadline; its result is discarded.
func WithTimeout(sel Selector, timeout time.Duration) Selector {
	if timeout <= 0 {
		return sel
	}
	return SelectorFunc(func(x *features.Frame, y []float64, horizon int) ([]string, error) {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		type outcome struct {
			cols []string
			err  error
		}
		done := make(chan outcome, 1)
		go func() {
			cols, err := sel.Select(x, y, horizon)
			done <- outcome{cols: cols, err: err}
		}()

		select {
		case out := <-done:
			return out.cols, out.err
		case <-ctx.Done():
			return nil, fmt.Errorf("%w after %s", ErrTimeout, timeout)
		}
	})
}
