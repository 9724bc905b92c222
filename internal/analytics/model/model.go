// Package model provides the regression learners used by the forecasting
// strategies. Any type implementing Regressor can be substituted.
package model

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFitted is returned by Predict before a successful Fit
var ErrNotFitted = errors.New("model is not fitted")

// Model type names
const (
	TypeGBM   = "gbm"
	TypeRidge = "ridge"
)

// Regressor is a supervised learner over dense float64 matrices.
// Predict returns one value per input row, in input order.
type Regressor interface {
	Name() string
	Fit(x [][]float64, y []float64) error
	Predict(x [][]float64) ([]float64, error)
}

// Importancer is implemented by models exposing per-feature importance
type Importancer interface {
	FeatureImportance() []float64
}

// Params selects and configures a model
type Params struct {
	Type       string
	GBM        GBMParams
	RidgeAlpha float64
}

// DefaultParams returns gradient boosting with the default hyperparameters
func DefaultParams(seed int64) Params {
	return Params{
		Type:       TypeGBM,
		GBM:        DefaultGBMParams(seed),
		RidgeAlpha: 1e-3,
	}
}

// Factory creates a fresh, unfitted model
type Factory func() Regressor

// NewFactory returns a factory for the configured model type
func NewFactory(p Params) (Factory, error) {
	switch strings.ToLower(p.Type) {
	case TypeGBM, "":
		if err := p.GBM.Validate(); err != nil {
			return nil, err
		}
		params := p.GBM
		return func() Regressor { return NewGBM(params) }, nil
	case TypeRidge:
		if p.RidgeAlpha <= 0 {
			return nil, fmt.Errorf("ridge alpha must be positive, got %v", p.RidgeAlpha)
		}
		alpha := p.RidgeAlpha
		return func() Regressor { return NewRidge(alpha) }, nil
	default:
		return nil, fmt.Errorf("unsupported model type: %s (supported: gbm, ridge)", p.Type)
	}
}

func checkShape(x [][]float64, y []float64) (int, error) {
	if len(x) == 0 {
		return 0, errors.New("empty training matrix")
	}
	if len(x) != len(y) {
		return 0, fmt.Errorf("row count mismatch: %d rows, %d targets", len(x), len(y))
	}
	p := len(x[0])
	if p == 0 {
		return 0, errors.New("training matrix has no columns")
	}
	for i, row := range x {
		if len(row) != p {
			return 0, fmt.Errorf("row %d has %d columns, expected %d", i, len(row), p)
		}
	}
	return p, nil
}
