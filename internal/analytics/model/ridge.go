package model

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Ridge is an L2-regularised linear regression on standardised features.
// Constant columns get a zero coefficient.
type Ridge struct {
	alpha     float64
	coef      []float64
	mean      []float64
	scale     []float64
	intercept float64
	fitted    bool
}

// NewRidge creates an unfitted ridge regressor
func NewRidge(alpha float64) *Ridge {
	return &Ridge{alpha: alpha}
}

// Name returns the model name
func (m *Ridge) Name() string {
	return TypeRidge
}

// Fit solves (Z'Z + alpha*I) w = Z'(y - mean(y)) by Cholesky factorisation
func (m *Ridge) Fit(x [][]float64, y []float64) error {
	p, err := checkShape(x, y)
	if err != nil {
		return err
	}
	n := len(x)

	m.mean = make([]float64, p)
	m.scale = make([]float64, p)
	column := make([]float64, n)
	for f := 0; f < p; f++ {
		for i := 0; i < n; i++ {
			v := x[i][f]
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("ridge: non-finite feature at row %d column %d", i, f)
			}
			column[i] = v
		}
		mu, sd := stat.PopMeanStdDev(column, nil)
		m.mean[f] = mu
		if sd > 1e-12 {
			m.scale[f] = sd
		}
	}

	ymean := stat.Mean(y, nil)
	z := mat.NewDense(n, p, nil)
	yc := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		for f := 0; f < p; f++ {
			if m.scale[f] != 0 {
				z.Set(i, f, (x[i][f]-m.mean[f])/m.scale[f])
			}
		}
		yc.SetVec(i, y[i]-ymean)
	}

	a := mat.NewSymDense(p, nil)
	a.SymOuterK(1, z.T())
	for f := 0; f < p; f++ {
		a.SetSym(f, f, a.At(f, f)+m.alpha)
	}

	var chol mat.Cholesky
	if ok := chol.Factorize(a); !ok {
		return errors.New("ridge: normal equations are not positive definite")
	}
	var b, w mat.VecDense
	b.MulVec(z.T(), yc)
	if err := chol.SolveVecTo(&w, &b); err != nil {
		return fmt.Errorf("ridge: solve failed: %w", err)
	}

	m.coef = make([]float64, p)
	for f := 0; f < p; f++ {
		m.coef[f] = w.AtVec(f)
	}
	m.intercept = ymean
	m.fitted = true
	return nil
}

// Predict returns one prediction per row
func (m *Ridge) Predict(x [][]float64) ([]float64, error) {
	if !m.fitted {
		return nil, ErrNotFitted
	}
	out := make([]float64, len(x))
	for i, row := range x {
		if len(row) != len(m.coef) {
			return nil, fmt.Errorf("row %d has %d columns, model expects %d", i, len(row), len(m.coef))
		}
		v := m.intercept
		for f, c := range m.coef {
			if m.scale[f] != 0 {
				v += c * (row[f] - m.mean[f]) / m.scale[f]
			}
		}
		out[i] = v
	}
	return out, nil
}

// FeatureImportance returns absolute standardised coefficients
func (m *Ridge) FeatureImportance() []float64 {
	out := make([]float64, len(m.coef))
	for i, c := range m.coef {
		out[i] = math.Abs(c)
	}
	return out
}
