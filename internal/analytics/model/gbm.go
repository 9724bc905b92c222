package model

import (
	"fmt"
	"math"
	"math/rand/v2"
	"slices"
)

// GBMParams configures gradient boosting of regression trees on L2 loss.
// Trees grow leaf-wise on histogram-binned features.
type GBMParams struct {
	NumEstimators   int
	LearningRate    float64
	MaxDepth        int // <= 0 means unlimited
	NumLeaves       int
	MinChildWeight  float64 // minimum hessian sum per leaf
	MinDataInLeaf   int
	FeatureFraction float64 // share of features sampled per tree
	LambdaL1        float64
	LambdaL2        float64
	MinSplitGain    float64
	MaxBin          int
	Seed            int64
}

// DefaultGBMParams returns the default boosting hyperparameters
func DefaultGBMParams(seed int64) GBMParams {
	return GBMParams{
		NumEstimators:   1000,
		LearningRate:    0.025,
		MaxDepth:        7,
		NumLeaves:       10,
		MinChildWeight:  1,
		MinDataInLeaf:   20,
		FeatureFraction: 1,
		MaxBin:          255,
		Seed:            seed,
	}
}

// Validate checks the hyperparameters
func (p GBMParams) Validate() error {
	if p.NumEstimators <= 0 {
		return fmt.Errorf("num_estimators must be positive, got %d", p.NumEstimators)
	}
	if p.LearningRate <= 0 {
		return fmt.Errorf("learning_rate must be positive, got %v", p.LearningRate)
	}
	if p.NumLeaves < 2 {
		return fmt.Errorf("num_leaves must be at least 2, got %d", p.NumLeaves)
	}
	if p.FeatureFraction <= 0 || p.FeatureFraction > 1 {
		return fmt.Errorf("feature_fraction must be in (0, 1], got %v", p.FeatureFraction)
	}
	if p.MaxBin < 2 || p.MaxBin > math.MaxUint16 {
		return fmt.Errorf("max_bin must be in [2, %d], got %d", math.MaxUint16, p.MaxBin)
	}
	if p.LambdaL1 < 0 || p.LambdaL2 < 0 {
		return fmt.Errorf("regularization must be non-negative")
	}
	return nil
}

// GBM is a gradient-boosted regression tree ensemble
type GBM struct {
	params     GBMParams
	numFeature int
	init       float64
	trees      []*tree
	importance []float64
}

// NewGBM creates an unfitted ensemble
func NewGBM(params GBMParams) *GBM {
	return &GBM{params: params}
}

// Name returns the model name
func (m *GBM) Name() string {
	return TypeGBM
}

// Params returns the hyperparameters
func (m *GBM) Params() GBMParams {
	return m.params
}

// NumTrees returns the number of fitted trees
func (m *GBM) NumTrees() int {
	return len(m.trees)
}

// Fit trains the ensemble. NaN feature values are treated as missing and
// routed to the side that maximises gain at each split.
func (m *GBM) Fit(x [][]float64, y []float64) error {
	if err := m.params.Validate(); err != nil {
		return err
	}
	p, err := checkShape(x, y)
	if err != nil {
		return err
	}
	for i, v := range y {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("non-finite target at row %d", i)
		}
	}

	n := len(x)
	mappers := make([]binMapper, p)
	binned := make([][]uint16, p)
	column := make([]float64, n)
	for f := 0; f < p; f++ {
		for i := 0; i < n; i++ {
			column[i] = x[i][f]
		}
		mappers[f] = newBinMapper(column, m.params.MaxBin)
		binned[f] = mappers[f].binColumn(column)
	}

	m.numFeature = p
	m.importance = make([]float64, p)
	m.trees = m.trees[:0]

	mean := 0.0
	for _, v := range y {
		mean += v
	}
	m.init = mean / float64(n)

	pred := make([]float64, n)
	for i := range pred {
		pred[i] = m.init
	}
	grad := make([]float64, n)

	rng := rand.New(rand.NewPCG(uint64(m.params.Seed), uint64(m.params.Seed)>>1|1))
	all := make([]int, p)
	for f := range all {
		all[f] = f
	}
	sampled := max(1, int(math.Round(m.params.FeatureFraction*float64(p))))

	g := &grower{params: m.params, mappers: mappers, binned: binned, grad: grad}
	for t := 0; t < m.params.NumEstimators; t++ {
		for i := range grad {
			grad[i] = pred[i] - y[i]
		}

		feats := all
		if sampled < p {
			perm := rng.Perm(p)[:sampled]
			slices.Sort(perm)
			feats = perm
		}

		tr, leafOf := g.grow(feats)
		for i := range pred {
			pred[i] += tr.nodes[leafOf[i]].value
		}
		for _, nd := range tr.nodes {
			if !nd.leaf {
				m.importance[nd.feature]++
			}
		}
		m.trees = append(m.trees, tr)
	}

	return nil
}

// Predict returns one prediction per row
func (m *GBM) Predict(x [][]float64) ([]float64, error) {
	if m.trees == nil {
		return nil, ErrNotFitted
	}
	out := make([]float64, len(x))
	for i, row := range x {
		if len(row) != m.numFeature {
			return nil, fmt.Errorf("row %d has %d columns, model expects %d", i, len(row), m.numFeature)
		}
		v := m.init
		for _, tr := range m.trees {
			v += tr.predict(row)
		}
		out[i] = v
	}
	return out, nil
}

// FeatureImportance returns the number of splits made on each feature
func (m *GBM) FeatureImportance() []float64 {
	out := make([]float64, len(m.importance))
	copy(out, m.importance)
	return out
}
