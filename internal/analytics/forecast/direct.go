package forecast

import (
	"fmt"
	"time"

	"github.com/ratecast/ratecast/internal/analytics"
)

func init() {
	RegisterStrategy(StrategyDirect, func(deps Deps) Strategy { return NewDirectStrategy(deps) })
}

// DirectStrategy fits one model on the training prefix and predicts the whole
// horizon in a single shot. Features are built with the horizon as the
// reference shift so every test row only sees values from before the split.
type DirectStrategy struct {
	deps Deps
}

// NewDirectStrategy creates a direct strategy
func NewDirectStrategy(deps Deps) *DirectStrategy {
	return &DirectStrategy{deps: deps}
}

// Name returns the strategy name
func (s *DirectStrategy) Name() string {
	return StrategyDirect
}

// Forecast implements Strategy
func (s *DirectStrategy) Forecast(series analytics.Series, req Request) (*Result, error) {
	h := req.Horizon
	if h <= 0 {
		return nil, fmt.Errorf("%w: horizon must be positive, got %d", analytics.ErrInvalidWindowConfig, h)
	}
	if err := series.Validate(); err != nil {
		return nil, err
	}

	cfg := s.deps.Assembler.Config()
	asm, err := s.deps.Assembler.Assemble(series, h, cfg.RowCaps.DirectCap(h))
	if err != nil {
		return nil, err
	}
	rows := asm.X.Len()
	if h >= rows {
		return nil, fmt.Errorf("%w: horizon %d needs more than %d feature rows", analytics.ErrInsufficientHistory, h, rows)
	}

	split := rows - h
	trainX := asm.X.Head(split)
	testX := asm.X.Slice(split, rows)
	trainY := cloneFloats(asm.Y[:split])
	testY := cloneFloats(asm.Y[split:])

	res := &Result{
		Strategy:    StrategyDirect,
		Horizon:     h,
		Step:        h,
		Index:       testX.Index(),
		Actual:      testY,
		TrainTarget: trainY,
		Skipped:     asm.Skipped,
	}

	cols := trainX.Columns()
	if req.FeatureSelection && s.deps.Selector != nil {
		cols, res.Selection = selectColumns(s.deps.Selector, trainX, trainY, h)
		if trainX, err = trainX.Select(cols); err != nil {
			return nil, err
		}
		if testX, err = testX.Select(cols); err != nil {
			return nil, err
		}
	}
	res.Columns = cols
	res.TrainFeatures = trainX
	res.TestFeatures = testX

	start := time.Now()
	m, preds, err := fitPredict(s.deps.NewModel, trainX, trainY, testX)
	if err != nil {
		return nil, err
	}
	res.Elapsed = time.Since(start)
	res.Model = m
	res.Predictions = preds
	res.scoreAgainstActual()
	res.Steps = []StepReport{{
		Index:     0,
		Size:      h,
		Final:     true,
		Start:     res.Index[0],
		MAE:       res.MAE,
		TrainRows: split,
	}}
	return res, nil
}
