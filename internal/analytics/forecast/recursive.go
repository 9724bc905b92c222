package forecast

import (
	"fmt"
	"time"

	"github.com/ratecast/ratecast/internal/analytics"
	"github.com/ratecast/ratecast/internal/analytics/features"
	"github.com/ratecast/ratecast/internal/analytics/model"
)

func init() {
	RegisterStrategy(StrategyRecursive, func(deps Deps) Strategy { return NewRecursiveStrategy(deps) })
}

// StepPlan splits a horizon into full steps of size step plus a trailing
// partial step. Callers must validate step > 0.
func StepPlan(horizon, step int) (steps, last int) {
	remaining := horizon
	for remaining >= step {
		remaining -= step
		steps++
	}
	return steps, remaining
}

// ForecastState is the working set of a recursive run between two steps.
// A state is never mutated; advance returns a new one.
type ForecastState struct {
	Series      analytics.Series // history with consumed test values replaced by predictions
	TrainX      *features.Frame
	TrainY      []float64
	TestX       *features.Frame
	TestY       []float64 // true values not yet predicted
	Predictions []float64
	Used        *features.Frame // feature rows the predictions were made from
	Remaining   int
}

// Total returns the number of rows held in train and test
func (st ForecastState) Total() int {
	return st.TrainX.Len() + st.TestX.Len()
}

// RecursiveStrategy predicts the horizon in steps, feeding each step's
// predictions back into the training target before rebuilding features for
// the next step.
type RecursiveStrategy struct {
	deps Deps
}

// NewRecursiveStrategy creates a recursive strategy
func NewRecursiveStrategy(deps Deps) *RecursiveStrategy {
	return &RecursiveStrategy{deps: deps}
}

// Name returns the strategy name
func (s *RecursiveStrategy) Name() string {
	return StrategyRecursive
}

// recursiveRun holds what stays fixed across the steps of one run
type recursiveRun struct {
	deps    Deps
	step    int
	rowCap  int
	columns []string
}

// Forecast implements Strategy
func (s *RecursiveStrategy) Forecast(series analytics.Series, req Request) (*Result, error) {
	h, size := req.Horizon, req.Step
	if h <= 0 {
		return nil, fmt.Errorf("%w: horizon must be positive, got %d", analytics.ErrInvalidWindowConfig, h)
	}
	if size <= 0 || size > h {
		return nil, fmt.Errorf("%w: step must be in [1, %d], got %d", analytics.ErrInvalidWindowConfig, h, size)
	}
	if err := series.Validate(); err != nil {
		return nil, err
	}

	run := &recursiveRun{
		deps:   s.deps,
		step:   size,
		rowCap: s.deps.Assembler.Config().RowCaps.RecursiveCap,
	}
	asm, err := s.deps.Assembler.Assemble(series, size, run.rowCap)
	if err != nil {
		return nil, err
	}
	rows := asm.X.Len()
	if h >= rows {
		return nil, fmt.Errorf("%w: horizon %d needs more than %d feature rows", analytics.ErrInsufficientHistory, h, rows)
	}

	split := rows - h
	state := ForecastState{
		Series:    series.Clone(),
		TrainX:    asm.X.Head(split),
		TrainY:    cloneFloats(asm.Y[:split]),
		TestX:     asm.X.Slice(split, rows),
		TestY:     cloneFloats(asm.Y[split:]),
		Remaining: h,
	}

	res := &Result{
		Strategy:    StrategyRecursive,
		Horizon:     h,
		Step:        size,
		Index:       state.TestX.Index(),
		Actual:      cloneFloats(state.TestY),
		TrainTarget: cloneFloats(state.TrainY),
		Skipped:     asm.Skipped,
	}

	run.columns = state.TrainX.Columns()
	if req.FeatureSelection && s.deps.Selector != nil {
		run.columns, res.Selection = selectColumns(s.deps.Selector, state.TrainX, state.TrainY, h)
		if state, err = run.project(state); err != nil {
			return nil, err
		}
	}
	res.Columns = run.columns

	steps, last := StepPlan(h, size)
	start := time.Now()
	for i := 0; i < steps; i++ {
		next, report, err := run.advance(state, size)
		if err != nil {
			return nil, err
		}
		report.Index = i
		report.Final = last == 0 && i == steps-1
		res.Steps = append(res.Steps, report.StepReport)
		res.Model = report.model
		res.TrainFeatures = state.TrainX
		state = next
	}
	if last > 0 {
		next, report, err := run.advance(state, last)
		if err != nil {
			return nil, err
		}
		report.Index = steps
		report.Final = true
		res.Steps = append(res.Steps, report.StepReport)
		res.Model = report.model
		res.TrainFeatures = state.TrainX
		state = next
	}
	res.Elapsed = time.Since(start)

	res.Predictions = state.Predictions
	res.TestFeatures = state.Used
	res.scoreAgainstActual()
	return res, nil
}

// stepResult carries the per-step diagnostics plus the fitted model
type stepResult struct {
	StepReport
	model model.Regressor
}

// advance fits on the current training prefix, predicts the next size test
// rows and moves them into the training prefix with their predictions as
// targets. Features are rebuilt afterwards unless the horizon is exhausted.
func (r *recursiveRun) advance(st ForecastState, size int) (ForecastState, stepResult, error) {
	total := st.Total()
	if size > st.TestX.Len() {
		return st, stepResult{}, fmt.Errorf("%w: step of %d rows with only %d left", analytics.ErrInvalidWindowConfig, size, st.TestX.Len())
	}

	next := st.TestX.Head(size)
	m, preds, err := fitPredict(r.deps.NewModel, st.TrainX, st.TrainY, next)
	if err != nil {
		return st, stepResult{}, err
	}

	report := stepResult{
		StepReport: StepReport{
			Size:      size,
			Start:     next.Index()[0],
			MAE:       CalculateMAE(st.TestY[:size], preds),
			TrainRows: st.TrainX.Len(),
		},
		model: m,
	}

	out := ForecastState{
		TrainY:      append(cloneFloats(st.TrainY), preds...),
		TestY:       cloneFloats(st.TestY[size:]),
		Predictions: append(cloneFloats(st.Predictions), preds...),
		Remaining:   st.Remaining - size,
	}
	if st.Used == nil {
		out.Used = next
	} else if out.Used, err = features.Concat(st.Used, next); err != nil {
		return st, stepResult{}, err
	}
	if out.TrainX, err = features.Concat(st.TrainX, next); err != nil {
		return st, stepResult{}, err
	}
	out.TestX = st.TestX.Slice(size, st.TestX.Len())

	if out.Series, err = r.rewrite(st.Series, out.TrainY, out.TestY); err != nil {
		return st, stepResult{}, err
	}
	if out.Remaining > 0 {
		if out, err = r.rebuild(out); err != nil {
			return st, stepResult{}, err
		}
	}

	if got := out.Total(); got != total {
		return st, stepResult{}, fmt.Errorf("recursive step changed row count from %d to %d", total, got)
	}
	return out, report, nil
}

// rewrite replaces the trailing window of the working series with the
// current train target followed by the remaining true test values.
func (r *recursiveRun) rewrite(series analytics.Series, trainY, testY []float64) (analytics.Series, error) {
	window := len(trainY) + len(testY)
	values := series.Values()
	offset := len(values) - window
	if offset < 0 {
		return nil, fmt.Errorf("window of %d rows exceeds series of %d points", window, len(values))
	}
	copy(values[offset:], trainY)
	copy(values[offset+len(trainY):], testY)
	return series.WithValues(values)
}

// rebuild re-derives the feature matrix from the working series so lag and
// rolling columns of the next test rows reflect the appended predictions,
// then re-splits at the current training length.
func (r *recursiveRun) rebuild(st ForecastState) (ForecastState, error) {
	total := st.Total()
	asm, err := r.deps.Assembler.Assemble(st.Series, r.step, r.rowCap)
	if err != nil {
		return st, fmt.Errorf("rebuild features: %w", err)
	}
	if asm.X.Len() < total {
		return st, fmt.Errorf("rebuild features: %d rows, need %d", asm.X.Len(), total)
	}
	x := asm.X.Tail(total)
	split := len(st.TrainY)

	out := st
	out.TrainX = x.Head(split)
	out.TestX = x.Slice(split, total)
	return r.project(out)
}

// project restricts the train and test frames to the run's columns
func (r *recursiveRun) project(st ForecastState) (ForecastState, error) {
	var err error
	out := st
	if out.TrainX, err = st.TrainX.Select(r.columns); err != nil {
		return st, err
	}
	if out.TestX, err = st.TestX.Select(r.columns); err != nil {
		return st, err
	}
	return out, nil
}
