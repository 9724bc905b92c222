// Package forecast implements the direct and recursive multi-step
// forecasting strategies over assembled feature matrices.
package forecast

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/ratecast/ratecast/internal/analytics"
	"github.com/ratecast/ratecast/internal/analytics/features"
	"github.com/ratecast/ratecast/internal/analytics/model"
	"github.com/ratecast/ratecast/internal/analytics/selection"
)

// Strategy names
const (
	StrategyDirect    = "direct"
	StrategyRecursive = "recursive"
)

// Request describes one forecasting run
type Request struct {
	Horizon          int  // number of trailing rows held out and predicted
	Step             int  // recursive step size, ignored by the direct strategy
	FeatureSelection bool // reduce columns with the configured selector
}

// StepReport holds per-step diagnostics of a recursive run
type StepReport struct {
	Index     int       `json:"index"`
	Size      int       `json:"size"`
	Final     bool      `json:"final"`
	Start     time.Time `json:"start"`
	MAE       float64   `json:"mae"`
	TrainRows int       `json:"train_rows"`
}

// Result is the output of a forecasting run
type Result struct {
	Strategy    string
	Horizon     int
	Step        int
	Index       []time.Time // timestamps of the predicted rows
	Predictions []float64
	Actual      []float64 // realised values over the horizon
	TrainTarget []float64 // training target used for the first fit
	MAE         float64
	RMSE        float64
	MAPE        float64
	Elapsed     time.Duration
	Model       model.Regressor // model from the final fit

	TrainFeatures *features.Frame
	TestFeatures  *features.Frame
	Columns       []string // columns the model was trained on
	Selection     *SelectionReport
	Skipped       []features.SkippedBlock
	Steps         []StepReport
}

// SelectionReport records the outcome of feature selection
type SelectionReport struct {
	Requested int      // columns offered to the selector
	Selected  []string // columns kept
	Err       error    // non-nil when the selector failed and all columns were kept
}

// Deps are the collaborators shared by every strategy
type Deps struct {
	Assembler *features.Assembler
	NewModel  model.Factory
	Selector  selection.Selector // nil disables feature selection
}

// Strategy is a forecasting control flow
type Strategy interface {
	// Name returns the strategy name
	Name() string
	// Forecast holds out the last req.Horizon rows of the assembled series and predicts them
	Forecast(series analytics.Series, req Request) (*Result, error)
}

// Constructor builds a strategy around its collaborators
type Constructor func(deps Deps) Strategy

var strategyRegistry = make(map[string]Constructor)

// RegisterStrategy adds a strategy constructor to the registry
func RegisterStrategy(name string, c Constructor) {
	strategyRegistry[name] = c
}

// NewStrategy returns the named strategy wired to deps
func NewStrategy(name string, deps Deps) (Strategy, error) {
	c, ok := strategyRegistry[name]
	if !ok {
		return nil, fmt.Errorf("unknown strategy: %s", name)
	}
	if deps.Assembler == nil {
		deps.Assembler = features.NewAssembler(features.DefaultConfig(), nil)
	}
	if deps.NewModel == nil {
		params := model.DefaultGBMParams(0)
		deps.NewModel = func() model.Regressor { return model.NewGBM(params) }
	}
	return c(deps), nil
}

// ListStrategies returns the registered strategy names, sorted
func ListStrategies() []string {
	names := make([]string, 0, len(strategyRegistry))
	for name := range strategyRegistry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// FitError wraps a failure reported by the model collaborator
type FitError struct {
	Model string
	Err   error
}

func (e *FitError) Error() string {
	return fmt.Sprintf("model %s: %v", e.Model, e.Err)
}

// Unwrap returns the model's error
func (e *FitError) Unwrap() error {
	return e.Err
}

// fitPredict fits a fresh model on train and predicts test
func fitPredict(newModel model.Factory, trainX *features.Frame, trainY []float64, testX *features.Frame) (model.Regressor, []float64, error) {
	m := newModel()
	if err := m.Fit(trainX.Rows(), trainY); err != nil {
		return nil, nil, &FitError{Model: m.Name(), Err: err}
	}
	preds, err := m.Predict(testX.Rows())
	if err != nil {
		return nil, nil, &FitError{Model: m.Name(), Err: err}
	}
	return m, preds, nil
}

// selectColumns runs the selector on the training rows. On failure every
// column is kept and the error is reported.
func selectColumns(sel selection.Selector, trainX *features.Frame, trainY []float64, horizon int) ([]string, *SelectionReport) {
	all := trainX.Columns()
	report := &SelectionReport{Requested: len(all)}
	cols, err := sel.Select(trainX, trainY, horizon)
	if err == nil && len(cols) == 0 {
		err = fmt.Errorf("selector returned no columns")
	}
	if err == nil {
		for _, c := range cols {
			if !trainX.Has(c) {
				err = fmt.Errorf("selector returned unknown column %s", c)
				break
			}
		}
	}
	if err != nil {
		report.Err = err
		report.Selected = all
		return all, report
	}
	report.Selected = cols
	return cols, report
}

func (r *Result) scoreAgainstActual() {
	r.MAE = CalculateMAE(r.Actual, r.Predictions)
	r.RMSE = CalculateRMSE(r.Actual, r.Predictions)
	r.MAPE = CalculateMAPE(r.Actual, r.Predictions)
}

// CalculateMAPE calculates Mean Absolute Percentage Error
func CalculateMAPE(actual, predicted []float64) float64 {
	if len(actual) != len(predicted) || len(actual) == 0 {
		return 0
	}

	sum := 0.0
	count := 0
	for i := range actual {
		if actual[i] != 0 {
			sum += math.Abs((actual[i] - predicted[i]) / actual[i])
			count++
		}
	}

	if count == 0 {
		return 0
	}
	return (sum / float64(count)) * 100
}

// CalculateMAE calculates Mean Absolute Error
func CalculateMAE(actual, predicted []float64) float64 {
	if len(actual) != len(predicted) || len(actual) == 0 {
		return 0
	}

	sum := 0.0
	for i := range actual {
		sum += math.Abs(actual[i] - predicted[i])
	}
	return sum / float64(len(actual))
}

// CalculateRMSE calculates Root Mean Squared Error
func CalculateRMSE(actual, predicted []float64) float64 {
	if len(actual) != len(predicted) || len(actual) == 0 {
		return 0
	}

	sum := 0.0
	for i := range actual {
		diff := actual[i] - predicted[i]
		sum += diff * diff
	}
	return math.Sqrt(sum / float64(len(actual)))
}

func cloneFloats(v []float64) []float64 {
	out := make([]float64, len(v))
	copy(out, v)
	return out
}
