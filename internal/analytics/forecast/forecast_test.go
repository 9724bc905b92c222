package forecast

import (
	"errors"
	"reflect"
	"testing"

	"github.com/ratecast/ratecast/internal/analytics"
	"github.com/ratecast/ratecast/internal/analytics/features"
	"github.com/ratecast/ratecast/internal/analytics/model"
	"github.com/ratecast/ratecast/internal/analytics/selection"
)

func TestStrategyRegistry(t *testing.T) {
	names := ListStrategies()
	expected := []string{StrategyDirect, StrategyRecursive}
	if !reflect.DeepEqual(names, expected) {
		t.Fatalf("Expected strategies %v, got %v", expected, names)
	}

	for _, name := range expected {
		s, err := NewStrategy(name, ridgeDeps())
		if err != nil {
			t.Errorf("Strategy '%s' not registered: %v", name, err)
			continue
		}
		if s.Name() != name {
			t.Errorf("Strategy name mismatch: expected '%s', got '%s'", name, s.Name())
		}
	}
}

func TestNewStrategy_InvalidName(t *testing.T) {
	if _, err := NewStrategy("unknown", Deps{}); err == nil {
		t.Error("Expected error for unknown strategy")
	}
}

func TestNewStrategy_DefaultDeps(t *testing.T) {
	s, err := NewStrategy(StrategyDirect, Deps{})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	d := s.(*DirectStrategy)
	if d.deps.Assembler == nil || d.deps.NewModel == nil {
		t.Fatal("Expected default assembler and model factory")
	}
	if d.deps.NewModel().Name() != model.TypeGBM {
		t.Errorf("Expected default model gbm, got %s", d.deps.NewModel().Name())
	}
}

func TestDirect_LinearSeries(t *testing.T) {
	series := generateLinearSeries(2000)
	res, err := NewDirectStrategy(ridgeDeps()).Forecast(series, Request{Horizon: 7})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if len(res.Predictions) != 7 || len(res.Actual) != 7 || len(res.Index) != 7 {
		t.Fatalf("Expected 7 predictions, got %d (actual %d, index %d)", len(res.Predictions), len(res.Actual), len(res.Index))
	}
	for i, v := range res.Actual {
		if want := series[len(series)-7+i].Value; v != want {
			t.Errorf("Actual[%d] = %v, expected %v", i, v, want)
		}
	}
	if res.MAE > 0.05 {
		t.Errorf("Expected MAE near 0 on a linear series, got %f", res.MAE)
	}
	if res.TrainFeatures.Len()+res.TestFeatures.Len() != 1200 {
		t.Errorf("Expected 1200 assembled rows, got %d", res.TrainFeatures.Len()+res.TestFeatures.Len())
	}
	if len(res.TrainTarget) != res.TrainFeatures.Len() {
		t.Errorf("Train target length %d does not match %d train rows", len(res.TrainTarget), res.TrainFeatures.Len())
	}
	if res.Model == nil || res.Elapsed <= 0 {
		t.Error("Expected fitted model and elapsed time")
	}
}

func TestDirect_RowCapDependsOnHorizon(t *testing.T) {
	series := generateLinearSeries(2000)
	tests := []struct {
		horizon int
		rows    int
	}{
		{7, 1200},
		{10, 1500},
		{19, 1500},
		{20, 1200},
	}
	for _, tt := range tests {
		res, err := NewDirectStrategy(ridgeDeps()).Forecast(series, Request{Horizon: tt.horizon})
		if err != nil {
			t.Fatalf("Horizon %d: unexpected error: %v", tt.horizon, err)
		}
		got := res.TrainFeatures.Len() + res.TestFeatures.Len()
		if got != tt.rows {
			t.Errorf("Horizon %d: expected %d rows, got %d", tt.horizon, tt.rows, got)
		}
		if len(res.Predictions) != tt.horizon {
			t.Errorf("Horizon %d: got %d predictions", tt.horizon, len(res.Predictions))
		}
	}
}

func TestDirect_GBM(t *testing.T) {
	series := generateRateSeries(400)
	res, err := NewDirectStrategy(gbmDeps()).Forecast(series, Request{Horizon: 5})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(res.Predictions) != 5 {
		t.Fatalf("Expected 5 predictions, got %d", len(res.Predictions))
	}
	if res.Model.Name() != model.TypeGBM {
		t.Errorf("Expected gbm model, got %s", res.Model.Name())
	}
	if len(res.Steps) != 1 || !res.Steps[0].Final {
		t.Errorf("Expected one final step, got %+v", res.Steps)
	}
}

func TestDirect_Validation(t *testing.T) {
	s := NewDirectStrategy(ridgeDeps())

	_, err := s.Forecast(generateLinearSeries(100), Request{Horizon: 0})
	if !errors.Is(err, analytics.ErrInvalidWindowConfig) {
		t.Errorf("Expected ErrInvalidWindowConfig for zero horizon, got %v", err)
	}

	_, err = s.Forecast(generateLinearSeries(40), Request{Horizon: 30})
	if !errors.Is(err, analytics.ErrInsufficientHistory) {
		t.Errorf("Expected ErrInsufficientHistory, got %v", err)
	}

	unsorted := generateLinearSeries(100)
	unsorted[10], unsorted[11] = unsorted[11], unsorted[10]
	if _, err = s.Forecast(unsorted, Request{Horizon: 5}); err == nil {
		t.Error("Expected error for unsorted series")
	}
}

func TestDirect_FitFailure(t *testing.T) {
	deps := Deps{
		Assembler: testAssembler(),
		NewModel:  func() model.Regressor { return &stubRegressor{fail: true} },
	}
	_, err := NewDirectStrategy(deps).Forecast(generateLinearSeries(200), Request{Horizon: 5})

	var fitErr *FitError
	if !errors.As(err, &fitErr) {
		t.Fatalf("Expected FitError, got %v", err)
	}
	if fitErr.Model != "stub" || !errors.Is(err, errStubFit) {
		t.Errorf("Expected wrapped stub error, got %v", err)
	}
}

func TestDirect_FeatureSelection(t *testing.T) {
	keep := []string{features.ShiftColumn(5), features.DayIncreaseColumn}
	deps := ridgeDeps()
	deps.Selector = selection.SelectorFunc(func(x *features.Frame, y []float64, horizon int) ([]string, error) {
		if horizon != 5 {
			t.Errorf("Expected selector horizon 5, got %d", horizon)
		}
		return keep, nil
	})

	res, err := NewDirectStrategy(deps).Forecast(generateLinearSeries(300), Request{Horizon: 5, FeatureSelection: true})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !reflect.DeepEqual(res.TrainFeatures.Columns(), keep) || !reflect.DeepEqual(res.TestFeatures.Columns(), keep) {
		t.Errorf("Expected selected columns %v, got train %v test %v", keep, res.TrainFeatures.Columns(), res.TestFeatures.Columns())
	}
	if res.Selection == nil || res.Selection.Err != nil || res.Selection.Requested <= len(keep) {
		t.Errorf("Unexpected selection report %+v", res.Selection)
	}
}

func TestDirect_SelectorFailureKeepsAllColumns(t *testing.T) {
	deps := ridgeDeps()
	deps.Selector = selection.SelectorFunc(func(*features.Frame, []float64, int) ([]string, error) {
		return nil, errors.New("selector down")
	})

	res, err := NewDirectStrategy(deps).Forecast(generateLinearSeries(300), Request{Horizon: 5, FeatureSelection: true})
	if err != nil {
		t.Fatalf("Selector failure must not fail the run: %v", err)
	}
	if res.Selection == nil || res.Selection.Err == nil {
		t.Fatal("Expected selector error in report")
	}
	if len(res.Columns) != res.Selection.Requested || len(res.TrainFeatures.Columns()) != res.Selection.Requested {
		t.Errorf("Expected all %d columns, got %d", res.Selection.Requested, len(res.Columns))
	}
}

func TestSelectColumns_UnknownColumn(t *testing.T) {
	frame := features.NewFrame(generateLinearSeries(3).Times())
	_ = frame.Set("a", []float64{1, 2, 3})
	sel := selection.SelectorFunc(func(*features.Frame, []float64, int) ([]string, error) {
		return []string{"missing"}, nil
	})

	cols, report := selectColumns(sel, frame, []float64{1, 2, 3}, 1)
	if report.Err == nil || !reflect.DeepEqual(cols, []string{"a"}) {
		t.Errorf("Expected fallback to all columns, got %v (%v)", cols, report.Err)
	}
}

// Error Metrics Tests
func TestCalculateMAPE(t *testing.T) {
	actual := []float64{100, 200, 300, 400}
	predicted := []float64{110, 190, 310, 380}

	mape := CalculateMAPE(actual, predicted)

	// MAPE should be around 5%
	if mape < 4 || mape > 6 {
		t.Errorf("Expected MAPE around 5%%, got %f%%", mape)
	}
}

func TestCalculateMAE(t *testing.T) {
	actual := []float64{100, 200, 300, 400}
	predicted := []float64{110, 190, 310, 380}

	mae := CalculateMAE(actual, predicted)

	// average of |10|, |-10|, |10|, |-20|
	expectedMAE := 12.5
	if mae != expectedMAE {
		t.Errorf("Expected MAE %f, got %f", expectedMAE, mae)
	}
}

func TestCalculateRMSE(t *testing.T) {
	actual := []float64{100, 200, 300, 400}
	predicted := []float64{110, 190, 310, 380}

	rmse := CalculateRMSE(actual, predicted)

	// sqrt((100+100+100+400)/4) = sqrt(175) ≈ 13.23
	if rmse < 13 || rmse > 14 {
		t.Errorf("Expected RMSE around 13.23, got %f", rmse)
	}
}

func TestCalculateMetrics_MismatchedLength(t *testing.T) {
	mape := CalculateMAPE([]float64{1, 2, 3}, []float64{1, 2})
	mae := CalculateMAE([]float64{1, 2, 3}, []float64{1, 2})
	rmse := CalculateRMSE([]float64{1, 2, 3}, []float64{1, 2})

	if mape != 0 || mae != 0 || rmse != 0 {
		t.Errorf("Metrics for mismatched length should be 0")
	}
}

// Benchmark Tests
func BenchmarkDirectForecast(b *testing.B) {
	series := generateRateSeries(1000)
	s := NewDirectStrategy(gbmDeps())

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = s.Forecast(series, Request{Horizon: 7})
	}
}
