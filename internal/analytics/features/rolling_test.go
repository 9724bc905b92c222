package features

import (
	"math"
	"testing"
)

func TestRollingStats_Mean(t *testing.T) {
	series := seriesOf(1, 2, 3, 4, 5, 6)
	frame, err := RollingStats(series.Times(), series.Values(), WindowSet{3})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	expected := []float64{1, 1.5, 2, 3, 4, 5}
	mean := frame.Col(RollingColumn("mean", 3))
	for i := range expected {
		if math.Abs(mean[i]-expected[i]) > 1e-12 {
			t.Errorf("roll_mean_3[%d] = %v, expected %v", i, mean[i], expected[i])
		}
	}

	std := frame.Col(RollingColumn("std", 3))
	if !math.IsNaN(std[0]) {
		t.Errorf("Std of a single observation should be NaN, got %v", std[0])
	}
	if math.Abs(std[4]-1) > 1e-12 {
		t.Errorf("roll_std_3[4] = %v, expected 1", std[4])
	}

	if v := frame.Col(RollingColumn("min", 3))[5]; v != 4 {
		t.Errorf("roll_min_3[5] = %v, expected 4", v)
	}
	if v := frame.Col(RollingColumn("max", 3))[5]; v != 6 {
		t.Errorf("roll_max_3[5] = %v, expected 6", v)
	}
}

func TestRollingStats_Quantiles(t *testing.T) {
	series := seriesOf(4, 1, 3, 2, 5)
	frame, err := RollingStats(series.Times(), series.Values(), WindowSet{5})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	// sorted window {1,2,3,4,5}: q25 at position 1, q75 at position 3
	if v := frame.Col(RollingColumn("q25", 5))[4]; v != 2 {
		t.Errorf("roll_q25_5 = %v, expected 2", v)
	}
	if v := frame.Col(RollingColumn("q75", 5))[4]; v != 4 {
		t.Errorf("roll_q75_5 = %v, expected 4", v)
	}
	// sorted {1,4}: position 0.25 interpolates to 1.75
	if v := frame.Col(RollingColumn("q25", 5))[1]; math.Abs(v-1.75) > 1e-12 {
		t.Errorf("roll_q25_5[1] = %v, expected 1.75", v)
	}
}

func TestRollingStats_SkipsNaN(t *testing.T) {
	nan := math.NaN()
	series := seriesOf(0, 0, 0, 0, 0)
	values := []float64{nan, nan, 2, 4, 6}
	frame, err := RollingStats(series.Times(), values, WindowSet{2})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	mean := frame.Col(RollingColumn("mean", 2))
	if !math.IsNaN(mean[0]) || !math.IsNaN(mean[1]) {
		t.Errorf("Windows without observations should be NaN, got %v", mean[:2])
	}
	if mean[2] != 2 || mean[3] != 3 || mean[4] != 5 {
		t.Errorf("Unexpected rolling mean %v", mean)
	}
}

func TestRollingStats_ColumnOrder(t *testing.T) {
	series := seriesOf(1, 2, 3)
	frame, err := RollingStats(series.Times(), series.Values(), WindowSet{1, 2})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	cols := frame.Columns()
	if len(cols) != 2*len(RollingStatNames) {
		t.Fatalf("Expected %d columns, got %d", 2*len(RollingStatNames), len(cols))
	}
	if cols[0] != "roll_mean_1" || cols[len(RollingStatNames)] != "roll_mean_2" {
		t.Errorf("Unexpected column order %v", cols)
	}
}

func TestRollingStats_LengthMismatch(t *testing.T) {
	series := seriesOf(1, 2, 3)
	if _, err := RollingStats(series.Times(), []float64{1, 2}, WindowSet{2}); err == nil {
		t.Error("Expected error for mismatched index and values")
	}
}
