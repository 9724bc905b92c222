package features

import (
	"errors"
	"math"
	"testing"

	"github.com/ratecast/ratecast/internal/analytics"
)

func wavySeries(n int) analytics.Series {
	values := make([]float64, n)
	for i := range values {
		x := float64(i)
		values[i] = 60 + 0.02*x + math.Sin(x/5) + 0.3*math.Cos(x*1.3)
	}
	return seriesOf(values...)
}

func TestAssembler_Assemble(t *testing.T) {
	series := wavySeries(200)
	a := NewAssembler(DefaultConfig(), constantPValue(0.2))

	asm, err := a.Assemble(series, 7, 0)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if asm.X.HasNaN() {
		t.Error("Assembled matrix must not contain NaN")
	}
	if asm.X.Has(TargetColumn) {
		t.Error("Target column must be split off")
	}
	if len(asm.Y) != asm.X.Len() {
		t.Fatalf("X has %d rows, y has %d", asm.X.Len(), len(asm.Y))
	}

	// the first complete row needs shift_11 defined
	if asm.X.Len() != 200-11 {
		t.Errorf("Expected %d rows, got %d", 200-11, asm.X.Len())
	}

	values := series.Values()
	idx := asm.X.Index()
	shift7 := asm.X.Col(ShiftColumn(7))
	for i := range idx {
		pos := int(idx[i].Sub(testBaseTime).Hours() / 24)
		if asm.Y[i] != values[pos] {
			t.Fatalf("y[%d] misaligned", i)
		}
		if shift7[i] != values[pos-7] {
			t.Fatalf("shift_7[%d] misaligned", i)
		}
	}

	for _, col := range []string{
		ShiftColumn(7), ShiftColumn(9), ShiftColumn(11),
		DiffShiftColumn(9), DiffShiftColumn(11),
		PeriodTrendColumn, DayIncreaseColumn,
		RollingColumn("mean", 7), RollingColumn("q75", 13),
		StationarityColumn(7), StationarityColumn(14), StationarityColumn(30),
	} {
		if !asm.X.Has(col) {
			t.Errorf("Missing column %s", col)
		}
	}
}

func TestAssembler_RowCap(t *testing.T) {
	a := NewAssembler(DefaultConfig(), constantPValue(0.2))
	asm, err := a.Assemble(wavySeries(300), 3, 100)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if asm.X.Len() != 100 || len(asm.Y) != 100 {
		t.Errorf("Expected 100 rows, got %d", asm.X.Len())
	}
	if !asm.X.Index()[99].Equal(testBaseTime.AddDate(0, 0, 299)) {
		t.Error("Row cap must keep the most recent rows")
	}
}

func TestRowCapPolicy_DirectCap(t *testing.T) {
	p := DefaultConfig().RowCaps
	tests := map[int]int{1: 1200, 7: 1200, 8: 1500, 19: 1500, 20: 1200, 60: 1200}
	for h, want := range tests {
		if got := p.DirectCap(h); got != want {
			t.Errorf("DirectCap(%d) = %d, expected %d", h, got, want)
		}
	}
	if p.RecursiveCap != 1200 {
		t.Errorf("Expected recursive cap 1200, got %d", p.RecursiveCap)
	}
}

func TestAssembler_Errors(t *testing.T) {
	a := NewAssembler(DefaultConfig(), constantPValue(0.2))

	if _, err := a.Assemble(wavySeries(50), 0, 0); !errors.Is(err, analytics.ErrInvalidWindowConfig) {
		t.Errorf("Expected ErrInvalidWindowConfig for zero reference, got %v", err)
	}
	if _, err := a.Assemble(wavySeries(11), 7, 0); !errors.Is(err, analytics.ErrInsufficientHistory) {
		t.Errorf("Expected ErrInsufficientHistory, got %v", err)
	}

	cfg := DefaultConfig()
	cfg.LagOffsets = []int{1, 2}
	if err := NewAssembler(cfg, nil).Validate(3); !errors.Is(err, analytics.ErrInvalidWindowConfig) {
		t.Errorf("Expected ErrInvalidWindowConfig for offsets not starting at 0, got %v", err)
	}
	cfg = DefaultConfig()
	cfg.StationarityWindows = WindowSet{14, 7}
	if err := NewAssembler(cfg, nil).Validate(3); !errors.Is(err, analytics.ErrInvalidWindowConfig) {
		t.Errorf("Expected ErrInvalidWindowConfig for unordered windows, got %v", err)
	}
}

func TestAssembler_DefaultADF(t *testing.T) {
	a := NewAssembler(DefaultConfig(), nil)
	asm, err := a.Assemble(wavySeries(150), 5, 0)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	for _, w := range DefaultConfig().StationarityWindows {
		for i, p := range asm.X.Col(StationarityColumn(w)) {
			if p < 0 || p > 1 {
				t.Fatalf("window %d row %d: p-value %v out of range", w, i, p)
			}
		}
	}
}

func BenchmarkAssemble(b *testing.B) {
	series := wavySeries(2000)
	a := NewAssembler(DefaultConfig(), nil)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = a.Assemble(series, 7, 1200)
	}
}
