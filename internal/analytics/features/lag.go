package features

import (
	"fmt"
	"math"

	"github.com/ratecast/ratecast/internal/analytics"
)

// Column names produced by the lag builder
const (
	PeriodTrendColumn = "period_trend"
	DayIncreaseColumn = "day_increase"
)

// WindowSet is an ordered list of positive lag or window sizes.
// For lag sets, element 0 is the reference shift.
type WindowSet []int

// Validate checks that the set is non-empty, positive and strictly increasing
func (ws WindowSet) Validate() error {
	if len(ws) == 0 {
		return fmt.Errorf("%w: empty window set", analytics.ErrInvalidWindowConfig)
	}
	for i, w := range ws {
		if w <= 0 {
			return fmt.Errorf("%w: non-positive window %d", analytics.ErrInvalidWindowConfig, w)
		}
		if i > 0 && w <= ws[i-1] {
			return fmt.Errorf("%w: windows not strictly increasing at %d", analytics.ErrInvalidWindowConfig, w)
		}
	}
	return nil
}

// Offset returns {base+o for o in offsets}
func Offset(base int, offsets []int) WindowSet {
	ws := make(WindowSet, len(offsets))
	for i, o := range offsets {
		ws[i] = base + o
	}
	return ws
}

// ShiftColumn returns the name of the shifted-value column for lag w
func ShiftColumn(w int) string {
	return fmt.Sprintf("shift_%d", w)
}

// DiffShiftColumn returns the name of the shift difference column for lag w
func DiffShiftColumn(w int) string {
	return fmt.Sprintf("diff_shift_%d", w)
}

// LagFeatures derives shifted values, shift differences, the monotonic run
// length and day-over-day deltas from a series.
//
// The first lags[0]+1 rows of period_trend and day_increase are filler zeros.
// A non-increasing step (including equal values) continues a down-run.
func LagFeatures(series analytics.Series, lags WindowSet) (*Frame, error) {
	if err := lags.Validate(); err != nil {
		return nil, err
	}
	ref := lags[0]
	n := series.Len()
	if n < ref+1 {
		return nil, fmt.Errorf("%w: lag features need at least %d points, have %d",
			analytics.ErrInsufficientHistory, ref+1, n)
	}

	values := series.Values()
	frame := NewFrame(series.Times())

	for _, w := range lags {
		_ = frame.Set(ShiftColumn(w), shift(values, w))
	}

	refCol := frame.Col(ShiftColumn(ref))
	for _, w := range lags[1:] {
		col := frame.Col(ShiftColumn(w))
		diff := make([]float64, n)
		for i := range diff {
			diff[i] = col[i] - refCol[i]
		}
		_ = frame.Set(DiffShiftColumn(w), diff)
	}

	_ = frame.Set(PeriodTrendColumn, periodTrend(values, ref))
	_ = frame.Set(DayIncreaseColumn, dayIncrease(values, ref))

	return frame, nil
}

// shift moves values forward by w positions, filling the head with NaN
func shift(values []float64, w int) []float64 {
	out := make([]float64, len(values))
	for i := range out {
		if i < w {
			out[i] = math.NaN()
			continue
		}
		out[i] = values[i-w]
	}
	return out
}

func periodTrend(values []float64, ref int) []float64 {
	out := make([]float64, len(values))
	up, down := 0, 0
	for i := ref + 1; i < len(values); i++ {
		if values[i] > values[i-1] {
			up++
			down = 0
			out[i] = float64(up)
		} else {
			down++
			up = 0
			out[i] = float64(down)
		}
	}
	return out
}

func dayIncrease(values []float64, ref int) []float64 {
	out := make([]float64, len(values))
	for i := ref + 1; i < len(values); i++ {
		out[i] = values[i] - values[i-1]
	}
	return out
}
