package features

import (
	"fmt"
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// RollingStatNames lists the statistics produced for every window, in column order
var RollingStatNames = []string{"mean", "std", "min", "max", "q25", "q75"}

// RollingColumn returns the column name of a rolling statistic
func RollingColumn(stat string, w int) string {
	return fmt.Sprintf("roll_%s_%d", stat, w)
}

// RollingStats computes trailing-window mean, std, min, max and quartiles
// for every window size. A window holds up to w observations ending at the
// current row; NaN inputs are skipped and a window with no valid observation
// yields NaN. Std of a single observation is NaN.
func RollingStats(index []time.Time, values []float64, windows WindowSet) (*Frame, error) {
	if err := windows.Validate(); err != nil {
		return nil, err
	}
	if len(index) != len(values) {
		return nil, fmt.Errorf("index and values length mismatch: %d != %d", len(index), len(values))
	}

	n := len(values)
	frame := NewFrame(index)
	buf := make([]float64, 0, windows[len(windows)-1])

	for _, w := range windows {
		cols := make(map[string][]float64, len(RollingStatNames))
		for _, name := range RollingStatNames {
			cols[name] = nanSlice(n)
		}

		for i := 0; i < n; i++ {
			buf = buf[:0]
			for j := max(0, i-w+1); j <= i; j++ {
				if !math.IsNaN(values[j]) {
					buf = append(buf, values[j])
				}
			}
			if len(buf) == 0 {
				continue
			}

			cols["mean"][i] = stat.Mean(buf, nil)
			if len(buf) > 1 {
				cols["std"][i] = stat.StdDev(buf, nil)
			}
			cols["min"][i] = floats.Min(buf)
			cols["max"][i] = floats.Max(buf)

			sort.Float64s(buf)
			cols["q25"][i] = quantileSorted(buf, 0.25)
			cols["q75"][i] = quantileSorted(buf, 0.75)
		}

		for _, name := range RollingStatNames {
			_ = frame.Set(RollingColumn(name, w), cols[name])
		}
	}

	return frame, nil
}

// quantileSorted interpolates linearly between the order statistics
// surrounding position q*(n-1).
func quantileSorted(sorted []float64, q float64) float64 {
	n := len(sorted)
	if n == 1 {
		return sorted[0]
	}
	pos := q * float64(n-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}
