package features

import (
	"fmt"

	"github.com/ratecast/ratecast/internal/analytics/stattest"
)

// DegeneratePValue is assigned to blocks on which the unit-root test cannot be computed.
const DegeneratePValue = 1.0

// StationarityColumn returns the name of the stationarity column for window w
func StationarityColumn(w int) string {
	return fmt.Sprintf("window_stationarity_%d", w)
}

// SkippedBlock describes rows that did not receive a tested p-value
type SkippedBlock struct {
	Window int
	Start  int // first row, inclusive
	End    int // last row, exclusive
	Reason string
}

// Skip reasons
const (
	SkipPartialBlock = "partial_block"
	SkipDegenerate   = "degenerate"
)

// AnnotateStationarity adds one window_stationarity_<w> column per window.
// Rows are cut into floor(len/w) contiguous blocks of w rows and every row of
// a block carries the p-value of test applied to the reference column within
// it. Rows after the last full block keep 0 and are reported as skipped.
func AnnotateStationarity(frame *Frame, refColumn string, windows WindowSet, test stattest.PValueFunc) ([]SkippedBlock, error) {
	if err := windows.Validate(); err != nil {
		return nil, err
	}
	ref := frame.Col(refColumn)
	if ref == nil {
		return nil, fmt.Errorf("unknown reference column: %s", refColumn)
	}
	if test == nil {
		test = stattest.ADFPValue
	}

	var skipped []SkippedBlock
	n := frame.Len()
	for _, w := range windows {
		col := make([]float64, n)
		blocks := n / w
		for b := 0; b < blocks; b++ {
			start, end := b*w, (b+1)*w
			p, err := test(ref[start:end])
			if err != nil {
				p = DegeneratePValue
				skipped = append(skipped, SkippedBlock{Window: w, Start: start, End: end, Reason: SkipDegenerate})
			}
			for i := start; i < end; i++ {
				col[i] = p
			}
		}
		if tail := blocks * w; tail < n {
			skipped = append(skipped, SkippedBlock{Window: w, Start: tail, End: n, Reason: SkipPartialBlock})
		}
		if err := frame.Set(StationarityColumn(w), col); err != nil {
			return nil, err
		}
	}
	return skipped, nil
}
