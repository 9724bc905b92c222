// Package features derives lagged, trend, rolling-statistic and stationarity
// features from a univariate series and assembles them into a Frame aligned
// with the forecast target.
package features

import (
	"fmt"
	"math"
	"time"
)

// Frame is a column-oriented feature matrix keyed by a time index.
// Column order is insertion order and is preserved by every operation.
type Frame struct {
	index   []time.Time
	columns []string
	data    map[string][]float64
}

// NewFrame creates an empty frame over the given index
func NewFrame(index []time.Time) *Frame {
	idx := make([]time.Time, len(index))
	copy(idx, index)
	return &Frame{
		index: idx,
		data:  make(map[string][]float64),
	}
}

// Len returns the number of rows
func (f *Frame) Len() int {
	return len(f.index)
}

// Index returns the row timestamps
func (f *Frame) Index() []time.Time {
	return f.index
}

// Columns returns the column names in order
func (f *Frame) Columns() []string {
	out := make([]string, len(f.columns))
	copy(out, f.columns)
	return out
}

// Has reports whether the frame contains the named column
func (f *Frame) Has(name string) bool {
	_, ok := f.data[name]
	return ok
}

// Col returns the values of a column, or nil when absent
func (f *Frame) Col(name string) []float64 {
	return f.data[name]
}

// Set adds or replaces a column. The values slice is owned by the frame afterwards.
func (f *Frame) Set(name string, values []float64) error {
	if len(values) != len(f.index) {
		return fmt.Errorf("column %s: length %d does not match index length %d", name, len(values), len(f.index))
	}
	if _, ok := f.data[name]; !ok {
		f.columns = append(f.columns, name)
	}
	f.data[name] = values
	return nil
}

// Drop returns a copy of the frame without the named columns
func (f *Frame) Drop(names ...string) *Frame {
	skip := make(map[string]bool, len(names))
	for _, n := range names {
		skip[n] = true
	}
	out := NewFrame(f.index)
	for _, c := range f.columns {
		if skip[c] {
			continue
		}
		_ = out.Set(c, cloneFloats(f.data[c]))
	}
	return out
}

// Select returns a copy restricted to the given columns in the given order
func (f *Frame) Select(names []string) (*Frame, error) {
	out := NewFrame(f.index)
	for _, n := range names {
		col, ok := f.data[n]
		if !ok {
			return nil, fmt.Errorf("unknown column: %s", n)
		}
		_ = out.Set(n, cloneFloats(col))
	}
	return out, nil
}

// Join appends the columns of other. Both frames must share the same length.
func (f *Frame) Join(other *Frame) error {
	if other.Len() != f.Len() {
		return fmt.Errorf("cannot join frames of %d and %d rows", f.Len(), other.Len())
	}
	for _, c := range other.columns {
		if err := f.Set(c, cloneFloats(other.data[c])); err != nil {
			return err
		}
	}
	return nil
}

// Slice returns a copy of rows [start, end)
func (f *Frame) Slice(start, end int) *Frame {
	if start < 0 {
		start = 0
	}
	if end > f.Len() {
		end = f.Len()
	}
	if start > end {
		start = end
	}
	out := NewFrame(f.index[start:end])
	for _, c := range f.columns {
		_ = out.Set(c, cloneFloats(f.data[c][start:end]))
	}
	return out
}

// Head returns the first n rows
func (f *Frame) Head(n int) *Frame {
	return f.Slice(0, n)
}

// Tail returns the last n rows, or the whole frame when it is shorter
func (f *Frame) Tail(n int) *Frame {
	return f.Slice(f.Len()-n, f.Len())
}

// DropNaN returns a copy without any row holding a NaN in any column
func (f *Frame) DropNaN() *Frame {
	keep := make([]int, 0, f.Len())
	for i := 0; i < f.Len(); i++ {
		complete := true
		for _, c := range f.columns {
			if math.IsNaN(f.data[c][i]) {
				complete = false
				break
			}
		}
		if complete {
			keep = append(keep, i)
		}
	}

	index := make([]time.Time, len(keep))
	for j, i := range keep {
		index[j] = f.index[i]
	}
	out := NewFrame(index)
	for _, c := range f.columns {
		src := f.data[c]
		col := make([]float64, len(keep))
		for j, i := range keep {
			col[j] = src[i]
		}
		_ = out.Set(c, col)
	}
	return out
}

// HasNaN reports whether any cell is NaN
func (f *Frame) HasNaN() bool {
	for _, c := range f.columns {
		for _, v := range f.data[c] {
			if math.IsNaN(v) {
				return true
			}
		}
	}
	return false
}

// Rows returns the matrix in row-major order using the frame's column order
func (f *Frame) Rows() [][]float64 {
	rows := make([][]float64, f.Len())
	for i := range rows {
		row := make([]float64, len(f.columns))
		for j, c := range f.columns {
			row[j] = f.data[c][i]
		}
		rows[i] = row
	}
	return rows
}

// Concat stacks b below a. Both frames must have identical columns.
func Concat(a, b *Frame) (*Frame, error) {
	if len(a.columns) != len(b.columns) {
		return nil, fmt.Errorf("column count mismatch: %d != %d", len(a.columns), len(b.columns))
	}
	index := make([]time.Time, 0, a.Len()+b.Len())
	index = append(index, a.index...)
	index = append(index, b.index...)
	out := NewFrame(index)
	for _, c := range a.columns {
		bc, ok := b.data[c]
		if !ok {
			return nil, fmt.Errorf("column %s missing from second frame", c)
		}
		col := make([]float64, 0, len(index))
		col = append(col, a.data[c]...)
		col = append(col, bc...)
		_ = out.Set(c, col)
	}
	return out, nil
}

func cloneFloats(v []float64) []float64 {
	out := make([]float64, len(v))
	copy(out, v)
	return out
}

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}
