package features

import (
	"fmt"

	"github.com/ratecast/ratecast/internal/analytics"
	"github.com/ratecast/ratecast/internal/analytics/stattest"
)

// TargetColumn is the name of the raw target column during assembly
const TargetColumn = "y"

// Config holds the window layout used by the assembler
type Config struct {
	LagOffsets          []int     // added to the reference shift; first entry must be 0
	RollingOffsets      []int     // added to the reference shift
	StationarityWindows WindowSet // absolute block sizes
	RowCaps             RowCapPolicy
}

// RowCapPolicy bounds how many trailing rows are kept for training
type RowCapPolicy struct {
	ShortHorizonMax int // horizons at or below keep DefaultCap
	LongHorizonMin  int // horizons at or above keep DefaultCap
	DefaultCap      int
	MidCap          int // horizons strictly between the two thresholds
	RecursiveCap    int
}

// DefaultConfig returns the default feature layout
func DefaultConfig() Config {
	return Config{
		LagOffsets:          []int{0, 2, 4},
		RollingOffsets:      []int{0, 2, 4, 6},
		StationarityWindows: WindowSet{7, 14, 30},
		RowCaps: RowCapPolicy{
			ShortHorizonMax: 7,
			LongHorizonMin:  20,
			DefaultCap:      1200,
			MidCap:          1500,
			RecursiveCap:    1200,
		},
	}
}

// DirectCap returns the row cap for a single-shot forecast of the given horizon
func (p RowCapPolicy) DirectCap(horizon int) int {
	if horizon <= p.ShortHorizonMax || horizon >= p.LongHorizonMin {
		return p.DefaultCap
	}
	return p.MidCap
}

// Assembly is the output of Assemble
type Assembly struct {
	X         *Frame
	Y         []float64
	Reference int
	Skipped   []SkippedBlock
}

// Assembler composes lag, rolling and stationarity features into one frame
type Assembler struct {
	cfg  Config
	test stattest.PValueFunc
}

// NewAssembler creates an assembler. A nil test defaults to ADF.
func NewAssembler(cfg Config, test stattest.PValueFunc) *Assembler {
	if test == nil {
		test = stattest.ADFPValue
	}
	return &Assembler{cfg: cfg, test: test}
}

// Config returns the assembler's window layout
func (a *Assembler) Config() Config {
	return a.cfg
}

// Validate checks the window layout for a given reference shift
func (a *Assembler) Validate(reference int) error {
	if reference <= 0 {
		return fmt.Errorf("%w: reference shift must be positive, got %d", analytics.ErrInvalidWindowConfig, reference)
	}
	if len(a.cfg.LagOffsets) == 0 || a.cfg.LagOffsets[0] != 0 {
		return fmt.Errorf("%w: lag offsets must start at 0", analytics.ErrInvalidWindowConfig)
	}
	if err := Offset(reference, a.cfg.LagOffsets).Validate(); err != nil {
		return err
	}
	if err := Offset(reference, a.cfg.RollingOffsets).Validate(); err != nil {
		return err
	}
	return a.cfg.StationarityWindows.Validate()
}

// Assemble builds the feature matrix for series using `reference` as the
// primary shift. Rows with incomplete history are dropped, stationarity is
// annotated on the remaining rows and only the last rowCap rows are kept
// (rowCap <= 0 keeps everything). X and Y share the same index.
func (a *Assembler) Assemble(series analytics.Series, reference, rowCap int) (*Assembly, error) {
	if err := a.Validate(reference); err != nil {
		return nil, err
	}

	lags := Offset(reference, a.cfg.LagOffsets)
	frame, err := LagFeatures(series, lags)
	if err != nil {
		return nil, err
	}

	refColumn := ShiftColumn(reference)
	rolling, err := RollingStats(frame.Index(), frame.Col(refColumn), Offset(reference, a.cfg.RollingOffsets))
	if err != nil {
		return nil, err
	}
	if err := frame.Join(rolling); err != nil {
		return nil, err
	}
	if err := frame.Set(TargetColumn, series.Values()); err != nil {
		return nil, err
	}

	frame = frame.DropNaN()
	if frame.Len() == 0 {
		return nil, fmt.Errorf("%w: no complete feature rows from %d points", analytics.ErrInsufficientHistory, series.Len())
	}

	skipped, err := AnnotateStationarity(frame, refColumn, a.cfg.StationarityWindows, a.test)
	if err != nil {
		return nil, err
	}

	if rowCap > 0 {
		frame = frame.Tail(rowCap)
	}

	y := cloneFloats(frame.Col(TargetColumn))
	return &Assembly{
		X:         frame.Drop(TargetColumn),
		Y:         y,
		Reference: reference,
		Skipped:   skipped,
	}, nil
}
