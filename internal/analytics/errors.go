package analytics

import "errors"

var (
	// ErrInsufficientHistory is returned when a horizon or window exceeds the
	// rows left after leak-free trimming.
	ErrInsufficientHistory = errors.New("insufficient history")

	// ErrInvalidWindowConfig is returned for non-positive step sizes or
	// window sets that are not strictly increasing.
	ErrInvalidWindowConfig = errors.New("invalid window configuration")
)
