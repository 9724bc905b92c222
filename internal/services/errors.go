// Package services provides the business logic layer between handlers and
// the forecasting core.
package services

import (
	"errors"

	"github.com/ratecast/ratecast/internal/analytics"
	"github.com/ratecast/ratecast/internal/analytics/forecast"
	"github.com/ratecast/ratecast/internal/ingest"
	"github.com/ratecast/ratecast/internal/resultstore"
)

// Error codes returned by the service layer
const (
	CodeInsufficientHistory = "INSUFFICIENT_HISTORY"
	CodeInvalidWindowConfig = "INVALID_WINDOW_CONFIG"
	CodeInvalidStrategy     = "INVALID_STRATEGY"
	CodeInvalidRequest      = "INVALID_REQUEST"
	CodeModelFitFailed      = "MODEL_FIT_FAILED"
	CodeNotFound            = "NOT_FOUND"
	CodeNoData              = "NO_DATA"
	CodeUnavailable         = "UNAVAILABLE"
	CodeInternal            = "INTERNAL_ERROR"
)

// ServiceError represents a service layer error
type ServiceError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
	Err     error                  `json:"-"`
}

func (e *ServiceError) Error() string {
	return e.Message
}

// Unwrap returns the underlying cause, if any
func (e *ServiceError) Unwrap() error {
	return e.Err
}

// NewServiceError creates a new ServiceError
func NewServiceError(code, message string) *ServiceError {
	return &ServiceError{
		Code:    code,
		Message: message,
	}
}

// NewServiceErrorWithDetails creates a new ServiceError with details
func NewServiceErrorWithDetails(code, message string, details map[string]interface{}) *ServiceError {
	return &ServiceError{
		Code:    code,
		Message: message,
		Details: details,
	}
}

// classify maps an error from the core or a backend to a ServiceError.
// ServiceErrors pass through unchanged.
func classify(err error) *ServiceError {
	var se *ServiceError
	if errors.As(err, &se) {
		return se
	}

	code := CodeInternal
	var fitErr *forecast.FitError
	switch {
	case errors.Is(err, analytics.ErrInsufficientHistory):
		code = CodeInsufficientHistory
	case errors.Is(err, analytics.ErrInvalidWindowConfig):
		code = CodeInvalidWindowConfig
	case errors.As(err, &fitErr):
		code = CodeModelFitFailed
	case errors.Is(err, resultstore.ErrNotFound):
		code = CodeNotFound
	case errors.Is(err, ingest.ErrNoData):
		code = CodeNoData
	}
	return &ServiceError{Code: code, Message: err.Error(), Err: err}
}
