package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/ratecast/ratecast/internal/analytics"
	"github.com/ratecast/ratecast/internal/analytics/forecast"
	"github.com/ratecast/ratecast/internal/ingest"
	"github.com/ratecast/ratecast/internal/resultstore"
)

func TestServiceError_Error(t *testing.T) {
	err := &ServiceError{
		Code:    "TEST_ERROR",
		Message: "Test error message",
	}

	if err.Error() != "Test error message" {
		t.Errorf("Expected 'Test error message', got '%s'", err.Error())
	}
}

func TestNewServiceErrorWithDetails(t *testing.T) {
	details := map[string]interface{}{
		"field":  "horizon",
		"reason": "must be positive",
	}

	err := NewServiceErrorWithDetails(CodeInvalidRequest, "Validation failed", details)

	if err.Code != CodeInvalidRequest {
		t.Errorf("Expected code %s, got '%s'", CodeInvalidRequest, err.Code)
	}
	if err.Details["field"] != "horizon" {
		t.Errorf("Expected field 'horizon', got '%v'", err.Details["field"])
	}
}

func TestServiceError_JSONOmitsCause(t *testing.T) {
	err := classify(fmt.Errorf("wrapped: %w", analytics.ErrInsufficientHistory))

	data, marshalErr := json.Marshal(err)
	if marshalErr != nil {
		t.Fatalf("Failed to marshal: %v", marshalErr)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Failed to unmarshal: %v", err)
	}
	if _, ok := decoded["Err"]; ok {
		t.Error("Cause must not be serialized")
	}
	if _, ok := decoded["details"]; ok {
		t.Error("Expected details to be omitted when nil")
	}
	if decoded["code"] != CodeInsufficientHistory {
		t.Errorf("Expected code %s, got %v", CodeInsufficientHistory, decoded["code"])
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"insufficient history", fmt.Errorf("direct: %w", analytics.ErrInsufficientHistory), CodeInsufficientHistory},
		{"invalid windows", fmt.Errorf("assemble: %w", analytics.ErrInvalidWindowConfig), CodeInvalidWindowConfig},
		{"fit failure", &forecast.FitError{Model: "gbm", Err: errors.New("singular")}, CodeModelFitFailed},
		{"not found", fmt.Errorf("get: %w", resultstore.ErrNotFound), CodeNotFound},
		{"no data", ingest.ErrNoData, CodeNoData},
		{"other", errors.New("boom"), CodeInternal},
		{"passthrough", NewServiceError(CodeInvalidStrategy, "nope"), CodeInvalidStrategy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classify(tt.err)
			if got.Code != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, got.Code)
			}
			if got.Message == "" {
				t.Error("Expected a message")
			}
		})
	}

	var fitErr *forecast.FitError
	se := classify(&forecast.FitError{Model: "ridge", Err: errors.New("x")})
	if !errors.As(se, &fitErr) || fitErr.Model != "ridge" {
		t.Error("Expected the cause to stay reachable through Unwrap")
	}
}
