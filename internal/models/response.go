package models

import (
	"time"

	"github.com/ratecast/ratecast/internal/resultstore"
)

// HealthResponse represents health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

// StrategiesResponse lists the available forecasting strategies
type StrategiesResponse struct {
	Strategies []string `json:"strategies"`
	Default    string   `json:"default"`
}

// RunSummary is a stored run without its points and diagnostics
type RunSummary struct {
	ID        string    `json:"id"`
	Status    string    `json:"status"`
	Strategy  string    `json:"strategy"`
	Horizon   int       `json:"horizon"`
	Step      int       `json:"step,omitempty"`
	MAE       float64   `json:"mae"`
	CreatedAt time.Time `json:"created_at"`
	ElapsedMS int64     `json:"elapsed_ms"`
	Error     string    `json:"error,omitempty"`
}

// RunListResponse represents list runs response
type RunListResponse struct {
	Runs  []RunSummary `json:"runs"`
	Count int          `json:"count"`
}

// NewRunSummary summarises a stored run
func NewRunSummary(r *resultstore.Record) RunSummary {
	return RunSummary{
		ID:        r.ID,
		Status:    r.Status,
		Strategy:  r.Strategy,
		Horizon:   r.Horizon,
		Step:      r.Step,
		MAE:       r.MAE,
		CreatedAt: r.CreatedAt,
		ElapsedMS: r.ElapsedMS,
		Error:     r.Error,
	}
}

// ErrorResponse represents error response
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail represents error details
type ErrorDetail struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Path    string                 `json:"path,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
}
