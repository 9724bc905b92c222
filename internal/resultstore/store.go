// Package resultstore keeps finished forecast runs so they can be fetched by
// run ID after the request that produced them has returned.
package resultstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ratecast/ratecast/internal/analytics/anomaly"
	"github.com/ratecast/ratecast/internal/compression"
	"github.com/ratecast/ratecast/internal/config"
)

// ErrNotFound is returned when no run is stored under an ID
var ErrNotFound = errors.New("run not found")

// Run statuses
const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// Point pairs a predicted value with the realised one
type Point struct {
	Time      time.Time `json:"time"`
	Predicted float64   `json:"predicted"`
	Actual    float64   `json:"actual"`
}

// Step summarises one recursive step
type Step struct {
	Index     int       `json:"index"`
	Size      int       `json:"size"`
	Final     bool      `json:"final"`
	Start     time.Time `json:"start"`
	MAE       float64   `json:"mae"`
	TrainRows int       `json:"train_rows"`
}

// Selection records which feature columns were kept
type Selection struct {
	Requested int      `json:"requested"`
	Selected  []string `json:"selected"`
	Error     string   `json:"error,omitempty"`
}

// Record is a stored run
type Record struct {
	ID               string    `json:"id"`
	Status           string    `json:"status"`
	Strategy         string    `json:"strategy"`
	Horizon          int       `json:"horizon"`
	Step             int       `json:"step,omitempty"`
	FeatureSelection bool      `json:"feature_selection"`
	Model            string    `json:"model,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	CompletedAt      time.Time `json:"completed_at"`
	ElapsedMS        int64     `json:"elapsed_ms"`

	Points  []Point  `json:"points,omitempty"`
	MAE     float64  `json:"mae"`
	RMSE    float64  `json:"rmse"`
	MAPE    float64  `json:"mape"`
	Columns []string `json:"columns,omitempty"`

	Selection     *Selection        `json:"selection,omitempty"`
	Steps         []Step            `json:"steps,omitempty"`
	SkippedBlocks int               `json:"skipped_blocks"`
	Anomalies     []anomaly.Anomaly `json:"anomalies,omitempty"`
	Error         string            `json:"error,omitempty"`
}

// Store persists run records
type Store interface {
	// Put stores r under r.ID, replacing any previous record
	Put(ctx context.Context, r *Record) error

	// Get returns the record stored under id or ErrNotFound
	Get(ctx context.Context, id string) (*Record, error)

	// List returns up to limit records, newest first
	List(ctx context.Context, limit int) ([]*Record, error)

	// Delete removes the record stored under id or returns ErrNotFound
	Delete(ctx context.Context, id string) error

	// Close releases the backend
	Close() error
}

// New creates the configured store
func New(cfg config.StoreConfig) (Store, error) {
	switch cfg.Type {
	case "", "memory":
		c, err := newCodec(cfg.Compress)
		if err != nil {
			return nil, err
		}
		return newMemoryStore(c, cfg.TTL), nil
	case "redis":
		return newRedisStore(cfg)
	default:
		return nil, fmt.Errorf("unsupported store type: %s (supported: memory, redis)", cfg.Type)
	}
}

// codec turns records into framed bytes
type codec struct {
	compressor compression.Compressor
}

func newCodec(compress bool) (codec, error) {
	algo := compression.None
	if compress {
		algo = compression.Snappy
	}
	c, err := compression.GetCompressor(algo)
	if err != nil {
		return codec{}, err
	}
	return codec{compressor: c}, nil
}

func (c codec) encode(r *Record) ([]byte, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("failed to encode run %s: %w", r.ID, err)
	}
	return compression.Encode(c.compressor, data)
}

func (c codec) decode(frame []byte) (*Record, error) {
	data, err := compression.Decode(frame)
	if err != nil {
		return nil, err
	}
	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to decode run: %w", err)
	}
	return &r, nil
}

func validateRecord(r *Record) error {
	if r == nil || r.ID == "" {
		return fmt.Errorf("record without id")
	}
	return nil
}
