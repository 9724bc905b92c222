package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// DefaultSubject carries RunCompleted events
const DefaultSubject = "forecast.completed"

// Run statuses
const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// RunCompleted announces the end of a forecast run
type RunCompleted struct {
	RunID       string    `json:"run_id"`
	Status      string    `json:"status"`
	Strategy    string    `json:"strategy"`
	Horizon     int       `json:"horizon"`
	Step        int       `json:"step,omitempty"`
	MAE         float64   `json:"mae,omitempty"`
	RMSE        float64   `json:"rmse,omitempty"`
	ElapsedMS   int64     `json:"elapsed_ms"`
	Error       string    `json:"error,omitempty"`
	CompletedAt time.Time `json:"completed_at"`
}

// Events publishes run lifecycle events as JSON
type Events struct {
	pub     Publisher
	subject string
}

// NewEvents returns an Events publishing on subject, or DefaultSubject when
// subject is empty.
func NewEvents(pub Publisher, subject string) *Events {
	if subject == "" {
		subject = DefaultSubject
	}
	return &Events{pub: pub, subject: subject}
}

// Subject returns the subject events are published on
func (e *Events) Subject() string {
	return e.subject
}

// RunCompleted publishes ev
func (e *Events) RunCompleted(ctx context.Context, ev RunCompleted) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to encode run event: %w", err)
	}
	return e.pub.Publish(ctx, e.subject, data)
}

// Close closes the underlying publisher
func (e *Events) Close() error {
	return e.pub.Close()
}

// DecodeRunCompleted parses a RunCompleted payload
func DecodeRunCompleted(data []byte) (RunCompleted, error) {
	var ev RunCompleted
	if err := json.Unmarshal(data, &ev); err != nil {
		return RunCompleted{}, fmt.Errorf("failed to decode run event: %w", err)
	}
	if ev.RunID == "" {
		return RunCompleted{}, fmt.Errorf("run event without run_id")
	}
	return ev, nil
}

// WatchRunCompleted subscribes fn to RunCompleted events on subject.
// Undecodable payloads are acknowledged and dropped.
func WatchRunCompleted(sub Subscriber, subject string, fn func(RunCompleted) error) error {
	if subject == "" {
		subject = DefaultSubject
	}
	return sub.Subscribe(subject, func(data []byte) error {
		ev, err := DecodeRunCompleted(data)
		if err != nil {
			return nil
		}
		return fn(ev)
	})
}
