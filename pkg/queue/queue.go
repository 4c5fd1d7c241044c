// Package queue runs typed background jobs off a Redis list.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Job handles every message of one type.
type Job interface {
	Name() string
	Type() string
	Handle(ctx context.Context, payload json.RawMessage) error
}

// Config sizes the worker pool and the retry schedule.
type Config struct {
	Workers    int
	RetryLimit int
	RetryDelay time.Duration
	// PollTimeout bounds one blocking pop so workers notice Stop.
	PollTimeout time.Duration
}

// Message is the stored envelope. Attempts counts failed runs so far.
type Message struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	Payload    json.RawMessage `json:"payload"`
	Attempts   int             `json:"attempts"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
}

// ParsePayload decodes a job payload into T.
func ParsePayload[T any](payload json.RawMessage) (*T, error) {
	var out T
	if len(payload) == 0 {
		return nil, fmt.Errorf("empty payload")
	}
	if err := json.Unmarshal(payload, &out); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	return &out, nil
}
