// Package queue moves deferred jobs between the API and the workers. Jobs are
// JSON envelopes; Redis lists and Kafka topics are the supported backends.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

type Job struct {
	Kind       string          `json:"kind"`
	Payload    json.RawMessage `json:"payload"`
	Attempts   int             `json:"attempts"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
}

func NewJob(kind string, payload any, now time.Time) (Job, error) {
	if kind == "" {
		return Job{}, errors.New("job kind is required")
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return Job{}, fmt.Errorf("marshal %s payload: %w", kind, err)
	}
	return Job{Kind: kind, Payload: raw, EnqueuedAt: now.UTC()}, nil
}

// Decode unmarshals the payload into dst.
func (j Job) Decode(dst any) error {
	if err := json.Unmarshal(j.Payload, dst); err != nil {
		return fmt.Errorf("decode %s payload: %w", j.Kind, err)
	}
	return nil
}

type Handler func(ctx context.Context, job Job) error

// ErrUnknownKind is returned by Mux for jobs with no registered handler.
var ErrUnknownKind = errors.New("unknown job kind")

// Mux dispatches jobs to handlers by kind.
type Mux struct {
	handlers map[string]Handler
}

func NewMux() *Mux {
	return &Mux{handlers: make(map[string]Handler)}
}

func (m *Mux) Handle(kind string, h Handler) {
	m.handlers[kind] = h
}

func (m *Mux) Dispatch(ctx context.Context, job Job) error {
	h, ok := m.handlers[job.Kind]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownKind, job.Kind)
	}
	return h(ctx, job)
}
