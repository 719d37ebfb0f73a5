// Package event publishes attempt lifecycle events for downstream consumers
// (analytics, progress dashboards).
package event

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/exstem-mock/internal/model"
)

type Type string

const (
	AttemptSaved     Type = "attempt.saved"
	AttemptDeleted   Type = "attempt.deleted"
	SessionAbandoned Type = "session.abandoned"
)

// Event is the JSON body of every published message. Type doubles as the
// routing key.
type Event struct {
	ID                  string    `json:"id"`
	Type                Type      `json:"type"`
	OccurredAt          time.Time `json:"occurred_at"`
	SessionID           string    `json:"session_id,omitempty"`
	AttemptID           string    `json:"attempt_id,omitempty"`
	ExamType            string    `json:"exam_type,omitempty"`
	Variant             string    `json:"variant,omitempty"`
	Percentage          float64   `json:"percentage,omitempty"`
	EstimatedPercentile float64   `json:"estimated_percentile,omitempty"`
}

// New stamps an event with a fresh id and the current time.
func New(t Type) Event {
	return Event{ID: uuid.NewString(), Type: t, OccurredAt: time.Now().UTC()}
}

// ForAttempt builds an event describing a stored attempt.
func ForAttempt(t Type, a model.Attempt) Event {
	ev := New(t)
	ev.AttemptID = a.ID
	ev.ExamType = a.ExamType
	ev.Variant = a.Variant
	ev.Percentage = a.Result.Percentage
	ev.EstimatedPercentile = a.Result.EstimatedPercentile
	return ev
}

// Publisher delivers events. Publishing is best-effort: callers log failures
// and carry on.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
func (Nop) Close() error                         { return nil }
