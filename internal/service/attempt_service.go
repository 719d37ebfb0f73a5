package service

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-mock/internal/attempt"
	"github.com/stemsi/exstem-mock/internal/event"
	"github.com/stemsi/exstem-mock/internal/model"
	"github.com/stemsi/exstem-mock/internal/review"
)

// AttemptService exposes the stored attempt history.
type AttemptService struct {
	store  *attempt.Store
	events event.Publisher
	log    zerolog.Logger
}

// NewAttemptService creates a new AttemptService.
func NewAttemptService(store *attempt.Store, events event.Publisher, log zerolog.Logger) *AttemptService {
	if events == nil {
		events = event.Nop{}
	}
	return &AttemptService{
		store:  store,
		events: events,
		log:    log.With().Str("component", "attempt_service").Logger(),
	}
}

// ReviewResult is the filtered review of one attempt.
type ReviewResult struct {
	Attempt model.AttemptSummary `json:"attempt"`
	Filter  review.Filter        `json:"filter"`
	Items   []review.Item        `json:"items"`
}

// List returns attempt summaries, most recent first, optionally restricted
// to one exam type.
func (s *AttemptService) List(ctx context.Context, examType string) ([]model.AttemptSummary, error) {
	all, err := s.store.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]model.AttemptSummary, 0, len(all))
	for _, a := range all {
		if examType != "" && a.ExamType != examType {
			continue
		}
		out = append(out, a.Summary())
	}
	return out, nil
}

// Get returns one attempt with its embedded questions.
func (s *AttemptService) Get(ctx context.Context, id string) (*model.Attempt, error) {
	return s.store.Get(ctx, id)
}

// Review filters an attempt's questions.
func (s *AttemptService) Review(ctx context.Context, id string, f review.Filter) (*ReviewResult, error) {
	a, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return &ReviewResult{
		Attempt: a.Summary(),
		Filter:  f,
		Items:   review.FilterAttempt(*a, f),
	}, nil
}

// Delete removes an attempt and announces it.
func (s *AttemptService) Delete(ctx context.Context, id string) error {
	a, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	if err := s.events.Publish(ctx, event.ForAttempt(event.AttemptDeleted, *a)); err != nil {
		s.log.Warn().Err(err).Str("attempt_id", id).Msg("Failed to publish delete event")
	}
	return nil
}

// Stats aggregates the history per exam type.
func (s *AttemptService) Stats(ctx context.Context) ([]model.ExamStats, error) {
	return s.store.Stats(ctx)
}
