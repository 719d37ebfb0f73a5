package attempt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-mock/internal/config"
	"github.com/stemsi/exstem-mock/internal/kv"
	"github.com/stemsi/exstem-mock/internal/model"
)

var (
	ErrNotFound    = errors.New("attempt not found")
	ErrPersistence = errors.New("attempt persistence failure")
)

// DefaultMaxAttempts bounds the stored history when no limit is configured.
const DefaultMaxAttempts = 50

// Store is the bounded, most-recent-first attempt history. The index key
// holds the ordered id list; each attempt body lives under its own key. The
// index is authoritative: bodies it does not name are garbage.
type Store struct {
	kv        kv.Store
	namespace string
	max       int
	log       zerolog.Logger

	// mu serialises index read-modify-write within the process.
	mu    sync.Mutex
	now   func() time.Time
	newID func() (uuid.UUID, error)
}

func NewStore(store kv.Store, namespace string, maxAttempts int, log zerolog.Logger) *Store {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return &Store{
		kv:        store,
		namespace: namespace,
		max:       maxAttempts,
		log:       log.With().Str("component", "attempt_store").Logger(),
		now:       time.Now,
		newID:     uuid.NewV7,
	}
}

// Save records draft as a new attempt at the head of the history and trims
// the oldest beyond the bound. On error nothing previously stored changes.
func (s *Store) Save(ctx context.Context, draft model.AttemptDraft) (*model.Attempt, error) {
	id, err := s.newID()
	if err != nil {
		return nil, fmt.Errorf("%w: generate id: %w", ErrPersistence, err)
	}
	a := &model.Attempt{
		ID:               id.String(),
		ExamType:         draft.ExamType,
		Variant:          draft.Variant,
		CreatedAt:        s.now().UTC(),
		TimeSpentSeconds: draft.TimeSpentSeconds,
		QuestionSet:      draft.QuestionSet,
		Answers:          draft.Answers.Clone(),
		ReviewFlags:      append([]int(nil), draft.ReviewFlags...),
		SubmitReason:     draft.SubmitReason,
		Result:           draft.Result,
	}
	body, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("%w: encode attempt: %w", ErrPersistence, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ids, err := s.readIndex(ctx)
	if err != nil {
		return nil, err
	}

	bodyKey := config.CacheKey.AttemptKey(s.namespace, a.ID)
	if err := s.kv.Set(ctx, bodyKey, string(body)); err != nil {
		return nil, fmt.Errorf("%w: write attempt: %w", ErrPersistence, err)
	}

	next := append([]string{a.ID}, ids...)
	var trimmed []string
	if len(next) > s.max {
		trimmed = next[s.max:]
		next = next[:s.max]
	}
	if err := s.writeIndex(ctx, next); err != nil {
		if rmErr := s.kv.Remove(ctx, bodyKey); rmErr != nil {
			s.log.Warn().Err(rmErr).Str("attempt_id", a.ID).Msg("Failed to remove orphaned attempt body")
		}
		return nil, err
	}

	for _, old := range trimmed {
		if err := s.kv.Remove(ctx, config.CacheKey.AttemptKey(s.namespace, old)); err != nil {
			s.log.Warn().Err(err).Str("attempt_id", old).Msg("Failed to remove trimmed attempt body")
		}
	}
	if len(trimmed) > 0 {
		s.log.Info().Int("trimmed", len(trimmed)).Msg("Attempt history trimmed")
	}

	s.log.Info().
		Str("attempt_id", a.ID).
		Str("exam_type", a.ExamType).
		Float64("percentage", a.Result.Percentage).
		Msg("Attempt saved")
	return a, nil
}

// ListAll returns every stored attempt, most recent first. Index entries
// whose body is missing are skipped.
func (s *Store) ListAll(ctx context.Context) ([]model.Attempt, error) {
	s.mu.Lock()
	ids, err := s.readIndex(ctx)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	out := make([]model.Attempt, 0, len(ids))
	for _, id := range ids {
		a, err := s.readBody(ctx, id)
		if errors.Is(err, ErrNotFound) {
			s.log.Warn().Str("attempt_id", id).Msg("Indexed attempt has no body")
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, nil
}

// Get returns the attempt with id, or ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (*model.Attempt, error) {
	s.mu.Lock()
	ids, err := s.readIndex(ctx)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if indexOf(ids, id) < 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return s.readBody(ctx, id)
}

// Delete removes the attempt with id, or returns ErrNotFound.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids, err := s.readIndex(ctx)
	if err != nil {
		return err
	}
	i := indexOf(ids, id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	next := append(append([]string{}, ids[:i]...), ids[i+1:]...)
	if err := s.writeIndex(ctx, next); err != nil {
		return err
	}
	if err := s.kv.Remove(ctx, config.CacheKey.AttemptKey(s.namespace, id)); err != nil {
		s.log.Warn().Err(err).Str("attempt_id", id).Msg("Failed to remove deleted attempt body")
	}
	s.log.Info().Str("attempt_id", id).Msg("Attempt deleted")
	return nil
}

// Stats aggregates stored attempts per exam type, ordered by exam type.
func (s *Store) Stats(ctx context.Context) ([]model.ExamStats, error) {
	all, err := s.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	return Aggregate(all), nil
}

// Aggregate computes per-exam statistics over attempts.
func Aggregate(attempts []model.Attempt) []model.ExamStats {
	byType := map[string]*model.ExamStats{}
	sums := map[string]float64{}
	for _, a := range attempts {
		st, ok := byType[a.ExamType]
		if !ok {
			st = &model.ExamStats{
				ExamType:       a.ExamType,
				BestPercentage: a.Result.Percentage,
				BestPercentile: a.Result.EstimatedPercentile,
			}
			byType[a.ExamType] = st
		}
		st.Attempts++
		sums[a.ExamType] += a.Result.Percentage
		if a.Result.Percentage > st.BestPercentage {
			st.BestPercentage = a.Result.Percentage
		}
		if a.Result.EstimatedPercentile > st.BestPercentile {
			st.BestPercentile = a.Result.EstimatedPercentile
		}
	}

	out := make([]model.ExamStats, 0, len(byType))
	for t, st := range byType {
		avg := sums[t] / float64(st.Attempts)
		st.AveragePercentage = math.Round(avg*10) / 10
		out = append(out, *st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExamType < out[j].ExamType })
	return out
}

func (s *Store) readIndex(ctx context.Context) ([]string, error) {
	raw, ok, err := s.kv.Get(ctx, config.CacheKey.AttemptIndexKey(s.namespace))
	if err != nil {
		return nil, fmt.Errorf("%w: read index: %w", ErrPersistence, err)
	}
	if !ok || raw == "" {
		return nil, nil
	}
	var ids []string
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		return nil, fmt.Errorf("%w: decode index: %w", ErrPersistence, err)
	}
	return ids, nil
}

func (s *Store) writeIndex(ctx context.Context, ids []string) error {
	if ids == nil {
		ids = []string{}
	}
	raw, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("%w: encode index: %w", ErrPersistence, err)
	}
	if err := s.kv.Set(ctx, config.CacheKey.AttemptIndexKey(s.namespace), string(raw)); err != nil {
		return fmt.Errorf("%w: write index: %w", ErrPersistence, err)
	}
	return nil
}

func (s *Store) readBody(ctx context.Context, id string) (*model.Attempt, error) {
	raw, ok, err := s.kv.Get(ctx, config.CacheKey.AttemptKey(s.namespace, id))
	if err != nil {
		return nil, fmt.Errorf("%w: read attempt %s: %w", ErrPersistence, id, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	var a model.Attempt
	if err := json.Unmarshal([]byte(raw), &a); err != nil {
		return nil, fmt.Errorf("%w: decode attempt %s: %w", ErrPersistence, id, err)
	}
	return &a, nil
}

func indexOf(ids []string, id string) int {
	for i, v := range ids {
		if v == id {
			return i
		}
	}
	return -1
}
