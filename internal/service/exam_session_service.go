package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-mock/internal/attempt"
	"github.com/stemsi/exstem-mock/internal/event"
	"github.com/stemsi/exstem-mock/internal/model"
	"github.com/stemsi/exstem-mock/internal/program"
	"github.com/stemsi/exstem-mock/internal/questionbank"
	"github.com/stemsi/exstem-mock/internal/session"
)

var (
	ErrSessionNotFound   = errors.New("session not found")
	ErrNotSubmitted      = errors.New("session has not been submitted")
	ErrInvalidNavigation = errors.New("invalid navigation request")
)

const saveTimeout = 10 * time.Second

// Navigation actions.
const (
	NavGoto     = "goto"
	NavNext     = "next"
	NavPrevious = "previous"
	NavAdvance  = "advance"
)

// SubmitOutcome is the graded result of a session. The score is always
// present once submitted; Saved reports whether the attempt reached the store.
type SubmitOutcome struct {
	Result    model.ScoreResult  `json:"result"`
	Reason    model.SubmitReason `json:"reason"`
	Saved     bool               `json:"saved"`
	AttemptID string             `json:"attempt_id,omitempty"`
	SaveError string             `json:"save_error,omitempty"`
}

// SessionView is what the candidate sees: questions without answers, the
// live state and, once submitted, the outcome.
type SessionView struct {
	ID        string                      `json:"id"`
	ProgramID string                      `json:"program_id"`
	Variant   string                      `json:"variant"`
	Locked    bool                        `json:"forward_lock"`
	Sections  []model.SectionForCandidate `json:"sections"`
	State     model.SessionState          `json:"state"`
	Outcome   *SubmitOutcome              `json:"outcome,omitempty"`
}

// UpdateKind tags a pushed update.
type UpdateKind string

const (
	UpdateState  UpdateKind = "state"
	UpdateGraded UpdateKind = "graded"
)

// Update is pushed to subscribers after every tick and on grading.
type Update struct {
	Kind    UpdateKind
	State   model.SessionState
	Outcome *SubmitOutcome
}

type liveSession struct {
	id    string
	plan  program.Plan
	timer *session.Timer

	mu         sync.Mutex
	sess       *session.Session
	outcome    *SubmitOutcome
	finishedAt time.Time
	abandoned  bool

	subMu sync.Mutex
	subs  map[chan Update]struct{}
}

// ExamSessionService owns the registry of live sessions and drives each
// session's timer, grading and persistence.
type ExamSessionService struct {
	programs *program.Registry
	bank     questionbank.Provider
	attempts *attempt.Store
	events   event.Publisher
	clock    session.Clock
	log      zerolog.Logger

	mu   sync.RWMutex
	live map[string]*liveSession
}

// NewExamSessionService creates a new ExamSessionService.
func NewExamSessionService(
	programs *program.Registry,
	bank questionbank.Provider,
	attempts *attempt.Store,
	events event.Publisher,
	clock session.Clock,
	log zerolog.Logger,
) *ExamSessionService {
	if clock == nil {
		clock = session.SystemClock{}
	}
	if events == nil {
		events = event.Nop{}
	}
	return &ExamSessionService{
		programs: programs,
		bank:     bank,
		attempts: attempts,
		events:   events,
		clock:    clock,
		log:      log.With().Str("component", "session_service").Logger(),
		live:     map[string]*liveSession{},
	}
}

// Start builds the requested mock, starts it and arms its timer.
func (s *ExamSessionService) Start(ctx context.Context, req model.StartSessionRequest) (*SessionView, error) {
	p, err := s.programs.Lookup(req.ProgramID)
	if err != nil {
		return nil, err
	}
	plan, err := p.Build(ctx, s.bank, program.Variant(req.Variant), req.SectionID)
	if err != nil {
		return nil, err
	}
	sess, err := session.New(plan.Session, s.clock)
	if err != nil {
		return nil, fmt.Errorf("build session: %w", err)
	}
	if err := sess.Start(); err != nil {
		return nil, fmt.Errorf("start session: %w", err)
	}

	ls := &liveSession{
		id:   uuid.NewString(),
		plan: plan,
		sess: sess,
		subs: map[chan Update]struct{}{},
	}
	ls.timer = session.StartTimer(s.clock, func(elapsed int) bool {
		return s.onTick(ls, elapsed)
	})

	s.mu.Lock()
	s.live[ls.id] = ls
	s.mu.Unlock()

	s.log.Info().
		Str("session_id", ls.id).
		Str("program", plan.ProgramID).
		Str("variant", plan.Label()).
		Int("questions", plan.Session.QuestionSet.Total()).
		Int("duration_s", plan.Session.TotalDurationSeconds).
		Msg("Session started")

	ls.mu.Lock()
	defer ls.mu.Unlock()
	return s.viewLocked(ls), nil
}

// Get returns the current view of a session.
func (s *ExamSessionService) Get(id string) (*SessionView, error) {
	ls, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	ls.mu.Lock()
	defer ls.mu.Unlock()
	return s.viewLocked(ls), nil
}

// SelectAnswer records option for the active question; a nil option clears it.
func (s *ExamSessionService) SelectAnswer(id string, questionIndex int, option *int) (*SessionView, error) {
	return s.mutate(id, func(sess *session.Session) error {
		if option == nil {
			return sess.ClearAnswer(questionIndex)
		}
		return sess.SelectAnswer(questionIndex, *option)
	})
}

// ToggleFlag flips the review flag of a question.
func (s *ExamSessionService) ToggleFlag(id string, questionIndex int) (*SessionView, error) {
	return s.mutate(id, func(sess *session.Session) error {
		return sess.ToggleReviewFlag(questionIndex)
	})
}

// Navigate applies one navigation action. goto requires questionIndex.
func (s *ExamSessionService) Navigate(id, action string, questionIndex *int) (*SessionView, error) {
	return s.mutate(id, func(sess *session.Session) error {
		switch action {
		case NavGoto:
			if questionIndex == nil {
				return fmt.Errorf("%w: goto requires question_index", ErrInvalidNavigation)
			}
			return sess.GoToQuestion(*questionIndex)
		case NavNext:
			return sess.GoNext()
		case NavPrevious:
			return sess.GoPrevious()
		case NavAdvance:
			return sess.AdvanceSection()
		default:
			return fmt.Errorf("%w: unknown action %q", ErrInvalidNavigation, action)
		}
	})
}

// Submit grades and saves the session. Repeated calls return the same
// outcome. A failed save still returns the score with Saved=false.
func (s *ExamSessionService) Submit(id string) (*SubmitOutcome, error) {
	ls, err := s.lookup(id)
	if err != nil {
		return nil, err
	}

	ls.mu.Lock()
	if ls.abandoned {
		ls.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	if _, err := ls.sess.Submit(); err != nil {
		ls.mu.Unlock()
		return nil, err
	}
	graded := s.finalizeLocked(ls)
	out := *ls.outcome
	state := ls.sess.State()
	ls.mu.Unlock()

	// Lock released first: a pending tick needs it to observe SUBMITTED and exit.
	ls.timer.Stop()
	if graded {
		ls.broadcast(Update{Kind: UpdateGraded, State: state, Outcome: &out})
	}
	return &out, nil
}

// RetrySave re-attempts persistence of a submitted session whose save failed.
func (s *ExamSessionService) RetrySave(id string) (*SubmitOutcome, error) {
	ls, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	ls.mu.Lock()
	defer ls.mu.Unlock()

	if ls.outcome == nil {
		return nil, ErrNotSubmitted
	}
	if !ls.outcome.Saved {
		s.saveLocked(ls)
	}
	out := *ls.outcome
	return &out, nil
}

// Abandon tears a session down without persisting anything.
func (s *ExamSessionService) Abandon(ctx context.Context, id string) error {
	s.mu.Lock()
	ls, ok := s.live[id]
	delete(s.live, id)
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	s.teardown(ctx, ls)
	return nil
}

// Subscribe registers for pushed updates. The channel is closed when the
// session leaves the registry; cancel unsubscribes early.
func (s *ExamSessionService) Subscribe(id string) (<-chan Update, func(), error) {
	ls, err := s.lookup(id)
	if err != nil {
		return nil, nil, err
	}
	ch := make(chan Update, 8)

	ls.subMu.Lock()
	if ls.subs == nil {
		ls.subMu.Unlock()
		return nil, nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	ls.subs[ch] = struct{}{}
	ls.subMu.Unlock()

	cancel := func() {
		ls.subMu.Lock()
		defer ls.subMu.Unlock()
		if _, ok := ls.subs[ch]; ok {
			delete(ls.subs, ch)
			close(ch)
		}
	}
	return ch, cancel, nil
}

// EvictFinished drops submitted sessions graded more than olderThan ago.
func (s *ExamSessionService) EvictFinished(olderThan time.Duration) int {
	now := s.clock.Now()
	var evicted []*liveSession

	s.mu.Lock()
	for id, ls := range s.live {
		ls.mu.Lock()
		done := ls.outcome != nil && now.Sub(ls.finishedAt) >= olderThan
		ls.mu.Unlock()
		if done {
			delete(s.live, id)
			evicted = append(evicted, ls)
		}
	}
	s.mu.Unlock()

	for _, ls := range evicted {
		ls.timer.Stop()
		ls.closeSubs()
	}
	return len(evicted)
}

// Shutdown abandons every live session.
func (s *ExamSessionService) Shutdown(ctx context.Context) {
	s.mu.Lock()
	all := make([]*liveSession, 0, len(s.live))
	for id, ls := range s.live {
		all = append(all, ls)
		delete(s.live, id)
	}
	s.mu.Unlock()

	for _, ls := range all {
		s.teardown(ctx, ls)
	}
	if len(all) > 0 {
		s.log.Info().Int("sessions", len(all)).Msg("Live sessions torn down")
	}
}

// LiveCount returns the number of sessions in the registry.
func (s *ExamSessionService) LiveCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.live)
}

// ----------------------------------------------------------------
// Internals
// ----------------------------------------------------------------

func (s *ExamSessionService) lookup(id string) (*liveSession, error) {
	s.mu.RLock()
	ls, ok := s.live[id]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return ls, nil
}

func (s *ExamSessionService) mutate(id string, fn func(*session.Session) error) (*SessionView, error) {
	ls, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	ls.mu.Lock()
	defer ls.mu.Unlock()
	if ls.abandoned {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	if err := fn(ls.sess); err != nil {
		return nil, err
	}
	return s.viewLocked(ls), nil
}

// onTick runs on the timer goroutine.
func (s *ExamSessionService) onTick(ls *liveSession, elapsed int) bool {
	ls.mu.Lock()
	if ls.abandoned {
		ls.mu.Unlock()
		return false
	}
	auto := ls.sess.Tick(elapsed)
	graded := false
	if auto {
		graded = s.finalizeLocked(ls)
	}
	running := ls.sess.Lifecycle() == model.LifecycleInProgress
	state := ls.sess.State()
	var out *SubmitOutcome
	if ls.outcome != nil {
		o := *ls.outcome
		out = &o
	}
	ls.mu.Unlock()

	if graded {
		ls.broadcast(Update{Kind: UpdateGraded, State: state, Outcome: out})
	} else if running {
		ls.broadcast(Update{Kind: UpdateState, State: state})
	}
	return running
}

// finalizeLocked grades a submitted session exactly once and attempts the
// save. It reports whether this call did the grading.
func (s *ExamSessionService) finalizeLocked(ls *liveSession) bool {
	if ls.outcome != nil {
		return false
	}
	answers, _ := ls.sess.Submit()
	ls.outcome = &SubmitOutcome{
		Result: ls.plan.Scheme.Score(ls.sess.QuestionSet(), answers),
		Reason: ls.sess.SubmitReason(),
	}
	ls.finishedAt = s.clock.Now()

	s.log.Info().
		Str("session_id", ls.id).
		Str("reason", string(ls.outcome.Reason)).
		Float64("raw_score", ls.outcome.Result.RawScore).
		Float64("percentage", ls.outcome.Result.Percentage).
		Msg("Session submitted")

	s.saveLocked(ls)
	return true
}

func (s *ExamSessionService) saveLocked(ls *liveSession) {
	answers, _ := ls.sess.Submit()
	draft := model.AttemptDraft{
		ExamType:         ls.plan.ProgramID,
		Variant:          ls.plan.Label(),
		TimeSpentSeconds: ls.sess.TimeSpentSeconds(),
		QuestionSet:      ls.sess.QuestionSet(),
		Answers:          answers,
		ReviewFlags:      ls.sess.ReviewFlags(),
		SubmitReason:     ls.sess.SubmitReason(),
		Result:           ls.outcome.Result,
	}

	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()

	a, err := s.attempts.Save(ctx, draft)
	if err != nil {
		ls.outcome.Saved = false
		ls.outcome.SaveError = err.Error()
		s.log.Error().Err(err).Str("session_id", ls.id).Msg("Failed to save attempt")
		return
	}
	ls.outcome.Saved = true
	ls.outcome.AttemptID = a.ID
	ls.outcome.SaveError = ""

	ev := event.ForAttempt(event.AttemptSaved, *a)
	ev.SessionID = ls.id
	if err := s.events.Publish(ctx, ev); err != nil {
		s.log.Warn().Err(err).Str("attempt_id", a.ID).Msg("Failed to publish attempt event")
	}
}

func (s *ExamSessionService) teardown(ctx context.Context, ls *liveSession) {
	ls.mu.Lock()
	ls.abandoned = true
	inProgress := ls.sess.Lifecycle() == model.LifecycleInProgress
	ls.mu.Unlock()

	ls.timer.Stop()
	ls.closeSubs()

	if !inProgress {
		return
	}
	s.log.Info().Str("session_id", ls.id).Msg("Session abandoned")
	ev := event.New(event.SessionAbandoned)
	ev.SessionID = ls.id
	ev.ExamType = ls.plan.ProgramID
	ev.Variant = ls.plan.Label()
	if err := s.events.Publish(ctx, ev); err != nil {
		s.log.Warn().Err(err).Str("session_id", ls.id).Msg("Failed to publish abandon event")
	}
}

func (s *ExamSessionService) viewLocked(ls *liveSession) *SessionView {
	v := &SessionView{
		ID:        ls.id,
		ProgramID: ls.plan.ProgramID,
		Variant:   ls.plan.Label(),
		Locked:    ls.sess.Policy().ForwardLock,
		Sections:  ls.sess.QuestionSet().ForCandidate(),
		State:     ls.sess.State(),
	}
	if ls.outcome != nil {
		o := *ls.outcome
		v.Outcome = &o
	}
	return v
}

// broadcast never blocks: slow subscribers miss intermediate states.
func (ls *liveSession) broadcast(u Update) {
	ls.subMu.Lock()
	defer ls.subMu.Unlock()
	for ch := range ls.subs {
		select {
		case ch <- u:
		default:
		}
	}
}

func (ls *liveSession) closeSubs() {
	ls.subMu.Lock()
	defer ls.subMu.Unlock()
	for ch := range ls.subs {
		close(ch)
	}
	ls.subs = nil
}
