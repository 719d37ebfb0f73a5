// Package session implements the timed multi-section exam session engine: the
// state machine that owns the answer vector, review flags, timers and the
// active question pointer for one attempt, plus the navigation rules layered
// over it.
//
// A Session is not safe for concurrent use. Callers serialize every mutating
// call (answers, flags, ticks, navigation) in arrival order.
package session

import (
	"fmt"
	"sort"
	"time"

	"github.com/stemsi/exstem-mock/internal/model"
)

// SectionPolicy configures navigation between sections.
type SectionPolicy struct {
	// ForwardLock makes section transitions one-way: once the candidate
	// moves past a section it can never be revisited. Each section is also
	// held to its own time limit.
	ForwardLock bool
}

// Config parameterizes one session.
type Config struct {
	QuestionSet          model.QuestionSet
	TotalDurationSeconds int
	Policy               SectionPolicy
}

func (c Config) validate() error {
	if c.TotalDurationSeconds <= 0 {
		return fmt.Errorf("%w: total duration must be positive", ErrInvalidConfig)
	}
	if len(c.QuestionSet.Sections) == 0 {
		return fmt.Errorf("%w: no sections", ErrInvalidConfig)
	}
	for _, s := range c.QuestionSet.Sections {
		if len(s.Questions) == 0 {
			return fmt.Errorf("%w: section %s has no questions", ErrInvalidConfig, s.ID)
		}
		if s.TimeLimitSeconds <= 0 {
			return fmt.Errorf("%w: section %s has no time limit", ErrInvalidConfig, s.ID)
		}
	}
	return nil
}

// Session is the state machine for one attempt:
// NOT_STARTED -> IN_PROGRESS -> SUBMITTED (terminal).
type Session struct {
	cfg     Config
	clock   Clock
	offsets []int
	total   int

	lifecycle        model.Lifecycle
	active           int
	activeSection    int
	firstOpen        int
	globalRemaining  int
	sectionRemaining []int
	answers          model.AnswerVector
	flags            map[int]struct{}
	startedAt        time.Time
	submitReason     model.SubmitReason
	final            model.AnswerVector
}

// New builds a NOT_STARTED session.
func New(cfg Config, clock Clock) (*Session, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if clock == nil {
		clock = SystemClock{}
	}

	total := cfg.QuestionSet.Total()
	sectionRemaining := make([]int, len(cfg.QuestionSet.Sections))
	for i, s := range cfg.QuestionSet.Sections {
		sectionRemaining[i] = s.TimeLimitSeconds
	}

	return &Session{
		cfg:              cfg,
		clock:            clock,
		offsets:          cfg.QuestionSet.Offsets(),
		total:            total,
		lifecycle:        model.LifecycleNotStarted,
		globalRemaining:  cfg.TotalDurationSeconds,
		sectionRemaining: sectionRemaining,
		answers:          model.NewAnswerVector(total),
		flags:            map[int]struct{}{},
	}, nil
}

// Start moves the session to IN_PROGRESS, recording the start time and arming
// the global timer.
func (s *Session) Start() error {
	switch s.lifecycle {
	case model.LifecycleInProgress:
		return ErrAlreadyStarted
	case model.LifecycleSubmitted:
		return ErrSessionClosed
	}
	s.lifecycle = model.LifecycleInProgress
	s.startedAt = s.clock.Now()
	s.globalRemaining = s.cfg.TotalDurationSeconds
	return nil
}

// SelectAnswer records optionIndex for the active question, overwriting any
// previous answer.
func (s *Session) SelectAnswer(questionIndex, optionIndex int) error {
	if err := s.requireInProgress(); err != nil {
		return err
	}
	if err := s.requireActive(questionIndex); err != nil {
		return err
	}
	q := s.cfg.QuestionSet.Question(questionIndex)
	if optionIndex < 0 || optionIndex >= len(q.Options) {
		return fmt.Errorf("%w: option %d for question %d", ErrOutOfRange, optionIndex, questionIndex)
	}
	sel := optionIndex
	s.answers[questionIndex] = &sel
	return nil
}

// ClearAnswer resets the active question to unanswered.
func (s *Session) ClearAnswer(questionIndex int) error {
	if err := s.requireInProgress(); err != nil {
		return err
	}
	if err := s.requireActive(questionIndex); err != nil {
		return err
	}
	s.answers[questionIndex] = nil
	return nil
}

// ToggleReviewFlag adds or removes questionIndex from the review set.
func (s *Session) ToggleReviewFlag(questionIndex int) error {
	if err := s.requireInProgress(); err != nil {
		return err
	}
	if questionIndex < 0 || questionIndex >= s.total {
		return fmt.Errorf("%w: question %d", ErrOutOfRange, questionIndex)
	}
	if _, ok := s.flags[questionIndex]; ok {
		delete(s.flags, questionIndex)
	} else {
		s.flags[questionIndex] = struct{}{}
	}
	return nil
}

// Tick drains elapsedSeconds from the global timer and the active section's
// timer. It reports whether this tick auto-submitted the session. Ticks
// outside IN_PROGRESS are no-ops. Tick never scores.
func (s *Session) Tick(elapsedSeconds int) (autoSubmitted bool) {
	if s.lifecycle != model.LifecycleInProgress || elapsedSeconds <= 0 {
		return false
	}

	s.globalRemaining = max(s.globalRemaining-elapsedSeconds, 0)
	s.sectionRemaining[s.activeSection] = max(s.sectionRemaining[s.activeSection]-elapsedSeconds, 0)

	if s.globalRemaining == 0 {
		s.freeze(model.SubmitReasonTimeout)
		return true
	}

	// Under forward-lock an expired section hands over to the next one, and
	// the last section's expiry ends the session.
	if s.cfg.Policy.ForwardLock && s.sectionRemaining[s.activeSection] == 0 {
		if s.activeSection == len(s.offsets)-1 {
			s.freeze(model.SubmitReasonTimeout)
			return true
		}
		s.enterSection(s.activeSection + 1)
	}
	return false
}

// Submit freezes the session and returns the final answer snapshot. A second
// call returns the same snapshot.
func (s *Session) Submit() (model.AnswerVector, error) {
	switch s.lifecycle {
	case model.LifecycleNotStarted:
		return nil, ErrNotStarted
	case model.LifecycleInProgress:
		s.freeze(model.SubmitReasonManual)
	}
	return s.final.Clone(), nil
}

func (s *Session) freeze(reason model.SubmitReason) {
	s.lifecycle = model.LifecycleSubmitted
	s.submitReason = reason
	s.final = s.answers.Clone()
}

// Lifecycle returns the current lifecycle state.
func (s *Session) Lifecycle() model.Lifecycle { return s.lifecycle }

// QuestionSet returns the set the session was built from.
func (s *Session) QuestionSet() model.QuestionSet { return s.cfg.QuestionSet }

// Policy returns the section policy.
func (s *Session) Policy() SectionPolicy { return s.cfg.Policy }

// StartedAt returns the wall-clock start time (zero before Start).
func (s *Session) StartedAt() time.Time { return s.startedAt }

// TimeSpentSeconds is the configured duration minus the remaining global time.
func (s *Session) TimeSpentSeconds() int {
	if s.lifecycle == model.LifecycleNotStarted {
		return 0
	}
	return s.cfg.TotalDurationSeconds - s.globalRemaining
}

// SubmitReason returns how the session was submitted, or "" if it was not.
func (s *Session) SubmitReason() model.SubmitReason { return s.submitReason }

// ReviewFlags returns the flagged indices in ascending order.
func (s *Session) ReviewFlags() []int {
	out := make([]int, 0, len(s.flags))
	for i := range s.flags {
		out = append(out, i)
	}
	sort.Ints(out)
	return out
}

// State returns a snapshot that shares no memory with the session.
func (s *Session) State() model.SessionState {
	answers := s.answers
	if s.lifecycle == model.LifecycleSubmitted {
		answers = s.final
	}
	var startedAt int64
	if !s.startedAt.IsZero() {
		startedAt = s.startedAt.UnixMilli()
	}
	return model.SessionState{
		Lifecycle:                   s.lifecycle,
		ActiveQuestionIndex:         s.active,
		ActiveSectionIndex:          s.activeSection,
		FirstOpenSectionIndex:       s.firstOpen,
		GlobalTimeRemainingSeconds:  s.globalRemaining,
		SectionTimeRemainingSeconds: append([]int(nil), s.sectionRemaining...),
		Answers:                     answers.Clone(),
		ReviewFlags:                 s.ReviewFlags(),
		StartedAtEpochMillis:        startedAt,
		SubmitReason:                s.submitReason,
	}
}

func (s *Session) requireInProgress() error {
	switch s.lifecycle {
	case model.LifecycleNotStarted:
		return ErrNotStarted
	case model.LifecycleSubmitted:
		return ErrSessionClosed
	}
	return nil
}

func (s *Session) requireActive(questionIndex int) error {
	if questionIndex < 0 || questionIndex >= s.total {
		return fmt.Errorf("%w: question %d", ErrOutOfRange, questionIndex)
	}
	if questionIndex != s.active {
		return fmt.Errorf("%w: %d (active %d)", ErrNotActiveQuestion, questionIndex, s.active)
	}
	return nil
}

// sectionOf returns the section containing a global question index.
func (s *Session) sectionOf(globalIndex int) int {
	// offsets is ascending; the last offset <= globalIndex owns the question.
	return sort.Search(len(s.offsets), func(i int) bool { return s.offsets[i] > globalIndex }) - 1
}
