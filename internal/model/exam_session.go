package model

// Lifecycle enumerates exam session states.
type Lifecycle string

const (
	LifecycleNotStarted Lifecycle = "NOT_STARTED"
	LifecycleInProgress Lifecycle = "IN_PROGRESS"
	LifecycleSubmitted  Lifecycle = "SUBMITTED"
)

// SubmitReason records how a session reached SUBMITTED.
type SubmitReason string

const (
	SubmitReasonManual  SubmitReason = "MANUAL"
	SubmitReasonTimeout SubmitReason = "TIMEOUT"
)

// AnswerVector maps a global question index to the selected option index.
// A nil entry means unanswered.
type AnswerVector []*int

// NewAnswerVector returns an all-unanswered vector of length n.
func NewAnswerVector(n int) AnswerVector {
	return make(AnswerVector, n)
}

// Clone returns a deep copy so callers can never mutate session state.
func (v AnswerVector) Clone() AnswerVector {
	if v == nil {
		return nil
	}
	out := make(AnswerVector, len(v))
	for i, sel := range v {
		if sel != nil {
			x := *sel
			out[i] = &x
		}
	}
	return out
}

// Answered returns the number of non-nil entries.
func (v AnswerVector) Answered() int {
	n := 0
	for _, sel := range v {
		if sel != nil {
			n++
		}
	}
	return n
}

// SessionState is a read-only snapshot of a running or finished session.
type SessionState struct {
	Lifecycle                   Lifecycle    `json:"lifecycle"`
	ActiveQuestionIndex         int          `json:"active_question_index"`
	ActiveSectionIndex          int          `json:"active_section_index"`
	FirstOpenSectionIndex       int          `json:"first_open_section_index"`
	GlobalTimeRemainingSeconds  int          `json:"global_time_remaining_seconds"`
	SectionTimeRemainingSeconds []int        `json:"section_time_remaining_seconds"`
	Answers                     AnswerVector `json:"answers"`
	ReviewFlags                 []int        `json:"review_flags"`
	StartedAtEpochMillis        int64        `json:"started_at_epoch_millis"`
	SubmitReason                SubmitReason `json:"submit_reason,omitempty"`
}
