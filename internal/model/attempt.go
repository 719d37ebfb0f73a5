package model

import "time"

// ScoreResult is computed once at submission and embedded in the Attempt.
type ScoreResult struct {
	Correct             int     `json:"correct"`
	Incorrect           int     `json:"incorrect"`
	Unanswered          int     `json:"unanswered"`
	RawScore            float64 `json:"raw_score"`
	MaxScore            float64 `json:"max_score"`
	Percentage          float64 `json:"percentage"`
	EstimatedPercentile float64 `json:"estimated_percentile"`
}

// AttemptDraft is everything the Attempt Store needs to record a submitted
// session. The store assigns ID and CreatedAt.
type AttemptDraft struct {
	ExamType         string
	Variant          string
	TimeSpentSeconds int
	QuestionSet      QuestionSet
	Answers          AnswerVector
	ReviewFlags      []int
	SubmitReason     SubmitReason
	Result           ScoreResult
}

// Attempt is an immutable record of one completed session. Questions are
// embedded verbatim so review survives changes to the live question bank.
type Attempt struct {
	ID               string       `json:"id"`
	ExamType         string       `json:"exam_type"`
	Variant          string       `json:"variant"`
	CreatedAt        time.Time    `json:"created_at"`
	TimeSpentSeconds int          `json:"time_spent_seconds"`
	QuestionSet      QuestionSet  `json:"question_set"`
	Answers          AnswerVector `json:"answers"`
	ReviewFlags      []int        `json:"review_flags,omitempty"`
	SubmitReason     SubmitReason `json:"submit_reason,omitempty"`
	Result           ScoreResult  `json:"result"`
}

// AttemptSummary is the list-view projection of an Attempt (no questions).
type AttemptSummary struct {
	ID               string      `json:"id"`
	ExamType         string      `json:"exam_type"`
	Variant          string      `json:"variant"`
	CreatedAt        time.Time   `json:"created_at"`
	TimeSpentSeconds int         `json:"time_spent_seconds"`
	TotalQuestions   int         `json:"total_questions"`
	Result           ScoreResult `json:"result"`
}

// Summary projects the attempt for list views.
func (a Attempt) Summary() AttemptSummary {
	return AttemptSummary{
		ID:               a.ID,
		ExamType:         a.ExamType,
		Variant:          a.Variant,
		CreatedAt:        a.CreatedAt,
		TimeSpentSeconds: a.TimeSpentSeconds,
		TotalQuestions:   a.QuestionSet.Total(),
		Result:           a.Result,
	}
}

// ExamStats aggregates stored attempts for one exam type.
type ExamStats struct {
	ExamType          string  `json:"exam_type"`
	Attempts          int     `json:"attempts"`
	BestPercentage    float64 `json:"best_percentage"`
	AveragePercentage float64 `json:"average_percentage"`
	BestPercentile    float64 `json:"best_percentile"`
}

// StartSessionRequest is the payload for starting a mock test.
type StartSessionRequest struct {
	ProgramID string `json:"program_id" binding:"required,min=1,max=64"`
	Variant   string `json:"variant" binding:"required,oneof=full section"`
	SectionID string `json:"section_id" binding:"required_if=Variant section,max=64"`
}

// SelectAnswerRequest is the payload for answering the active question.
type SelectAnswerRequest struct {
	QuestionIndex *int `json:"question_index" binding:"required,min=0"`
	OptionIndex   *int `json:"option_index" binding:"omitempty,min=0"`
}

// ToggleFlagRequest is the payload for toggling a review flag.
type ToggleFlagRequest struct {
	QuestionIndex *int `json:"question_index" binding:"required,min=0"`
}

// NavigateRequest is the payload for moving within a session.
type NavigateRequest struct {
	Action        string `json:"action" binding:"required,oneof=goto next previous advance"`
	QuestionIndex *int   `json:"question_index" binding:"omitempty,min=0"`
}

// ListAttemptsQuery filters and pages the attempt history.
type ListAttemptsQuery struct {
	ExamType string `form:"exam_type" binding:"omitempty,max=64"`
	Page     int    `form:"page" binding:"omitempty,min=1"`
	PerPage  int    `form:"per_page" binding:"omitempty,min=1,max=100"`
}

// ReviewQuery selects the review filter.
type ReviewQuery struct {
	Filter string `form:"filter" binding:"omitempty,review_filter"`
}
