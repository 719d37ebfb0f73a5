package websocket

import (
	"encoding/json"
)

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionAnswer   Action = "answer"
	ActionFlag     Action = "flag"
	ActionNavigate Action = "navigate"
	ActionSubmit   Action = "submit"
	ActionPing     Action = "ping"
)

// RequestEnvelope is used to peek at the action before full parsing.
type RequestEnvelope struct {
	Action Action          `json:"action"`
	Data   json.RawMessage `json:"data,omitempty"`
}

// AnswerRequest selects an option; a null option_index clears the answer.
type AnswerRequest struct {
	QuestionIndex *int `json:"question_index"`
	OptionIndex   *int `json:"option_index"`
}

// FlagRequest toggles the review flag of a question.
type FlagRequest struct {
	QuestionIndex *int `json:"question_index"`
}

// NavigateRequest moves the cursor. question_index is only read for goto.
type NavigateRequest struct {
	Direction     string `json:"direction"`
	QuestionIndex *int   `json:"question_index"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventState   Event = "state"
	EventGraded  Event = "graded"
	EventSuccess Event = "success"
	EventError   Event = "error"
	EventPong    Event = "pong"
)

// ResponseEnvelope wraps every server push.
type ResponseEnvelope struct {
	Event Event       `json:"event"`
	Data  interface{} `json:"data,omitempty"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Code  string `json:"code,omitempty"`
	Error string `json:"error"`
}
