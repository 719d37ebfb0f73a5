package session

import "errors"

// Contract violations surfaced synchronously to the caller. The host uses
// them to enable or disable controls, so they are never swallowed.
var (
	ErrOutOfRange        = errors.New("index out of range")
	ErrSectionLocked     = errors.New("section is locked")
	ErrSessionClosed     = errors.New("session is closed")
	ErrNotStarted        = errors.New("session has not started")
	ErrAlreadyStarted    = errors.New("session already started")
	ErrNotActiveQuestion = errors.New("question is not the active question")
	ErrInvalidConfig     = errors.New("invalid session config")
)
