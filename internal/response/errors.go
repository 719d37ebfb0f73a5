package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// Validation
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"
	ErrInvalidFilter  ErrCode = "INVALID_FILTER"

	// Resources
	ErrNotFound        ErrCode = "NOT_FOUND"
	ErrSessionNotFound ErrCode = "SESSION_NOT_FOUND"
	ErrAttemptNotFound ErrCode = "ATTEMPT_NOT_FOUND"
	ErrUnknownProgram  ErrCode = "UNKNOWN_PROGRAM"
	ErrUnknownSection  ErrCode = "UNKNOWN_SECTION"

	// Session engine
	ErrOutOfRange        ErrCode = "OUT_OF_RANGE"
	ErrSectionLocked     ErrCode = "SECTION_LOCKED"
	ErrSessionClosed     ErrCode = "SESSION_CLOSED"
	ErrNotActiveQuestion ErrCode = "NOT_ACTIVE_QUESTION"
	ErrNotSubmitted      ErrCode = "NOT_SUBMITTED"

	// Persistence
	ErrPersistenceFailure ErrCode = "PERSISTENCE_FAILURE"
	ErrStorageFull        ErrCode = "STORAGE_FULL"
	ErrQuestionBank       ErrCode = "QUESTION_BANK_UNAVAILABLE"

	// Rate Limiting
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// Server
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Validation failed. Please check your input."
	case ErrInvalidID:
		return "Invalid ID format."
	case ErrInvalidPayload:
		return "Invalid request payload."
	case ErrInvalidFilter:
		return "Review filter must be one of all, correct, incorrect, unanswered."

	// ─── Resources ─────────────────────────────────────────────────────
	case ErrNotFound:
		return "Resource not found."
	case ErrSessionNotFound:
		return "Session not found or already closed."
	case ErrAttemptNotFound:
		return "Attempt not found."
	case ErrUnknownProgram:
		return "Unknown exam program."
	case ErrUnknownSection:
		return "Unknown section for this exam program."

	// ─── Session engine ────────────────────────────────────────────────
	case ErrOutOfRange:
		return "Question or option index is out of range."
	case ErrSectionLocked:
		return "This section is locked."
	case ErrSessionClosed:
		return "The session has already been submitted."
	case ErrNotActiveQuestion:
		return "Only the active question can be answered."
	case ErrNotSubmitted:
		return "The session has not been submitted yet."

	// ─── Persistence ───────────────────────────────────────────────────
	case ErrPersistenceFailure:
		return "The attempt could not be saved. Your score is kept; retry saving."
	case ErrStorageFull:
		return "Attempt storage is full."
	case ErrQuestionBank:
		return "Questions could not be loaded."

	// ─── Rate Limiting ─────────────────────────────────────────────────
	case ErrRateLimitExceeded:
		return "Too many requests. Please try again later."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrInternal:
		return "Internal server error."
	default:
		return "An unexpected error occurred."
	}
}
