package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-mock/internal/attempt"
	"github.com/stemsi/exstem-mock/internal/kv"
	"github.com/stemsi/exstem-mock/internal/program"
	"github.com/stemsi/exstem-mock/internal/questionbank"
	"github.com/stemsi/exstem-mock/internal/response"
	"github.com/stemsi/exstem-mock/internal/service"
	"github.com/stemsi/exstem-mock/internal/session"
)

// errorStatus maps a domain error to its HTTP status and API code.
func errorStatus(err error) (int, response.ErrCode) {
	switch {
	case errors.Is(err, service.ErrSessionNotFound):
		return http.StatusNotFound, response.ErrSessionNotFound
	case errors.Is(err, attempt.ErrNotFound):
		return http.StatusNotFound, response.ErrAttemptNotFound
	case errors.Is(err, program.ErrUnknownProgram):
		return http.StatusNotFound, response.ErrUnknownProgram
	case errors.Is(err, program.ErrUnknownSection):
		return http.StatusBadRequest, response.ErrUnknownSection
	case errors.Is(err, program.ErrUnknownVariant),
		errors.Is(err, service.ErrInvalidNavigation):
		return http.StatusBadRequest, response.ErrValidation
	case errors.Is(err, questionbank.ErrSectionNotFound),
		errors.Is(err, questionbank.ErrInvalidBank):
		return http.StatusServiceUnavailable, response.ErrQuestionBank
	case errors.Is(err, session.ErrOutOfRange):
		return http.StatusUnprocessableEntity, response.ErrOutOfRange
	case errors.Is(err, session.ErrSectionLocked):
		return http.StatusConflict, response.ErrSectionLocked
	case errors.Is(err, session.ErrSessionClosed),
		errors.Is(err, session.ErrNotStarted):
		return http.StatusConflict, response.ErrSessionClosed
	case errors.Is(err, session.ErrNotActiveQuestion):
		return http.StatusConflict, response.ErrNotActiveQuestion
	case errors.Is(err, service.ErrNotSubmitted):
		return http.StatusConflict, response.ErrNotSubmitted
	case errors.Is(err, kv.ErrQuotaExceeded):
		return http.StatusInsufficientStorage, response.ErrStorageFull
	case errors.Is(err, attempt.ErrPersistence):
		return http.StatusServiceUnavailable, response.ErrPersistenceFailure
	default:
		return http.StatusInternalServerError, response.ErrInternal
	}
}

// failFromError writes the error envelope for err, logging server faults.
func failFromError(c *gin.Context, log zerolog.Logger, err error) {
	status, code := errorStatus(err)
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Str("request_id", c.GetString(response.ContextKeyRequestID)).Msg("Request failed")
	}
	response.Fail(c, status, code)
}

// paramID parses the :id path parameter as a UUID.
func paramID(c *gin.Context) (string, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return "", false
	}
	return id.String(), true
}
