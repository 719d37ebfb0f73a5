package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-mock/internal/model"
	"github.com/stemsi/exstem-mock/internal/response"
	"github.com/stemsi/exstem-mock/internal/review"
	"github.com/stemsi/exstem-mock/internal/service"
	"github.com/stemsi/exstem-mock/internal/validator"
)

type AttemptHandler struct {
	attemptService *service.AttemptService
	log            zerolog.Logger
}

func NewAttemptHandler(attemptService *service.AttemptService, log zerolog.Logger) *AttemptHandler {
	return &AttemptHandler{
		attemptService: attemptService,
		log:            log.With().Str("component", "attempt_handler").Logger(),
	}
}

// List godoc
// GET /api/v1/attempts?exam_type=&page=&per_page=
func (h *AttemptHandler) List(c *gin.Context) {
	var q model.ListAttemptsQuery
	if fields := validator.BindQuery(c, &q); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	all, err := h.attemptService.List(c.Request.Context(), q.ExamType)
	if err != nil {
		failFromError(c, h.log, err)
		return
	}
	page, lo, hi := response.NewPagination(q.Page, q.PerPage, len(all))
	response.SuccessWithPagination(c, http.StatusOK, gin.H{"attempts": all[lo:hi]}, page)
}

// Stats godoc
// GET /api/v1/attempts/stats
func (h *AttemptHandler) Stats(c *gin.Context) {
	stats, err := h.attemptService.Stats(c.Request.Context())
	if err != nil {
		failFromError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"stats": stats})
}

// Get godoc
// GET /api/v1/attempts/:id
func (h *AttemptHandler) Get(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	a, err := h.attemptService.Get(c.Request.Context(), id)
	if err != nil {
		failFromError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"attempt": a})
}

// Review godoc
// GET /api/v1/attempts/:id/review?filter=all|correct|incorrect|unanswered
func (h *AttemptHandler) Review(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	var q model.ReviewQuery
	if fields := validator.BindQuery(c, &q); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrInvalidFilter, fields)
		return
	}
	filter, err := review.ParseFilter(q.Filter)
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidFilter)
		return
	}

	rv, err := h.attemptService.Review(c.Request.Context(), id, filter)
	if err != nil {
		failFromError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"review": rv})
}

// Delete godoc
// DELETE /api/v1/attempts/:id
func (h *AttemptHandler) Delete(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	if err := h.attemptService.Delete(c.Request.Context(), id); err != nil {
		failFromError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"message": "attempt deleted"})
}
