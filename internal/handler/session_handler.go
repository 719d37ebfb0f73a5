package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-mock/internal/model"
	"github.com/stemsi/exstem-mock/internal/response"
	"github.com/stemsi/exstem-mock/internal/service"
	"github.com/stemsi/exstem-mock/internal/validator"
)

// SessionHandler exposes the live session intents over HTTP.
type SessionHandler struct {
	sessionService *service.ExamSessionService
	log            zerolog.Logger
}

func NewSessionHandler(sessionService *service.ExamSessionService, log zerolog.Logger) *SessionHandler {
	return &SessionHandler{
		sessionService: sessionService,
		log:            log.With().Str("component", "session_handler").Logger(),
	}
}

// Start godoc
// POST /api/v1/sessions
func (h *SessionHandler) Start(c *gin.Context) {
	var req model.StartSessionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	view, err := h.sessionService.Start(c.Request.Context(), req)
	if err != nil {
		failFromError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"session": view})
}

// Get godoc
// GET /api/v1/sessions/:id
func (h *SessionHandler) Get(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	view, err := h.sessionService.Get(id)
	if err != nil {
		failFromError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"session": view})
}

// Answer godoc
// POST /api/v1/sessions/:id/answer
// A null option_index clears the answer.
func (h *SessionHandler) Answer(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	var req model.SelectAnswerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	view, err := h.sessionService.SelectAnswer(id, *req.QuestionIndex, req.OptionIndex)
	if err != nil {
		failFromError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"state": view.State})
}

// Flag godoc
// POST /api/v1/sessions/:id/flag
func (h *SessionHandler) Flag(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	var req model.ToggleFlagRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	view, err := h.sessionService.ToggleFlag(id, *req.QuestionIndex)
	if err != nil {
		failFromError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"state": view.State})
}

// Navigate godoc
// POST /api/v1/sessions/:id/navigate
func (h *SessionHandler) Navigate(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	var req model.NavigateRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}
	if req.Action == service.NavGoto && req.QuestionIndex == nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation,
			map[string]string{"question_index": "question_index is required for goto"})
		return
	}

	view, err := h.sessionService.Navigate(id, req.Action, req.QuestionIndex)
	if err != nil {
		failFromError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"state": view.State})
}

// Submit godoc
// POST /api/v1/sessions/:id/submit
// Always returns the score once graded; outcome.saved reports persistence.
func (h *SessionHandler) Submit(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	out, err := h.sessionService.Submit(id)
	if err != nil {
		failFromError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"outcome": out})
}

// Save godoc
// POST /api/v1/sessions/:id/save
// Retries persistence after a failed save.
func (h *SessionHandler) Save(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	out, err := h.sessionService.RetrySave(id)
	if err != nil {
		failFromError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"outcome": out})
}

// Abandon godoc
// DELETE /api/v1/sessions/:id
func (h *SessionHandler) Abandon(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	if err := h.sessionService.Abandon(c.Request.Context(), id); err != nil {
		failFromError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"message": "session abandoned"})
}
