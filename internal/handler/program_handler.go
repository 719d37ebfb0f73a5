package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/exstem-mock/internal/program"
	"github.com/stemsi/exstem-mock/internal/response"
)

type ProgramHandler struct {
	programs *program.Registry
}

func NewProgramHandler(programs *program.Registry) *ProgramHandler {
	return &ProgramHandler{programs: programs}
}

type programView struct {
	ID                   string                `json:"id"`
	DisplayName          string                `json:"display_name"`
	Sections             []program.SectionSpec `json:"sections"`
	MarksCorrect         float64               `json:"marks_correct"`
	MarksIncorrect       float64               `json:"marks_incorrect_penalty"`
	TotalDurationSeconds int                   `json:"total_duration_seconds"`
	Variants             []program.Variant     `json:"variants"`
}

// List godoc
// GET /api/v1/programs
func (h *ProgramHandler) List(c *gin.Context) {
	all := h.programs.All()
	out := make([]programView, 0, len(all))
	for _, p := range all {
		total := 0
		for _, s := range p.Sections {
			total += s.TimeLimitSeconds
		}
		out = append(out, programView{
			ID:                   p.ID,
			DisplayName:          p.DisplayName,
			Sections:             p.Sections,
			MarksCorrect:         p.Scheme.MarksCorrect,
			MarksIncorrect:       p.Scheme.Penalty,
			TotalDurationSeconds: total,
			Variants:             []program.Variant{program.VariantFull, program.VariantSection},
		})
	}
	response.Success(c, http.StatusOK, gin.H{"programs": out})
}
