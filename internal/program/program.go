// Package program holds the exam programs offered for rehearsal and turns a
// (program, variant) choice into a session configuration and scoring scheme.
package program

import (
	"context"
	"errors"
	"fmt"

	"github.com/stemsi/exstem-mock/internal/model"
	"github.com/stemsi/exstem-mock/internal/scoring"
	"github.com/stemsi/exstem-mock/internal/session"
)

var (
	ErrUnknownProgram = errors.New("unknown exam program")
	ErrUnknownSection = errors.New("unknown section")
	ErrUnknownVariant = errors.New("unknown variant")
)

// Variant is either a full-length mock or a single timed section.
type Variant string

const (
	VariantFull    Variant = "full"
	VariantSection Variant = "section"
)

// SectionSpec describes one section of a program.
type SectionSpec struct {
	ID               string `json:"id"`
	DisplayName      string `json:"display_name"`
	TimeLimitSeconds int    `json:"time_limit_seconds"`
}

// Program is one exam: its sections, marking and percentile calibration.
type Program struct {
	ID          string
	DisplayName string
	Sections    []SectionSpec
	Scheme      scoring.Scheme
}

// QuestionSource supplies the questions of one section.
type QuestionSource interface {
	Questions(ctx context.Context, programID, sectionID string) ([]model.Question, error)
}

// Plan is a fully resolved mock test ready to start.
type Plan struct {
	ProgramID string
	Variant   Variant
	SectionID string
	Session   session.Config
	Scheme    scoring.Scheme
}

// Label is the attempt variant label: "full" or "section:<id>".
func (p Plan) Label() string {
	if p.Variant == VariantSection {
		return fmt.Sprintf("%s:%s", VariantSection, p.SectionID)
	}
	return string(VariantFull)
}

// Section returns the section spec with id.
func (p Program) Section(id string) (SectionSpec, error) {
	for _, s := range p.Sections {
		if s.ID == id {
			return s, nil
		}
	}
	return SectionSpec{}, fmt.Errorf("%w: %s/%s", ErrUnknownSection, p.ID, id)
}

// Build resolves the variant and loads its questions from src. Full-length
// mocks run every section under forward-lock for the sum of the section
// limits; section-wise mocks run one section for its own limit, unlocked.
func (p Program) Build(ctx context.Context, src QuestionSource, variant Variant, sectionID string) (Plan, error) {
	var (
		specs []SectionSpec
		lock  bool
	)
	switch variant {
	case VariantFull:
		specs = p.Sections
		lock = true
		sectionID = ""
	case VariantSection:
		s, err := p.Section(sectionID)
		if err != nil {
			return Plan{}, err
		}
		specs = []SectionSpec{s}
	default:
		return Plan{}, fmt.Errorf("%w: %q", ErrUnknownVariant, variant)
	}

	set := model.QuestionSet{Sections: make([]model.Section, 0, len(specs))}
	total := 0
	for _, spec := range specs {
		qs, err := src.Questions(ctx, p.ID, spec.ID)
		if err != nil {
			return Plan{}, fmt.Errorf("load %s/%s: %w", p.ID, spec.ID, err)
		}
		set.Sections = append(set.Sections, model.Section{
			ID:               spec.ID,
			DisplayName:      spec.DisplayName,
			Questions:        qs,
			TimeLimitSeconds: spec.TimeLimitSeconds,
		})
		total += spec.TimeLimitSeconds
	}

	return Plan{
		ProgramID: p.ID,
		Variant:   variant,
		SectionID: sectionID,
		Session: session.Config{
			QuestionSet:          set,
			TotalDurationSeconds: total,
			Policy:               session.SectionPolicy{ForwardLock: lock},
		},
		Scheme: p.Scheme,
	}, nil
}

// Registry is the immutable set of offered programs.
type Registry struct {
	order []string
	byID  map[string]Program
}

func NewRegistry(programs ...Program) *Registry {
	r := &Registry{byID: make(map[string]Program, len(programs))}
	for _, p := range programs {
		r.order = append(r.order, p.ID)
		r.byID[p.ID] = p
	}
	return r
}

// Lookup returns the program with id.
func (r *Registry) Lookup(id string) (Program, error) {
	p, ok := r.byID[id]
	if !ok {
		return Program{}, fmt.Errorf("%w: %s", ErrUnknownProgram, id)
	}
	return p, nil
}

// All returns the programs in registration order.
func (r *Registry) All() []Program {
	out := make([]Program, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id])
	}
	return out
}
