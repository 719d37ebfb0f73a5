// Package questionbank loads question sets for exam sections.
package questionbank

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"

	"github.com/goccy/go-yaml"
	"github.com/stemsi/exstem-mock/internal/model"
)

var (
	ErrSectionNotFound = errors.New("question bank section not found")
	ErrInvalidBank     = errors.New("invalid question bank")
)

// Provider supplies the questions of one section of one program.
type Provider interface {
	Questions(ctx context.Context, programID, sectionID string) ([]model.Question, error)
}

//go:embed sample
var sampleFS embed.FS

// Sample returns a FileProvider over the embedded sample bank.
func Sample() *FileProvider {
	sub, err := fs.Sub(sampleFS, "sample")
	if err != nil {
		panic(err)
	}
	return NewFileProvider(sub)
}

type sectionFile struct {
	Questions []model.Question `yaml:"questions"`
}

// FileProvider reads <program>/<section>.yaml from a filesystem.
type FileProvider struct {
	fsys fs.FS
}

func NewFileProvider(fsys fs.FS) *FileProvider {
	return &FileProvider{fsys: fsys}
}

func (p *FileProvider) Questions(ctx context.Context, programID, sectionID string) ([]model.Question, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !fs.ValidPath(programID) || !fs.ValidPath(sectionID) {
		return nil, fmt.Errorf("%w: %s/%s", ErrSectionNotFound, programID, sectionID)
	}

	name := path.Join(programID, sectionID+".yaml")
	raw, err := fs.ReadFile(p.fsys, name)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s/%s", ErrSectionNotFound, programID, sectionID)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}

	var f sectionFile
	if err := yaml.UnmarshalWithOptions(raw, &f, yaml.DisallowUnknownField()); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidBank, name, err)
	}
	for i := range f.Questions {
		f.Questions[i].SectionID = sectionID
	}
	if err := Validate(f.Questions); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return f.Questions, nil
}

// StaticProvider serves questions held in memory, keyed by program and section.
type StaticProvider map[string]map[string][]model.Question

func (s StaticProvider) Questions(_ context.Context, programID, sectionID string) ([]model.Question, error) {
	qs, ok := s[programID][sectionID]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", ErrSectionNotFound, programID, sectionID)
	}
	out := make([]model.Question, len(qs))
	copy(out, qs)
	return out, nil
}

// Validate checks the shape of one section's questions: at least one
// question, unique ids, a prompt, two or more options and an in-range answer.
func Validate(qs []model.Question) error {
	if len(qs) == 0 {
		return fmt.Errorf("%w: no questions", ErrInvalidBank)
	}
	seen := make(map[string]struct{}, len(qs))
	for i, q := range qs {
		if q.ID == "" {
			return fmt.Errorf("%w: question %d has no id", ErrInvalidBank, i)
		}
		if _, dup := seen[q.ID]; dup {
			return fmt.Errorf("%w: duplicate question id %s", ErrInvalidBank, q.ID)
		}
		seen[q.ID] = struct{}{}
		if q.Prompt == "" {
			return fmt.Errorf("%w: question %s has no prompt", ErrInvalidBank, q.ID)
		}
		if len(q.Options) < 2 {
			return fmt.Errorf("%w: question %s needs at least two options", ErrInvalidBank, q.ID)
		}
		if q.CorrectOptionIndex < 0 || q.CorrectOptionIndex >= len(q.Options) {
			return fmt.Errorf("%w: question %s answer index %d out of range", ErrInvalidBank, q.ID, q.CorrectOptionIndex)
		}
	}
	return nil
}
