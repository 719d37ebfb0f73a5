package questionbank

import (
	"context"
	"errors"
	"testing"
	"testing/fstest"
)

func TestSampleBankIsValid(t *testing.T) {
	p := Sample()
	sections := map[string][]string{
		"jee-main": {"physics", "chemistry", "mathematics"},
		"neet":     {"physics", "chemistry", "biology"},
		"cat":      {"varc", "dilr", "qa"},
	}
	for program, ids := range sections {
		for _, id := range ids {
			qs, err := p.Questions(context.Background(), program, id)
			if err != nil {
				t.Fatalf("%s/%s: %v", program, id, err)
			}
			for _, q := range qs {
				if q.SectionID != id {
					t.Fatalf("%s: section id = %q, want %q", q.ID, q.SectionID, id)
				}
			}
		}
	}
}

func TestFileProvider(t *testing.T) {
	fsys := fstest.MapFS{
		"demo/ok.yaml": {Data: []byte(`
questions:
  - id: q1
    prompt: Two plus two
    options: ["3", "4"]
    correct_option_index: 1
`)},
		"demo/bad-index.yaml": {Data: []byte(`
questions:
  - id: q1
    prompt: Two plus two
    options: ["3", "4"]
    correct_option_index: 2
`)},
		"demo/one-option.yaml": {Data: []byte(`
questions:
  - id: q1
    prompt: Pick
    options: ["only"]
    correct_option_index: 0
`)},
		"demo/dup.yaml": {Data: []byte(`
questions:
  - id: q1
    prompt: A
    options: ["x", "y"]
    correct_option_index: 0
  - id: q1
    prompt: B
    options: ["x", "y"]
    correct_option_index: 0
`)},
		"demo/unknown-field.yaml": {Data: []byte(`
questions:
  - id: q1
    prompt: A
    options: ["x", "y"]
    answer: 0
`)},
		"demo/empty.yaml": {Data: []byte("questions: []\n")},
	}
	p := NewFileProvider(fsys)

	qs, err := p.Questions(context.Background(), "demo", "ok")
	if err != nil {
		t.Fatalf("ok: %v", err)
	}
	if len(qs) != 1 || qs[0].CorrectOptionIndex != 1 || qs[0].SectionID != "ok" {
		t.Fatalf("ok = %+v", qs)
	}

	tests := []struct {
		section string
		want    error
	}{
		{"bad-index", ErrInvalidBank},
		{"one-option", ErrInvalidBank},
		{"dup", ErrInvalidBank},
		{"unknown-field", ErrInvalidBank},
		{"empty", ErrInvalidBank},
		{"missing", ErrSectionNotFound},
		{"../escape", ErrSectionNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.section, func(t *testing.T) {
			_, err := p.Questions(context.Background(), "demo", tt.section)
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestStaticProvider(t *testing.T) {
	p := StaticProvider{
		"demo": {"s1": {{ID: "q1", Prompt: "p", Options: []string{"a", "b"}}}},
	}
	qs, err := p.Questions(context.Background(), "demo", "s1")
	if err != nil || len(qs) != 1 {
		t.Fatalf("Questions = %v, %v", qs, err)
	}
	qs[0].ID = "mutated"
	again, _ := p.Questions(context.Background(), "demo", "s1")
	if again[0].ID != "q1" {
		t.Fatal("StaticProvider leaked its backing slice")
	}
	if _, err := p.Questions(context.Background(), "demo", "s2"); !errors.Is(err, ErrSectionNotFound) {
		t.Fatalf("err = %v", err)
	}
}

var _ Provider = StaticProvider(nil)
var _ Provider = (*FileProvider)(nil)
