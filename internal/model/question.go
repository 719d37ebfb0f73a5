package model

// Question represents a single multiple-choice item. Never mutated after load.
type Question struct {
	ID                 string   `json:"id" yaml:"id"`
	SectionID          string   `json:"section_id" yaml:"section_id"`
	Prompt             string   `json:"prompt" yaml:"prompt"`
	Options            []string `json:"options" yaml:"options"`
	CorrectOptionIndex int      `json:"correct_option_index" yaml:"correct_option_index"`
	Explanation        string   `json:"explanation,omitempty" yaml:"explanation"`
}

// Section is a named, ordered group of questions sharing one time budget.
type Section struct {
	ID               string     `json:"id"`
	DisplayName      string     `json:"display_name"`
	Questions        []Question `json:"questions"`
	TimeLimitSeconds int        `json:"time_limit_seconds"`
}

// QuestionSet is the ordered list of sections for one sitting. Section order
// defines the forward-lock order.
type QuestionSet struct {
	Sections []Section `json:"sections"`
}

// Total returns the number of questions across all sections.
func (qs QuestionSet) Total() int {
	n := 0
	for _, s := range qs.Sections {
		n += len(s.Questions)
	}
	return n
}

// Question returns the question at a global index. The index must be in range.
func (qs QuestionSet) Question(globalIndex int) Question {
	for _, s := range qs.Sections {
		if globalIndex < len(s.Questions) {
			return s.Questions[globalIndex]
		}
		globalIndex -= len(s.Questions)
	}
	panic("model: question index out of range")
}

// Flatten returns every question in global order.
func (qs QuestionSet) Flatten() []Question {
	out := make([]Question, 0, qs.Total())
	for _, s := range qs.Sections {
		out = append(out, s.Questions...)
	}
	return out
}

// Offsets returns the global index of the first question of each section.
func (qs QuestionSet) Offsets() []int {
	offsets := make([]int, len(qs.Sections))
	n := 0
	for i, s := range qs.Sections {
		offsets[i] = n
		n += len(s.Questions)
	}
	return offsets
}

// QuestionForCandidate is a question without the correct answer or explanation,
// sent to the candidate while a session is running.
type QuestionForCandidate struct {
	Index     int      `json:"index"`
	ID        string   `json:"id"`
	SectionID string   `json:"section_id"`
	Prompt    string   `json:"prompt"`
	Options   []string `json:"options"`
}

// SectionForCandidate is the candidate-facing view of a Section.
type SectionForCandidate struct {
	ID               string                 `json:"id"`
	DisplayName      string                 `json:"display_name"`
	TimeLimitSeconds int                    `json:"time_limit_seconds"`
	Questions        []QuestionForCandidate `json:"questions"`
}

// ForCandidate strips answer keys from the set.
func (qs QuestionSet) ForCandidate() []SectionForCandidate {
	out := make([]SectionForCandidate, len(qs.Sections))
	idx := 0
	for i, s := range qs.Sections {
		items := make([]QuestionForCandidate, len(s.Questions))
		for j, q := range s.Questions {
			items[j] = QuestionForCandidate{
				Index:     idx,
				ID:        q.ID,
				SectionID: q.SectionID,
				Prompt:    q.Prompt,
				Options:   q.Options,
			}
			idx++
		}
		out[i] = SectionForCandidate{
			ID:               s.ID,
			DisplayName:      s.DisplayName,
			TimeLimitSeconds: s.TimeLimitSeconds,
			Questions:        items,
		}
	}
	return out
}
