// Package review filters a stored attempt down to the questions a candidate
// wants to revisit.
package review

import (
	"fmt"
	"strings"

	"github.com/stemsi/exstem-mock/internal/model"
	"github.com/stemsi/exstem-mock/internal/scoring"
)

// Filter selects which questions of an attempt are reviewed.
type Filter string

const (
	FilterAll        Filter = "all"
	FilterCorrect    Filter = "correct"
	FilterIncorrect  Filter = "incorrect"
	FilterUnanswered Filter = "unanswered"
)

// ParseFilter accepts the filter names case-insensitively; empty means all.
func ParseFilter(raw string) (Filter, error) {
	switch f := Filter(strings.ToLower(strings.TrimSpace(raw))); f {
	case "":
		return FilterAll, nil
	case FilterAll, FilterCorrect, FilterIncorrect, FilterUnanswered:
		return f, nil
	default:
		return "", fmt.Errorf("unknown review filter %q", raw)
	}
}

func (f Filter) matches(o scoring.Outcome) bool {
	switch f {
	case FilterCorrect:
		return o == scoring.OutcomeCorrect
	case FilterIncorrect:
		return o == scoring.OutcomeIncorrect
	case FilterUnanswered:
		return o == scoring.OutcomeUnanswered
	default:
		return true
	}
}

// Item is one reviewed question with its original global index.
type Item struct {
	Index    int             `json:"index"`
	Question model.Question  `json:"question"`
	Selected *int            `json:"selected"`
	Outcome  scoring.Outcome `json:"outcome"`
	Flagged  bool            `json:"flagged"`
}

// FilterAttempt returns the attempt's questions matching f in original order.
// No match yields an empty, non-nil slice.
func FilterAttempt(a model.Attempt, f Filter) []Item {
	flagged := make(map[int]bool, len(a.ReviewFlags))
	for _, i := range a.ReviewFlags {
		flagged[i] = true
	}

	items := []Item{}
	for i, q := range a.QuestionSet.Flatten() {
		var selected *int
		if i < len(a.Answers) && a.Answers[i] != nil {
			v := *a.Answers[i]
			selected = &v
		}
		o := scoring.Classify(q, selected)
		if !f.matches(o) {
			continue
		}
		items = append(items, Item{
			Index:    i,
			Question: q,
			Selected: selected,
			Outcome:  o,
			Flagged:  flagged[i],
		})
	}
	return items
}
