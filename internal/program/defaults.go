package program

import "github.com/stemsi/exstem-mock/internal/scoring"

const (
	JEEMain = "jee-main"
	NEET    = "neet"
	CAT     = "cat"
)

func minutes(m int) int { return m * 60 }

// Defaults returns the built-in programs.
func Defaults() *Registry {
	return NewRegistry(
		Program{
			ID:          JEEMain,
			DisplayName: "JEE Main",
			Sections: []SectionSpec{
				{ID: "physics", DisplayName: "Physics", TimeLimitSeconds: minutes(60)},
				{ID: "chemistry", DisplayName: "Chemistry", TimeLimitSeconds: minutes(60)},
				{ID: "mathematics", DisplayName: "Mathematics", TimeLimitSeconds: minutes(60)},
			},
			Scheme: scoring.Scheme{MarksCorrect: 4, Penalty: 1, Percentile: scoring.Linear(45, 55)},
		},
		Program{
			ID:          NEET,
			DisplayName: "NEET",
			Sections: []SectionSpec{
				{ID: "physics", DisplayName: "Physics", TimeLimitSeconds: minutes(60)},
				{ID: "chemistry", DisplayName: "Chemistry", TimeLimitSeconds: minutes(60)},
				{ID: "biology", DisplayName: "Biology", TimeLimitSeconds: minutes(80)},
			},
			// 100 - normalized*50: the curve falls as the score rises.
			Scheme: scoring.Scheme{MarksCorrect: 4, Penalty: 1, Percentile: scoring.Linear(100, -50)},
		},
		Program{
			ID:          CAT,
			DisplayName: "CAT",
			Sections: []SectionSpec{
				{ID: "varc", DisplayName: "Verbal Ability & Reading Comprehension", TimeLimitSeconds: minutes(40)},
				{ID: "dilr", DisplayName: "Data Interpretation & Logical Reasoning", TimeLimitSeconds: minutes(40)},
				{ID: "qa", DisplayName: "Quantitative Ability", TimeLimitSeconds: minutes(40)},
			},
			Scheme: scoring.Scheme{MarksCorrect: 3, Penalty: 1, Percentile: scoring.Linear(50, 50)},
		},
	)
}
