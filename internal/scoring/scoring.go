// Package scoring turns an answer vector into a ScoreResult. Everything here is
// pure: the same inputs always produce the same result.
package scoring

import (
	"math"

	"github.com/stemsi/exstem-mock/internal/model"
)

// Outcome classifies a single answer against its question.
type Outcome string

const (
	OutcomeCorrect    Outcome = "CORRECT"
	OutcomeIncorrect  Outcome = "INCORRECT"
	OutcomeUnanswered Outcome = "UNANSWERED"
)

// Classify is the single classification routine shared by scoring and review.
func Classify(q model.Question, selected *int) Outcome {
	switch {
	case selected == nil:
		return OutcomeUnanswered
	case *selected == q.CorrectOptionIndex:
		return OutcomeCorrect
	default:
		return OutcomeIncorrect
	}
}

// PercentileFunc maps a normalized score (rawScore/maxScore, at most 1 and
// possibly negative) to an estimated percentile. Calibration is exam-specific.
type PercentileFunc func(normalized float64) float64

// Linear returns the percentile curve intercept + slope*normalized.
func Linear(intercept, slope float64) PercentileFunc {
	return func(normalized float64) float64 {
		return intercept + slope*normalized
	}
}

// Scheme holds per-exam marking coefficients and the percentile calibration.
type Scheme struct {
	MarksCorrect float64
	Penalty      float64
	Percentile   PercentileFunc
}

// Score classifies every question and derives the ScoreResult.
// Unanswered questions never incur the penalty.
func (s Scheme) Score(set model.QuestionSet, answers model.AnswerVector) model.ScoreResult {
	var res model.ScoreResult

	for i, q := range set.Flatten() {
		var selected *int
		if i < len(answers) {
			selected = answers[i]
		}
		switch Classify(q, selected) {
		case OutcomeCorrect:
			res.Correct++
		case OutcomeIncorrect:
			res.Incorrect++
		default:
			res.Unanswered++
		}
	}

	total := res.Correct + res.Incorrect + res.Unanswered
	res.RawScore = float64(res.Correct)*s.MarksCorrect - float64(res.Incorrect)*s.Penalty
	res.MaxScore = float64(total) * s.MarksCorrect

	normalized := 0.0
	if res.MaxScore > 0 {
		normalized = math.Min(res.RawScore/res.MaxScore, 1)
	}
	res.Percentage = round(normalized*100, 1)
	res.EstimatedPercentile = round(clamp(s.percentile(normalized), 0, 100), 2)

	return res
}

func (s Scheme) percentile(normalized float64) float64 {
	if s.Percentile == nil {
		return normalized * 100
	}
	return s.Percentile(normalized)
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	// Adding zero folds -0 into +0 so it never serializes as "-0".
	return math.Round(v*p)/p + 0
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}
