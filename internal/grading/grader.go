// Package grading resolves per-question evidence into states and scores
// them against an answer key. Everything here is a pure function of its
// inputs and does no logging.
package grading

import (
	"fmt"

	"github.com/ironsheep/omr-grader-mcp/internal/config"
	"github.com/ironsheep/omr-grader-mcp/internal/omr"
)

// Status is the graded outcome of one question.
type Status string

const (
	StatusCorrect    Status = "correct"
	StatusWrong      Status = "wrong"
	StatusUnanswered Status = "unanswered"
	StatusAmbiguous  Status = "ambiguous"
)

// Detail is the graded line for one question.
type Detail struct {
	Question int         `json:"question"`
	Marked   *omr.Option `json:"marked"`
	Correct  omr.Option  `json:"correct"`
	Status   Status      `json:"status"`

	// Confidence is the answered option's confidence, or the highest
	// asserted confidence for an ambiguous question.
	Confidence float64                `json:"confidence"`
	Asserted   []omr.OptionConfidence `json:"asserted,omitempty"`
}

// Report is the score sheet for one sheet.
type Report struct {
	Score   int            `json:"score"`
	Total   int            `json:"total"`
	Details []Detail       `json:"details"`
	Counts  map[Status]int `json:"counts"`
}

// Grader scores question states under a fixed ambiguity policy.
type Grader struct {
	policy config.GradingPolicy
}

// NewGrader builds a grader from a validated configuration.
func NewGrader(cfg *config.Config) *Grader {
	return &Grader{policy: cfg.Grading.AmbiguousPolicy}
}

// Grade compares states, which must be questions 1..N in order, with key.
// The key must cover every question.
func (g *Grader) Grade(states []omr.QuestionState, key omr.AnswerKey) (*Report, error) {
	n := len(states)
	if err := key.Covers(n); err != nil {
		return nil, err
	}

	report := &Report{
		Total:   n,
		Details: make([]Detail, n),
		Counts: map[Status]int{
			StatusCorrect:    0,
			StatusWrong:      0,
			StatusUnanswered: 0,
			StatusAmbiguous:  0,
		},
	}
	for i, st := range states {
		if st.Question != i+1 {
			return nil, fmt.Errorf("question states out of order: position %d holds question %d", i, st.Question)
		}
		d := Detail{Question: st.Question, Correct: key[st.Question], Asserted: st.Asserted}

		switch st.Kind {
		case omr.Unanswered:
			d.Status = StatusUnanswered
		case omr.Answered:
			marked := st.Option
			d.Marked = &marked
			d.Confidence = st.Confidence
			if marked == d.Correct && marked != omr.Invalid {
				d.Status = StatusCorrect
			} else {
				d.Status = StatusWrong
			}
		case omr.Ambiguous:
			for _, a := range st.Asserted {
				if a.Confidence > d.Confidence {
					d.Confidence = a.Confidence
				}
			}
			d.Status = StatusWrong
			if g.policy == config.AmbiguousDistinct {
				d.Status = StatusAmbiguous
			}
		default:
			return nil, fmt.Errorf("question %d: unknown state %v", st.Question, st.Kind)
		}

		report.Details[i] = d
		report.Counts[d.Status]++
		if d.Status == StatusCorrect {
			report.Score++
		}
	}
	return report, nil
}
