package grading

import (
	"github.com/ironsheep/omr-grader-mcp/internal/omr"
)

// Resolve classifies questions 1..n from the accumulated evidence.
//
// No options means Unanswered, exactly one means Answered with that
// option's best confidence, and two or more distinct options mean Ambiguous
// whatever their confidences. A recorded INVALID mark counts as an option.
// Evidence for questions outside 1..n is ignored.
func Resolve(evidence omr.Evidence, n int) []omr.QuestionState {
	states := make([]omr.QuestionState, n)
	for i := range states {
		q := i + 1
		asserted := evidence.Asserted(q)

		st := omr.QuestionState{Question: q}
		switch len(asserted) {
		case 0:
			st.Kind = omr.Unanswered
		case 1:
			st.Kind = omr.Answered
			st.Option = asserted[0].Option
			st.Confidence = asserted[0].Confidence
			st.Asserted = asserted
		default:
			st.Kind = omr.Ambiguous
			st.Asserted = asserted
		}
		states[i] = st
	}
	return states
}
