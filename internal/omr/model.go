package omr

import (
	"fmt"
	"sort"
)

// Option is an answer label such as "A". The empty Option means no answer.
type Option string

// Invalid is the sentinel label for a mark the detector flags as spoiled.
const Invalid Option = "INVALID"

// Zone is one answer block on the page and the question numbers it owns.
type Zone struct {
	// Index is the zone's position in canonical order (0-based).
	Index int `json:"index"`

	// Rect is the zone rectangle in absolute pixel coordinates.
	Rect Rect `json:"rect"`

	// FirstQuestion and LastQuestion bound the owned range, both inclusive.
	FirstQuestion int `json:"first_question"`
	LastQuestion  int `json:"last_question"`
}

// Questions returns how many questions the zone owns.
func (z Zone) Questions() int {
	return z.LastQuestion - z.FirstQuestion + 1
}

// Owns reports whether question q falls in the zone's range.
func (z Zone) Owns(q int) bool {
	return q >= z.FirstQuestion && q <= z.LastQuestion
}

// Cell is the sub-rectangle of a zone for one (question, option) pair.
// Bounds are fractional so that rows and columns tile the zone exactly.
type Cell struct {
	Zone     int     `json:"zone"`
	Row      int     `json:"row"`
	Column   int     `json:"column"`
	Question int     `json:"question"`
	Option   Option  `json:"option"`
	X1       float64 `json:"x1"`
	Y1       float64 `json:"y1"`
	X2       float64 `json:"x2"`
	Y2       float64 `json:"y2"`
}

// Contains reports whether p lies in the cell (half-open).
func (c Cell) Contains(p Point) bool {
	return p.X >= c.X1 && p.X < c.X2 && p.Y >= c.Y1 && p.Y < c.Y2
}

// Detection is one mark reported by the external detector.
type Detection struct {
	Box        Box     `json:"box"`
	Confidence float64 `json:"confidence"`
	ClassID    int     `json:"class_id"`
}

// AnswerKey maps question number to the correct option. It is read-only
// once built and safe to share between concurrent grading runs.
type AnswerKey map[int]Option

// Covers returns an error naming the first question in 1..n with no key entry.
func (k AnswerKey) Covers(n int) error {
	for q := 1; q <= n; q++ {
		if opt, ok := k[q]; !ok || opt == "" {
			return fmt.Errorf("answer key has no entry for question %d", q)
		}
	}
	return nil
}

// Questions returns the keyed question numbers in ascending order.
func (k AnswerKey) Questions() []int {
	qs := make([]int, 0, len(k))
	for q := range k {
		qs = append(qs, q)
	}
	sort.Ints(qs)
	return qs
}

// StateKind classifies a question after conflict resolution.
type StateKind int

const (
	Unanswered StateKind = iota
	Answered
	Ambiguous
)

func (k StateKind) String() string {
	switch k {
	case Unanswered:
		return "unanswered"
	case Answered:
		return "answered"
	case Ambiguous:
		return "ambiguous"
	default:
		return fmt.Sprintf("StateKind(%d)", int(k))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k StateKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// OptionConfidence pairs an asserted option with its best confidence.
type OptionConfidence struct {
	Option     Option  `json:"option"`
	Confidence float64 `json:"confidence"`
}

// QuestionState is the terminal classification of one question.
//
// Option and Confidence are set only for Answered. Asserted lists every
// distinct option seen, sorted by label, for both Answered and Ambiguous.
type QuestionState struct {
	Question   int                `json:"question"`
	Kind       StateKind          `json:"kind"`
	Option     Option             `json:"option,omitempty"`
	Confidence float64            `json:"confidence"`
	Asserted   []OptionConfidence `json:"asserted,omitempty"`
}

// Evidence maps question number to the best confidence seen for each option
// asserted on it. Distinct options are never merged.
type Evidence map[int]map[Option]float64

// Add records an assertion, keeping the maximum confidence per option.
func (e Evidence) Add(q int, opt Option, confidence float64) {
	opts, ok := e[q]
	if !ok {
		opts = make(map[Option]float64)
		e[q] = opts
	}
	if prev, seen := opts[opt]; !seen || confidence > prev {
		opts[opt] = confidence
	}
}

// Asserted returns the options recorded for q, sorted by label.
func (e Evidence) Asserted(q int) []OptionConfidence {
	opts := e[q]
	out := make([]OptionConfidence, 0, len(opts))
	for opt, c := range opts {
		out = append(out, OptionConfidence{Option: opt, Confidence: c})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Option < out[j].Option })
	return out
}
