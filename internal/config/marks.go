package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ironsheep/omr-grader-mcp/internal/omr"
)

// OptionPolicy decides how a detection's option is determined.
type OptionPolicy string

const (
	// OptionByClass takes the option from the detector's class label.
	OptionByClass OptionPolicy = "class"

	// OptionByPosition takes the option from the column containing the
	// detection center.
	OptionByPosition OptionPolicy = "position"
)

// InvalidPolicy decides what happens to marks whose class is the INVALID
// sentinel. It applies only to marks that land in a cell. A mark whose
// center is outside every zone or cell is always dropped with an
// "unassigned" warning whatever its class, since it has no question to be
// recorded under.
type InvalidPolicy string

const (
	// InvalidRecord keeps the mark as an INVALID assertion for its question.
	InvalidRecord InvalidPolicy = "record"

	// InvalidDrop discards the mark. Dropped marks are counted, not warned.
	InvalidDrop InvalidPolicy = "drop"
)

// MarksConfig configures the MarkResolver.
type MarksConfig struct {
	Policy        OptionPolicy       `yaml:"policy"`
	InvalidPolicy InvalidPolicy      `yaml:"invalid_policy"`
	Classes       map[int]omr.Option `yaml:"classes"`

	// MinConfidence drops detections scoring below it.
	MinConfidence float64 `yaml:"min_confidence"`
}

// UnmarshalYAML replaces the class table wholesale when the document sets
// one, instead of merging it into the default table.
func (m *MarksConfig) UnmarshalYAML(node *yaml.Node) error {
	type plain MarksConfig
	p := plain(*m)
	if hasKey(node, "classes") {
		p.Classes = nil
	}
	if err := node.Decode(&p); err != nil {
		return err
	}
	*m = MarksConfig(p)
	return nil
}

// Label maps a class id through the table.
func (m MarksConfig) Label(classID int) (omr.Option, bool) {
	opt, ok := m.Classes[classID]
	return opt, ok
}

func defaultMarksConfig() MarksConfig {
	return MarksConfig{
		Policy:        OptionByClass,
		InvalidPolicy: InvalidRecord,
		Classes: map[int]omr.Option{
			0: "A", 1: "B", 2: "C", 3: "D", 4: "E", 5: omr.Invalid,
		},
	}
}

func (m MarksConfig) validate(options map[omr.Option]bool) error {
	switch m.Policy {
	case OptionByClass, OptionByPosition:
	default:
		return fmt.Errorf("marks.policy: unknown policy %q", m.Policy)
	}
	switch m.InvalidPolicy {
	case InvalidRecord, InvalidDrop:
	default:
		return fmt.Errorf("marks.invalid_policy: unknown policy %q", m.InvalidPolicy)
	}
	if len(m.Classes) == 0 {
		return fmt.Errorf("marks.classes must not be empty")
	}
	if m.Policy == OptionByClass {
		for id, opt := range m.Classes {
			if opt != omr.Invalid && !options[opt] {
				return fmt.Errorf("marks.classes[%d]: %q is not a layout option", id, opt)
			}
		}
	}
	if m.MinConfidence < 0 || m.MinConfidence > 1 {
		return fmt.Errorf("marks.min_confidence must be in [0,1], got %g", m.MinConfidence)
	}
	return nil
}

// GradingPolicy decides how ambiguous questions are scored.
type GradingPolicy string

const (
	AmbiguousAsWrong  GradingPolicy = "wrong"
	AmbiguousDistinct GradingPolicy = "distinct"
)

// GradingConfig configures the Grader.
type GradingConfig struct {
	AmbiguousPolicy GradingPolicy `yaml:"ambiguous_policy"`
}

// SidecarFormat selects the file-backed detector format.
type SidecarFormat string

const (
	SidecarJSON SidecarFormat = "json"
	SidecarYOLO SidecarFormat = "yolo"
)

// DetectorConfig configures where detections come from when no live
// detector is attached.
type DetectorConfig struct {
	Format SidecarFormat `yaml:"format"`
}

// LoadAnswerKey reads a YAML (or JSON) mapping of question number to option.
func LoadAnswerKey(path string) (omr.AnswerKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read answer key: %w", err)
	}
	return ParseAnswerKey(data)
}

// ParseAnswerKey parses answer key bytes. Labels are trimmed and upper-cased.
func ParseAnswerKey(data []byte) (omr.AnswerKey, error) {
	var raw map[string]string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse answer key: %w", err)
	}
	return AnswerKeyFromMap(raw)
}

// AnswerKeyFromMap converts question-number strings to an AnswerKey.
func AnswerKeyFromMap(raw map[string]string) (omr.AnswerKey, error) {
	key := make(omr.AnswerKey, len(raw))
	for k, label := range raw {
		q, err := strconv.Atoi(strings.TrimSpace(k))
		if err != nil {
			return nil, fmt.Errorf("answer key: %q is not a question number", k)
		}
		if q < 1 {
			return nil, fmt.Errorf("answer key: question numbers start at 1, got %d", q)
		}
		label = strings.ToUpper(strings.TrimSpace(label))
		if label == "" {
			return nil, fmt.Errorf("answer key: question %d has an empty answer", q)
		}
		key[q] = omr.Option(label)
	}
	return key, nil
}

func hasKey(node *yaml.Node, key string) bool {
	if node.Kind != yaml.MappingNode {
		return false
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == key {
			return true
		}
	}
	return false
}
