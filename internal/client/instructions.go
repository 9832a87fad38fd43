package client

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Step is one automation action proposed by the model.
type Step struct {
	Function      string         `json:"function" yaml:"function"`
	Parameters    map[string]any `json:"parameters" yaml:"parameters"`
	Justification string         `json:"human_readable_justification" yaml:"human_readable_justification"`
}

// InstructionSet is the structured result of one objective-to-steps exchange.
// It is either well-formed (every step names a function) or the empty set.
type InstructionSet struct {
	Steps []Step `json:"steps" yaml:"steps"`
	Done  bool   `json:"done" yaml:"done"`

	// Summary holds the completion text when the model reports "done" as a
	// string rather than a boolean.
	Summary string `json:"summary,omitempty" yaml:"summary,omitempty"`
}

// Empty returns the failed/no-progress instruction set.
func Empty() InstructionSet {
	return InstructionSet{}
}

// IsEmpty reports whether the set carries no steps and no completion.
func (s InstructionSet) IsEmpty() bool {
	return len(s.Steps) == 0 && !s.Done
}

// UnmarshalJSON accepts "done" as a boolean, null, or a summary string.
func (s *InstructionSet) UnmarshalJSON(data []byte) error {
	var raw struct {
		Steps []Step          `json:"steps"`
		Done  json.RawMessage `json:"done"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	set := InstructionSet{Steps: raw.Steps}
	done := strings.TrimSpace(string(raw.Done))
	switch {
	case done == "" || done == "null":
	case done == "true" || done == "false":
		set.Done = done == "true"
	case strings.HasPrefix(done, `"`):
		var summary string
		if err := json.Unmarshal(raw.Done, &summary); err != nil {
			return err
		}
		set.Summary = strings.TrimSpace(summary)
		set.Done = set.Summary != ""
	default:
		return fmt.Errorf("done must be a boolean, null or string, got %s", done)
	}

	*s = set
	return nil
}

func (s InstructionSet) validate() error {
	for i, step := range s.Steps {
		if strings.TrimSpace(step.Function) == "" {
			return fmt.Errorf("step %d has no function name", i)
		}
	}
	return nil
}
