package dialogue

import (
	"errors"
	"fmt"
	"strings"
)

// Validator checks raw input for a step and returns the value to record.
type Validator func(input string) (string, error)

// Step is one question of a dialogue.
type Step struct {
	Index int
	// Key names the answer in summaries; defaults to "step<Index>Answer".
	Key      string
	Prompt   Prompt
	Validate Validator
}

func (s Step) validate(input string) (string, error) {
	if s.Validate == nil {
		return input, nil
	}
	value, err := s.Validate(input)
	if err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			// validators may return a shared error value
			return "", &ValidationError{Step: s.Index, Hint: verr.Hint}
		}
		return "", &ValidationError{Step: s.Index, Hint: err.Error()}
	}
	return value, nil
}

// Registry is the ordered, immutable list of steps of a dialogue.
type Registry struct {
	steps []Step
}

// NewRegistry validates the steps and assigns their indices.
func NewRegistry(steps ...Step) (*Registry, error) {
	if len(steps) == 0 {
		return nil, errors.New("dialogue: registry needs at least one step")
	}
	seen := make(map[string]struct{}, len(steps))
	out := make([]Step, len(steps))
	for i, st := range steps {
		if strings.TrimSpace(st.Prompt.Text) == "" {
			return nil, fmt.Errorf("dialogue: step %d has an empty prompt", i)
		}
		st.Index = i
		if st.Key == "" {
			st.Key = fmt.Sprintf("step%dAnswer", i)
		}
		if _, dup := seen[st.Key]; dup {
			return nil, fmt.Errorf("dialogue: duplicate step key %q", st.Key)
		}
		seen[st.Key] = struct{}{}
		out[i] = st
	}
	return &Registry{steps: out}, nil
}

// MustRegistry is NewRegistry that panics on invalid definitions.
func MustRegistry(steps ...Step) *Registry {
	r, err := NewRegistry(steps...)
	if err != nil {
		panic(err)
	}
	return r
}

// Get returns the step at index.
func (r *Registry) Get(index int) (Step, error) {
	if index < 0 || index >= len(r.steps) {
		return Step{}, fmt.Errorf("%w: %d", ErrStepNotFound, index)
	}
	return r.steps[index], nil
}

// Len returns the number of steps.
func (r *Registry) Len() int { return len(r.steps) }

// IsTerminal reports whether index is past the last step.
func (r *Registry) IsTerminal(index int) bool { return index >= len(r.steps) }

// Steps returns a copy of the step list.
func (r *Registry) Steps() []Step {
	return append([]Step(nil), r.steps...)
}
