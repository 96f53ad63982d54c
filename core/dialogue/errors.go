package dialogue

import (
	"errors"
	"fmt"
)

var (
	// ErrNoActiveDialogue is returned when a conversation has no running dialogue.
	ErrNoActiveDialogue = errors.New("dialogue: no active dialogue")
	// ErrAlreadyActive is returned by Enter when a dialogue is already running.
	ErrAlreadyActive = errors.New("dialogue: already active")
	// ErrStoreUnavailable marks infrastructure failures of the session store.
	ErrStoreUnavailable = errors.New("dialogue: session store unavailable")
	// ErrSessionNotFound is returned by stores when a key holds no session.
	ErrSessionNotFound = errors.New("dialogue: session not found")
	// ErrStepNotFound is returned by Registry.Get for out-of-range indices.
	ErrStepNotFound = errors.New("dialogue: step not found")
)

// StoreError wraps a failed store call. It matches ErrStoreUnavailable via errors.Is.
type StoreError struct {
	Op  string
	Key Key
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("dialogue: store %s %s: %v", e.Op, e.Key, e.Err)
}

// Unwrap exposes the underlying store error.
func (e *StoreError) Unwrap() error { return e.Err }

// Is reports ErrStoreUnavailable as a match.
func (e *StoreError) Is(target error) bool { return target == ErrStoreUnavailable }

// Code satisfies the router's error-code convention.
func (e *StoreError) Code() string { return "store_unavailable" }

// ValidationError is returned by validators when an answer is not acceptable.
// Hint is shown to the user before the step's prompt is repeated.
type ValidationError struct {
	Step int
	Hint string
}

func (e *ValidationError) Error() string {
	if e.Hint == "" {
		return fmt.Sprintf("dialogue: invalid answer for step %d", e.Step)
	}
	return fmt.Sprintf("dialogue: invalid answer for step %d: %s", e.Step, e.Hint)
}

// Invalid builds a ValidationError carrying the given hint.
func Invalid(hint string) error {
	return &ValidationError{Hint: hint}
}
