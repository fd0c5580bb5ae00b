// Package research models the lifecycle of a remote deep-research
// interaction: the states it moves through, the polling loop that
// observes it, and the writer that persists a completed report.
package research

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// State is the remote interaction state as reported by the service.
type State string

const (
	StateProcessing State = "PROCESSING"
	StateCompleted  State = "COMPLETED"
	StateFailed     State = "FAILED"
	StateCancelled  State = "CANCELLED"
)

// Terminal reports whether the remote interaction will not transition
// further. PROCESSING (and any unrecognized state) is non-terminal.
func (s State) Terminal() bool {
	switch s {
	case StateCompleted, StateFailed, StateCancelled:
		return true
	}
	return false
}

// Sentinel errors for the research workflow.
var (
	// ErrNotFound indicates the service does not recognize the
	// interaction identifier.
	ErrNotFound = errors.New("interaction not found")

	// ErrNoOutputs indicates a completed interaction carried no report.
	ErrNoOutputs = errors.New("no outputs available")
)

// NotCompletedError is returned when results are requested for an
// interaction that has not reached COMPLETED. It carries the observed
// status so callers can report the remote state without polling again.
type NotCompletedError struct {
	Status Status
}

func (e *NotCompletedError) Error() string {
	return fmt.Sprintf("research is not yet completed (current state: %s)", e.Status.State)
}

// Statistics summarizes a completed report. The research agent does not
// report token usage, so these are computed from the report text.
type Statistics struct {
	Agent     string
	WordCount int
	CharCount int
	LineCount int
}

// ComputeStatistics derives report statistics from the final text.
func ComputeStatistics(agent, text string) Statistics {
	return Statistics{
		Agent:     agent,
		WordCount: len(strings.Fields(text)),
		CharCount: len(text),
		LineCount: len(strings.Split(text, "\n")),
	}
}

// Status is one observation of a remote interaction. It is a snapshot:
// the local process never holds authoritative state.
type Status struct {
	InteractionID string
	State         State

	// Outputs holds the report text(s) when the interaction completed.
	// The last entry is the final report.
	Outputs []string

	// Statistics is set when the interaction completed with outputs.
	Statistics *Statistics

	// ErrorCode and ErrorMessage carry remote failure detail when the
	// interaction failed.
	ErrorCode    string
	ErrorMessage string
}

// Report returns the final report text and whether one is present.
func (s Status) Report() (string, bool) {
	if len(s.Outputs) == 0 {
		return "", false
	}
	return s.Outputs[len(s.Outputs)-1], true
}

// Agent is the remote research service seen by the workflow. Submit is
// the single non-idempotent call; Status is a side-effect-free read
// that is safe to repeat arbitrarily.
type Agent interface {
	Submit(ctx context.Context, query string) (string, error)
	Status(ctx context.Context, interactionID string) (Status, error)
}
