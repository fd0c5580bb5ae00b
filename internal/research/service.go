package research

import (
	"context"
)

// Result describes a persisted research report.
type Result struct {
	Path       string
	Statistics *Statistics
}

// StatusOf performs a single status check. No looping, no retries.
func StatusOf(ctx context.Context, agent Agent, interactionID string) (Status, error) {
	return agent.Status(ctx, interactionID)
}

// Fetch performs a single status check and, if the interaction has
// completed, writes the report. On any non-completed state it returns
// a NotCompletedError and creates no file.
func Fetch(ctx context.Context, agent Agent, w *Writer, interactionID string) (Result, error) {
	st, err := agent.Status(ctx, interactionID)
	if err != nil {
		return Result{}, err
	}
	if st.State != StateCompleted {
		return Result{}, &NotCompletedError{Status: st}
	}

	path, err := w.Write(st)
	if err != nil {
		return Result{}, err
	}
	return Result{Path: path, Statistics: st.Statistics}, nil
}
