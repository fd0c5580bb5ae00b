package research

import (
	"context"
	"log/slog"
	"time"
)

// Phase is a state of the local polling loop. COMPLETED, FAILED and
// CANCELLED mirror the terminal remote states; SUSPENDED is local-only:
// the loop stopped (soft timeout or operator interrupt) while the
// remote interaction keeps running.
type Phase string

const (
	PhaseSubmitted Phase = "SUBMITTED"
	PhasePolling   Phase = "POLLING"
	PhaseCompleted Phase = "COMPLETED"
	PhaseFailed    Phase = "FAILED"
	PhaseCancelled Phase = "CANCELLED"
	PhaseSuspended Phase = "SUSPENDED"
)

// DefaultPollInterval is the default delay between status checks.
const DefaultPollInterval = 10 * time.Second

// DefaultSoftTimeout is the local time budget after which the loop
// suspends without affecting the remote interaction.
const DefaultSoftTimeout = 9 * time.Minute

// Outcome is the final result of one polling run.
type Outcome struct {
	Phase   Phase
	Status  Status
	Elapsed time.Duration
	Polls   int
}

// Poller repeatedly observes a remote interaction until it reaches a
// terminal state, the soft timeout elapses, or the context is
// cancelled. It never retries a failed status call and never cancels
// the remote interaction.
type Poller struct {
	agent       Agent
	interval    time.Duration
	softTimeout time.Duration
	onPoll      func(Status, time.Duration)

	// Injected for tests.
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) bool
}

// PollerOption configures a Poller.
type PollerOption func(*Poller)

// WithInterval sets the delay between status checks.
func WithInterval(d time.Duration) PollerOption {
	return func(p *Poller) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithSoftTimeout sets the local time budget.
func WithSoftTimeout(d time.Duration) PollerOption {
	return func(p *Poller) {
		if d > 0 {
			p.softTimeout = d
		}
	}
}

// WithOnPoll registers a callback invoked after every status check with
// the observed status and the elapsed time since the run started.
func WithOnPoll(fn func(Status, time.Duration)) PollerOption {
	return func(p *Poller) { p.onPoll = fn }
}

// NewPoller creates a Poller for the given agent.
func NewPoller(agent Agent, opts ...PollerOption) *Poller {
	p := &Poller{
		agent:       agent,
		interval:    DefaultPollInterval,
		softTimeout: DefaultSoftTimeout,
		now:         time.Now,
		sleep:       sleepCtx,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// sleepCtx waits for d or until ctx is done. Returns false if the
// context ended the wait.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// Run polls the interaction until a terminal remote state, the soft
// timeout, or context cancellation. A transport error from a status
// call is returned as-is; the caller decides whether to retry.
func (p *Poller) Run(ctx context.Context, interactionID string) (Outcome, error) {
	start := p.now()
	polls := 0

	slog.Debug("polling started",
		"interaction_id", interactionID,
		"interval", p.interval,
		"soft_timeout", p.softTimeout)

	for {
		st, err := p.agent.Status(ctx, interactionID)
		if err != nil {
			return Outcome{Phase: PhasePolling, Elapsed: p.now().Sub(start), Polls: polls}, err
		}
		polls++
		elapsed := p.now().Sub(start)

		slog.Debug("poll", "attempt", polls, "state", st.State, "elapsed", elapsed)

		if p.onPoll != nil {
			p.onPoll(st, elapsed)
		}

		switch st.State {
		case StateCompleted:
			return Outcome{Phase: PhaseCompleted, Status: st, Elapsed: elapsed, Polls: polls}, nil
		case StateFailed:
			return Outcome{Phase: PhaseFailed, Status: st, Elapsed: elapsed, Polls: polls}, nil
		case StateCancelled:
			return Outcome{Phase: PhaseCancelled, Status: st, Elapsed: elapsed, Polls: polls}, nil
		}

		if elapsed >= p.softTimeout {
			slog.Debug("soft timeout reached, suspending", "elapsed", elapsed)
			return Outcome{Phase: PhaseSuspended, Status: st, Elapsed: elapsed, Polls: polls}, nil
		}

		if !p.sleep(ctx, p.interval) {
			// Operator interrupt. The remote interaction keeps running.
			slog.Debug("interrupted during sleep, suspending")
			return Outcome{Phase: PhaseSuspended, Status: st, Elapsed: p.now().Sub(start), Polls: polls}, nil
		}
	}
}
