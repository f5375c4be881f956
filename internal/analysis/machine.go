package analysis

import (
	"context"
	"io"
	"time"

	"github.com/MOYARU/vigil/internal/failure"
	"github.com/MOYARU/vigil/internal/reputation"
)

type State string

const (
	StateIdle      State = "IDLE"
	StateSubmitted State = "SUBMITTED"
	StatePolling   State = "POLLING"
	StateComplete  State = "COMPLETE"
	StateTimedOut  State = "TIMED_OUT"
	StateFailed    State = "FAILED"
)

const (
	DefaultInterval = 10 * time.Second
	DefaultMaxWait  = 300 * time.Second
)

// Machine drives one submission from IDLE to a terminal state.
// A Machine is not safe for concurrent use; create one per submission.
type Machine struct {
	Store    reputation.Store
	Interval time.Duration
	MaxWait  time.Duration

	// Now and Sleep default to the wall clock. Sleep must return ctx.Err()
	// when ctx ends first.
	Now   func() time.Time
	Sleep func(ctx context.Context, d time.Duration) error

	OnTransition func(from, to State)

	state    State
	attempts int
}

func New(store reputation.Store, interval, maxWait time.Duration) *Machine {
	return &Machine{Store: store, Interval: interval, MaxWait: maxWait}
}

func (m *Machine) State() State {
	if m.state == "" {
		return StateIdle
	}
	return m.state
}

// Attempts is the number of polls made by the last Wait.
func (m *Machine) Attempts() int { return m.attempts }

// SubmitFile uploads a file the store has not seen. Failures are terminal.
func (m *Machine) SubmitFile(ctx context.Context, fingerprint, name string, r io.Reader) (reputation.Pending, error) {
	m.transition(StateIdle)
	id, err := m.Store.SubmitFile(ctx, name, r)
	if err != nil {
		m.transition(StateFailed)
		return reputation.Pending{}, err
	}
	return m.submitted(id, reputation.KindFile, fingerprint), nil
}

// SubmitURL asks the store to scan a URL it has not seen. Failures are terminal.
func (m *Machine) SubmitURL(ctx context.Context, rawURL string) (reputation.Pending, error) {
	m.transition(StateIdle)
	id, err := m.Store.SubmitURL(ctx, rawURL)
	if err != nil {
		m.transition(StateFailed)
		return reputation.Pending{}, err
	}
	return m.submitted(id, reputation.KindURL, reputation.URLIdentifier(rawURL)), nil
}

// Track follows a resource the store already holds but has not analysed yet.
// Nothing is uploaded; Wait polls the resource report instead of an analysis.
func (m *Machine) Track(resourceID string, kind reputation.Kind) reputation.Pending {
	m.transition(StateIdle)
	return m.submitted("", kind, resourceID)
}

func (m *Machine) submitted(id string, kind reputation.Kind, resourceID string) reputation.Pending {
	m.transition(StateSubmitted)
	return reputation.Pending{
		SubmissionID: id,
		Kind:         kind,
		ResourceID:   resourceID,
		StartedAt:    m.now(),
	}
}

// Wait polls the analysis, or the resource report for tracked resources,
// until engines report results or MaxWait elapses since p.StartedAt. A result
// the store cannot find yet counts as still processing; store errors end the
// wait.
func (m *Machine) Wait(ctx context.Context, p reputation.Pending) (reputation.Report, error) {
	interval := m.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	maxWait := m.MaxWait
	if maxWait <= 0 {
		maxWait = DefaultMaxWait
	}

	m.attempts = 0
	m.transition(StatePolling)
	for {
		if m.now().Sub(p.StartedAt) >= maxWait {
			m.transition(StateTimedOut)
			return reputation.Report{}, failure.Wrapf(failure.ErrTimedOut, "analysis.wait",
				"%s still processing after %s", pendingLabel(p), maxWait)
		}

		m.attempts++
		rep, found, err := m.fetch(ctx, p)
		if err != nil {
			m.transition(StateFailed)
			return reputation.Report{}, err
		}
		if found && rep.Complete() {
			if rep.ResourceID == "" || rep.ResourceID == p.SubmissionID {
				rep.ResourceID = p.ResourceID
			}
			m.transition(StateComplete)
			return rep, nil
		}

		if err := m.sleep(ctx, interval); err != nil {
			m.transition(StateFailed)
			return reputation.Report{}, err
		}
	}
}

func (m *Machine) fetch(ctx context.Context, p reputation.Pending) (reputation.Report, bool, error) {
	if p.SubmissionID == "" {
		return m.Store.FetchReport(ctx, p.ResourceID, p.Kind)
	}
	return m.Store.FetchAnalysis(ctx, p.SubmissionID)
}

func pendingLabel(p reputation.Pending) string {
	if p.SubmissionID == "" {
		return "resource " + p.ResourceID
	}
	return "submission " + p.SubmissionID
}

func (m *Machine) transition(to State) {
	from := m.State()
	m.state = to
	if m.OnTransition != nil && from != to {
		m.OnTransition(from, to)
	}
}

func (m *Machine) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now()
}

func (m *Machine) sleep(ctx context.Context, d time.Duration) error {
	if m.Sleep != nil {
		return m.Sleep(ctx, d)
	}
	return SleepContext(ctx, d)
}

// SleepContext waits for d or until ctx ends, releasing its timer either way.
func SleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
