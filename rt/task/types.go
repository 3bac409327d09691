package task

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bgantzler/taskmock/rt/safego"
	"github.com/google/uuid"
)

// Func is the work performed by a task.
//
// args are the arguments passed to Perform, unchanged. ctx is canceled when the performance is
// canceled (explicitly, by a restartable policy, or by Manager.Shutdown); the performance is
// already settled as canceled at that point and any late return value is ignored.
type Func func(ctx context.Context, args ...any) (any, error)

// Policy is the concurrency discipline applied to overlapping performances.
type Policy int

const (
	// PolicyDefault applies no buffering policy. With no max concurrency it is unbounded;
	// with a max concurrency set, excess performances are queued (as with PolicyEnqueue).
	PolicyDefault Policy = iota
	// PolicyRestartable cancels the oldest running performance to make room for a new one.
	PolicyRestartable
	// PolicyDrop drops a new performance when max concurrency is reached.
	PolicyDrop
	// PolicyKeepLatest keeps only the most recent waiting performance; older waiting ones are dropped.
	PolicyKeepLatest
	// PolicyEnqueue queues performances and runs them in FIFO order.
	PolicyEnqueue
)

func (p Policy) String() string {
	switch p {
	case PolicyDefault:
		return "default"
	case PolicyRestartable:
		return "restartable"
	case PolicyDrop:
		return "drop"
	case PolicyKeepLatest:
		return "keep-latest"
	case PolicyEnqueue:
		return "enqueue"
	default:
		return fmt.Sprintf("Policy(%d)", int(p))
	}
}

// ParsePolicy parses a policy name as produced by Policy.String.
//
// Matching is case-insensitive; "keepLatest" and "keep_latest" are accepted, and the empty
// string means PolicyDefault.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "default", "unbounded":
		return PolicyDefault, nil
	case "restartable":
		return PolicyRestartable, nil
	case "drop":
		return PolicyDrop, nil
	case "keep-latest", "keeplatest", "keep_latest":
		return PolicyKeepLatest, nil
	case "enqueue":
		return PolicyEnqueue, nil
	default:
		return PolicyDefault, fmt.Errorf("task: unknown policy %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (p Policy) MarshalText() ([]byte, error) {
	if p < PolicyDefault || p > PolicyEnqueue {
		return nil, fmt.Errorf("task: unknown policy %d", int(p))
	}
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Policy) UnmarshalText(b []byte) error {
	v, err := ParsePolicy(string(b))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// State is the lifecycle state of a single performance.
type State int

const (
	StateWaiting State = iota
	StateRunning
	StateSucceeded
	StateErrored
	StateCanceled
	StateDropped
)

func (s State) String() string {
	switch s {
	case StateWaiting:
		return "waiting"
	case StateRunning:
		return "running"
	case StateSucceeded:
		return "succeeded"
	case StateErrored:
		return "errored"
	case StateCanceled:
		return "canceled"
	case StateDropped:
		return "dropped"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Finished reports whether s is a terminal state.
func (s State) Finished() bool { return s >= StateSucceeded }

// Status is a task state snapshot.
type Status struct {
	Name string
	Tags []safego.Tag

	Policy         Policy
	MaxConcurrency int
	Group          string

	Running int
	Queued  int

	PerformCount  uint64
	SuccessCount  uint64
	ErrorCount    uint64
	CanceledCount uint64
	DroppedCount  uint64

	LastStarted  time.Time
	LastFinished time.Time
	LastSuccess  time.Time

	LastDuration time.Duration
	// LastError is the most recent run error *when the run failed*. It is not cleared on success.
	LastError string
}

// Snapshot is a point-in-time view of all tasks in a Manager.
type Snapshot struct {
	Tasks []Status
}

// Get finds a task status by name.
func (s Snapshot) Get(name string) (Status, bool) {
	for _, st := range s.Tasks {
		if st.Name == name {
			return st, true
		}
	}
	return Status{}, false
}

// PerformInfo is passed to perform observers, synchronously and in call order, before the
// performance is scheduled.
type PerformInfo struct {
	Name string

	Instance    *Instance
	Args        []any
	PerformedAt time.Time
}

// RunStartInfo is passed to OnRunStart hooks.
type RunStartInfo struct {
	Name string
	Tags []safego.Tag

	InstanceID uuid.UUID
	StartedAt  time.Time
}

// RunFinishInfo is passed to OnRunFinish hooks.
type RunFinishInfo struct {
	Name string
	Tags []safego.Tag

	InstanceID uuid.UUID
	State      State

	StartedAt  time.Time
	FinishedAt time.Time
	Duration   time.Duration

	Err      string
	Panicked bool
}
