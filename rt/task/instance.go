package task

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type instanceKey struct{}

// FromContext returns the performance whose body is running with ctx.
func FromContext(ctx context.Context) (*Instance, bool) {
	if ctx == nil {
		return nil, false
	}
	i, ok := ctx.Value(instanceKey{}).(*Instance)
	return i, ok
}

// Instance is a single performance of a Task.
//
// It settles exactly once: succeeded, errored, canceled, or dropped. Done is closed after the
// scheduler has released the performance and the task's status has been updated.
type Instance struct {
	id    uuid.UUID
	task  *Task
	sched *Scheduler
	args  []any

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	performedAt time.Time

	mu         sync.Mutex
	state      State
	settling   bool
	value      any
	err        error
	startedAt  time.Time
	finishedAt time.Time
}

func newInstance(t *Task, base context.Context, args []any) *Instance {
	i := &Instance{
		id:          uuid.New(),
		task:        t,
		sched:       t.sched,
		args:        append([]any(nil), args...),
		done:        make(chan struct{}),
		performedAt: time.Now(),
	}
	i.ctx, i.cancel = context.WithCancel(context.WithValue(base, instanceKey{}, i))
	return i
}

// ID returns a unique identifier for this performance.
func (i *Instance) ID() uuid.UUID { return i.id }

// Task returns the task that was performed.
func (i *Instance) Task() *Task { return i.task }

// Args returns a copy of the arguments passed to Perform.
func (i *Instance) Args() []any { return append([]any(nil), i.args...) }

// State returns the current state.
func (i *Instance) State() State {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.state
}

// Value returns the value of a succeeded performance (nil otherwise).
func (i *Instance) Value() any {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.value
}

// Err returns the error of a settled performance: the body's error unchanged, ErrPanicked,
// ErrCanceled, ErrDropped, or ErrClosed. It is nil while pending and on success.
func (i *Instance) Err() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.err
}

// IsRunning reports whether the body is currently running.
func (i *Instance) IsRunning() bool { return i.State() == StateRunning }

// IsFinished reports whether the performance has settled.
func (i *Instance) IsFinished() bool {
	select {
	case <-i.done:
		return true
	default:
		return false
	}
}

// Done is closed when the performance settles.
func (i *Instance) Done() <-chan struct{} { return i.done }

// Wait blocks until the performance settles or ctx is done.
//
// If ctx is nil, it is treated as context.Background().
func (i *Instance) Wait(ctx context.Context) (any, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case <-i.done:
		i.mu.Lock()
		defer i.mu.Unlock()
		return i.value, i.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Cancel cancels a waiting or running performance. It settles with ErrCanceled and its body's
// context is canceled. Canceling a settled performance is a no-op.
func (i *Instance) Cancel() {
	i.finish(StateCanceled, nil, ErrCanceled, false)
}

// markRunning moves a waiting performance to running. It reports false if the performance
// settled (was canceled) before it could start.
func (i *Instance) markRunning(now time.Time) bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.settling {
		return false
	}
	i.state = StateRunning
	i.startedAt = now
	return true
}

// finish settles the performance once. It reports whether this call settled it.
func (i *Instance) finish(state State, v any, err error, panicked bool) bool {
	i.mu.Lock()
	if i.settling {
		i.mu.Unlock()
		return false
	}
	i.settling = true
	i.mu.Unlock()

	next := i.sched.release(i)

	now := time.Now()
	i.mu.Lock()
	started := !i.startedAt.IsZero()
	i.state = state
	i.value = v
	i.err = err
	i.finishedAt = now
	i.mu.Unlock()

	i.cancel()
	i.task.recordFinish(i, started, now, panicked)
	close(i.done)

	for _, n := range next {
		n.task.start(n)
	}
	return true
}
