package tasktest

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/bgantzler/taskmock/rt/task"
)

// Mock is a controllable double for a task.
//
// Its internal task has the scheduling configuration of the task it replaces (or an explicit
// Descriptor), so the engine treats overlapping performances exactly as it would for the real
// one. What a performance does is up to the test:
//
//   - With no fake installed, every performance waits on one shared outcome that Finish or
//     Reject settles, once, for all of them.
//   - With a fake installed (CallsFake, Resolves, Rejects), every performance that starts from
//     then on calls the fake with its arguments and returns the fake's result.
//
// A performance already waiting on the shared outcome is never redirected to a fake installed
// later.
type Mock struct {
	task       *task.Task
	descriptor Descriptor
	d          *deferred
	spy        *Spy
	logger     *slog.Logger

	mu      sync.Mutex
	fake    task.Func
	faked   map[*task.Instance]chan struct{} // closed once the body has taken the fake
	restore func()
}

// New creates an untargeted double.
func New(opts ...Option) (*Mock, error) {
	return newMock(nil, "", opts)
}

// NewFor creates a double for the task registered under name on target and installs it there.
// Call Restore to put the original back.
//
// target and name must be given together (ErrTargetArgs); name must exist on target
// (ErrTaskNotFound). Passing neither is the same as New.
func NewFor(target Target, name string, opts ...Option) (*Mock, error) {
	return newMock(target, name, opts)
}

// Attach is NewFor for tests: it fails tb on a construction error and restores the original
// task when the test finishes.
func Attach(tb testing.TB, target Target, name string, opts ...Option) *Mock {
	tb.Helper()
	m, err := NewFor(target, name, opts...)
	if err != nil {
		tb.Fatalf("tasktest: %v", err)
	}
	tb.Cleanup(m.Restore)
	return m
}

func newMock(target Target, name string, opts []Option) (*Mock, error) {
	var c config
	for _, opt := range opts {
		if opt != nil {
			opt(&c)
		}
	}

	d, err := Infer(target, name)
	if err != nil {
		return nil, err
	}
	if c.descriptor != nil {
		if err := c.descriptor.validate(); err != nil {
			return nil, err
		}
		d = *c.descriptor
	}

	taskName := c.name
	if taskName == "" {
		taskName = name
	}
	logger := c.logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	m := &Mock{
		descriptor: d,
		d:          newDeferred(),
		faked:      make(map[*task.Instance]chan struct{}),
		logger:     logger.With(slog.String("task", taskName)),
	}

	taskOpts := append([]task.Option(nil), c.taskOpts...)
	taskOpts = append(taskOpts,
		task.WithName(taskName),
		task.WithPolicy(task.PolicyDefault),
		task.WithMaxConcurrency(0),
		task.WithGroup(nil),
	)
	taskOpts = append(taskOpts, d.Options()...)
	m.task = task.New(m.run, taskOpts...)
	m.spy = Watch(m.task)

	if target != nil {
		restore, err := target.Replace(name, m.task)
		if err != nil {
			m.spy.Restore()
			return nil, err
		}
		m.restore = restore
	}
	m.logger.Debug("task double created", slog.String("descriptor", d.String()))
	return m, nil
}

func (m *Mock) run(ctx context.Context, args ...any) (any, error) {
	m.mu.Lock()
	fake := m.fake
	var i *task.Instance
	if fake != nil {
		i, _ = task.FromContext(ctx)
		if i != nil {
			close(m.faking(i))
		}
	}
	m.mu.Unlock()

	if fake == nil {
		return m.d.wait(ctx)
	}
	if i != nil {
		defer func() {
			m.mu.Lock()
			delete(m.faked, i)
			m.mu.Unlock()
		}()
	}
	return fake(ctx, args...)
}

// faking returns the channel closed once i's body has chosen the fake. m.mu must be held.
func (m *Mock) faking(i *task.Instance) chan struct{} {
	ch, ok := m.faked[i]
	if !ok {
		ch = make(chan struct{})
		m.faked[i] = ch
	}
	return ch
}

// Task returns the internal task, for state introspection (IsRunning, Last, Status, ...).
func (m *Mock) Task() *task.Task { return m.task }

// Spy returns the spy recording every Perform of the internal task.
func (m *Mock) Spy() *Spy { return m.spy }

// Descriptor returns the scheduling configuration the double was built with.
func (m *Mock) Descriptor() Descriptor { return m.descriptor }

// Finish settles the shared outcome with v. Every running performance waiting on it succeeds
// with v, and Finish returns once those have settled. Performances still queued behind the
// task's policy are not waited for; they see the settled outcome when they start.
//
// The outcome can be settled only once; later calls return ErrAlreadySettled.
func (m *Mock) Finish(v any) error {
	return m.settle(v, nil, "finished")
}

// Reject settles the shared outcome with err, delivered unchanged to every waiting
// performance. A nil err is replaced by ErrRejected. Like Finish, it returns once the running
// performances waiting on it have settled.
//
// The outcome can be settled only once; later calls return ErrAlreadySettled.
func (m *Mock) Reject(err error) error {
	if err == nil {
		err = ErrRejected
	}
	return m.settle(nil, err, "rejected")
}

func (m *Mock) settle(v any, err error, outcome string) error {
	if serr := m.d.settle(v, err); serr != nil {
		return serr
	}

	// Performances holding a running slot either wait on the outcome (and settle now) or took
	// a fake. Waiting ones start later and see the settled outcome.
	running := m.task.Running()
	for _, i := range running {
		m.mu.Lock()
		chosen := m.faking(i)
		m.mu.Unlock()

		select {
		case <-i.Done():
		case <-chosen:
		}
	}

	m.mu.Lock()
	for _, i := range running {
		if ch := m.faked[i]; ch != nil && !isClosed(ch) {
			delete(m.faked, i)
		}
	}
	m.mu.Unlock()

	m.logger.Debug("task double settled",
		slog.String("outcome", outcome),
		slog.Int("running", len(running)),
	)
	return nil
}

func isClosed(ch chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

// CallsFake makes every performance that starts from now on call fn with the performance's
// arguments. A nil fn goes back to waiting on the shared outcome.
func (m *Mock) CallsFake(fn task.Func) *Mock {
	m.mu.Lock()
	m.fake = fn
	m.mu.Unlock()
	m.logger.Debug("task double fake installed", slog.Bool("fake", fn != nil))
	return m
}

// Resolves makes every performance from now on succeed with v.
func (m *Mock) Resolves(v any) *Mock {
	return m.CallsFake(func(context.Context, ...any) (any, error) {
		return v, nil
	})
}

// Rejects makes every performance from now on fail with err (ErrRejected if nil).
func (m *Mock) Rejects(err error) *Mock {
	if err == nil {
		err = ErrRejected
	}
	return m.CallsFake(func(context.Context, ...any) (any, error) {
		return nil, err
	})
}

// Restore puts the original task back on the target. It is a no-op for untargeted doubles
// and safe to call more than once.
func (m *Mock) Restore() {
	m.mu.Lock()
	restore := m.restore
	m.mu.Unlock()
	if restore != nil {
		restore()
	}
}
