package task

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bgantzler/taskmock/rt/safego"
)

// Task is a policy-governed unit of asynchronous work.
//
// Each Perform creates an Instance that the task's Scheduler runs, queues, drops, or (for a
// restartable policy) uses to replace the oldest running performance.
//
// It is safe for concurrent use.
type Task struct {
	m *Manager // nil for standalone tasks

	name  string
	tags  []safego.Tag
	sched *Scheduler
	group *Group

	// safego-style handlers
	onError             safego.ErrorHandler
	onPanic             safego.PanicHandler
	reportContextCancel bool

	// hooks: both manager-global and task-local (both run)
	onRunStartGlobal  func(info RunStartInfo)
	onRunFinishGlobal func(info RunFinishInfo)
	onRunStartLocal   func(info RunStartInfo)
	onRunFinishLocal  func(info RunFinishInfo)

	mu sync.Mutex

	fn        Func
	observers []performObserver
	nextObsID int

	performCount  uint64
	successCount  uint64
	errorCount    uint64
	canceledCount uint64
	droppedCount  uint64

	last           *Instance
	lastSuccessful *Instance
	lastErrored    *Instance

	lastStarted  time.Time
	lastFinished time.Time
	lastSuccess  time.Time
	lastDuration time.Duration
	lastError    string
}

type performObserver struct {
	id int
	fn func(PerformInfo)
}

// New creates a standalone task (not owned by a Manager).
//
// It panics if fn is nil or the configuration is invalid (negative max concurrency, unknown policy).
func New(fn Func, opts ...Option) *Task {
	c := taskConfig{}
	for _, opt := range opts {
		if opt != nil {
			opt(&c)
		}
	}
	c.name = normalizeName(c.name)
	return newTask(nil, fn, c)
}

func newTask(m *Manager, fn Func, c taskConfig) *Task {
	if fn == nil {
		panic("task: task Func is nil")
	}

	var sched *Scheduler
	if c.group != nil {
		sched = c.group.sched
	} else {
		sched = newScheduler(c.policy, c.maxConcurrency)
	}

	t := &Task{
		m:                   m,
		name:                c.name,
		tags:                cloneTags(c.tags),
		sched:               sched,
		group:               c.group,
		onError:             c.onError,
		onPanic:             c.onPanic,
		reportContextCancel: c.reportContextCancel,
		onRunStartLocal:     c.onRunStart,
		onRunFinishLocal:    c.onRunFinish,
		fn:                  fn,
	}
	if m != nil {
		t.onRunStartGlobal = m.cfg.onRunStart
		t.onRunFinishGlobal = m.cfg.onRunFinish
	}
	if c.onPerform != nil {
		t.observers = append(t.observers, performObserver{id: 0, fn: c.onPerform})
		t.nextObsID = 1
	}
	return t
}

func cloneTags(tags []safego.Tag) []safego.Tag {
	if len(tags) == 0 {
		return nil
	}
	out := make([]safego.Tag, len(tags))
	copy(out, tags)
	return out
}

// Name returns the configured name (may be empty).
func (t *Task) Name() string { return t.name }

// Scheduler returns the scheduler that governs this task (the group's, for group members).
func (t *Task) Scheduler() *Scheduler { return t.sched }

// Group returns the task's group, or nil.
func (t *Task) Group() *Group { return t.group }

// Perform starts a performance with args and returns it without waiting.
//
// Observers registered with WithOnPerform/OnPerform see every call, including performances
// the policy drops. If the owning Manager is shut down, the performance settles immediately
// with ErrClosed.
func (t *Task) Perform(args ...any) *Instance {
	base := context.Background()
	if t.m != nil {
		t.m.startMu.RLock()
		defer t.m.startMu.RUnlock()
		base = t.m.baseContext()
	}

	i := newInstance(t, base, args)

	t.mu.Lock()
	t.performCount++
	t.last = i
	observers := append([]performObserver(nil), t.observers...)
	t.mu.Unlock()

	info := PerformInfo{Name: t.name, Instance: i, Args: i.Args(), PerformedAt: i.performedAt}
	for _, o := range observers {
		callHookNoPanic(o.fn, t.name, info)
	}

	if t.m != nil && t.m.closed.Load() {
		i.finish(StateDropped, nil, ErrClosed, false)
		return i
	}

	tr := t.sched.admit(i)
	for _, d := range tr.drop {
		d.finish(StateDropped, nil, ErrDropped, false)
	}
	for _, c := range tr.cancel {
		c.Cancel()
	}
	for _, s := range tr.start {
		s.task.start(s)
	}
	return i
}

// PerformAndWait performs the task and waits for the performance to settle.
//
// On ctx cancellation it returns ctx.Err(); the performance itself is not canceled.
func (t *Task) PerformAndWait(ctx context.Context, args ...any) (any, error) {
	return t.Perform(args...).Wait(ctx)
}

// IsRunning reports whether any performance of this task is running.
func (t *Task) IsRunning() bool {
	running, _ := t.sched.counts(t)
	return running > 0
}

// IsQueued reports whether any performance of this task is waiting for room.
func (t *Task) IsQueued() bool {
	_, queued := t.sched.counts(t)
	return queued > 0
}

// IsIdle reports whether the task has no running or waiting performance.
func (t *Task) IsIdle() bool {
	running, queued := t.sched.counts(t)
	return running == 0 && queued == 0
}

// PerformCount returns how many times Perform was called.
func (t *Task) PerformCount() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.performCount
}

// Last returns the most recent performance, or nil.
func (t *Task) Last() *Instance {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.last
}

// LastSuccessful returns the most recent performance that succeeded, or nil.
func (t *Task) LastSuccessful() *Instance {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastSuccessful
}

// LastErrored returns the most recent performance that failed, or nil.
func (t *Task) LastErrored() *Instance {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastErrored
}

// Running returns the performances holding a running slot, oldest first. Waiting performances
// are not included.
func (t *Task) Running() []*Instance {
	return t.sched.runningOf(t)
}

// CancelAll cancels every running and waiting performance of this task.
func (t *Task) CancelAll() {
	for _, i := range t.sched.instancesOf(t) {
		i.Cancel()
	}
}

// SwapFunc replaces the task's work for performances that start from now on. Running bodies
// are unaffected. The returned func restores the previous work; it is safe to call more than once.
func (t *Task) SwapFunc(fn Func) (restore func()) {
	if fn == nil {
		panic("task: SwapFunc called with nil Func")
	}
	t.mu.Lock()
	prev := t.fn
	t.fn = fn
	t.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			t.mu.Lock()
			t.fn = prev
			t.mu.Unlock()
		})
	}
}

// OnPerform registers an observer for every Perform call. The returned func removes it.
func (t *Task) OnPerform(fn func(PerformInfo)) (remove func()) {
	if fn == nil {
		panic("task: OnPerform called with nil func")
	}
	t.mu.Lock()
	id := t.nextObsID
	t.nextObsID++
	t.observers = append(t.observers, performObserver{id: id, fn: fn})
	t.mu.Unlock()

	return func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		for idx, o := range t.observers {
			if o.id != id {
				continue
			}
			out := make([]performObserver, 0, len(t.observers)-1)
			out = append(out, t.observers[:idx]...)
			t.observers = append(out, t.observers[idx+1:]...)
			return
		}
	}
}

// Status returns a snapshot of the task's current status.
func (t *Task) Status() Status {
	running, queued := t.sched.counts(t)

	t.mu.Lock()
	defer t.mu.Unlock()

	st := Status{
		Name: t.name,
		Tags: cloneTags(t.tags),

		Policy:         t.sched.Policy(),
		MaxConcurrency: t.sched.MaxConcurrency(),

		Running: running,
		Queued:  queued,

		PerformCount:  t.performCount,
		SuccessCount:  t.successCount,
		ErrorCount:    t.errorCount,
		CanceledCount: t.canceledCount,
		DroppedCount:  t.droppedCount,

		LastStarted:  t.lastStarted,
		LastFinished: t.lastFinished,
		LastSuccess:  t.lastSuccess,
		LastDuration: t.lastDuration,
		LastError:    t.lastError,
	}
	if t.group != nil {
		st.Group = t.group.Name()
	}
	return st
}

func (t *Task) start(i *Instance) {
	startedAt := time.Now()
	if !i.markRunning(startedAt) {
		return
	}

	t.mu.Lock()
	t.lastStarted = startedAt
	fn := t.fn
	t.mu.Unlock()

	startInfo := RunStartInfo{
		Name:       t.name,
		Tags:       cloneTags(t.tags),
		InstanceID: i.id,
		StartedAt:  startedAt,
	}

	if t.m != nil {
		t.m.wg.Add(1)
	}
	go func() {
		if t.m != nil {
			defer t.m.wg.Done()
		}
		t.callOnRunStart(startInfo)
		t.run(i, fn)
	}()
}

func (t *Task) run(i *Instance, fn Func) {
	opts := []safego.Option{
		safego.WithName(t.name),
		safego.WithTags(t.tags...),
		safego.WithReportContextCancel(t.reportContextCancel),
	}
	if t.onError != nil {
		opts = append(opts, safego.WithErrorHandler(t.onError))
	}
	if t.onPanic != nil {
		opts = append(opts, safego.WithPanicHandler(t.onPanic))
	}

	v, err := safego.Call(i.ctx, func(ctx context.Context) (any, error) {
		return fn(ctx, i.args...)
	}, opts...)

	switch {
	case err == nil:
		i.finish(StateSucceeded, v, nil, false)
	case errors.Is(err, safego.ErrPanicked):
		i.finish(StateErrored, nil, err, true)
	default:
		// A canceled performance has already settled; this is a no-op then.
		i.finish(StateErrored, nil, err, false)
	}
}

func (t *Task) recordFinish(i *Instance, started bool, finishedAt time.Time, panicked bool) {
	state := i.State()
	err := i.Err()

	t.mu.Lock()
	switch state {
	case StateSucceeded:
		t.successCount++
		t.lastSuccess = finishedAt
		t.lastSuccessful = i
	case StateErrored:
		t.errorCount++
		t.lastErrored = i
		if panicked {
			t.lastError = "panic"
		} else if err != nil {
			t.lastError = err.Error()
		}
	case StateCanceled:
		t.canceledCount++
	case StateDropped:
		t.droppedCount++
	}
	var dur time.Duration
	if started {
		dur = finishedAt.Sub(i.startedAt)
		t.lastFinished = finishedAt
		t.lastDuration = dur
	}
	t.mu.Unlock()

	if !started {
		return
	}
	info := RunFinishInfo{
		Name:       t.name,
		Tags:       cloneTags(t.tags),
		InstanceID: i.id,
		State:      state,
		StartedAt:  i.startedAt,
		FinishedAt: finishedAt,
		Duration:   dur,
		Panicked:   panicked,
	}
	if err != nil {
		info.Err = err.Error()
	}
	t.callOnRunFinish(info)
}

func (t *Task) callOnRunStart(info RunStartInfo) {
	if t.onRunStartGlobal != nil {
		callHookNoPanic(t.onRunStartGlobal, t.name, info)
	}
	if t.onRunStartLocal != nil {
		callHookNoPanic(t.onRunStartLocal, t.name, info)
	}
}

func (t *Task) callOnRunFinish(info RunFinishInfo) {
	if t.onRunFinishGlobal != nil {
		callHookNoPanic(t.onRunFinishGlobal, t.name, info)
	}
	if t.onRunFinishLocal != nil {
		callHookNoPanic(t.onRunFinishLocal, t.name, info)
	}
}

func callHookNoPanic[T any](h func(T), name string, info T) {
	_, _ = safego.Call(context.Background(), func(context.Context) (struct{}, error) {
		h(info)
		return struct{}{}, nil
	}, safego.WithName(fmt.Sprintf("task hook %q", name)))
}
