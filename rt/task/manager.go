package task

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
)

// Manager owns named tasks and groups and coordinates graceful shutdown.
//
// A Manager is also a replaceable registry: Replace swaps the task registered under a name and
// returns a func that restores it. Code that resolves tasks through Lookup at call time picks
// up the replacement.
//
// It is safe for concurrent use. The zero value is ready to use with default configuration.
// To apply ManagerOption (hooks/handlers), use NewManager.
type Manager struct {
	cfg managerConfig

	initOnce sync.Once
	ctx      context.Context
	cancel   context.CancelFunc

	// startMu gates performance admission against Shutdown:
	// Perform holds RLock while admitting; Shutdown takes Lock to close.
	startMu sync.RWMutex
	closed  atomic.Bool

	mu     sync.Mutex
	tasks  []*Task // every task added (originals, never replacements)
	names  map[string]*Task
	order  []string
	groups map[string]*Group

	wg sync.WaitGroup // running bodies
}

// NewManager creates a new Manager.
func NewManager(opts ...ManagerOption) *Manager {
	var cfg managerConfig
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	m := &Manager{cfg: cfg}
	m.init()
	return m
}

func (m *Manager) init() {
	m.initOnce.Do(func() {
		m.ctx, m.cancel = context.WithCancel(context.Background())
	})
}

func (m *Manager) baseContext() context.Context {
	m.init()
	return m.ctx
}

// Add creates a task owned by this manager.
//
// Defaults come from the manager's options; task options override them. If called during/after
// Shutdown, it returns ErrClosed. It panics if fn is nil or the configuration is invalid.
func (m *Manager) Add(fn Func, opts ...Option) (*Task, error) {
	if m.closed.Load() {
		return nil, ErrClosed
	}

	c := taskConfig{
		onError:             m.cfg.onError,
		onPanic:             m.cfg.onPanic,
		reportContextCancel: m.cfg.reportContextCancel,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&c)
		}
	}
	name, err := checkName(c.name)
	if err != nil {
		return nil, err
	}
	c.name = name

	t := newTask(m, fn, c)

	m.mu.Lock()
	defer m.mu.Unlock()
	if c.name != "" {
		if m.names == nil {
			m.names = make(map[string]*Task)
		}
		if _, exists := m.names[c.name]; exists {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateName, c.name)
		}
		m.names[c.name] = t
		m.order = append(m.order, c.name)
	}
	m.tasks = append(m.tasks, t)
	return t, nil
}

// MustAdd is like Add but panics on error.
//
// It is intended for initialization-time wiring where an error indicates a programming/configuration
// mistake (for example, invalid name or duplicate name).
func (m *Manager) MustAdd(fn Func, opts ...Option) *Task {
	t, err := m.Add(fn, opts...)
	if err != nil {
		panic(err)
	}
	return t
}

// AddGroup creates a named group owned by this manager. Only WithName, WithPolicy and
// WithMaxConcurrency apply.
func (m *Manager) AddGroup(opts ...Option) (*Group, error) {
	c := taskConfig{}
	for _, opt := range opts {
		if opt != nil {
			opt(&c)
		}
	}
	name, err := checkName(c.name)
	if err != nil {
		return nil, err
	}
	c.name = name
	g := newGroup(c)

	if g.name == "" {
		return g, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.groups == nil {
		m.groups = make(map[string]*Group)
	}
	if _, exists := m.groups[g.name]; exists {
		return nil, fmt.Errorf("%w: group %q", ErrDuplicateName, g.name)
	}
	m.groups[g.name] = g
	return g, nil
}

// Lookup finds the task currently registered under name.
//
// Name is normalized by strings.TrimSpace. Empty names are not indexed and always return (nil, false).
func (m *Manager) Lookup(name string) (*Task, bool) {
	if m == nil {
		return nil, false
	}
	name = normalizeName(name)
	if name == "" {
		return nil, false
	}
	m.mu.Lock()
	t, ok := m.names[name]
	m.mu.Unlock()
	return t, ok
}

// LookupGroup finds a group by name.
func (m *Manager) LookupGroup(name string) (*Group, bool) {
	if m == nil {
		return nil, false
	}
	name = normalizeName(name)
	if name == "" {
		return nil, false
	}
	m.mu.Lock()
	g, ok := m.groups[name]
	m.mu.Unlock()
	return g, ok
}

// Replace registers t under an existing name and returns a func that restores the previous
// task. Restore is safe to call more than once.
//
// Replace returns ErrNotFound if no task is registered under name.
func (m *Manager) Replace(name string, t *Task) (restore func(), err error) {
	if t == nil {
		panic("task: Replace called with nil Task")
	}
	name = normalizeName(name)

	m.mu.Lock()
	prev, ok := m.names[name]
	if !ok {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	m.names[name] = t
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			m.names[name] = prev
			m.mu.Unlock()
		})
	}, nil
}

// Snapshot returns a point-in-time view of the named tasks (as currently registered, in
// registration order) followed by unnamed tasks.
func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	current := make([]*Task, 0, len(m.tasks))
	for _, name := range m.order {
		current = append(current, m.names[name])
	}
	for _, t := range m.tasks {
		if t.name == "" {
			current = append(current, t)
		}
	}
	m.mu.Unlock()

	out := make([]Status, 0, len(current))
	for _, t := range current {
		out = append(out, t.Status())
	}
	return Snapshot{Tasks: out}
}

// Shutdown stops admitting performances, cancels every running and waiting performance of the
// manager's tasks, and waits for their bodies to return.
//
// Shutdown is safe to call multiple times. If ctx is done first, it returns ctx.Err(); call
// Wait or Shutdown again to keep waiting. If ctx is nil, it is treated as context.Background().
func (m *Manager) Shutdown(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	m.init()

	m.startMu.Lock()
	already := m.closed.Swap(true)
	m.startMu.Unlock()

	if !already {
		m.mu.Lock()
		tasks := append([]*Task(nil), m.tasks...)
		m.mu.Unlock()
		for _, t := range tasks {
			t.CancelAll()
		}
		m.cancel()
	}

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Wait waits until all running bodies have returned.
func (m *Manager) Wait() {
	m.wg.Wait()
}
