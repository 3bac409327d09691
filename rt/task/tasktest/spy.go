package tasktest

import (
	"context"
	"reflect"
	"sync"
	"time"

	"github.com/bgantzler/taskmock/rt/task"
)

// Call is one recorded Perform.
type Call struct {
	Args     []any
	Instance *task.Instance
	At       time.Time
}

// Spy records every Perform of a task, including performances its policy drops.
type Spy struct {
	mu      sync.Mutex
	calls   []Call
	remove  func()
	restore func()
	once    sync.Once
}

// Watch starts recording t's performances. The task's work is untouched.
func Watch(t *task.Task) *Spy {
	s := &Spy{}
	s.remove = t.OnPerform(func(info task.PerformInfo) {
		s.mu.Lock()
		s.calls = append(s.calls, Call{Args: info.Args, Instance: info.Instance, At: info.PerformedAt})
		s.mu.Unlock()
	})
	return s
}

// Stub replaces t's work with fake for performances that start from now on and records every
// Perform. A nil fake succeeds with a nil value. Restore puts the original work back.
//
// Stub is the lightweight alternative to a Mock when the test owns the task and only needs to
// see calls and control results.
func Stub(t *task.Task, fake task.Func) *Spy {
	if fake == nil {
		fake = func(context.Context, ...any) (any, error) { return nil, nil }
	}
	restore := t.SwapFunc(fake)
	s := Watch(t)
	s.restore = restore
	return s
}

// Called reports whether the task was performed at least once.
func (s *Spy) Called() bool { return s.CallCount() > 0 }

// CallCount returns the number of recorded performs.
func (s *Spy) CallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

// Calls returns the recorded performs in call order.
func (s *Spy) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

// Call returns the i-th recorded perform (zero-based). ok is false if there is none.
func (s *Spy) Call(i int) (c Call, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i < 0 || i >= len(s.calls) {
		return Call{}, false
	}
	return s.calls[i], true
}

// LastCall returns the most recent perform. ok is false if there is none.
func (s *Spy) LastCall() (Call, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.calls) == 0 {
		return Call{}, false
	}
	return s.calls[len(s.calls)-1], true
}

// CalledWith reports whether any recorded perform had exactly args (deep equality).
func (s *Spy) CalledWith(args ...any) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.calls {
		if len(c.Args) == 0 && len(args) == 0 {
			return true
		}
		if reflect.DeepEqual(c.Args, args) {
			return true
		}
	}
	return false
}

// Reset forgets the recorded performs.
func (s *Spy) Reset() {
	s.mu.Lock()
	s.calls = nil
	s.mu.Unlock()
}

// Restore stops recording and, for a Stub, puts the original work back. Recorded calls stay
// readable. It is safe to call more than once.
func (s *Spy) Restore() {
	s.once.Do(func() {
		s.remove()
		if s.restore != nil {
			s.restore()
		}
	})
}
