package task

import (
	"fmt"
	"sync"
)

// Scheduler applies a Policy to the performances of one task, or of every task in a Group.
//
// All decisions are made synchronously under the scheduler lock: when Perform returns, the
// performance is already running, waiting, or dropped.
type Scheduler struct {
	policy         Policy
	maxConcurrency int // as configured; 0 means policy default
	limit          int // effective; 0 means unbounded

	mu      sync.Mutex
	running []*Instance
	queued  []*Instance
}

func newScheduler(p Policy, maxConcurrency int) *Scheduler {
	if maxConcurrency < 0 {
		panic(fmt.Sprintf("task: WithMaxConcurrency(%d) is invalid (must be >= 0)", maxConcurrency))
	}
	if p < PolicyDefault || p > PolicyEnqueue {
		panic(fmt.Sprintf("task: WithPolicy(%d) is invalid", int(p)))
	}
	limit := maxConcurrency
	if limit == 0 && p != PolicyDefault {
		limit = 1
	}
	return &Scheduler{policy: p, maxConcurrency: maxConcurrency, limit: limit}
}

// Policy returns the configured policy.
func (s *Scheduler) Policy() Policy { return s.policy }

// MaxConcurrency returns the configured max concurrency; 0 means it was not set.
func (s *Scheduler) MaxConcurrency() int { return s.maxConcurrency }

// transition is the outcome of one scheduling decision. It is applied outside the lock.
type transition struct {
	start  []*Instance
	cancel []*Instance
	drop   []*Instance
}

func (s *Scheduler) hasRoomLocked() bool {
	return s.limit <= 0 || len(s.running) < s.limit
}

func (s *Scheduler) admit(i *Instance) transition {
	s.mu.Lock()
	defer s.mu.Unlock()

	var tr transition
	if s.hasRoomLocked() {
		s.running = append(s.running, i)
		tr.start = append(tr.start, i)
		return tr
	}

	// At max concurrency.
	switch s.policy {
	case PolicyDrop:
		tr.drop = append(tr.drop, i)
	case PolicyKeepLatest:
		tr.drop = append(tr.drop, s.queued...)
		s.queued = []*Instance{i}
	case PolicyRestartable:
		victim := s.running[0]
		s.running = append(without(s.running, victim), i)
		tr.cancel = append(tr.cancel, victim)
		tr.start = append(tr.start, i)
	default:
		// PolicyEnqueue, and PolicyDefault with a limit.
		s.queued = append(s.queued, i)
	}
	return tr
}

// release removes i from the scheduler and promotes waiting performances into the freed room.
func (s *Scheduler) release(i *Instance) []*Instance {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.running = without(s.running, i)
	s.queued = without(s.queued, i)

	var start []*Instance
	for len(s.queued) > 0 && s.hasRoomLocked() {
		next := s.queued[0]
		s.queued = s.queued[1:]
		s.running = append(s.running, next)
		start = append(start, next)
	}
	return start
}

// counts returns running/queued performances, restricted to t when t is non-nil.
func (s *Scheduler) counts(t *Task) (running, queued int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, i := range s.running {
		if t == nil || i.task == t {
			running++
		}
	}
	for _, i := range s.queued {
		if t == nil || i.task == t {
			queued++
		}
	}
	return running, queued
}

// runningOf returns t's admitted performances, oldest first. Some may not have started their
// body yet.
func (s *Scheduler) runningOf(t *Task) []*Instance {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Instance
	for _, i := range s.running {
		if i.task == t {
			out = append(out, i)
		}
	}
	return out
}

func (s *Scheduler) instancesOf(t *Task) []*Instance {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Instance
	for _, i := range s.running {
		if i.task == t {
			out = append(out, i)
		}
	}
	for _, i := range s.queued {
		if i.task == t {
			out = append(out, i)
		}
	}
	return out
}

// without returns a new slice so callers holding the old one are unaffected.
func without(list []*Instance, i *Instance) []*Instance {
	for idx := range list {
		if list[idx] != i {
			continue
		}
		out := make([]*Instance, 0, len(list)-1)
		out = append(out, list[:idx]...)
		return append(out, list[idx+1:]...)
	}
	return list
}
