package task

// Group shares one Scheduler among several tasks, so that the group's policy and max
// concurrency apply to their performances together.
type Group struct {
	name  string
	sched *Scheduler
}

// NewGroup creates a standalone group. Only WithName, WithPolicy and WithMaxConcurrency apply.
//
// It panics if the configuration is invalid (negative max concurrency, unknown policy).
func NewGroup(opts ...Option) *Group {
	c := taskConfig{}
	for _, opt := range opts {
		if opt != nil {
			opt(&c)
		}
	}
	return newGroup(c)
}

func newGroup(c taskConfig) *Group {
	return &Group{
		name:  normalizeName(c.name),
		sched: newScheduler(c.policy, c.maxConcurrency),
	}
}

// Name returns the configured name (may be empty).
func (g *Group) Name() string { return g.name }

// Scheduler returns the shared scheduler.
func (g *Group) Scheduler() *Scheduler { return g.sched }

// IsRunning reports whether any member task has a running performance.
func (g *Group) IsRunning() bool {
	running, _ := g.sched.counts(nil)
	return running > 0
}

// IsQueued reports whether any member task has a waiting performance.
func (g *Group) IsQueued() bool {
	_, queued := g.sched.counts(nil)
	return queued > 0
}
