package task

import (
	"github.com/bgantzler/taskmock/rt/safego"
)

type taskConfig struct {
	name string
	tags []safego.Tag

	policy         Policy
	maxConcurrency int
	group          *Group

	// safego-style handlers
	onError             safego.ErrorHandler
	onPanic             safego.PanicHandler
	reportContextCancel bool

	// hooks
	onPerform   func(info PerformInfo)
	onRunStart  func(info RunStartInfo)
	onRunFinish func(info RunFinishInfo)
}

// Option configures a Task (or, for name/policy/max concurrency, a Group).
type Option func(*taskConfig)

// WithName sets a human-friendly task name.
//
// Notes:
//   - Name is optional (empty means unnamed).
//   - Name is normalized by strings.TrimSpace.
//   - Non-empty names must match [A-Za-z0-9._-] when registered with a Manager.
//   - Non-empty names are unique within a Manager; Add returns ErrDuplicateName on duplicates.
func WithName(name string) Option {
	return func(c *taskConfig) { c.name = name }
}

// WithTags appends tags for error/panic reports and hooks.
func WithTags(tags ...safego.Tag) Option {
	return func(c *taskConfig) {
		if len(tags) == 0 {
			return
		}
		c.tags = append(c.tags, tags...)
	}
}

// WithPolicy sets the scheduling policy. It is ignored for tasks that belong to a Group.
func WithPolicy(p Policy) Option {
	return func(c *taskConfig) { c.policy = p }
}

// WithMaxConcurrency sets the max concurrent performances.
//
// 0 means "policy default": unbounded for PolicyDefault, 1 for every other policy.
// If n < 0, New/Add panics (configuration error). It is ignored for tasks that belong to a Group.
func WithMaxConcurrency(n int) Option {
	return func(c *taskConfig) { c.maxConcurrency = n }
}

// WithGroup makes the task share g's scheduler. The group's policy and max concurrency govern
// every member task.
func WithGroup(g *Group) Option {
	return func(c *taskConfig) { c.group = g }
}

// WithErrorHandler sets the error handler. If not set, run errors are only delivered to waiters.
func WithErrorHandler(h safego.ErrorHandler) Option {
	return func(c *taskConfig) { c.onError = h }
}

// WithPanicHandler sets the panic handler. If not set, panics are reported to stderr by default.
func WithPanicHandler(h safego.PanicHandler) Option {
	return func(c *taskConfig) { c.onPanic = h }
}

// WithReportContextCancel controls whether context.Canceled and context.DeadlineExceeded are reported.
func WithReportContextCancel(report bool) Option {
	return func(c *taskConfig) { c.reportContextCancel = report }
}

// WithOnPerform sets a hook observing every Perform call, including dropped ones.
// Hooks are called synchronously, in call order.
func WithOnPerform(fn func(info PerformInfo)) Option {
	return func(c *taskConfig) { c.onPerform = fn }
}

// WithOnRunStart sets a hook to observe run starts. Hooks are called synchronously.
func WithOnRunStart(fn func(info RunStartInfo)) Option {
	return func(c *taskConfig) { c.onRunStart = fn }
}

// WithOnRunFinish sets a hook to observe performances settling. Hooks are called synchronously.
func WithOnRunFinish(fn func(info RunFinishInfo)) Option {
	return func(c *taskConfig) { c.onRunFinish = fn }
}

type managerConfig struct {
	onRunStart  func(info RunStartInfo)
	onRunFinish func(info RunFinishInfo)

	onError             safego.ErrorHandler
	onPanic             safego.PanicHandler
	reportContextCancel bool
}

// ManagerOption configures a Manager.
type ManagerOption func(*managerConfig)

// WithManagerOnRunStart sets a global hook for all tasks in this manager.
func WithManagerOnRunStart(fn func(info RunStartInfo)) ManagerOption {
	return func(c *managerConfig) { c.onRunStart = fn }
}

// WithManagerOnRunFinish sets a global hook for all tasks in this manager.
func WithManagerOnRunFinish(fn func(info RunFinishInfo)) ManagerOption {
	return func(c *managerConfig) { c.onRunFinish = fn }
}

// WithManagerErrorHandler sets a default error handler for tasks added to this manager.
func WithManagerErrorHandler(h safego.ErrorHandler) ManagerOption {
	return func(c *managerConfig) { c.onError = h }
}

// WithManagerPanicHandler sets a default panic handler for tasks added to this manager.
func WithManagerPanicHandler(h safego.PanicHandler) ManagerOption {
	return func(c *managerConfig) { c.onPanic = h }
}

// WithManagerReportContextCancel sets the default reportContextCancel for tasks added to this manager.
func WithManagerReportContextCancel(report bool) ManagerOption {
	return func(c *managerConfig) { c.reportContextCancel = report }
}
