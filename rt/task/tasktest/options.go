package tasktest

import (
	"log/slog"

	"github.com/bgantzler/taskmock/rt/task"
)

type config struct {
	descriptor *Descriptor
	name       string
	logger     *slog.Logger
	taskOpts   []task.Option
}

// Option configures a Mock.
type Option func(*config)

// WithDescriptor builds the double with d instead of inferring it from the target.
func WithDescriptor(d Descriptor) Option {
	return func(c *config) { c.descriptor = &d }
}

// WithName names the internal task. By default it takes the replaced task's name, if any.
func WithName(name string) Option {
	return func(c *config) { c.name = name }
}

// WithLogger sets the logger for settlement and fake installation events (Debug level).
// By default nothing is logged.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) { c.logger = l }
}

// WithTaskOptions passes extra options (hooks, handlers, tags) to the internal task.
// Scheduling options here are overridden by the descriptor.
func WithTaskOptions(opts ...task.Option) Option {
	return func(c *config) { c.taskOpts = append(c.taskOpts, opts...) }
}
