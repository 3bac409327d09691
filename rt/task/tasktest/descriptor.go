package tasktest

import (
	"fmt"

	"github.com/bgantzler/taskmock/rt/task"
)

// Descriptor is the scheduling configuration a double is built with.
//
// The zero value means an unconstrained task: no group, no max concurrency, PolicyDefault.
//
// When Group is set the group's scheduler governs: Policy and MaxConcurrency must then be
// zero or equal to the group's (as Infer and LoadDescriptors produce them), otherwise a Mock
// built from the Descriptor fails with ErrDescriptorConflict.
type Descriptor struct {
	Group          *task.Group
	MaxConcurrency int
	Policy         task.Policy
}

// Options converts d into task options. A group governs its members, so when Group is set
// the policy and max concurrency come from the group's scheduler.
func (d Descriptor) Options() []task.Option {
	if d.Group != nil {
		return []task.Option{task.WithGroup(d.Group)}
	}
	var opts []task.Option
	if d.Policy != task.PolicyDefault {
		opts = append(opts, task.WithPolicy(d.Policy))
	}
	if d.MaxConcurrency > 0 {
		opts = append(opts, task.WithMaxConcurrency(d.MaxConcurrency))
	}
	return opts
}

func (d Descriptor) validate() error {
	if d.Group == nil {
		return nil
	}
	s := d.Group.Scheduler()
	if d.Policy != task.PolicyDefault && d.Policy != s.Policy() {
		return fmt.Errorf("%w: policy %s, group %q has %s", ErrDescriptorConflict, d.Policy, d.Group.Name(), s.Policy())
	}
	if d.MaxConcurrency != 0 && d.MaxConcurrency != s.MaxConcurrency() {
		return fmt.Errorf("%w: max_concurrency %d, group %q has %d",
			ErrDescriptorConflict, d.MaxConcurrency, d.Group.Name(), s.MaxConcurrency())
	}
	return nil
}

func (d Descriptor) String() string {
	s := fmt.Sprintf("policy=%s", d.Policy)
	if d.MaxConcurrency > 0 {
		s += fmt.Sprintf(" max_concurrency=%d", d.MaxConcurrency)
	}
	if d.Group != nil {
		s += fmt.Sprintf(" group=%q", d.Group.Name())
	}
	return s
}

// Infer reads the scheduling configuration of the task registered under name on target.
//
// With neither target nor name it returns the zero Descriptor. Supplying only one of them
// returns ErrTargetArgs; a name the target does not have returns ErrTaskNotFound.
// Infer never modifies the target.
func Infer(target Target, name string) (Descriptor, error) {
	if target == nil && name == "" {
		return Descriptor{}, nil
	}
	if target == nil || name == "" {
		return Descriptor{}, ErrTargetArgs
	}
	t, ok := target.Lookup(name)
	if !ok {
		return Descriptor{}, fmt.Errorf("%w: %q", ErrTaskNotFound, name)
	}
	return InferTask(t), nil
}

// InferTask reads t's group, configured max concurrency, and policy. A nil t yields the zero
// Descriptor.
func InferTask(t *task.Task) Descriptor {
	if t == nil {
		return Descriptor{}
	}

	var d Descriptor
	d.Group = t.Group()

	s := t.Scheduler()
	if n := s.MaxConcurrency(); n > 0 {
		d.MaxConcurrency = n
	}

	switch s.Policy() {
	case task.PolicyRestartable:
		d.Policy = task.PolicyRestartable
	case task.PolicyDrop:
		d.Policy = task.PolicyDrop
	case task.PolicyKeepLatest:
		d.Policy = task.PolicyKeepLatest
	case task.PolicyEnqueue:
		d.Policy = task.PolicyEnqueue
	default:
		d.Policy = task.PolicyDefault
	}
	return d
}
