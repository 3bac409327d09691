package tasktest

import (
	"errors"
	"fmt"
	"io"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/bgantzler/taskmock/rt/task"
)

// GroupResolver resolves group names used in descriptor fixtures. *task.Manager implements it.
type GroupResolver interface {
	LookupGroup(name string) (*task.Group, bool)
}

type fixtureFile struct {
	Tasks map[string]fixtureTask `yaml:"tasks"`
}

type fixtureTask struct {
	Policy         string `yaml:"policy"`
	MaxConcurrency int    `yaml:"max_concurrency"`
	Group          string `yaml:"group"`
}

// LoadDescriptors reads named descriptors from a YAML fixture:
//
//	tasks:
//	  fetch:
//	    policy: drop
//	  save:
//	    policy: enqueue
//	    max_concurrency: 2
//	  sync:
//	    group: io
//
// Group names are resolved through groups, which may be nil when the fixture uses none.
// Unknown keys, unknown policies, negative max_concurrency, unresolved groups, and a policy or
// max_concurrency that differs from the task's group are errors.
func LoadDescriptors(r io.Reader, groups GroupResolver) (map[string]Descriptor, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var f fixtureFile
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("tasktest: decode descriptors: %w", err)
	}

	names := make([]string, 0, len(f.Tasks))
	for name := range f.Tasks {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make(map[string]Descriptor, len(f.Tasks))
	for _, name := range names {
		ft := f.Tasks[name]
		p, err := task.ParsePolicy(ft.Policy)
		if err != nil {
			return nil, fmt.Errorf("tasktest: task %q: %w", name, err)
		}
		if ft.MaxConcurrency < 0 {
			return nil, fmt.Errorf("tasktest: task %q: negative max_concurrency %d", name, ft.MaxConcurrency)
		}

		d := Descriptor{Policy: p, MaxConcurrency: ft.MaxConcurrency}
		if ft.Group != "" {
			var g *task.Group
			ok := false
			if groups != nil {
				g, ok = groups.LookupGroup(ft.Group)
			}
			if !ok {
				return nil, fmt.Errorf("tasktest: task %q: unknown group %q", name, ft.Group)
			}
			d.Group = g
			if err := d.validate(); err != nil {
				return nil, fmt.Errorf("tasktest: task %q: %w", name, err)
			}
			s := g.Scheduler()
			d.Policy, d.MaxConcurrency = s.Policy(), s.MaxConcurrency()
		}
		out[name] = d
	}
	return out, nil
}
