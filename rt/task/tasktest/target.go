package tasktest

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/bgantzler/taskmock/rt/task"
)

// Target holds named tasks that a double can inspect and replace.
//
// *task.Manager implements Target. Fields adapts a struct with exported *task.Task fields.
type Target interface {
	// Lookup returns the task currently under name. ok is false if the target has no such
	// entry; an entry may exist and still hold a nil task.
	Lookup(name string) (t *task.Task, ok bool)
	// Replace puts t under name and returns a func that restores the previous task.
	Replace(name string, t *task.Task) (restore func(), err error)
}

var taskPtrType = reflect.TypeOf((*task.Task)(nil))

type fieldTarget struct {
	v reflect.Value // the struct
}

// Fields returns a Target over the exported *task.Task fields of the struct ptr points to.
//
// It panics if ptr is not a non-nil pointer to a struct (configuration error).
//
//	type Service struct {
//		Fetch *task.Task
//	}
//
//	m, err := tasktest.NewFor(tasktest.Fields(svc), "Fetch")
func Fields(ptr any) Target {
	v := reflect.ValueOf(ptr)
	if v.Kind() != reflect.Pointer || v.IsNil() || v.Elem().Kind() != reflect.Struct {
		panic(fmt.Sprintf("tasktest: Fields requires a non-nil pointer to a struct, got %T", ptr))
	}
	return fieldTarget{v: v.Elem()}
}

func (f fieldTarget) field(name string) (reflect.Value, bool) {
	sf, ok := f.v.Type().FieldByName(name)
	if !ok || !sf.IsExported() || sf.Type != taskPtrType {
		return reflect.Value{}, false
	}
	return f.v.FieldByIndex(sf.Index), true
}

func (f fieldTarget) Lookup(name string) (*task.Task, bool) {
	fv, ok := f.field(name)
	if !ok {
		return nil, false
	}
	t, _ := fv.Interface().(*task.Task)
	return t, true
}

func (f fieldTarget) Replace(name string, t *task.Task) (func(), error) {
	fv, ok := f.field(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrTaskNotFound, name)
	}
	prev := fv.Interface()
	fv.Set(reflect.ValueOf(t))

	var once sync.Once
	return func() {
		once.Do(func() { fv.Set(reflect.ValueOf(prev)) })
	}, nil
}
