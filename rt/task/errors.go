package task

import (
	"errors"

	"github.com/bgantzler/taskmock/rt/safego"
)

var (
	// ErrCanceled is the outcome of a performance canceled before it finished, either explicitly
	// (Instance.Cancel, Task.CancelAll, Manager.Shutdown) or by a restartable policy.
	ErrCanceled = errors.New("task: instance canceled")
	// ErrDropped is the outcome of a performance dropped by its scheduling policy
	// (drop when full, or a queued performance superseded under keepLatest).
	ErrDropped = errors.New("task: instance dropped")
	// ErrClosed is returned when the manager is shutting down or already stopped.
	ErrClosed = errors.New("task: manager closed")
	// ErrPanicked indicates a run panicked (panic is recovered and reported).
	ErrPanicked = safego.ErrPanicked

	// ErrInvalidName is returned by Add when a task name is invalid.
	//
	// Name rules:
	//   - name is optional (empty means unnamed)
	//   - non-empty name must match [A-Za-z0-9._-]
	//   - name is normalized by strings.TrimSpace before validation
	ErrInvalidName = errors.New("task: invalid name")

	// ErrDuplicateName is returned by Add when a non-empty task name is already registered.
	//
	// Names are unique within a manager (after normalization).
	ErrDuplicateName = errors.New("task: duplicate name")

	// ErrNotFound is returned by Replace when no task is registered under the name.
	ErrNotFound = errors.New("task: not found")
)
