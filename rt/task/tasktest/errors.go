package tasktest

import "errors"

var (
	// ErrTargetArgs is returned when only one of target and task name is supplied.
	ErrTargetArgs = errors.New("tasktest: target and task name must be given together")
	// ErrTaskNotFound is returned when the target has no task under the given name.
	ErrTaskNotFound = errors.New("tasktest: task not found on target")
	// ErrAlreadySettled is returned by Finish/Reject once the double has been settled.
	ErrAlreadySettled = errors.New("tasktest: task double already settled")
	// ErrDescriptorConflict is returned when a Descriptor sets a policy or max concurrency
	// that differs from its group's.
	ErrDescriptorConflict = errors.New("tasktest: descriptor conflicts with its group")
	// ErrRejected stands in for a nil error passed to Reject or Rejects.
	ErrRejected = errors.New("tasktest: task double rejected")
)
