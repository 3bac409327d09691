package tasktest

import (
	"context"
	"sync"
)

// deferred is a single-settlement outcome shared by every waiter.
type deferred struct {
	done chan struct{}

	mu      sync.Mutex
	settled bool
	value   any
	err     error
}

func newDeferred() *deferred {
	return &deferred{done: make(chan struct{})}
}

func (d *deferred) settle(v any, err error) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.settled {
		return ErrAlreadySettled
	}
	d.settled = true
	d.value, d.err = v, err
	close(d.done)
	return nil
}

func (d *deferred) isSettled() bool {
	select {
	case <-d.done:
		return true
	default:
		return false
	}
}

// wait blocks until the outcome is set or ctx is done.
func (d *deferred) wait(ctx context.Context) (any, error) {
	select {
	case <-d.done:
		d.mu.Lock()
		defer d.mu.Unlock()
		return d.value, d.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
