package safego

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
)

// Call executes fn synchronously and returns its result, applying the configured panic/error
// handling.
//
// A panic in fn is recovered, reported via WithPanicHandler (or stderr by default), and turned
// into ErrPanicked. An error returned by fn is returned unchanged; it is additionally reported
// when WithErrorHandler is set (subject to context-cancel filtering).
//
// If ctx is nil, it is treated as context.Background().
func Call[T any](ctx context.Context, fn func(context.Context) (T, error), opts ...Option) (v T, err error) {
	if ctx == nil {
		ctx = context.Background()
	}

	c := config{}
	for _, opt := range opts {
		if opt != nil {
			opt(&c)
		}
	}

	defer func() {
		p := recover()
		if p == nil {
			return
		}
		var zero T
		v, err = zero, ErrPanicked

		info := PanicInfo{
			Name:  c.name,
			Tags:  cloneTags(c.tags),
			Value: p,
			Stack: debug.Stack(),
		}
		if c.onPanic != nil {
			callPanicHandlerNoPanic(ctx, c.onPanic, info)
			return
		}
		reportPanicToStderr(info)
	}()

	v, err = fn(ctx)
	if err == nil || c.onError == nil {
		return v, err
	}
	if !c.reportContextCancel && isContextCancel(err) {
		return v, err
	}
	callErrorHandlerNoPanic(ctx, c.onError, ErrorInfo{
		Name: c.name,
		Tags: cloneTags(c.tags),
		Err:  err,
	})
	return v, err
}

func cloneTags(tags []Tag) []Tag {
	if len(tags) == 0 {
		return nil
	}
	out := make([]Tag, len(tags))
	copy(out, tags)
	return out
}

func isContextCancel(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func callErrorHandlerNoPanic(ctx context.Context, h ErrorHandler, info ErrorInfo) {
	defer func() {
		if p := recover(); p != nil {
			// Avoid secondary panics from user handlers taking down the program.
			reportPanicToStderr(PanicInfo{
				Name:  info.Name,
				Tags:  info.Tags,
				Value: fmt.Sprintf("safego: error handler panicked: %v", p),
				Stack: debug.Stack(),
			})
		}
	}()
	h(ctx, info)
}

func callPanicHandlerNoPanic(ctx context.Context, h PanicHandler, info PanicInfo) {
	defer func() {
		if p := recover(); p != nil {
			reportPanicToStderr(PanicInfo{
				Name:  info.Name,
				Tags:  info.Tags,
				Value: fmt.Sprintf("safego: panic handler panicked: %v", p),
				Stack: debug.Stack(),
			})
		}
	}()
	h(ctx, info)
}
