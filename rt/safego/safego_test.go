package safego

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCall_ReturnsValueAndError(t *testing.T) {
	t.Parallel()

	v, err := Call(context.Background(), func(context.Context) (int, error) {
		return 7, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 7, v)

	wantErr := errors.New("x")
	_, err = Call(context.Background(), func(context.Context) (int, error) {
		return 0, wantErr
	})
	assert.Same(t, wantErr, err)
}

func TestCall_PanicBecomesErrPanicked(t *testing.T) {
	t.Parallel()

	var panicCalls atomic.Int64
	var gotValue any

	v, err := Call(context.Background(), func(context.Context) (string, error) {
		panic("boom")
	}, WithName("n"), WithPanicHandler(func(_ context.Context, info PanicInfo) {
		panicCalls.Add(1)
		gotValue = info.Value
	}))

	require.ErrorIs(t, err, ErrPanicked)
	assert.Empty(t, v)
	assert.EqualValues(t, 1, panicCalls.Load())
	assert.Equal(t, "boom", gotValue)
}

func TestCall_ErrorHandler_DefaultIgnoreCancel(t *testing.T) {
	t.Parallel()

	var calls atomic.Int64

	_, err := Call(context.Background(), func(context.Context) (any, error) {
		return nil, context.Canceled
	}, WithErrorHandler(func(context.Context, ErrorInfo) { calls.Add(1) }))

	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, calls.Load())
}

func TestCall_ErrorHandler_ReportCancel(t *testing.T) {
	t.Parallel()

	var calls atomic.Int64

	_, _ = Call(context.Background(), func(context.Context) (any, error) {
		return nil, context.DeadlineExceeded
	}, WithReportContextCancel(true),
		WithErrorHandler(func(context.Context, ErrorInfo) { calls.Add(1) }),
	)

	assert.EqualValues(t, 1, calls.Load())
}

func TestCall_ErrorHandler_CalledWithNameTags(t *testing.T) {
	t.Parallel()

	wantErr := errors.New("x")
	var got ErrorInfo

	_, _ = Call(context.Background(), func(context.Context) (any, error) {
		return nil, wantErr
	}, WithName("n"),
		WithTags(Tag{Key: "k", Value: "v"}),
		WithErrorHandler(func(_ context.Context, info ErrorInfo) { got = info }),
	)

	assert.Equal(t, "n", got.Name)
	assert.Equal(t, []Tag{{Key: "k", Value: "v"}}, got.Tags)
	assert.ErrorIs(t, got.Err, wantErr)
}

func TestCall_NilContextIsAllowed(t *testing.T) {
	t.Parallel()

	var sawNonNil bool
	_, _ = Call(nil, func(ctx context.Context) (any, error) {
		sawNonNil = ctx != nil
		return nil, nil
	})
	assert.True(t, sawNonNil)
}

func TestCall_HandlerPanicsAreContained(t *testing.T) {
	t.Parallel()

	_, err := Call(context.Background(), func(context.Context) (any, error) {
		return nil, errors.New("x")
	}, WithErrorHandler(func(context.Context, ErrorInfo) { panic("handler boom") }))
	require.EqualError(t, err, "x")

	_, err = Call(context.Background(), func(context.Context) (any, error) {
		panic("boom")
	}, WithPanicHandler(func(context.Context, PanicInfo) { panic("handler boom") }))
	require.ErrorIs(t, err, ErrPanicked)
}

func TestSlogHandlers_WriteStructuredRecords(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	l := slog.New(slog.NewTextHandler(&buf, nil))

	_, _ = Call(context.Background(), func(context.Context) (any, error) {
		return nil, errors.New("oops")
	}, WithName("fetch"), WithTag("k", "v"), WithErrorHandler(SlogErrorHandler(l)))

	out := buf.String()
	assert.Contains(t, out, "msg=\"call failed\"")
	assert.Contains(t, out, "name=fetch")
	assert.Contains(t, out, "tags.k=v")
	assert.Contains(t, out, "err=oops")

	buf.Reset()
	_, _ = Call(context.Background(), func(context.Context) (any, error) {
		panic("boom")
	}, WithName("fetch"), WithPanicHandler(SlogPanicHandler(l)))
	assert.Contains(t, buf.String(), "msg=\"call panicked\"")
	assert.Contains(t, buf.String(), "value=boom")
}
