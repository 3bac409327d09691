package tasktest

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bgantzler/taskmock/rt/task"
)

const waitTimeout = 2 * time.Second

func nop(context.Context, ...any) (any, error) { return nil, nil }

func wait(t *testing.T, i *task.Instance) (any, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
	defer cancel()
	v, err := i.Wait(ctx)
	require.NotErrorIs(t, err, context.DeadlineExceeded, "instance did not settle")
	return v, err
}

func assertPending(t *testing.T, i *task.Instance) {
	t.Helper()
	select {
	case <-i.Done():
		require.FailNow(t, "instance settled early", "state=%s err=%v", i.State(), i.Err())
	case <-time.After(20 * time.Millisecond):
	}
}

func newManager(t *testing.T) *task.Manager {
	t.Helper()
	m := task.NewManager()
	t.Cleanup(func() { _ = m.Shutdown(context.Background()) })
	return m
}

func TestMock_InheritsDropPolicy(t *testing.T) {
	t.Parallel()

	mgr := newManager(t)
	orig := mgr.MustAdd(nop, task.WithName("fetch"), task.WithPolicy(task.PolicyDrop))

	m := Attach(t, mgr, "fetch")
	assert.Equal(t, Descriptor{Policy: task.PolicyDrop}, m.Descriptor())

	tk, ok := mgr.Lookup("fetch")
	require.True(t, ok)
	require.Same(t, m.Task(), tk)
	require.NotSame(t, orig, tk)

	first := tk.Perform()
	second := tk.Perform()

	_, err := wait(t, second)
	require.ErrorIs(t, err, task.ErrDropped)
	assert.Equal(t, task.StateDropped, second.State())
	assert.Equal(t, 2, m.Spy().CallCount())
	assertPending(t, first)

	require.NoError(t, m.Finish("ok"))
	v, err := wait(t, first)
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
}

func TestMock_Resolves(t *testing.T) {
	t.Parallel()

	m, err := New()
	require.NoError(t, err)

	want := map[string]any{"msg": "hello"}
	v, err := wait(t, m.Resolves(want).Task().Perform())
	require.NoError(t, err)
	assert.Equal(t, want, v)
}

func TestMock_RejectSettlesEveryPendingPerformance(t *testing.T) {
	t.Parallel()

	m, err := New()
	require.NoError(t, err)

	a := m.Task().Perform()
	b := m.Task().Perform()
	assertPending(t, a)
	assertPending(t, b)

	boom := errors.New("boom")
	require.NoError(t, m.Reject(boom))

	_, errA := wait(t, a)
	_, errB := wait(t, b)
	require.Same(t, boom, errA)
	require.Same(t, boom, errB)
	assert.Equal(t, task.StateErrored, a.State())
	assert.Equal(t, task.StateErrored, b.State())
}

func TestMock_NotRunningOnceFinishReturns(t *testing.T) {
	t.Parallel()

	m, err := New()
	require.NoError(t, err)

	a := m.Task().Perform(1)
	b := m.Task().Perform(2)
	assert.True(t, m.Task().IsRunning())

	require.NoError(t, m.Finish("done"))

	assert.False(t, m.Task().IsRunning())
	assert.True(t, m.Task().IsIdle())
	assert.Equal(t, task.StateSucceeded, a.State())
	assert.Equal(t, "done", b.Value())
}

func TestMock_QueuedPerformanceSeesOutcomeWhenItStarts(t *testing.T) {
	t.Parallel()

	m, err := New(WithDescriptor(Descriptor{Policy: task.PolicyEnqueue}))
	require.NoError(t, err)

	a := m.Task().Perform(1)
	b := m.Task().Perform(2)
	assert.True(t, m.Task().IsQueued())

	require.NoError(t, m.Finish("done"))
	assert.Equal(t, task.StateSucceeded, a.State())

	v, err := wait(t, b)
	require.NoError(t, err)
	assert.Equal(t, "done", v)
}

func TestMock_SettledOutcomeAppliesToLaterPerformances(t *testing.T) {
	t.Parallel()

	m, err := New()
	require.NoError(t, err)
	require.NoError(t, m.Finish(7))

	v, err := wait(t, m.Task().Perform())
	require.NoError(t, err)
	assert.Equal(t, 7, v)
}

func TestMock_SettleTwice_ReturnsErrAlreadySettled(t *testing.T) {
	t.Parallel()

	m, err := New()
	require.NoError(t, err)

	require.NoError(t, m.Finish(1))
	require.ErrorIs(t, m.Finish(2), ErrAlreadySettled)
	require.ErrorIs(t, m.Reject(errors.New("x")), ErrAlreadySettled)

	v, err := wait(t, m.Task().Perform())
	require.NoError(t, err)
	assert.Equal(t, 1, v)
}

func TestMock_RejectNil_UsesErrRejected(t *testing.T) {
	t.Parallel()

	m, err := New()
	require.NoError(t, err)
	i := m.Task().Perform()
	require.NoError(t, m.Reject(nil))
	_, err = wait(t, i)
	require.ErrorIs(t, err, ErrRejected)

	m2, err := New()
	require.NoError(t, err)
	_, err = wait(t, m2.Rejects(nil).Task().Perform())
	require.ErrorIs(t, err, ErrRejected)
}

func TestMock_CallsFake_ReceivesArgs(t *testing.T) {
	t.Parallel()

	m, err := New()
	require.NoError(t, err)
	m.CallsFake(func(_ context.Context, args ...any) (any, error) {
		return args[0].(int) + args[1].(int), nil
	})

	v, err := wait(t, m.Task().Perform(2, 3))
	require.NoError(t, err)
	assert.Equal(t, 5, v)
	assert.True(t, m.Spy().CalledWith(2, 3))
}

func TestMock_ResolvesAndRejectsMatchEquivalentFakes(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	cases := []struct {
		name    string
		install func(*Mock)
	}{
		{name: "Resolves", install: func(m *Mock) { m.Resolves(42) }},
		{name: "CallsFakeValue", install: func(m *Mock) {
			m.CallsFake(func(context.Context, ...any) (any, error) { return 42, nil })
		}},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			m, err := New()
			require.NoError(t, err)
			tc.install(m)
			v, err := wait(t, m.Task().Perform())
			require.NoError(t, err)
			assert.Equal(t, 42, v)
		})
	}

	for _, install := range []func(*Mock){
		func(m *Mock) { m.Rejects(boom) },
		func(m *Mock) {
			m.CallsFake(func(context.Context, ...any) (any, error) { return nil, boom })
		},
	} {
		m, err := New()
		require.NoError(t, err)
		install(m)
		_, err = wait(t, m.Task().Perform())
		require.Same(t, boom, err)
	}
}

func TestMock_FakeDoesNotRedirectWaitingPerformance(t *testing.T) {
	t.Parallel()

	m, err := New()
	require.NoError(t, err)

	waiting := m.Task().Perform()
	assertPending(t, waiting)

	v, err := wait(t, m.Resolves("fake").Task().Perform())
	require.NoError(t, err)
	assert.Equal(t, "fake", v)
	assertPending(t, waiting)

	require.NoError(t, m.Finish("real"))
	v, err = wait(t, waiting)
	require.NoError(t, err)
	assert.Equal(t, "real", v)

	// Removing the fake goes back to the settled outcome.
	v, err = wait(t, m.CallsFake(nil).Task().Perform())
	require.NoError(t, err)
	assert.Equal(t, "real", v)
}

func TestMock_FinishDoesNotWaitForFakePerformances(t *testing.T) {
	t.Parallel()

	m, err := New()
	require.NoError(t, err)

	release := make(chan struct{})
	m.CallsFake(func(ctx context.Context, _ ...any) (any, error) {
		select {
		case <-release:
		case <-ctx.Done():
		}
		return "fake", nil
	})
	slow := m.Task().Perform()

	done := make(chan error, 1)
	go func() { done <- m.Finish("real") }()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(waitTimeout):
		require.FailNow(t, "Finish blocked on a fake performance")
	}

	close(release)
	v, err := wait(t, slow)
	require.NoError(t, err)
	assert.Equal(t, "fake", v)
}

// finishWithin calls settle and fails the test if it does not return within waitTimeout.
func finishWithin(t *testing.T, settle func() error) {
	t.Helper()
	done := make(chan error, 1)
	go func() { done <- settle() }()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(waitTimeout):
		require.FailNow(t, "settling blocked")
	}
}

func TestMock_FinishDoesNotWaitForPerformanceQueuedBehindFake(t *testing.T) {
	t.Parallel()

	m, err := New(WithDescriptor(Descriptor{Policy: task.PolicyEnqueue}))
	require.NoError(t, err)

	release := make(chan struct{})
	m.CallsFake(func(ctx context.Context, _ ...any) (any, error) {
		select {
		case <-release:
		case <-ctx.Done():
		}
		return "fake", nil
	})
	ahead := m.Task().Perform()
	queued := m.Task().Perform()
	require.Equal(t, task.StateWaiting, queued.State())

	finishWithin(t, func() error { return m.Finish("real") })

	close(release)
	v, err := wait(t, ahead)
	require.NoError(t, err)
	assert.Equal(t, "fake", v)
	v, err = wait(t, queued)
	require.NoError(t, err)
	assert.Equal(t, "fake", v)
}

func TestMock_FinishDoesNotWaitForPerformanceQueuedInGroup(t *testing.T) {
	t.Parallel()

	mgr := newManager(t)
	g, err := mgr.AddGroup(task.WithName("io"), task.WithPolicy(task.PolicyEnqueue))
	require.NoError(t, err)

	release := make(chan struct{})
	sibling := mgr.MustAdd(func(ctx context.Context, _ ...any) (any, error) {
		select {
		case <-release:
		case <-ctx.Done():
		}
		return nil, nil
	}, task.WithName("read"), task.WithGroup(g))
	mgr.MustAdd(nop, task.WithName("write"), task.WithGroup(g))
	m := Attach(t, mgr, "write")

	busy := sibling.Perform()
	queued := m.Task().Perform()
	require.Equal(t, task.StateWaiting, queued.State())

	finishWithin(t, func() error { return m.Reject(nil) })

	close(release)
	_, err = wait(t, busy)
	require.NoError(t, err)
	_, err = wait(t, queued)
	require.ErrorIs(t, err, ErrRejected)
}

func TestMock_ForgetsFinishedPerformances(t *testing.T) {
	t.Parallel()

	m, err := New(WithDescriptor(Descriptor{Policy: task.PolicyDrop}))
	require.NoError(t, err)

	first := m.Task().Perform()
	_, err = wait(t, m.Task().Perform())
	require.ErrorIs(t, err, task.ErrDropped)
	first.Cancel()
	_, err = wait(t, first)
	require.ErrorIs(t, err, task.ErrCanceled)

	m.Resolves("fake")
	for n := 0; n < 3; n++ {
		_, err := wait(t, m.Task().Perform())
		require.NoError(t, err)
	}
	require.NoError(t, m.Finish(nil))

	require.Eventually(t, func() bool {
		m.mu.Lock()
		defer m.mu.Unlock()
		return len(m.faked) == 0
	}, waitTimeout, 5*time.Millisecond)
}

func TestMock_CancelWhileWaiting(t *testing.T) {
	t.Parallel()

	m, err := New()
	require.NoError(t, err)

	i := m.Task().Perform()
	assertPending(t, i)
	i.Cancel()

	_, err = wait(t, i)
	require.ErrorIs(t, err, task.ErrCanceled)
	require.NoError(t, m.Finish(nil))
}

func TestMock_InheritsRestartable(t *testing.T) {
	t.Parallel()

	mgr := newManager(t)
	mgr.MustAdd(nop, task.WithName("save"), task.WithPolicy(task.PolicyRestartable))
	m := Attach(t, mgr, "save")

	old := m.Task().Perform(1)
	latest := m.Task().Perform(2)

	_, err := wait(t, old)
	require.ErrorIs(t, err, task.ErrCanceled)

	require.NoError(t, m.Finish("saved"))
	v, err := wait(t, latest)
	require.NoError(t, err)
	assert.Equal(t, "saved", v)
}

func TestMock_JoinsTargetGroup(t *testing.T) {
	t.Parallel()

	mgr := newManager(t)
	g, err := mgr.AddGroup(task.WithName("io"), task.WithPolicy(task.PolicyDrop))
	require.NoError(t, err)

	block := make(chan struct{})
	defer close(block)
	sibling := mgr.MustAdd(func(ctx context.Context, _ ...any) (any, error) {
		select {
		case <-block:
		case <-ctx.Done():
		}
		return nil, nil
	}, task.WithName("read"), task.WithGroup(g))
	mgr.MustAdd(nop, task.WithName("write"), task.WithGroup(g))

	m := Attach(t, mgr, "write")
	require.Same(t, g, m.Descriptor().Group)
	require.Same(t, g, m.Task().Group())

	sibling.Perform()
	_, err = wait(t, m.Task().Perform())
	require.ErrorIs(t, err, task.ErrDropped)
}

func TestNewFor_TargetArgumentErrors(t *testing.T) {
	t.Parallel()

	mgr := newManager(t)
	mgr.MustAdd(nop, task.WithName("fetch"))

	_, err := NewFor(mgr, "")
	require.ErrorIs(t, err, ErrTargetArgs)
	_, err = NewFor(nil, "fetch")
	require.ErrorIs(t, err, ErrTargetArgs)

	_, err = NewFor(mgr, "missing")
	require.ErrorIs(t, err, ErrTaskNotFound)
	assert.Contains(t, err.Error(), `"missing"`)

	m, err := NewFor(nil, "")
	require.NoError(t, err)
	assert.Equal(t, Descriptor{}, m.Descriptor())
}

func TestMock_RestorePutsOriginalBack(t *testing.T) {
	t.Parallel()

	mgr := newManager(t)
	orig := mgr.MustAdd(nop, task.WithName("fetch"), task.WithPolicy(task.PolicyEnqueue))

	m, err := NewFor(mgr, "fetch")
	require.NoError(t, err)
	got, _ := mgr.Lookup("fetch")
	require.Same(t, m.Task(), got)

	m.Restore()
	m.Restore()
	got, _ = mgr.Lookup("fetch")
	assert.Same(t, orig, got)
}

func TestMock_FieldsTarget(t *testing.T) {
	t.Parallel()

	type service struct {
		Fetch *task.Task
		Count int
		other *task.Task
	}
	orig := task.New(nop, task.WithPolicy(task.PolicyKeepLatest), task.WithMaxConcurrency(2))
	svc := &service{Fetch: orig, other: orig}

	m, err := NewFor(Fields(svc), "Fetch")
	require.NoError(t, err)
	assert.Equal(t, Descriptor{Policy: task.PolicyKeepLatest, MaxConcurrency: 2}, m.Descriptor())
	assert.Same(t, m.Task(), svc.Fetch)
	assert.Equal(t, "Fetch", m.Task().Name())

	for _, name := range []string{"Count", "other", "Missing"} {
		_, err := NewFor(Fields(svc), name)
		require.ErrorIs(t, err, ErrTaskNotFound, name)
	}

	m.Restore()
	assert.Same(t, orig, svc.Fetch)

	assert.Panics(t, func() { Fields(service{}) })
	assert.Panics(t, func() { Fields((*service)(nil)) })
}

func TestMock_WithDescriptorOverridesInference(t *testing.T) {
	t.Parallel()

	mgr := newManager(t)
	mgr.MustAdd(nop, task.WithName("fetch"), task.WithPolicy(task.PolicyDrop))

	m := Attach(t, mgr, "fetch",
		WithDescriptor(Descriptor{Policy: task.PolicyEnqueue}),
		WithName("fetch-double"),
		WithTaskOptions(task.WithPolicy(task.PolicyRestartable)),
	)
	assert.Equal(t, task.PolicyEnqueue, m.Task().Scheduler().Policy())
	assert.Equal(t, "fetch-double", m.Task().Name())

	a := m.Task().Perform()
	b := m.Task().Perform()
	assert.Equal(t, task.StateWaiting, b.State())
	require.NoError(t, m.Finish(nil))
	_, err := wait(t, a)
	require.NoError(t, err)
	_, err = wait(t, b)
	require.NoError(t, err)
}

func TestMock_DescriptorConflictingWithGroup(t *testing.T) {
	t.Parallel()

	g := task.NewGroup(task.WithName("io"), task.WithPolicy(task.PolicyEnqueue), task.WithMaxConcurrency(2))

	_, err := New(WithDescriptor(Descriptor{Group: g, Policy: task.PolicyDrop}))
	require.ErrorIs(t, err, ErrDescriptorConflict)
	_, err = New(WithDescriptor(Descriptor{Group: g, MaxConcurrency: 1}))
	require.ErrorIs(t, err, ErrDescriptorConflict)

	for _, d := range []Descriptor{
		{Group: g},
		{Group: g, Policy: task.PolicyEnqueue, MaxConcurrency: 2},
	} {
		m, err := New(WithDescriptor(d))
		require.NoError(t, err)
		assert.Same(t, g, m.Task().Group())
	}
}

func TestMock_WithLogger(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	m, err := New(WithName("fetch"), WithLogger(logger))
	require.NoError(t, err)
	m.Task().Perform()
	require.NoError(t, m.Finish(nil))

	out := buf.String()
	assert.Contains(t, out, `"msg":"task double created"`)
	assert.Contains(t, out, `"msg":"task double settled"`)
	assert.Contains(t, out, `"task":"fetch"`)
	assert.Contains(t, out, `"outcome":"finished"`)
}
