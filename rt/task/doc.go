// Package task provides policy-governed asynchronous tasks.
//
// # Design highlights
//
//   - Task: a unit of work performed on demand; every Perform yields an Instance.
//   - Scheduler policies: default, restartable, drop, keep-latest, enqueue, plus max concurrency.
//   - Group: several tasks sharing one scheduler.
//   - Manager: a named registry of tasks/groups with Replace (for tests) and graceful Shutdown.
//   - Panic/error reporting: uses safego-style handlers and tags; panics go to stderr by default.
//
// # Performing
//
//	t := task.New(func(ctx context.Context, args ...any) (any, error) {
//		return fetch(ctx, args[0].(string))
//	}, task.WithName("fetch"), task.WithPolicy(task.PolicyRestartable))
//
//	v, err := t.Perform("id-1").Wait(ctx)
//
// Perform never blocks: the scheduling decision is made synchronously and the body runs on its
// own goroutine. Wait returns the body's value, or its error unchanged.
//
// # Policies
//
// Under contention (max concurrency reached), a new performance is handled as:
//   - PolicyDrop: it settles immediately as dropped (ErrDropped).
//   - PolicyEnqueue: it waits in FIFO order.
//   - PolicyKeepLatest: it waits; a performance that was already waiting is dropped.
//   - PolicyRestartable: the oldest running performance is canceled (ErrCanceled) and the new
//     one starts at once.
//
// Every policy other than PolicyDefault has max concurrency 1 unless configured otherwise.
// PolicyDefault is unbounded; with WithMaxConcurrency it queues like PolicyEnqueue.
//
// Canceling a performance settles it right away and cancels the context passed to its body.
// The body should return promptly; its late result is ignored.
//
// # Groups
//
// Tasks created with WithGroup share the group's scheduler:
//
//	g := task.NewGroup(task.WithPolicy(task.PolicyDrop))
//	a := task.New(workA, task.WithGroup(g))
//	b := task.New(workB, task.WithGroup(g))
//
// While a is running, performing b is dropped. Task-level policy options are ignored for
// group members.
//
// # Manager and replacement
//
//	m := task.NewManager()
//	m.MustAdd(fetch, task.WithName("fetch"), task.WithPolicy(task.PolicyDrop))
//	defer m.Shutdown(context.Background())
//
//	t, _ := m.Lookup("fetch")
//
// Replace swaps the task registered under a name and returns a restore func; this is how test
// doubles are installed. Shutdown cancels every performance of the manager's tasks, rejects new
// performances with ErrClosed, and waits for running bodies.
//
// # Hooks
//
// WithOnPerform observes every Perform call (including dropped performances), synchronously and
// in call order. WithOnRunStart/WithOnRunFinish observe bodies starting and settling. Hooks must
// be fast and must not block.
//
// # Observability
//
// Task status can be observed via Task.Status() or Manager.Snapshot():
//
//	snap := m.Snapshot()
//	if st, ok := snap.Get("fetch"); ok {
//		_ = st.Running
//		_ = st.LastError
//	}
//
// LastError is updated only when a run fails (or panics), and it is not cleared on success.
// Treat it as "last failure" rather than "last run error".
//
// # Names
//
// Task and group names are optional. Names registered with a Manager are:
//   - normalized by strings.TrimSpace
//   - validated against [A-Za-z0-9._-]
//   - unique within the Manager
package task
