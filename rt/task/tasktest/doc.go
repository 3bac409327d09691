// Package tasktest provides test doubles for tasks.
//
// A Mock replaces a task on a Target (a *task.Manager, or a struct via Fields) with a task
// that has the same scheduling configuration but whose outcome the test controls:
//
//	m := tasktest.Attach(t, svc.Tasks, "fetch") // inherits fetch's policy, e.g. drop
//
//	first := svc.Refresh()  // performs "fetch", which now waits
//	second := svc.Refresh() // dropped, exactly like the real task
//
//	require.NoError(t, m.Finish(map[string]any{"msg": "hello"}))
//	v, _ := first.Wait(ctx) // map[msg:hello]
//
// Until Finish or Reject is called, performances wait on one shared outcome; settling it
// settles all running ones at once, and Finish/Reject return only after they have. Queued
// performances see the settled outcome when they start. Alternatively CallsFake, Resolves,
// and Rejects decide the result of each performance that starts later.
//
// Every double records its performs in a Spy. Watch and Stub attach a Spy (and, for Stub, a
// fake) to a task the test already owns.
//
// Descriptors can also be loaded from YAML fixtures with LoadDescriptors and passed with
// WithDescriptor.
package tasktest
