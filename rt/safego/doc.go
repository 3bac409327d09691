// Package safego provides helpers for calling functions with panic/error reporting.
//
// safego is small and standard-library flavored. It is used by the task engine to run task
// bodies: a panic never takes down the process, it becomes ErrPanicked for the caller and is
// reported for the operator.
//
//	v, err := safego.Call(ctx, work,
//		safego.WithName("fetch"),
//		safego.WithErrorHandler(safego.SlogErrorHandler(logger)),
//	)
//
// Nil context: if ctx is nil, safego treats it as context.Background().
//
// # Error reporting
//
// Errors returned by fn are always returned unchanged. They are also reported via
// WithErrorHandler when one is configured.
//
// By default, context.Canceled and context.DeadlineExceeded are NOT reported. Use
// WithReportContextCancel(true) to report them.
//
// # Panics
//
// Panics are recovered and reported via WithPanicHandler if provided, otherwise to stderr.
// SlogPanicHandler and SlogErrorHandler adapt reports to a *slog.Logger.
//
// # Notes on stderr reporting
//
// Writing to stderr can block in extreme environments. The exact stderr output format should be
// treated as best-effort diagnostic output and may change.
package safego
