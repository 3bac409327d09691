package safego

type config struct {
	name string
	tags []Tag

	onError             ErrorHandler
	reportContextCancel bool

	onPanic PanicHandler
}

// Option configures a single Call.
type Option func(*config)

// WithName sets a human-friendly name carried by reports.
func WithName(name string) Option {
	return func(c *config) { c.name = name }
}

// WithTag appends a single tag (key/value) to reports.
func WithTag(key, value string) Option {
	return func(c *config) {
		c.tags = append(c.tags, Tag{Key: key, Value: value})
	}
}

// WithTags appends tags to reports (preserving order).
func WithTags(tags ...Tag) Option {
	return func(c *config) {
		if len(tags) == 0 {
			return
		}
		c.tags = append(c.tags, tags...)
	}
}

// WithErrorHandler sets the error handler.
//
// Errors are only reported when a handler is set; they are always returned to the caller.
// Panics in the handler are contained: they are recovered and reported to stderr.
func WithErrorHandler(h ErrorHandler) Option {
	return func(c *config) { c.onError = h }
}

// WithReportContextCancel controls whether context cancellation errors are reported.
//
// By default, context.Canceled and context.DeadlineExceeded are NOT reported because they are
// the normal outcome of a canceled call.
func WithReportContextCancel(report bool) Option {
	return func(c *config) { c.reportContextCancel = report }
}

// WithPanicHandler sets the panic handler. If not set, panics are reported to stderr.
//
// Panics in the handler are contained: they are recovered and reported to stderr.
func WithPanicHandler(h PanicHandler) Option {
	return func(c *config) { c.onPanic = h }
}
