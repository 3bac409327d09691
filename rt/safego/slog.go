package safego

import (
	"context"
	"log/slog"
)

// SlogErrorHandler returns an ErrorHandler that logs reports at Error level.
// A nil logger means slog.Default().
func SlogErrorHandler(l *slog.Logger) ErrorHandler {
	if l == nil {
		l = slog.Default()
	}
	return func(ctx context.Context, info ErrorInfo) {
		l.LogAttrs(ctx, slog.LevelError, "call failed",
			slog.String("name", info.Name),
			tagsAttr(info.Tags),
			slog.Any("err", info.Err),
		)
	}
}

// SlogPanicHandler returns a PanicHandler that logs reports (with stack) at Error level.
// A nil logger means slog.Default().
func SlogPanicHandler(l *slog.Logger) PanicHandler {
	if l == nil {
		l = slog.Default()
	}
	return func(ctx context.Context, info PanicInfo) {
		l.LogAttrs(ctx, slog.LevelError, "call panicked",
			slog.String("name", info.Name),
			tagsAttr(info.Tags),
			slog.Any("value", info.Value),
			slog.String("stack", string(info.Stack)),
		)
	}
}

func tagsAttr(tags []Tag) slog.Attr {
	attrs := make([]any, 0, len(tags))
	for _, t := range tags {
		attrs = append(attrs, slog.String(t.Key, t.Value))
	}
	return slog.Group("tags", attrs...)
}
