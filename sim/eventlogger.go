package sim

import (
	"context"
	"log/slog"
	"reflect"
)

// A Named object is an object that has a name.
type Named interface {
	Name() string
}

// EventLogger is an hook that prints the event information
type EventLogger struct {
	logger *slog.Logger
}

// NewEventLogger returns a new EventLogger which writes every event at the
// debug level.
func NewEventLogger(logger *slog.Logger) *EventLogger {
	h := new(EventLogger)
	h.logger = logger

	return h
}

// Func writes the event information into the logger
func (h *EventLogger) Func(ctx HookCtx) {
	if ctx.Pos != HookPosBeforeEvent {
		return
	}

	evt, ok := ctx.Item.(Event)
	if !ok {
		return
	}

	if !h.logger.Enabled(context.Background(), slog.LevelDebug) {
		return
	}

	attrs := []any{
		"time", evt.Time().String(),
		"event", reflect.TypeOf(evt).String(),
		"secondary", evt.IsSecondary(),
	}

	if named, ok := evt.Handler().(Named); ok {
		attrs = append(attrs, "handler", named.Name())
	}

	h.logger.Debug("event", attrs...)
}
