// Package simlog adds simulated time to structured log records.
package simlog

import (
	"context"
	"io"
	"log/slog"
	"strings"

	"github.com/pkg/errors"
	"github.com/sarchlab/socbench/sim"
)

// TimeKey is the attribute key of the simulated time.
const TimeKey = "sim_time"

// A Handler wraps another slog.Handler and stamps every record with the
// current time of an engine.
type Handler struct {
	inner slog.Handler
	clock sim.TimeTeller
}

// NewHandler wraps inner so that every record carries the time told by
// clock.
func NewHandler(inner slog.Handler, clock sim.TimeTeller) *Handler {
	return &Handler{inner: inner, clock: clock}
}

// Enabled reports whether the inner handler handles the level.
func (h *Handler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

// Handle adds the simulated time and passes the record on.
func (h *Handler) Handle(ctx context.Context, r slog.Record) error {
	if h.clock != nil {
		r = r.Clone()
		r.AddAttrs(slog.String(TimeKey, h.clock.CurrentTime().String()))
	}

	return h.inner.Handle(ctx, r)
}

// WithAttrs returns a handler whose records carry the given attributes.
func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &Handler{inner: h.inner.WithAttrs(attrs), clock: h.clock}
}

// WithGroup returns a handler that nests the following attributes under
// name.
func (h *Handler) WithGroup(name string) slog.Handler {
	return &Handler{inner: h.inner.WithGroup(name), clock: h.clock}
}

// ParseLevel converts a level name into a slog.Level. Accepted names are
// debug, info, warn, warning and error.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}

	return 0, errors.Errorf("unknown log level %q", name)
}

// NewTextLogger creates a text logger writing to w at the given level. If
// clock is not nil, the records carry the simulated time.
func NewTextLogger(w io.Writer, level slog.Level, clock sim.TimeTeller) *slog.Logger {
	var h slog.Handler = slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: level,
	})

	if clock != nil {
		h = NewHandler(h, clock)
	}

	return slog.New(h)
}
