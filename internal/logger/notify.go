package logger

import (
	"context"
	"log/slog"
	"time"
)

// Diagnostic is a log record delivered to the host.
type Diagnostic struct {
	Time    time.Time
	Level   slog.Level
	Message string
	Attrs   map[string]any
}

var _ slog.Handler = (*NotifyHandler)(nil)

// NotifyHandler sends records to a channel without blocking. Records are
// dropped while the channel is full.
type NotifyHandler struct {
	ch     chan<- Diagnostic
	level  slog.Leveler
	attrs  []slog.Attr
	groups []string
}

func NewNotifyHandler(ch chan<- Diagnostic, level slog.Leveler) *NotifyHandler {
	return &NotifyHandler{ch: ch, level: level}
}

// Enabled implements slog.Handler.
func (h *NotifyHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

// Handle implements slog.Handler.
func (h *NotifyHandler) Handle(_ context.Context, r slog.Record) error {
	d := Diagnostic{
		Time:    r.Time,
		Level:   r.Level,
		Message: r.Message,
		Attrs:   make(map[string]any, len(h.attrs)+r.NumAttrs()),
	}
	for _, a := range h.attrs {
		d.Attrs[a.Key] = a.Value.Resolve().Any()
	}
	r.Attrs(func(a slog.Attr) bool {
		d.Attrs[h.key(a.Key)] = a.Value.Resolve().Any()
		return true
	})

	select {
	case h.ch <- d:
	default:
	}
	return nil
}

// WithAttrs implements slog.Handler.
func (h *NotifyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	n := *h
	n.attrs = make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	n.attrs = append(n.attrs, h.attrs...)
	for _, a := range attrs {
		a.Key = h.key(a.Key)
		n.attrs = append(n.attrs, a)
	}
	n.groups = h.groups
	return &n
}

// WithGroup implements slog.Handler.
func (h *NotifyHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	n := *h
	n.groups = append(append([]string(nil), h.groups...), name)
	return &n
}

func (h *NotifyHandler) key(k string) string {
	for i := len(h.groups) - 1; i >= 0; i-- {
		k = h.groups[i] + "." + k
	}
	return k
}
