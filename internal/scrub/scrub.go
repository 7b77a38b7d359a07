// Package scrub keeps the bot token out of errors and logs. net/http puts
// the request URL, and with it the token, into every transport error.
package scrub

import (
	"context"
	"log/slog"
	"net/url"
	"strings"

	"github.com/prilive-com/circlebot/tg"
)

const redacted = "[REDACTED]"

// String replaces every occurrence of token in s, including its
// query-escaped form.
func String(s string, token tg.SecretToken) string {
	v := token.Value()
	if v == "" {
		return s
	}
	s = strings.ReplaceAll(s, v, redacted)
	if esc := url.QueryEscape(v); esc != v {
		s = strings.ReplaceAll(s, esc, redacted)
	}
	return s
}

// Error returns err with the token removed from its message. The original
// error stays reachable through errors.Is and errors.As.
func Error(err error, token tg.SecretToken) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	if clean := String(msg, token); clean != msg {
		return &scrubbedError{msg: clean, err: err}
	}
	return err
}

type scrubbedError struct {
	msg string
	err error
}

func (e *scrubbedError) Error() string { return e.msg }
func (e *scrubbedError) Unwrap() error { return e.err }

// Handler wraps next so that no record it writes carries the token, whether
// in the message, a string attribute or an error attribute.
func Handler(next slog.Handler, token tg.SecretToken) slog.Handler {
	if token.IsEmpty() {
		return next
	}
	return &handler{next: next, token: token}
}

type handler struct {
	next  slog.Handler
	token tg.SecretToken
}

func (h *handler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *handler) Handle(ctx context.Context, r slog.Record) error {
	clean := slog.NewRecord(r.Time, r.Level, String(r.Message, h.token), r.PC)
	r.Attrs(func(a slog.Attr) bool {
		clean.AddAttrs(h.attr(a))
		return true
	})
	return h.next.Handle(ctx, clean)
}

func (h *handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clean := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		clean[i] = h.attr(a)
	}
	return &handler{next: h.next.WithAttrs(clean), token: h.token}
}

func (h *handler) WithGroup(name string) slog.Handler {
	return &handler{next: h.next.WithGroup(name), token: h.token}
}

func (h *handler) attr(a slog.Attr) slog.Attr {
	v := a.Value.Resolve()
	switch v.Kind() {
	case slog.KindString:
		a.Value = slog.StringValue(String(v.String(), h.token))
	case slog.KindGroup:
		group := v.Group()
		clean := make([]slog.Attr, len(group))
		for i, g := range group {
			clean[i] = h.attr(g)
		}
		a.Value = slog.GroupValue(clean...)
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			a.Value = slog.StringValue(String(err.Error(), h.token))
		} else {
			a.Value = v
		}
	default:
		a.Value = v
	}
	return a
}
