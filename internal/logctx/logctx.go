// Package logctx decorates slog records with session and message attributes
// carried on the context.
package logctx

import (
	"context"
	"log/slog"
)

// Handler wraps another slog.Handler and appends "sess" and "rpc" groups
// when the corresponding data is present on the context.
type Handler struct {
	slog.Handler
}

// NewLogger wraps l's handler so that *Context logging calls pick up
// session and message data. Wrapping twice is a no-op.
func NewLogger(l *slog.Logger) *slog.Logger {
	if l == nil {
		l = slog.Default()
	}
	if _, ok := l.Handler().(Handler); ok {
		return l
	}
	return slog.New(Handler{Handler: l.Handler()})
}

func (h Handler) Handle(ctx context.Context, r slog.Record) error {
	if sd, ok := ctx.Value(sessionDataKey{}).(*SessionData); ok {
		attrs := []any{slog.String("id", sd.SessionID)}
		if sd.State != nil {
			attrs = append(attrs, slog.String("state", sd.State()))
		}
		if sd.ProtocolVersion != nil {
			if v := sd.ProtocolVersion(); v != "" {
				attrs = append(attrs, slog.String("protocol_version", v))
			}
		}
		r.AddAttrs(slog.Group("sess", attrs...))
	}

	if msg, ok := ctx.Value(rpcMsg{}).(*RPCMessage); ok {
		r.AddAttrs(slog.Group("rpc",
			slog.String("method", msg.Method),
			slog.String("id", msg.ID),
			slog.String("type", msg.Type),
		))
	}

	return h.Handler.Handle(ctx, r)
}

func (h Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return Handler{Handler: h.Handler.WithAttrs(attrs)}
}

func (h Handler) WithGroup(name string) slog.Handler {
	return Handler{Handler: h.Handler.WithGroup(name)}
}

type rpcMsg struct{}

// RPCMessage identifies the JSON-RPC message being processed.
type RPCMessage struct {
	Method string
	ID     string
	Type   string
}

func WithRPCMessage(ctx context.Context, msg *RPCMessage) context.Context {
	return context.WithValue(ctx, rpcMsg{}, msg)
}

type sessionDataKey struct{}

// SessionData identifies the session. State and ProtocolVersion are read
// lazily at log time since both change over the session's life.
type SessionData struct {
	SessionID       string
	State           func() string
	ProtocolVersion func() string
}

func WithSessionData(ctx context.Context, data *SessionData) context.Context {
	return context.WithValue(ctx, sessionDataKey{}, data)
}
