package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/ggoodman/mcp-client-go/internal/jsonrpc"
	"github.com/ggoodman/mcp-client-go/internal/logctx"
	"github.com/ggoodman/mcp-client-go/stdio"
)

// consume drains the inbound stream until it ends or ctx is done. A single
// bad message never stops the loop.
func (s *Session) consume(ctx context.Context) {
	defer close(s.loopDone)

	s.log.DebugContext(ctx, "session.loop.start")
	for {
		msg, err := s.r.ReadMessage(ctx)
		if errors.Is(err, stdio.ErrMessageTooLarge) && ctx.Err() == nil {
			s.log.WarnContext(ctx, "session.message.malformed", slog.String("err", (&MalformedMessageError{Err: err}).Error()))
			continue
		}
		if err != nil {
			switch {
			case ctx.Err() != nil:
				s.log.DebugContext(ctx, "session.loop.stop", slog.String("cause", context.Cause(ctx).Error()))
				s.teardown(StateClosed, fmt.Errorf("%w: %w", ErrSessionClosed, context.Cause(ctx)))
			case errors.Is(err, io.EOF):
				s.log.InfoContext(ctx, "session.transport.eof")
				s.teardown(StateClosed, ErrTransportClosed)
			default:
				s.log.ErrorContext(ctx, "session.transport.read.fail", slog.String("err", err.Error()))
				s.teardown(StateFailed, fmt.Errorf("read: %w", err))
			}
			return
		}
		s.processMessage(ctx, msg)
	}
}

func (s *Session) processMessage(ctx context.Context, raw []byte) {
	defer func() {
		if r := recover(); r != nil {
			s.log.ErrorContext(ctx, "session.message.panic", slog.Any("panic", r))
		}
	}()

	env, err := jsonrpc.Decode(raw)
	if err != nil {
		merr := &MalformedMessageError{Raw: raw, Err: err}
		s.log.WarnContext(ctx, "session.message.malformed", slog.String("err", merr.Error()), slog.Int("bytes", len(raw)))
		return
	}

	switch e := env.(type) {
	case *jsonrpc.EnvelopeResponse:
		s.handleResponse(ctx, e.Response())
	case *jsonrpc.EnvelopeResponseError:
		s.handleResponse(ctx, e.Response())
	case *jsonrpc.EnvelopeRequest:
		ctx = logctx.WithRPCMessage(ctx, &logctx.RPCMessage{Method: e.Method, ID: e.ID.String(), Type: "request"})
		s.handleRequest(ctx, e)
	case *jsonrpc.EnvelopeNotification:
		ctx = logctx.WithRPCMessage(ctx, &logctx.RPCMessage{Method: e.Method, Type: "notification"})
		s.handleNotification(ctx, raw, e)
	default:
		s.log.ErrorContext(ctx, "session.message.unhandled", slog.String("type", fmt.Sprintf("%T", env)))
	}
}

func (s *Session) handleResponse(ctx context.Context, resp *jsonrpc.Response) {
	if !s.out.OnResponse(resp) {
		s.log.WarnContext(ctx, "session.response.unknown_id", slog.String("id", resp.ID.String()))
	}
}
