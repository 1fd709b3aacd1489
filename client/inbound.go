package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ggoodman/mcp-client-go/internal/jsonrpc"
	"github.com/ggoodman/mcp-client-go/mcp"
	"github.com/ggoodman/mcp-client-go/mcp/sampling"
)

// RequestHandler services one server-initiated request. The returned value
// is encoded as the result; a nil result is sent as an empty object. An
// *RPCError chooses the error code sent back, any other error is reported
// as an internal error.
type RequestHandler func(ctx context.Context, params json.RawMessage) (any, error)

// errPeerCancelled is the cancellation cause for requests the server
// cancelled. Such requests get no response.
var errPeerCancelled = errors.New("cancelled by peer")

func (s *Session) registerBuiltins() {
	if _, ok := s.handlers[mcp.PingMethod]; !ok {
		s.handlers[mcp.PingMethod] = s.handlePing
	}
	if _, ok := s.handlers[mcp.SamplingCreateMessageMethod]; !ok && s.sampling != nil {
		s.handlers[mcp.SamplingCreateMessageMethod] = s.handleCreateMessage
	}
	if _, ok := s.handlers[mcp.RootsListMethod]; !ok {
		s.handlers[mcp.RootsListMethod] = s.handleListRoots
	}
}

// handleRequest answers a server request on its own goroutine. The handler
// context outlives session shutdown but ends when the server cancels the
// request. A request reusing the id of one still running is dropped.
func (s *Session) handleRequest(ctx context.Context, req *jsonrpc.EnvelopeRequest) {
	key := req.ID.String()
	hctx, cancel := context.WithCancelCause(context.WithoutCancel(ctx))

	s.inflightMu.Lock()
	if _, exists := s.inflight[key]; exists {
		s.inflightMu.Unlock()
		cancel(nil)
		// The first request still owns the id and its response.
		s.log.WarnContext(ctx, "session.request.duplicate_id")
		return
	}
	s.inflight[key] = cancel
	s.inflightMu.Unlock()

	go func() {
		defer func() {
			s.inflightMu.Lock()
			delete(s.inflight, key)
			s.inflightMu.Unlock()
			cancel(nil)
		}()

		resp := s.serveRequest(hctx, req)
		if errors.Is(context.Cause(hctx), errPeerCancelled) {
			s.log.InfoContext(hctx, "session.request.cancelled")
			return
		}
		s.writeResponse(hctx, resp)
	}()
}

func (s *Session) serveRequest(ctx context.Context, req *jsonrpc.EnvelopeRequest) (resp *jsonrpc.Response) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			s.log.ErrorContext(ctx, "session.request.panic", slog.Any("panic", r))
			resp = jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeInternalError, "internal error", nil)
		}
	}()

	h, ok := s.handlers[mcp.Method(req.Method)]
	if !ok {
		s.log.InfoContext(ctx, "session.request.unsupported")
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeMethodNotFound, fmt.Sprintf("method not found: %s", req.Method), nil)
	}

	res, err := h(ctx, req.Params)
	if err != nil {
		var rerr *RPCError
		if errors.As(err, &rerr) {
			s.log.InfoContext(ctx, "session.request.error", slog.Int("code", rerr.Code), slog.String("err", rerr.Message), slog.Int64("dur_ms", time.Since(start).Milliseconds()))
			return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCode(rerr.Code), rerr.Message, rerr.Data)
		}
		s.log.ErrorContext(ctx, "session.request.fail", slog.String("err", err.Error()), slog.Int64("dur_ms", time.Since(start).Milliseconds()))
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeInternalError, err.Error(), nil)
	}

	resp, err = jsonrpc.NewResultResponse(req.ID, res)
	if err != nil {
		s.log.ErrorContext(ctx, "session.request.encode.fail", slog.String("err", err.Error()))
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeInternalError, "internal error", nil)
	}

	s.log.DebugContext(ctx, "session.request.ok", slog.Int64("dur_ms", time.Since(start).Milliseconds()))
	return resp
}

func (s *Session) writeResponse(ctx context.Context, resp *jsonrpc.Response) {
	if err := s.writeJSON(ctx, resp); err != nil {
		s.log.DebugContext(ctx, "session.response.write.fail", slog.String("err", err.Error()))
	}
}

// cancelInflight cancels the server request with the given id. It reports
// whether such a request was running.
func (s *Session) cancelInflight(key string) bool {
	s.inflightMu.Lock()
	cancel, ok := s.inflight[key]
	s.inflightMu.Unlock()
	if ok {
		cancel(errPeerCancelled)
	}
	return ok
}

func (s *Session) handlePing(ctx context.Context, _ json.RawMessage) (any, error) {
	return &mcp.EmptyResult{}, nil
}

func (s *Session) handleCreateMessage(ctx context.Context, params json.RawMessage) (any, error) {
	var req mcp.CreateMessageRequest
	if err := json.Unmarshal(params, &req); err != nil {
		return nil, invalidParams(err)
	}
	if err := sampling.ValidateCreateMessage(&req); err != nil {
		return nil, invalidParams(err)
	}

	res, err := s.sampling(ctx, &req)
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, errors.New("sampling handler returned no result")
	}
	return res, nil
}

func (s *Session) handleListRoots(ctx context.Context, _ json.RawMessage) (any, error) {
	if s.roots == nil {
		return &mcp.ListRootsResult{Roots: []mcp.Root{}}, nil
	}
	list, err := s.roots.ListRoots(ctx)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []mcp.Root{}
	}
	return &mcp.ListRootsResult{Roots: list}, nil
}
