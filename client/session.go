package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ggoodman/mcp-client-go/broker"
	"github.com/ggoodman/mcp-client-go/internal/jsonrpc"
	"github.com/ggoodman/mcp-client-go/internal/logctx"
	"github.com/ggoodman/mcp-client-go/internal/outbound"
	"github.com/ggoodman/mcp-client-go/internal/schema"
	"github.com/ggoodman/mcp-client-go/mcp"
	"github.com/ggoodman/mcp-client-go/mcp/sampling"
	"github.com/ggoodman/mcp-client-go/roots"
)

// MessageReader is the inbound half of a transport. ReadMessage returns one
// complete JSON-RPC message per call and io.EOF once the peer is gone.
// stdio.ErrMessageTooLarge skips one message; the loop keeps reading.
type MessageReader interface {
	ReadMessage(ctx context.Context) ([]byte, error)
}

// MessageWriter is the outbound half of a transport. WriteMessage must be
// safe for concurrent use and write each message atomically.
type MessageWriter interface {
	WriteMessage(ctx context.Context, msg []byte) error
}

// Session is one client-side MCP session with a single server.
type Session struct {
	id  string
	r   MessageReader
	w   MessageWriter
	log *slog.Logger
	cfg Config

	sampling         sampling.Handler
	roots            roots.Provider
	handlers         map[mcp.Method]RequestHandler
	notifyHandlers   map[mcp.Method][]NotificationHandler
	broker           broker.Broker
	brokerNS         string
	validateToolArgs bool
	toolSchemas      *schema.Cache
	notifications    *notificationQueue

	out *outbound.Dispatcher

	mu         sync.Mutex
	state      State
	started    bool
	initResult *mcp.InitializeResult
	cause      error
	loopCancel context.CancelFunc
	loopDone   chan struct{}

	inflightMu sync.Mutex
	inflight   map[string]context.CancelCauseFunc

	teardownOnce sync.Once
	done         chan struct{}
	closeErr     error
}

// New constructs a Session reading server messages from r and writing client
// messages to w. Nothing is read or written until Start or Initialize.
func New(r MessageReader, w MessageWriter, opts ...Option) *Session {
	s := &Session{
		id:             uuid.NewString(),
		r:              r,
		w:              w,
		log:            slog.Default(),
		cfg:            DefaultConfig(),
		handlers:       make(map[mcp.Method]RequestHandler),
		notifyHandlers: make(map[mcp.Method][]NotificationHandler),
		toolSchemas:    schema.NewCache(),
		notifications:  newNotificationQueue(),
		inflight:       make(map[string]context.CancelCauseFunc),
		loopDone:       make(chan struct{}),
		done:           make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = logctx.NewLogger(s.log)
	if s.brokerNS == "" {
		s.brokerNS = s.id
	}
	s.registerBuiltins()
	s.out = outbound.New(sessionTransport{s: s})
	return s
}

// ID returns the locally generated session id.
func (s *Session) ID() string { return s.id }

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// ProtocolVersion returns the negotiated protocol version, or "" before the
// handshake completes.
func (s *Session) ProtocolVersion() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.initResult == nil {
		return ""
	}
	return s.initResult.ProtocolVersion
}

// ServerInfo returns the server's implementation info from the handshake.
func (s *Session) ServerInfo() mcp.ImplementationInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.initResult == nil {
		return mcp.ImplementationInfo{}
	}
	return s.initResult.ServerInfo
}

// ServerCapabilities returns the capabilities the server advertised.
func (s *Session) ServerCapabilities() mcp.ServerCapabilities {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.initResult == nil {
		return mcp.ServerCapabilities{}
	}
	return s.initResult.Capabilities
}

// Instructions returns the server's optional usage instructions.
func (s *Session) Instructions() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.initResult == nil {
		return ""
	}
	return s.initResult.Instructions
}

// Done is closed once the session has been torn down.
func (s *Session) Done() <-chan struct{} { return s.done }

// Err returns the teardown cause, or nil while the session is alive.
func (s *Session) Err() error {
	select {
	case <-s.done:
	default:
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cause
}

// Start launches the consumer loop. The loop runs until the inbound stream
// ends, ctx is done, or the session is closed. Start is only valid once, in
// StateCreated; Initialize calls it when it has not been called.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateCreated || s.started {
		return s.stateErrLocked()
	}
	s.startLocked(ctx)
	return nil
}

func (s *Session) startLocked(ctx context.Context) {
	s.started = true
	loopCtx, cancel := context.WithCancel(s.withSession(ctx))
	s.loopCancel = cancel
	go s.consume(loopCtx)
	go s.deliverNotifications(loopCtx)
}

// Initialize performs the handshake: it sends initialize, checks the
// server's protocol version, then sends notifications/initialized. Any
// failure leaves the session in StateFailed.
func (s *Session) Initialize(ctx context.Context) (*mcp.InitializeResult, error) {
	s.mu.Lock()
	if s.state != StateCreated {
		err := s.stateErrLocked()
		s.mu.Unlock()
		return nil, err
	}
	s.state = StateInitializing
	if !s.started {
		s.startLocked(context.WithoutCancel(ctx))
	}
	s.mu.Unlock()

	ctx = s.withSession(ctx)
	start := time.Now()

	req := &mcp.InitializeRequest{
		ProtocolVersion: s.cfg.ProtocolVersion,
		Capabilities:    s.clientCapabilities(),
		ClientInfo: mcp.ImplementationInfo{
			Name:    s.cfg.ClientName,
			Version: s.cfg.ClientVersion,
		},
	}

	var res mcp.InitializeResult
	if err := s.call(ctx, mcp.InitializeMethod, req, &res); err != nil {
		s.log.ErrorContext(ctx, "session.initialize.fail", slog.String("err", err.Error()))
		s.teardown(StateFailed, err)
		return nil, fmt.Errorf("initialize: %w", err)
	}

	if !mcp.IsSupportedProtocolVersion(res.ProtocolVersion) {
		err := &ProtocolVersionError{Version: res.ProtocolVersion}
		s.log.ErrorContext(ctx, "session.initialize.version_mismatch", slog.String("requested", req.ProtocolVersion), slog.String("received", res.ProtocolVersion))
		s.teardown(StateFailed, err)
		return nil, err
	}

	if err := s.notify(ctx, mcp.InitializedNotificationMethod, nil); err != nil {
		s.log.ErrorContext(ctx, "session.initialized.write.fail", slog.String("err", err.Error()))
		s.teardown(StateFailed, err)
		return nil, fmt.Errorf("initialized notification: %w", err)
	}

	s.mu.Lock()
	if s.state != StateInitializing {
		err := s.stateErrLocked()
		s.mu.Unlock()
		return nil, err
	}
	s.state = StateReady
	s.initResult = &res
	s.mu.Unlock()

	if sub, ok := s.roots.(roots.ChangeSubscriber); ok {
		go s.announceRootsChanges(ctx, sub)
	}

	s.log.InfoContext(ctx, "session.initialize.ok",
		slog.String("server", res.ServerInfo.Name),
		slog.String("server_version", res.ServerInfo.Version),
		slog.Int64("dur_ms", time.Since(start).Milliseconds()),
	)

	return &res, nil
}

// clientCapabilities is always sampling plus roots with listChanged. A
// session without a sampling handler answers sampling/createMessage with
// method not found, and one without a roots provider lists no roots.
func (s *Session) clientCapabilities() mcp.ClientCapabilities {
	return mcp.ClientCapabilities{
		Sampling: &struct{}{},
		Roots:    &mcp.RootsCapability{ListChanged: true},
	}
}

// Close tears the session down: pending requests fail with
// ErrSessionClosed, the streams are closed and the consumer loop is waited
// for. The writer and reader are closed when they implement io.Closer, so
// both must tolerate a second Close when they are the same value. Close is
// idempotent and leaves the session in StateClosed.
func (s *Session) Close() error {
	s.teardown(StateClosed, ErrSessionClosed)

	s.mu.Lock()
	s.state = StateClosed
	started := s.started
	s.mu.Unlock()

	if started {
		<-s.loopDone
	}
	return s.closeErr
}

// teardown runs once: it records the final state and cause, stops the loop,
// fails pending requests and closes the streams.
func (s *Session) teardown(state State, cause error) {
	s.teardownOnce.Do(func() {
		s.mu.Lock()
		s.state = state
		s.cause = cause
		cancel := s.loopCancel
		s.mu.Unlock()

		if cancel != nil {
			cancel()
		}

		pendingErr := cause
		if !errors.Is(cause, ErrSessionClosed) {
			pendingErr = fmt.Errorf("%w: %w", ErrSessionClosed, cause)
		}
		s.out.Close(pendingErr)

		var errs []error
		if c, ok := s.w.(io.Closer); ok {
			errs = append(errs, c.Close())
		}
		if c, ok := s.r.(io.Closer); ok {
			errs = append(errs, c.Close())
		}
		s.closeErr = errors.Join(errs...)

		close(s.done)

		s.log.InfoContext(s.withSession(context.Background()), "session.teardown", slog.String("cause", cause.Error()))
	})
}

// stateErrLocked describes why an operation is not allowed. s.mu must be
// held.
func (s *Session) stateErrLocked() error {
	switch s.state {
	case StateFailed:
		return fmt.Errorf("%w: %w", ErrSessionFailed, s.cause)
	case StateClosed:
		return fmt.Errorf("%w: %w", ErrInvalidState, ErrSessionClosed)
	default:
		return fmt.Errorf("%w: %s", ErrInvalidState, s.state)
	}
}

// ready returns nil when requests may be issued.
func (s *Session) ready() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateReady {
		return s.stateErrLocked()
	}
	return nil
}

func (s *Session) withSession(ctx context.Context) context.Context {
	return logctx.WithSessionData(ctx, &logctx.SessionData{
		SessionID:       s.id,
		State:           func() string { return s.State().String() },
		ProtocolVersion: s.ProtocolVersion,
	})
}

// call issues a request and decodes its result into result when non-nil.
// It does not check the session state.
func (s *Session) call(ctx context.Context, method mcp.Method, params, result any) error {
	if s.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.RequestTimeout)
		defer cancel()
	}

	resp, err := s.out.Call(ctx, string(method), params)
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	if resp.Error != nil {
		return &RPCError{Code: int(resp.Error.Code), Message: resp.Error.Message, Data: resp.Error.Data}
	}
	if result == nil || len(resp.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Result, result); err != nil {
		return fmt.Errorf("decode %s result: %w", method, err)
	}
	return nil
}

// notify writes a notification. It does not check the session state.
func (s *Session) notify(ctx context.Context, method mcp.Method, params any) error {
	n, err := jsonrpc.NewNotification(string(method), params)
	if err != nil {
		return err
	}
	return s.writeJSON(ctx, n)
}

func (s *Session) writeJSON(ctx context.Context, v any) error {
	select {
	case <-s.done:
		return ErrSessionClosed
	default:
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	return s.w.WriteMessage(ctx, b)
}

// sessionTransport lets the correlator write through the session.
type sessionTransport struct {
	s *Session
}

func (t sessionTransport) SendRequest(ctx context.Context, req *jsonrpc.Request) error {
	return t.s.writeJSON(ctx, req)
}

func (t sessionTransport) SendCancelled(ctx context.Context, id *jsonrpc.RequestID, reason string) error {
	raw, err := json.Marshal(id)
	if err != nil {
		return err
	}
	err = t.s.notify(ctx, mcp.CancelledNotificationMethod, &mcp.CancelledNotification{RequestID: raw, Reason: reason})
	if err != nil {
		t.s.log.DebugContext(ctx, "session.cancelled.write.fail", slog.String("request_id", id.String()), slog.String("err", err.Error()))
	}
	return err
}
