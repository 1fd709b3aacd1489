package client

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/ggoodman/mcp-client-go/internal/jsonrpc"
	"github.com/ggoodman/mcp-client-go/mcp"
	"github.com/ggoodman/mcp-client-go/roots"
)

// NotificationHandler observes one server notification. Handlers run on a
// per-session worker in stream order, off the consumer loop, so a handler
// may issue requests on the session.
type NotificationHandler func(ctx context.Context, params json.RawMessage)

// handleNotification runs on the consumer loop. Cancellation and server
// logs are handled in place; handlers and the broker are fed through the
// notification queue.
func (s *Session) handleNotification(ctx context.Context, raw []byte, n *jsonrpc.EnvelopeNotification) {
	method := mcp.Method(n.Method)
	switch method {
	case mcp.CancelledNotificationMethod:
		s.onPeerCancelled(ctx, n.Params)
	case mcp.LoggingMessageNotificationMethod:
		s.logServerMessage(ctx, n.Params)
	}

	if len(s.notifyHandlers[method]) == 0 && s.broker == nil {
		return
	}
	s.notifications.push(queuedNotification{ctx: ctx, method: method, params: n.Params, raw: raw})
}

type queuedNotification struct {
	ctx    context.Context
	method mcp.Method
	params json.RawMessage
	raw    []byte
}

// notificationQueue is an unbounded FIFO so the consumer loop never waits
// on a slow handler.
type notificationQueue struct {
	mu    sync.Mutex
	items []queuedNotification
	wake  chan struct{}
}

func newNotificationQueue() *notificationQueue {
	return &notificationQueue{wake: make(chan struct{}, 1)}
}

func (q *notificationQueue) push(n queuedNotification) {
	q.mu.Lock()
	q.items = append(q.items, n)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *notificationQueue) drain() []queuedNotification {
	q.mu.Lock()
	defer q.mu.Unlock()
	items := q.items
	q.items = nil
	return items
}

// deliverNotifications runs queued notifications until ctx is done.
// Notifications still queued at teardown are dropped.
func (s *Session) deliverNotifications(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.notifications.wake:
		}
		for _, n := range s.notifications.drain() {
			if ctx.Err() != nil {
				return
			}
			s.deliverNotification(n)
		}
	}
}

func (s *Session) deliverNotification(n queuedNotification) {
	for _, h := range s.notifyHandlers[n.method] {
		s.runNotificationHandler(n.ctx, h, n.params)
	}

	if s.broker != nil {
		if _, err := s.broker.Publish(n.ctx, s.brokerNS, n.raw); err != nil {
			s.log.ErrorContext(n.ctx, "session.notification.publish.fail", slog.String("err", err.Error()))
		}
	}
}

func (s *Session) runNotificationHandler(ctx context.Context, h NotificationHandler, params json.RawMessage) {
	defer func() {
		if r := recover(); r != nil {
			s.log.ErrorContext(ctx, "session.notification.handler.panic", slog.Any("panic", r))
		}
	}()
	h(ctx, params)
}

// onPeerCancelled resolves a cancellation in both directions: it fails our
// pending request with that id, or stops the handler serving the server's
// request with that id.
func (s *Session) onPeerCancelled(ctx context.Context, params json.RawMessage) {
	var n mcp.CancelledNotification
	if err := json.Unmarshal(params, &n); err != nil {
		s.log.WarnContext(ctx, "session.cancelled.invalid", slog.String("err", err.Error()))
		return
	}
	var id jsonrpc.RequestID
	if err := json.Unmarshal(n.RequestID, &id); err != nil || id.IsNil() {
		s.log.WarnContext(ctx, "session.cancelled.invalid", slog.String("err", "missing or invalid requestId"))
		return
	}
	key := id.String()

	outboundHit := s.out.OnCancelled(key)
	inboundHit := s.cancelInflight(key)
	s.log.InfoContext(ctx, "session.cancelled.recv",
		slog.String("request_id", key),
		slog.String("reason", n.Reason),
		slog.Bool("outbound", outboundHit),
		slog.Bool("inbound", inboundHit),
	)
}

// logServerMessage relays a notifications/message record to the local
// logger at the closest slog level.
func (s *Session) logServerMessage(ctx context.Context, params json.RawMessage) {
	var n mcp.LoggingMessageNotification
	if err := json.Unmarshal(params, &n); err != nil {
		s.log.WarnContext(ctx, "session.server_log.invalid", slog.String("err", err.Error()))
		return
	}
	attrs := []slog.Attr{slog.String("server_level", string(n.Level)), slog.Any("data", n.Data)}
	if n.Logger != "" {
		attrs = append(attrs, slog.String("logger", n.Logger))
	}
	s.log.LogAttrs(ctx, slogLevel(n.Level), "session.server_log", attrs...)
}

func slogLevel(l mcp.LoggingLevel) slog.Level {
	switch l {
	case mcp.LoggingLevelDebug:
		return slog.LevelDebug
	case mcp.LoggingLevelInfo, mcp.LoggingLevelNotice:
		return slog.LevelInfo
	case mcp.LoggingLevelWarning:
		return slog.LevelWarn
	case mcp.LoggingLevelError, mcp.LoggingLevelCritical, mcp.LoggingLevelAlert, mcp.LoggingLevelEmergency:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// announceRootsChanges sends notifications/roots/list_changed for every
// change signal until the session ends, then unsubscribes.
func (s *Session) announceRootsChanges(ctx context.Context, sub roots.ChangeSubscriber) {
	changes := sub.Subscriber()
	defer sub.Unsubscribe(changes)

	ctx = context.WithoutCancel(ctx)
	for {
		select {
		case <-s.done:
			return
		case _, ok := <-changes:
			if !ok {
				return
			}
			if err := s.SendRootsListChanged(ctx); err != nil {
				s.log.DebugContext(ctx, "session.roots.list_changed.write.fail", slog.String("err", err.Error()))
			}
		}
	}
}
