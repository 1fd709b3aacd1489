package client

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ggoodman/mcp-client-go/broker"
	"github.com/ggoodman/mcp-client-go/broker/memory"
	"github.com/ggoodman/mcp-client-go/mcp"
)

func TestNotifications_HandlersRunInStreamOrder(t *testing.T) {
	t.Parallel()

	got := make(chan string, 8)
	record := func(ctx context.Context, params json.RawMessage) {
		var p mcp.ResourceUpdatedNotification
		_ = json.Unmarshal(params, &p)
		got <- p.URI
	}
	_, srv := newReadySession(t,
		WithNotificationHandler(mcp.ResourcesUpdatedNotificationMethod, record),
		WithNotificationHandler(mcp.ToolsListChangedNotificationMethod, func(ctx context.Context, params json.RawMessage) {
			panic("handler bug")
		}),
	)

	for _, uri := range []string{"file:///1", "file:///2"} {
		if err := srv.notify(mcp.ResourcesUpdatedNotificationMethod, &mcp.ResourceUpdatedNotification{URI: uri}); err != nil {
			t.Fatalf("notify: %v", err)
		}
	}
	// A panicking handler does not take the loop down.
	if err := srv.notify(mcp.ToolsListChangedNotificationMethod, nil); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if err := srv.notify(mcp.ResourcesUpdatedNotificationMethod, &mcp.ResourceUpdatedNotification{URI: "file:///3"}); err != nil {
		t.Fatalf("notify: %v", err)
	}

	for _, want := range []string{"file:///1", "file:///2", "file:///3"} {
		select {
		case uri := <-got:
			if uri != want {
				t.Fatalf("got %s, want %s", uri, want)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for %s", want)
		}
	}
}

func TestNotifications_HandlerCanIssueRequests(t *testing.T) {
	t.Parallel()

	var current atomic.Pointer[Session]
	listed := make(chan error, 1)
	sess, srv := newReadySession(t,
		WithNotificationHandler(mcp.ToolsListChangedNotificationMethod, func(ctx context.Context, params json.RawMessage) {
			ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
			defer cancel()
			_, err := current.Load().ListTools(ctx, "")
			listed <- err
		}),
	)
	current.Store(sess)

	if err := srv.notify(mcp.ToolsListChangedNotificationMethod, nil); err != nil {
		t.Fatalf("notify: %v", err)
	}
	m, err := srv.expect(mcp.ToolsListMethod)
	if err != nil {
		t.Fatalf("server read: %v", err)
	}
	if err := srv.reply(m.ID, &mcp.ListToolsResult{Tools: []mcp.Tool{}}); err != nil {
		t.Fatalf("reply: %v", err)
	}

	select {
	case err := <-listed:
		if err != nil {
			t.Fatalf("list tools from handler: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("handler did not finish")
	}
}

func TestNotifications_SlowHandlerDoesNotBlockResponses(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	sess, srv := newReadySession(t,
		WithNotificationHandler(mcp.ResourcesUpdatedNotificationMethod, func(ctx context.Context, params json.RawMessage) {
			<-release
		}),
	)
	defer close(release)

	if err := srv.notify(mcp.ResourcesUpdatedNotificationMethod, &mcp.ResourceUpdatedNotification{URI: "file:///slow"}); err != nil {
		t.Fatalf("notify: %v", err)
	}

	pingc := make(chan error, 1)
	go func() { pingc <- sess.Ping(context.Background()) }()
	m, err := srv.expect(mcp.PingMethod)
	if err != nil {
		t.Fatalf("server read: %v", err)
	}
	if err := srv.reply(m.ID, nil); err != nil {
		t.Fatalf("reply: %v", err)
	}
	select {
	case err := <-pingc:
		if err != nil {
			t.Fatalf("ping: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("response blocked behind a notification handler")
	}
}

func TestNotifications_ServerLogMessagesAreRelayed(t *testing.T) {
	t.Parallel()

	var buf syncBuffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	seen := make(chan struct{}, 1)
	_, srv := newReadySession(t,
		WithLogger(logger),
		WithNotificationHandler(mcp.LoggingMessageNotificationMethod, func(ctx context.Context, params json.RawMessage) {
			seen <- struct{}{}
		}),
	)

	err := srv.notify(mcp.LoggingMessageNotificationMethod, &mcp.LoggingMessageNotification{
		Level:  mcp.LoggingLevelWarning,
		Logger: "db",
		Data:   map[string]any{"msg": "slow query"},
	})
	if err != nil {
		t.Fatalf("notify: %v", err)
	}
	select {
	case <-seen:
	case <-time.After(2 * time.Second):
		t.Fatal("notification not delivered")
	}

	var record map[string]any
	for _, line := range strings.Split(buf.String(), "\n") {
		if strings.Contains(line, `"msg":"session.server_log"`) {
			if err := json.Unmarshal([]byte(line), &record); err != nil {
				t.Fatalf("decode log line: %v", err)
			}
		}
	}
	if record == nil {
		t.Fatalf("server log not relayed; logs:\n%s", buf.String())
	}
	if record["level"] != "WARN" {
		t.Fatalf("expected WARN record, got %v", record["level"])
	}
	if record["logger"] != "db" {
		t.Fatalf("expected logger attr, got %v", record["logger"])
	}
	sess, ok := record["sess"].(map[string]any)
	if !ok || sess["id"] == "" {
		t.Fatalf("expected sess group, got %v", record["sess"])
	}
}

func TestNotifications_PublishedToBroker(t *testing.T) {
	t.Parallel()

	b := memory.New()
	sess, srv := newReadySession(t, WithNotificationBroker(b, ""))
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	// Anchor the subscription so it sees everything published after it,
	// whether the session publishes before or after Subscribe registers.
	anchor, err := b.Publish(ctx, sess.ID(), []byte(`{"jsonrpc":"2.0","method":"anchor"}`))
	if err != nil {
		t.Fatalf("publish anchor: %v", err)
	}

	delivered := make(chan broker.MessageEnvelope, 1)
	go func() {
		_ = b.Subscribe(ctx, sess.ID(), anchor, func(ctx context.Context, env broker.MessageEnvelope) error {
			delivered <- env
			return nil
		})
	}()

	if err := srv.notify(mcp.ResourcesUpdatedNotificationMethod, &mcp.ResourceUpdatedNotification{URI: "file:///x"}); err != nil {
		t.Fatalf("notify: %v", err)
	}

	select {
	case env := <-delivered:
		var m struct {
			Method string                          `json:"method"`
			Params mcp.ResourceUpdatedNotification `json:"params"`
		}
		if err := json.Unmarshal(env.Data, &m); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if m.Method != string(mcp.ResourcesUpdatedNotificationMethod) || m.Params.URI != "file:///x" {
			t.Fatalf("unexpected message %s", env.Data)
		}
	case <-ctx.Done():
		t.Fatal("notification was not published")
	}
}
