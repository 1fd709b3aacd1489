package client

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ggoodman/mcp-client-go/mcp"
)

func TestConfigFromEnv_Defaults(t *testing.T) {
	t.Setenv("MCP_CLIENT_NAME", "")
	t.Setenv("MCP_CLIENT_VERSION", "")
	t.Setenv("MCP_REQUEST_TIMEOUT", "")
	t.Setenv("MCP_PROTOCOL_VERSION", "")

	cfg, err := ConfigFromEnv()
	if err != nil {
		t.Fatalf("ConfigFromEnv: %v", err)
	}
	if cfg.ClientName != DefaultClientName || cfg.ClientVersion != DefaultClientVersion {
		t.Fatalf("unexpected client info %+v", cfg)
	}
	if cfg.RequestTimeout != 0 {
		t.Fatalf("expected no timeout, got %s", cfg.RequestTimeout)
	}
	if cfg.ProtocolVersion != mcp.LatestProtocolVersion {
		t.Fatalf("expected latest protocol version, got %q", cfg.ProtocolVersion)
	}
}

func TestConfigFromEnv_Overrides(t *testing.T) {
	t.Setenv("MCP_CLIENT_NAME", "inspector")
	t.Setenv("MCP_CLIENT_VERSION", "2.0.0")
	t.Setenv("MCP_REQUEST_TIMEOUT", "1500ms")
	t.Setenv("MCP_PROTOCOL_VERSION", "2025-03-26")

	cfg, err := ConfigFromEnv()
	if err != nil {
		t.Fatalf("ConfigFromEnv: %v", err)
	}
	want := Config{
		ClientName:      "inspector",
		ClientVersion:   "2.0.0",
		RequestTimeout:  1500 * time.Millisecond,
		ProtocolVersion: "2025-03-26",
	}
	if cfg != want {
		t.Fatalf("got %+v, want %+v", cfg, want)
	}
}

func TestConfigFromEnv_RejectsUnsupportedProtocolVersion(t *testing.T) {
	t.Setenv("MCP_PROTOCOL_VERSION", "2020-01-01")

	_, err := ConfigFromEnv()
	if !errors.Is(err, ErrUnsupportedProtocolVersion) {
		t.Fatalf("expected ErrUnsupportedProtocolVersion, got %v", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	if err := (Config{RequestTimeout: -time.Second}).Validate(); err == nil {
		t.Fatal("expected error for negative timeout")
	}
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config: %v", err)
	}
}

func TestWithConfig_FillsBlanks(t *testing.T) {
	t.Parallel()

	sess := New(&scriptedReader{}, discardWriter{}, WithConfig(Config{RequestTimeout: time.Second}))
	if sess.cfg.ClientName != DefaultClientName || sess.cfg.ProtocolVersion != mcp.LatestProtocolVersion {
		t.Fatalf("blanks not filled: %+v", sess.cfg)
	}
	if sess.cfg.RequestTimeout != time.Second {
		t.Fatalf("timeout lost: %+v", sess.cfg)
	}
}

func TestWithConfig_NegativeTimeoutIsDisabled(t *testing.T) {
	t.Parallel()

	sess, srv := newReadySession(t, WithConfig(Config{RequestTimeout: -time.Second}))
	if sess.cfg.RequestTimeout != 0 {
		t.Fatalf("expected no timeout, got %v", sess.cfg.RequestTimeout)
	}

	errc := make(chan error, 1)
	go func() { errc <- sess.Ping(context.Background()) }()
	m, err := srv.expect(mcp.PingMethod)
	if err != nil {
		t.Fatalf("server read: %v", err)
	}
	if err := srv.reply(m.ID, nil); err != nil {
		t.Fatalf("reply: %v", err)
	}
	if err := <-errc; err != nil {
		t.Fatalf("ping: %v", err)
	}
}
