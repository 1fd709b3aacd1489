package logctx

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
)

func TestHandler_AddsSessionAndRPCGroups(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := NewLogger(slog.New(slog.NewJSONHandler(&buf, nil)))

	ctx := WithSessionData(context.Background(), &SessionData{
		SessionID:       "s-1",
		State:           func() string { return "ready" },
		ProtocolVersion: func() string { return "2025-06-18" },
	})
	ctx = WithRPCMessage(ctx, &RPCMessage{Method: "ping", ID: "4", Type: "request"})
	log.InfoContext(ctx, "session.test")

	var rec struct {
		Msg  string            `json:"msg"`
		Sess map[string]string `json:"sess"`
		RPC  map[string]string `json:"rpc"`
	}
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("decode log line: %v (%s)", err, buf.String())
	}
	if rec.Sess["id"] != "s-1" || rec.Sess["state"] != "ready" || rec.Sess["protocol_version"] != "2025-06-18" {
		t.Fatalf("unexpected sess group: %#v", rec.Sess)
	}
	if rec.RPC["method"] != "ping" || rec.RPC["id"] != "4" {
		t.Fatalf("unexpected rpc group: %#v", rec.RPC)
	}
}

func TestNewLogger_Idempotent(t *testing.T) {
	t.Parallel()

	l := NewLogger(nil)
	if NewLogger(l) != l {
		t.Fatalf("expected wrapping an already wrapped logger to return it unchanged")
	}
}
