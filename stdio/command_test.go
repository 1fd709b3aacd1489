package stdio

import (
	"context"
	"os/exec"
	"testing"
	"time"
)

func TestStartCommand_EchoRoundTrip(t *testing.T) {
	if _, err := exec.LookPath("cat"); err != nil {
		t.Skip("cat not available")
	}

	p, err := StartCommand(context.Background(), CommandConfig{Command: "cat"})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	defer p.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := p.WriteMessage(ctx, []byte(`{"jsonrpc":"2.0","method":"ping","id":1}`)); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := p.ReadMessage(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(got) != `{"jsonrpc":"2.0","method":"ping","id":1}` {
		t.Fatalf("unexpected echo %s", got)
	}

	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	select {
	case <-p.Done():
	case <-time.After(3 * time.Second):
		t.Fatal("process did not exit after close")
	}
}

func TestStartCommand_RequiresCommand(t *testing.T) {
	if _, err := StartCommand(context.Background(), CommandConfig{}); err == nil {
		t.Fatal("expected error")
	}
}
