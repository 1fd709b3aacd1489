package roots

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ggoodman/mcp-client-go/mcp"
)

func TestStatic_SetNotifies(t *testing.T) {
	t.Parallel()

	s := NewStatic(mcp.Root{URI: "file:///a", Name: "a"})
	sub := s.Subscriber()

	got, err := s.ListRoots(context.Background())
	if err != nil || len(got) != 1 || got[0].URI != "file:///a" {
		t.Fatalf("unexpected roots %v err=%v", got, err)
	}

	s.Set(mcp.Root{URI: "file:///b"})
	select {
	case <-sub:
	case <-time.After(time.Second):
		t.Fatal("expected change signal")
	}
	got, _ = s.ListRoots(context.Background())
	if len(got) != 1 || got[0].URI != "file:///b" {
		t.Fatalf("unexpected roots after set: %v", got)
	}
}

func TestChangeNotifier_CloseClosesSubscribers(t *testing.T) {
	t.Parallel()

	var cn ChangeNotifier
	sub := cn.Subscriber()
	cn.Close()
	if _, ok := <-sub; ok {
		t.Fatal("expected closed channel")
	}
	if _, ok := <-cn.Subscriber(); ok {
		t.Fatal("subscriber after close must be closed")
	}
	cn.Notify() // no panic after close
}

func TestChangeNotifier_Unsubscribe(t *testing.T) {
	t.Parallel()

	var cn ChangeNotifier
	gone := cn.Subscriber()
	kept := cn.Subscriber()
	cn.Unsubscribe(gone)
	cn.Unsubscribe(gone) // unknown channels are ignored

	cn.Notify()
	select {
	case <-gone:
		t.Fatal("unsubscribed channel was signalled")
	default:
	}
	select {
	case <-kept:
	default:
		t.Fatal("remaining subscriber was not signalled")
	}

	cn.subscribersMu.RLock()
	n := len(cn.subscribers)
	cn.subscribersMu.RUnlock()
	if n != 1 {
		t.Fatalf("expected 1 subscriber, got %d", n)
	}
}

func TestDirRoot(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	r, err := DirRoot(dir)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(r.URI, "file://") || r.Name != filepath.Base(dir) {
		t.Fatalf("unexpected root %#v", r)
	}
}

func TestWatcher_ListsExistingDirsAndSignalsCreation(t *testing.T) {
	parent := t.TempDir()
	existing := filepath.Join(parent, "existing")
	if err := os.Mkdir(existing, 0o755); err != nil {
		t.Fatal(err)
	}
	later := filepath.Join(parent, "later")

	w, err := NewWatcher(nil, existing, later)
	if err != nil {
		t.Fatal(err)
	}
	got, err := w.ListRoots(context.Background())
	if err != nil || len(got) != 1 || got[0].Name != "existing" {
		t.Fatalf("unexpected roots %v err=%v", got, err)
	}

	sub := w.Subscriber()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	runErr := make(chan error, 1)
	go func() { runErr <- w.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for !w.Watching() {
		if time.Now().After(deadline) {
			t.Fatal("watcher did not start")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if err := os.Mkdir(later, 0o755); err != nil {
		t.Fatal(err)
	}
	select {
	case <-sub:
	case <-time.After(3 * time.Second):
		t.Fatal("expected change signal after creating a root dir")
	}
	got, _ = w.ListRoots(context.Background())
	if len(got) != 2 {
		t.Fatalf("expected 2 roots, got %v", got)
	}

	cancel()
	if err := <-runErr; err != nil {
		t.Fatalf("run: %v", err)
	}
}
