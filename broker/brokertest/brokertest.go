// Package brokertest is a conformance suite shared by broker implementations.
package brokertest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/ggoodman/mcp-client-go/broker"
)

// BrokerFactory is a function that creates a new broker instance for testing.
type BrokerFactory func(t *testing.T) broker.Broker

// RunBrokerTests runs the complete broker test suite against the provided factory.
func RunBrokerTests(t *testing.T, factory BrokerFactory) {
	t.Run("PublishAndSubscribe", func(t *testing.T) {
		testPublishAndSubscribe(t, factory)
	})
	t.Run("PublishAcrossIdleWindows", func(t *testing.T) {
		testPublishAcrossIdleWindows(t, factory)
	})
	t.Run("ResumeFromLastEventID", func(t *testing.T) {
		testResumeFromLastEventID(t, factory)
	})
	t.Run("MultipleSubscribersToSameNamespace", func(t *testing.T) {
		testMultipleSubscribers(t, factory)
	})
	t.Run("NamespaceIsolation", func(t *testing.T) {
		testNamespaceIsolation(t, factory)
	})
	t.Run("SubscriptionContextCancellation", func(t *testing.T) {
		testSubscriptionContextCancellation(t, factory)
	})
	t.Run("HandlerErrorStopsSubscription", func(t *testing.T) {
		testHandlerErrorStopsSubscription(t, factory)
	})
}

func notification(method string) []byte {
	b, _ := json.Marshal(map[string]any{"jsonrpc": "2.0", "method": method})
	return b
}

func methodOf(t *testing.T, data []byte) string {
	t.Helper()
	var m struct {
		Method string `json:"method"`
	}
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("unmarshal delivered message: %v", err)
	}
	return m.Method
}

// collector subscribes in the background and records deliveries.
type collector struct {
	mu   sync.Mutex
	got  []broker.MessageEnvelope
	done chan error
}

func subscribe(ctx context.Context, b broker.Broker, namespace, lastEventID string) *collector {
	c := &collector{done: make(chan error, 1)}
	go func() {
		c.done <- b.Subscribe(ctx, namespace, lastEventID, func(ctx context.Context, env broker.MessageEnvelope) error {
			c.mu.Lock()
			c.got = append(c.got, env)
			c.mu.Unlock()
			return nil
		})
	}()
	return c
}

func (c *collector) waitFor(t *testing.T, n int) []broker.MessageEnvelope {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for {
		c.mu.Lock()
		got := append([]broker.MessageEnvelope(nil), c.got...)
		c.mu.Unlock()
		if len(got) >= n || time.Now().After(deadline) {
			return got
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func cleanup(t *testing.T, b broker.Broker, namespaces ...string) {
	t.Helper()
	for _, ns := range namespaces {
		if err := b.Cleanup(context.Background(), ns); err != nil {
			t.Errorf("cleanup %s: %v", ns, err)
		}
	}
}

func testPublishAndSubscribe(t *testing.T, factory BrokerFactory) {
	b := factory(t)
	ns := "sess-publish"
	defer cleanup(t, b, ns)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c := subscribe(ctx, b, ns, "")
	// Give the subscription time to start reading.
	time.Sleep(100 * time.Millisecond)

	eventID, err := b.Publish(ctx, ns, notification("notifications/resources/updated"))
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if eventID == "" {
		t.Fatal("expected non-empty event ID")
	}

	got := c.waitFor(t, 1)
	if len(got) != 1 {
		t.Fatalf("expected 1 message, got %d", len(got))
	}
	if got[0].ID != eventID {
		t.Fatalf("expected event ID %s, got %s", eventID, got[0].ID)
	}
	if m := methodOf(t, got[0].Data); m != "notifications/resources/updated" {
		t.Fatalf("unexpected method %s", m)
	}

	cancel()
	if err := <-c.done; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

// testPublishAcrossIdleWindows publishes at intervals that straddle a
// blocking read timing out, so every message must survive the re-read.
func testPublishAcrossIdleWindows(t *testing.T, factory BrokerFactory) {
	b := factory(t)
	ns := "sess-idle"
	defer cleanup(t, b, ns)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	c := subscribe(ctx, b, ns, "")
	time.Sleep(100 * time.Millisecond)

	const n = 8
	var ids []string
	for i := range n {
		time.Sleep(350 * time.Millisecond)
		id, err := b.Publish(ctx, ns, notification(fmt.Sprintf("notifications/idle/%d", i)))
		if err != nil {
			t.Fatalf("publish %d: %v", i, err)
		}
		ids = append(ids, id)
	}

	got := c.waitFor(t, n)
	if len(got) != n {
		t.Fatalf("expected %d messages, got %d", n, len(got))
	}
	for i, env := range got {
		if env.ID != ids[i] {
			t.Fatalf("message %d: expected event ID %s, got %s", i, ids[i], env.ID)
		}
	}
}

func testResumeFromLastEventID(t *testing.T, factory BrokerFactory) {
	b := factory(t)
	ns := "sess-resume"
	defer cleanup(t, b, ns)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	first, err := b.Publish(ctx, ns, notification("notifications/one"))
	if err != nil {
		t.Fatalf("publish first: %v", err)
	}
	second, err := b.Publish(ctx, ns, notification("notifications/two"))
	if err != nil {
		t.Fatalf("publish second: %v", err)
	}

	c := subscribe(ctx, b, ns, first)
	got := c.waitFor(t, 1)
	if len(got) != 1 {
		t.Fatalf("expected 1 message, got %d", len(got))
	}
	if got[0].ID != second {
		t.Fatalf("expected event ID %s, got %s", second, got[0].ID)
	}
	if m := methodOf(t, got[0].Data); m != "notifications/two" {
		t.Fatalf("unexpected method %s", m)
	}
}

func testMultipleSubscribers(t *testing.T, factory BrokerFactory) {
	b := factory(t)
	ns := "sess-fanout"
	defer cleanup(t, b, ns)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c1 := subscribe(ctx, b, ns, "")
	c2 := subscribe(ctx, b, ns, "")
	time.Sleep(100 * time.Millisecond)

	eventID, err := b.Publish(ctx, ns, notification("notifications/message"))
	if err != nil {
		t.Fatalf("publish: %v", err)
	}

	for i, c := range []*collector{c1, c2} {
		got := c.waitFor(t, 1)
		if len(got) != 1 || got[0].ID != eventID {
			t.Fatalf("subscriber %d: unexpected deliveries %v", i+1, got)
		}
	}
}

func testNamespaceIsolation(t *testing.T, factory BrokerFactory) {
	b := factory(t)
	nsA, nsB := "sess-a", "sess-b"
	defer cleanup(t, b, nsA, nsB)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ca := subscribe(ctx, b, nsA, "")
	cb := subscribe(ctx, b, nsB, "")
	time.Sleep(100 * time.Millisecond)

	if _, err := b.Publish(ctx, nsA, notification("notifications/a")); err != nil {
		t.Fatalf("publish a: %v", err)
	}
	if _, err := b.Publish(ctx, nsB, notification("notifications/b")); err != nil {
		t.Fatalf("publish b: %v", err)
	}

	gotA := ca.waitFor(t, 1)
	gotB := cb.waitFor(t, 1)
	// Allow any stray cross-namespace delivery to surface.
	time.Sleep(100 * time.Millisecond)
	gotA = ca.waitFor(t, len(gotA))
	gotB = cb.waitFor(t, len(gotB))

	if len(gotA) != 1 || methodOf(t, gotA[0].Data) != "notifications/a" {
		t.Fatalf("namespace a: unexpected deliveries %v", gotA)
	}
	if len(gotB) != 1 || methodOf(t, gotB[0].Data) != "notifications/b" {
		t.Fatalf("namespace b: unexpected deliveries %v", gotB)
	}
}

func testSubscriptionContextCancellation(t *testing.T, factory BrokerFactory) {
	b := factory(t)
	ns := "sess-timeout"
	defer cleanup(t, b, ns)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	c := subscribe(ctx, b, ns, "")
	select {
	case err := <-c.done:
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("expected context.DeadlineExceeded, got %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("subscription did not end with its context")
	}
}

func testHandlerErrorStopsSubscription(t *testing.T, factory BrokerFactory) {
	b := factory(t)
	ns := "sess-handler-err"
	defer cleanup(t, b, ns)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	expectedErr := fmt.Errorf("handler error")
	done := make(chan error, 1)
	go func() {
		done <- b.Subscribe(ctx, ns, "", func(ctx context.Context, env broker.MessageEnvelope) error {
			return expectedErr
		})
	}()
	time.Sleep(100 * time.Millisecond)

	if _, err := b.Publish(ctx, ns, notification("notifications/x")); err != nil {
		t.Fatalf("publish: %v", err)
	}

	select {
	case err := <-done:
		if !errors.Is(err, expectedErr) {
			t.Fatalf("expected handler error, got %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("subscription did not stop on handler error")
	}
}
