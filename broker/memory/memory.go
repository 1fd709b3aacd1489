// Package memory provides an in-memory implementation of broker.Broker. It is
// suitable for single-process use and tests.
package memory

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/ggoodman/mcp-client-go/broker"
)

// Broker implements broker.Broker with in-memory history and channels.
type Broker struct {
	mu           sync.Mutex
	namespaces   map[string]*namespace
	eventCounter atomic.Int64
}

type namespace struct {
	mu          sync.Mutex
	messages    []broker.MessageEnvelope
	subscribers map[chan broker.MessageEnvelope]struct{}
	closed      bool
}

// New creates a new memory-based broker instance.
func New() *Broker {
	return &Broker{namespaces: make(map[string]*namespace)}
}

func (b *Broker) namespace(name string) *namespace {
	b.mu.Lock()
	defer b.mu.Unlock()
	ns, ok := b.namespaces[name]
	if !ok {
		ns = &namespace{subscribers: make(map[chan broker.MessageEnvelope]struct{})}
		b.namespaces[name] = ns
	}
	return ns
}

// Publish implements broker.Broker.
func (b *Broker) Publish(ctx context.Context, namespaceName string, message []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	ns := b.namespace(namespaceName)
	ns.mu.Lock()
	defer ns.mu.Unlock()
	if ns.closed {
		return "", fmt.Errorf("namespace %q has been cleaned up", namespaceName)
	}

	env := broker.MessageEnvelope{
		ID:   strconv.FormatInt(b.eventCounter.Add(1), 10),
		Data: append([]byte(nil), message...),
	}
	ns.messages = append(ns.messages, env)
	for ch := range ns.subscribers {
		select {
		case ch <- env:
		default:
			// Slow subscriber; it misses this message rather than blocking
			// the publisher.
		}
	}
	return env.ID, nil
}

// Subscribe implements broker.Broker.
func (b *Broker) Subscribe(ctx context.Context, namespaceName string, lastEventID string, handler broker.MessageHandler) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	ns := b.namespace(namespaceName)
	ch := make(chan broker.MessageEnvelope, 100)

	ns.mu.Lock()
	if ns.closed {
		ns.mu.Unlock()
		return fmt.Errorf("namespace %q has been cleaned up", namespaceName)
	}
	var backlog []broker.MessageEnvelope
	if lastEventID != "" {
		for i, msg := range ns.messages {
			if msg.ID == lastEventID {
				backlog = append(backlog, ns.messages[i+1:]...)
				break
			}
		}
	}
	ns.subscribers[ch] = struct{}{}
	ns.mu.Unlock()

	defer func() {
		ns.mu.Lock()
		delete(ns.subscribers, ch)
		ns.mu.Unlock()
	}()

	for _, env := range backlog {
		if err := handler(ctx, env); err != nil {
			return err
		}
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case env, ok := <-ch:
			if !ok {
				return nil
			}
			if err := handler(ctx, env); err != nil {
				return err
			}
		}
	}
}

// Cleanup implements broker.Broker.
func (b *Broker) Cleanup(ctx context.Context, namespaceName string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.Lock()
	ns, ok := b.namespaces[namespaceName]
	delete(b.namespaces, namespaceName)
	b.mu.Unlock()
	if !ok {
		return nil
	}

	ns.mu.Lock()
	defer ns.mu.Unlock()
	ns.closed = true
	for ch := range ns.subscribers {
		close(ch)
		delete(ns.subscribers, ch)
	}
	ns.messages = nil
	return nil
}

var _ broker.Broker = (*Broker)(nil)
