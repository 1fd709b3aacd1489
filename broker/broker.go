// Package broker fans out messages the client receives from its peer to
// interested subscribers, grouped by namespace (one namespace per session).
// Sessions publish every inbound notification when configured with
// client.WithNotificationBroker; other goroutines or processes subscribe.
package broker

import (
	"context"
)

// Broker handles ordered publication and delivery of messages within a
// namespace.
type Broker interface {
	// Publish stores message in namespace and returns its event ID.
	Publish(ctx context.Context, namespace string, message []byte) (eventID string, err error)

	// Subscribe delivers namespace messages to handler until ctx is done, the
	// handler returns an error, or the namespace is cleaned up. If
	// lastEventID is empty, delivery starts with the next published message;
	// otherwise it resumes after that ID.
	Subscribe(ctx context.Context, namespace string, lastEventID string, handler MessageHandler) error

	// Cleanup removes all resources associated with a namespace.
	Cleanup(ctx context.Context, namespace string) error
}

// MessageHandler processes one delivered message. Returning an error stops
// the subscription with that error.
type MessageHandler func(ctx context.Context, envelope MessageEnvelope) error

// MessageEnvelope wraps a message with metadata for ordered delivery.
type MessageEnvelope struct {
	// ID is a unique, monotonically increasing identifier within the namespace.
	ID string `json:"id"`
	// Data is the raw JSON-RPC message.
	Data []byte `json:"data"`
}
