// Package redis implements broker.Broker on Redis Streams so that several
// processes can observe a session's notifications.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/redis/go-redis/v9"

	"github.com/ggoodman/mcp-client-go/broker"
)

// Broker is a Redis Streams-based implementation of broker.Broker. Each
// namespace maps to one stream; subscribers read without consumer groups so
// every subscriber sees every message.
type Broker struct {
	client    redis.UniversalClient
	keyPrefix string
	maxLen    int64
}

// Config contains configuration options for the Redis broker.
type Config struct {
	// Client is the Redis client to use. If nil, one is created for Addr.
	Client redis.UniversalClient
	// Addr like "localhost:6379". ENV: REDIS_ADDR
	Addr string `env:"REDIS_ADDR,default=localhost:6379"`
	// KeyPrefix is prepended to all keys. ENV: MCP_BROKER_KEY_PREFIX
	KeyPrefix string `env:"MCP_BROKER_KEY_PREFIX,default=mcp:client:broker:"`
	// MaxLen approximately caps each stream. Zero means unbounded.
	// ENV: MCP_BROKER_MAX_LEN
	MaxLen int64 `env:"MCP_BROKER_MAX_LEN,default=10000"`
}

// New creates a new Redis-based broker instance.
func New(config Config) *Broker {
	client := config.Client
	if client == nil {
		addr := config.Addr
		if addr == "" {
			addr = "localhost:6379"
		}
		client = redis.NewClient(&redis.Options{Addr: addr})
	}

	keyPrefix := config.KeyPrefix
	if keyPrefix == "" {
		keyPrefix = "mcp:client:broker:"
	}

	return &Broker{client: client, keyPrefix: keyPrefix, maxLen: config.MaxLen}
}

// NewFromEnv builds a Broker using envdecode to populate Config and checks
// connectivity.
func NewFromEnv(ctx context.Context) (*Broker, error) {
	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, fmt.Errorf("decode redis broker config: %w", err)
	}
	b := New(cfg)
	if err := b.client.Ping(ctx).Err(); err != nil {
		_ = b.client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return b, nil
}

// Close closes the Redis connection.
func (b *Broker) Close() error {
	return b.client.Close()
}

// Publish implements broker.Broker.
func (b *Broker) Publish(ctx context.Context, namespace string, message []byte) (string, error) {
	streamKey := b.streamKey(namespace)

	args := &redis.XAddArgs{
		Stream: streamKey,
		Values: map[string]any{"data": message},
	}
	if b.maxLen > 0 {
		args.MaxLen = b.maxLen
		args.Approx = true
	}
	eventID, err := b.client.XAdd(ctx, args).Result()
	if err != nil {
		return "", fmt.Errorf("failed to publish message to stream %s: %w", streamKey, err)
	}
	return eventID, nil
}

// Subscribe implements broker.Broker.
func (b *Broker) Subscribe(ctx context.Context, namespace string, lastEventID string, handler broker.MessageHandler) error {
	streamKey := b.streamKey(namespace)

	// "$" would be re-evaluated by every XREAD; resolve it once.
	startID := lastEventID
	if startID == "" {
		var err error
		if startID, err = b.latestID(ctx, streamKey); err != nil {
			return err
		}
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		streams, err := b.client.XRead(ctx, &redis.XReadArgs{
			Streams: []string{streamKey, startID},
			Count:   16,
			Block:   time.Second,
		}).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("failed to read from stream %s: %w", streamKey, err)
		}

		for _, stream := range streams {
			for _, message := range stream.Messages {
				startID = message.ID

				var data []byte
				switch v := message.Values["data"].(type) {
				case string:
					data = []byte(v)
				case []byte:
					data = v
				default:
					// Not written by Publish; skip it.
					continue
				}

				if err := handler(ctx, broker.MessageEnvelope{ID: message.ID, Data: data}); err != nil {
					return err
				}
			}
		}
	}
}

// latestID returns the ID of the newest entry in the stream, or "0-0" when
// the stream is empty or missing.
func (b *Broker) latestID(ctx context.Context, streamKey string) (string, error) {
	msgs, err := b.client.XRevRangeN(ctx, streamKey, "+", "-", 1).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return "", fmt.Errorf("failed to read latest entry of stream %s: %w", streamKey, err)
	}
	if len(msgs) == 0 {
		return "0-0", nil
	}
	return msgs[0].ID, nil
}

// Cleanup implements broker.Broker.
func (b *Broker) Cleanup(ctx context.Context, namespace string) error {
	streamKey := b.streamKey(namespace)
	if err := b.client.Del(ctx, streamKey).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("failed to cleanup namespace %s: %w", namespace, err)
	}
	return nil
}

func (b *Broker) streamKey(namespace string) string {
	return b.keyPrefix + "stream:" + namespace
}

var _ broker.Broker = (*Broker)(nil)
