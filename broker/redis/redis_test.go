package redis

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ggoodman/mcp-client-go/broker"
	"github.com/ggoodman/mcp-client-go/broker/brokertest"
)

func TestRedisBroker(t *testing.T) {
	testClient := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := testClient.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}
	_ = testClient.Close()

	brokertest.RunBrokerTests(t, func(t *testing.T) broker.Broker {
		client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
		t.Cleanup(func() { _ = client.Close() })
		return New(Config{
			Client:    client,
			KeyPrefix: "test:mcp-client:broker:" + t.Name() + ":",
		})
	})
}
