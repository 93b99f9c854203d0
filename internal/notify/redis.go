package notify

import (
	"context"
	"fmt"

	"github.com/nathanyu/account-ledger/internal/domain"
	"github.com/redis/go-redis/v9"
)

// DefaultStream is the Redis stream transfer events are appended to.
const DefaultStream = "ledger.events"

// RedisNotifier appends transfer events to a Redis stream.
type RedisNotifier struct {
	client *redis.Client
	stream string
	maxLen int64
}

// NewRedisNotifier creates a notifier writing to stream, trimmed to roughly
// maxLen entries when maxLen is positive.
func NewRedisNotifier(client *redis.Client, stream string, maxLen int64) *RedisNotifier {
	if stream == "" {
		stream = DefaultStream
	}
	return &RedisNotifier{client: client, stream: stream, maxLen: maxLen}
}

// NotifyAboutTransfer implements Notifier
func (n *RedisNotifier) NotifyAboutTransfer(ctx context.Context, event domain.TransferEvent) error {
	data, err := domain.SerializeEvent(event)
	if err != nil {
		return fmt.Errorf("failed to serialize event: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: n.stream,
		Values: map[string]any{
			"type":       event.Type,
			"accountId":  event.AccountID,
			"transferId": event.TransferID,
			"event":      data,
		},
	}
	if n.maxLen > 0 {
		args.MaxLen = n.maxLen
		args.Approx = true
	}

	if _, err := n.client.XAdd(ctx, args).Result(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}
