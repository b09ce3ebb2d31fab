package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStreamSender appends messages to a Redis stream for a mail worker to
// deliver. The stream is capped approximately at maxLen entries.
type RedisStreamSender struct {
	client redis.Cmdable
	stream string
	maxLen int64
}

func NewRedisStreamSender(client redis.Cmdable, stream string, maxLen int64) *RedisStreamSender {
	return &RedisStreamSender{client: client, stream: stream, maxLen: maxLen}
}

func (s *RedisStreamSender) Send(ctx context.Context, msg Message) error {
	args := &redis.XAddArgs{
		Stream: s.stream,
		Values: map[string]any{
			"id":         msg.ID,
			"kind":       msg.Kind,
			"from":       msg.From,
			"to":         msg.To,
			"subject":    msg.Subject,
			"html":       msg.HTML,
			"created_at": msg.CreatedAt.Format(time.RFC3339Nano),
		},
	}
	if s.maxLen > 0 {
		args.MaxLen = s.maxLen
		args.Approx = true
	}

	if err := s.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("redis xadd %s: %w", s.stream, err)
	}
	return nil
}
