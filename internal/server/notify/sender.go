package notify

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/identityd/internal/logging"
	"github.com/dmitrijs2005/identityd/internal/server/config"
	"github.com/redis/go-redis/v9"
)

const redisStreamMaxLen = 10000

// NewSender builds the Sender selected by cfg.Notifier. The returned close
// function releases any client it opened and is never nil.
func NewSender(ctx context.Context, cfg *config.Config, logger logging.Logger) (Sender, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Notifier {
	case "", "log":
		return NewLogSender(logger), noop, nil

	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, noop, fmt.Errorf("redis ping: %w", err)
		}
		return NewRedisStreamSender(client, cfg.RedisStream, redisStreamMaxLen), client.Close, nil

	case "s3":
		client, err := NewS3Client(ctx, S3Config{
			RootUser:     cfg.S3RootUser,
			RootPassword: cfg.S3RootPassword,
			Region:       cfg.S3Region,
			BaseEndpoint: cfg.S3BaseEndpoint,
		})
		if err != nil {
			return nil, noop, err
		}
		return NewS3OutboxSender(client, cfg.S3Bucket, cfg.S3Prefix), noop, nil

	default:
		return nil, noop, fmt.Errorf("unknown notifier %q", cfg.Notifier)
	}
}
