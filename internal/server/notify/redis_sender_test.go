package notify

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})
	return mr, rdb
}

func TestRedisStreamSender_Send(t *testing.T) {
	_, rdb := newTestRedis(t)
	ctx := context.Background()

	s := NewRedisStreamSender(rdb, "identity:mail", 100)
	msg := Message{
		ID: "m-1", Kind: KindRecoveryCode, From: "f@x.com", To: "t@x.com",
		Subject: "code", HTML: "<h2>123456</h2>", CreatedAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, s.Send(ctx, msg))

	entries, err := rdb.XRange(ctx, "identity:mail", "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, entries, 1)

	v := entries[0].Values
	assert.Equal(t, "m-1", v["id"])
	assert.Equal(t, KindRecoveryCode, v["kind"])
	assert.Equal(t, "t@x.com", v["to"])
	assert.Equal(t, "<h2>123456</h2>", v["html"])
	assert.Equal(t, "2025-01-01T00:00:00Z", v["created_at"])
}

// deadRedisAddr returns an address nothing listens on any more.
func deadRedisAddr(t *testing.T) string {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	addr := mr.Addr()
	mr.Close()
	return addr
}

func TestRedisStreamSender_Error(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: deadRedisAddr(t), MaxRetries: -1})
	defer rdb.Close()

	s := NewRedisStreamSender(rdb, "identity:mail", 0)
	err := s.Send(context.Background(), Message{ID: "m-1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis xadd identity:mail")
}
