package app

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"fulfillment/internal/config"
)

func TestNewRedisClient_AppliesPoolSettings(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := NewRedisClient(context.Background(), config.RedisConfig{
		Addr:         mr.Addr(),
		PoolSize:     7,
		DialTimeout:  500 * time.Millisecond,
		ReadTimeout:  250 * time.Millisecond,
		WriteTimeout: 250 * time.Millisecond,
	}, nil)
	if err != nil {
		t.Fatalf("expected connection, got: %v", err)
	}
	defer client.Close()

	opts := client.Options()
	if opts.PoolSize != 7 {
		t.Errorf("expected pool size 7, got %d", opts.PoolSize)
	}
	if opts.DialTimeout != 500*time.Millisecond || opts.ReadTimeout != 250*time.Millisecond || opts.WriteTimeout != 250*time.Millisecond {
		t.Errorf("unexpected timeouts: dial %v read %v write %v", opts.DialTimeout, opts.ReadTimeout, opts.WriteTimeout)
	}
}

func TestNewRedisClient_PingFailure(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := NewRedisClient(context.Background(), config.RedisConfig{
		Addr:        addr,
		DialTimeout: 100 * time.Millisecond,
	}, nil)
	if err == nil {
		t.Fatal("expected ping error for a closed server")
	}
}

func TestKeyspace(t *testing.T) {
	ctx := context.Background()

	testCases := []struct {
		name string
		cmd  redis.Cmder
		want string
	}{
		{name: "payment session", cmd: redis.NewStringCmd(ctx, "getdel", "payment:session:order_1"), want: "payment"},
		{name: "idempotency", cmd: redis.NewStringCmd(ctx, "get", "idempotency:abc"), want: "idempotency"},
		{name: "lock", cmd: redis.NewBoolCmd(ctx, "setnx", "lock:abc", "1"), want: "lock"},
		{name: "no prefix", cmd: redis.NewStringCmd(ctx, "get", "plain"), want: "redis"},
		{name: "no key", cmd: redis.NewStatusCmd(ctx, "ping"), want: "redis"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := keyspace(tc.cmd); got != tc.want {
				t.Errorf("expected %s, got %s", tc.want, got)
			}
		})
	}
}
