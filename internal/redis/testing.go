// Package redis provides helpers shared by tests that run against a live
// Redis instance.
package redis

import (
	"context"
	"flag"
	"testing"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/require"
)

var (
	redisAddr = flag.String(
		"redis-addr",
		"redis:6379",
		"address of redis instance to be used for integration testing",
	)
	redisPassword = flag.String(
		"redis-password",
		"",
		"password to access redis instance to be used for integration testing",
	)
)

// InitSuite connects to the integration Redis instance and flushes it once
// the test completes.
func InitSuite(ctx context.Context, t *testing.T) *Suite {
	t.Helper()

	rdb := redis.NewClient(&redis.Options{
		Addr:     *redisAddr,
		Password: *redisPassword,
	})
	err := rdb.Ping(ctx).Err()
	require.Nil(t, err)

	t.Cleanup(func() {
		_ = rdb.FlushDB(context.Background()).Err()
		_ = rdb.Close()
	})

	return &Suite{Redis: rdb}
}

type Suite struct {
	Redis *redis.Client
}
