// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package tracker

import (
	"context"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

// RedisStore's UpdateAggr itself requires a live Redis to exercise (the
// embedded Lua script runs server-side); these tests cover the parts of
// the type that don't, leaving the round-trip to manual/integration
// testing against a real deployment.

func TestToUint64AcceptsNonNegativeIntegerReply(t *testing.T) {
	v, err := toUint64(int64(42))
	require.NoError(t, err)
	require.Equal(t, uint64(42), v)
}

func TestToUint64ClampsNegativeReply(t *testing.T) {
	v, err := toUint64(int64(-5))
	require.NoError(t, err)
	require.Equal(t, uint64(0), v)
}

func TestToUint64RejectsNonIntegerReply(t *testing.T) {
	_, err := toUint64("not-a-number")
	require.Error(t, err)
}

func TestNewRedisStoreWithContextCopiesRatherThanMutatesOriginal(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	defer client.Close()

	store := NewRedisStore(client, "sponsor-a")
	bound := store.WithContext(context.Background())
	require.NotSame(t, store, bound)
}
