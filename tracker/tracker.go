// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package tracker implements the sliding-window aggregate store that
// backs every rule's gas_usage predicate: a single atomic "add delta,
// clamp at zero, refresh TTL, return new sum" operation addressed by a
// (sponsor, rule-fingerprint) key pair.
package tracker

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/luxfi/log"
	"github.com/redis/go-redis/v9"

	"github.com/luxfi/gas-station/accesscontrol"
)

//go:embed lua/aggr_increment_sum.lua
var incrementSumScriptSource string

var incrementSumScript = redis.NewScript(incrementSumScriptSource)

// RedisStore is a Redis-backed accesscontrol.StatsTracker. It is safe
// for concurrent use; each UpdateAggr call is one round-trip executing
// the embedded Lua script atomically on the store.
type RedisStore struct {
	client   *redis.Client
	ctx      context.Context
	sponsor  string
	aggrType string
}

// NewRedisStore builds a store scoped to sponsor, the identity that
// partitions counters across independent service instances sharing the
// same Redis deployment (spec.md §6.4).
func NewRedisStore(client *redis.Client, sponsor string) *RedisStore {
	return &RedisStore{client: client, ctx: context.Background(), sponsor: sponsor, aggrType: "sum"}
}

// WithContext returns a copy of s bound to ctx, used for the
// per-request deadline the ambient RPC call carries.
func (s RedisStore) WithContext(ctx context.Context) *RedisStore {
	s.ctx = ctx
	return &s
}

// UpdateAggr implements accesscontrol.StatsTracker.
func (s *RedisStore) UpdateAggr(ruleMeta map[string]interface{}, spec accesscontrol.AggregateSpec, delta int64) (uint64, error) {
	hash, err := accesscontrol.HashRuleMeta(ruleMeta)
	if err != nil {
		return 0, fmt.Errorf("tracker: failed to hash rule meta: %w", err)
	}
	key := fmt.Sprintf("%s:gas-usage:%s:%s", s.sponsor, s.aggrType, hash)
	windowSeconds := int64(spec.Window.Seconds())

	result, err := incrementSumScript.Run(s.ctx, s.client, []string{key}, delta, windowSeconds).Result()
	if err != nil {
		return 0, fmt.Errorf("tracker: update_aggr failed for key %s: %w", key, err)
	}

	newSum, err := toUint64(result)
	if err != nil {
		return 0, fmt.Errorf("tracker: unexpected update_aggr result for key %s: %w", key, err)
	}
	log.Debug("tracker: updated aggregate", "key", key, "delta", delta, "sum", newSum)
	return newSum, nil
}

func toUint64(v interface{}) (uint64, error) {
	switch n := v.(type) {
	case int64:
		if n < 0 {
			return 0, nil
		}
		return uint64(n), nil
	default:
		return 0, fmt.Errorf("expected integer reply, got %T", v)
	}
}
