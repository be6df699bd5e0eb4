// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package tracker

import (
	"sync"
	"time"

	"github.com/luxfi/gas-station/accesscontrol"
)

// entry is one aggregate bucket: a running sum and the deadline past
// which it is treated as expired (the in-memory analogue of a Redis
// key's TTL).
type entry struct {
	sum      int64
	deadline time.Time
}

// MemoryStore is an in-process accesscontrol.StatsTracker, used by
// tests that exercise rule evaluation without a Redis dependency. Its
// semantics mirror RedisStore's Lua script: add delta, clamp at zero,
// refresh the window deadline, return the new sum.
type MemoryStore struct {
	mu      sync.Mutex
	buckets map[string]*entry
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		buckets: make(map[string]*entry),
		now:     time.Now,
	}
}

// UpdateAggr implements accesscontrol.StatsTracker.
func (m *MemoryStore) UpdateAggr(ruleMeta map[string]interface{}, spec accesscontrol.AggregateSpec, delta int64) (uint64, error) {
	key, err := accesscontrol.HashRuleMeta(ruleMeta)
	if err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	e, ok := m.buckets[key]
	if !ok || now.After(e.deadline) {
		e = &entry{}
		m.buckets[key] = e
	}

	e.sum += delta
	if e.sum < 0 {
		e.sum = 0
	}
	e.deadline = now.Add(spec.Window)
	return uint64(e.sum), nil
}
