package capcache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Memory is the in-process store for redis-less deployments. Entries expire
// on the store-wide TTL; per-call TTLs below it only shorten freshness
// observed by Get.
type Memory struct {
	lru *expirable.LRU[string, memEntry]
}

type memEntry struct {
	doc       []byte
	expiresAt time.Time
}

func NewMemory(size int, maxTTL time.Duration) *Memory {
	if size <= 0 {
		size = 256
	}
	return &Memory{lru: expirable.NewLRU[string, memEntry](size, nil, maxTTL)}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	e, ok := m.lru.Get(key)
	if !ok {
		return nil, false, nil
	}
	if !e.expiresAt.IsZero() && time.Now().After(e.expiresAt) {
		m.lru.Remove(key)
		return nil, false, nil
	}
	return e.doc, true, nil
}

func (m *Memory) Set(_ context.Context, key string, doc []byte, ttl time.Duration) error {
	var exp time.Time
	if ttl > 0 {
		exp = time.Now().Add(ttl)
	}
	m.lru.Add(key, memEntry{doc: doc, expiresAt: exp})
	return nil
}

func (m *Memory) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		m.lru.Remove(k)
	}
	return nil
}

func (m *Memory) Close() error { return nil }
