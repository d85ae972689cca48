package store

import (
	"context"
	"hash/fnv"
	"sync"
	"time"
)

const shardCount = 32

type counterEntry struct {
	value      int64
	expiration time.Time
}

type shard struct {
	mu   sync.Mutex
	data map[string]*counterEntry
}

// MemoryStore keeps counters in a sharded in-process map. Sharding keeps
// unrelated keys from contending on a single lock; callers for the same key
// serialize on that key's shard, which is what makes the increment atomic.
type MemoryStore struct {
	shards    [shardCount]*shard
	done      chan struct{}
	closeOnce sync.Once
}

func NewMemoryStore() *MemoryStore {
	ms := &MemoryStore{done: make(chan struct{})}
	for i := range ms.shards {
		ms.shards[i] = &shard{data: make(map[string]*counterEntry)}
	}

	// Background cleanup of expired entries
	go ms.cleanupExpired()

	return ms
}

func (ms *MemoryStore) shardFor(key string) *shard {
	h := fnv.New32a()
	h.Write([]byte(key))
	return ms.shards[h.Sum32()%shardCount]
}

func (ms *MemoryStore) IncrementAndGet(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	sh := ms.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	now := time.Now()
	e, exists := sh.data[key]
	if !exists || now.After(e.expiration) {
		e = &counterEntry{expiration: now.Add(ttl)}
		sh.data[key] = e
	}
	e.value++
	return e.value, nil
}

func (ms *MemoryStore) Peek(ctx context.Context, key string) (int64, error) {
	sh := ms.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	e, exists := sh.data[key]
	if !exists || time.Now().After(e.expiration) {
		return 0, nil
	}
	return e.value, nil
}

func (ms *MemoryStore) Reset(ctx context.Context, key string) error {
	sh := ms.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	delete(sh.data, key)
	return nil
}

// Background cleanup of expired entries (runs every 5 minutes)
func (ms *MemoryStore) cleanupExpired() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ms.done:
			return
		case <-ticker.C:
			now := time.Now()
			for _, sh := range ms.shards {
				sh.mu.Lock()
				for key, e := range sh.data {
					if now.After(e.expiration) {
						delete(sh.data, key)
					}
				}
				sh.mu.Unlock()
			}
		}
	}
}

// Close stops the cleanup goroutine. Safe to call multiple times.
func (ms *MemoryStore) Close() {
	ms.closeOnce.Do(func() { close(ms.done) })
}
