package attestation

import (
	"sync"
	"time"

	"github.com/bizra/consensus/crypto"
)

// replayShardCount is the number of independently-mutexed shards the
// nonce cache is split across, keyed by the first byte of the attester
// id's hash. Sized so that lock contention under concurrent submission
// from many distinct attesters stays negligible.
const replayShardCount = 256

// ReplayWindow bounds how long a (attester, nonce) pair is remembered.
// It matches MaxTimeWindow since no attestation's time_window can span
// longer than that before being rejected outright.
const ReplayWindow = MaxTimeWindow

type replayEntry struct {
	seenAt time.Time
}

type replayShard struct {
	mu      sync.Mutex
	entries map[string]replayEntry
}

// ReplayCache rejects attestations that reuse a (attester.id, nonce) pair
// already seen within ReplayWindow.
type ReplayCache struct {
	shards [replayShardCount]*replayShard
}

// NewReplayCache returns an empty cache.
func NewReplayCache() *ReplayCache {
	c := &ReplayCache{}
	for i := range c.shards {
		c.shards[i] = &replayShard{entries: make(map[string]replayEntry)}
	}
	return c
}

func (c *ReplayCache) shardFor(attesterID string) *replayShard {
	h := crypto.Hash([]byte(attesterID))
	return c.shards[h[0]]
}

// CheckAndStore returns ErrReplayedNonce if (attesterID, nonce) was
// already recorded within ReplayWindow of now; otherwise it records the
// pair and returns nil. Entries older than ReplayWindow are evicted
// lazily as the shard they live in is touched.
func (c *ReplayCache) CheckAndStore(attesterID, nonce string, now time.Time) error {
	shard := c.shardFor(attesterID)
	key := attesterID + ":" + nonce

	shard.mu.Lock()
	defer shard.mu.Unlock()

	if entry, ok := shard.entries[key]; ok {
		if now.Sub(entry.seenAt) <= ReplayWindow {
			return ErrReplayedNonce
		}
		delete(shard.entries, key)
	}

	shard.entries[key] = replayEntry{seenAt: now}
	c.evictLocked(shard, now)
	return nil
}

// evictLocked drops entries older than ReplayWindow from shard. Callers
// must hold shard.mu.
func (c *ReplayCache) evictLocked(shard *replayShard, now time.Time) {
	for key, entry := range shard.entries {
		if now.Sub(entry.seenAt) > ReplayWindow {
			delete(shard.entries, key)
		}
	}
}

// Len reports the total number of tracked (attester, nonce) pairs across
// all shards. Intended for metrics and tests.
func (c *ReplayCache) Len() int {
	total := 0
	for _, shard := range c.shards {
		shard.mu.Lock()
		total += len(shard.entries)
		shard.mu.Unlock()
	}
	return total
}
