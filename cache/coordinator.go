// Package cache implements the two-tier, self-healing cache for expensive
// derived artifacts: a durable ledger in MySQL proving which entry is valid,
// and an ephemeral Redis blob tier holding the bytes. The two tiers stay
// separate abstractions; their different durability is load-bearing.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	"melodex/logger"
	"melodex/repository"
)

// Coordinator implements the read-through get/put contract over the durable
// ledger and the ephemeral blob store.
type Coordinator struct {
	ledger   repository.CacheRepository
	blobs    BlobStore
	maxBytes int64
}

// NewCoordinator wires the two cache tiers together. Artifacts larger than
// maxBytes are never cached; callers recompute them on every request.
func NewCoordinator(ledger repository.CacheRepository, blobs BlobStore, maxBytes int64) *Coordinator {
	return &Coordinator{ledger: ledger, blobs: blobs, maxBytes: maxBytes}
}

// ContentHash returns the hex SHA-256 of an artifact.
func ContentHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Get returns the cached artifact for (userID, key), with found=false on
// miss. A ledger entry whose blob is gone is stale: it gets purged silently
// and reported as a miss, never as an error.
func (c *Coordinator) Get(ctx context.Context, userID int64, key string) ([]byte, bool, error) {
	hash, found, err := c.ledger.Get(userID, key)
	if err != nil {
		return nil, false, err
	}
	if !found {
		return nil, false, nil
	}

	data, ok, err := c.blobs.Get(ctx, hash)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		// The ephemeral tier evicted the blob (or it was never written).
		// Self-heal: drop the stale ledger entry and report a miss.
		logger.Debug("purging stale cache ledger entry",
			logger.Int64("userId", userID), logger.String("key", key))
		if err := c.ledger.Delete(userID, key); err != nil {
			return nil, false, err
		}
		return nil, false, nil
	}
	return data, true, nil
}

// Put caches an artifact: blob first, then the ledger entry pointing at it.
// Oversized artifacts are skipped entirely so one composite image cannot
// grow the cache without bound.
func (c *Coordinator) Put(ctx context.Context, userID int64, key string, data []byte) error {
	if c.maxBytes > 0 && int64(len(data)) > c.maxBytes {
		logger.Debug("artifact exceeds cache ceiling, not caching",
			logger.Int64("userId", userID), logger.String("key", key),
			logger.Int("size", len(data)))
		return nil
	}

	hash := ContentHash(data)
	if err := c.blobs.Put(ctx, hash, data); err != nil {
		return err
	}
	return c.ledger.Set(userID, key, hash)
}

// Invalidate removes one ledger entry. The blob stays behind until the
// ephemeral tier evicts it; recomputation is lazy on the next Get miss.
func (c *Coordinator) Invalidate(userID int64, key string) error {
	return c.ledger.Delete(userID, key)
}

// InvalidatePrefix removes every ledger entry whose key starts with the
// given prefix, covering artifacts cached in several size variants.
func (c *Coordinator) InvalidatePrefix(userID int64, prefix string) error {
	return c.ledger.DeleteByPrefix(userID, prefix)
}

// InvalidateAll removes every ledger entry of a user.
func (c *Coordinator) InvalidateAll(userID int64) error {
	return c.ledger.DeleteAll(userID)
}
