package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"melodex/config"

	"github.com/go-redis/redis/v8"
)

// BlobStore is the ephemeral tier of the cache: artifact bytes keyed by
// content hash. Entries may vanish at any time (TTL, eviction, flush);
// the coordinator's ledger check absorbs that.
type BlobStore interface {
	Get(ctx context.Context, hash string) ([]byte, bool, error)
	Put(ctx context.Context, hash string, data []byte) error
	Delete(ctx context.Context, hash string) error
}

// ConnectRedis initializes a Redis client and verifies the connection.
func ConnectRedis(cfg *config.Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.RedisHost, cfg.RedisPort),
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

type redisBlobStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisBlobStore creates the Redis-backed ephemeral blob tier.
func NewRedisBlobStore(client *redis.Client, ttl time.Duration) BlobStore {
	return &redisBlobStore{client: client, ttl: ttl}
}

func blobKey(hash string) string {
	return "blob:" + hash
}

// Get fetches a blob by content hash, with found=false on miss.
func (s *redisBlobStore) Get(ctx context.Context, hash string) ([]byte, bool, error) {
	data, err := s.client.Get(ctx, blobKey(hash)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to get blob %s: %w", hash, err)
	}
	return data, true, nil
}

// Put stores a blob under its content hash. Writing the same hash twice is
// harmless; the bytes are identical by construction.
func (s *redisBlobStore) Put(ctx context.Context, hash string, data []byte) error {
	if err := s.client.Set(ctx, blobKey(hash), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to put blob %s: %w", hash, err)
	}
	return nil
}

// Delete removes a blob. Absent blobs are a no-op.
func (s *redisBlobStore) Delete(ctx context.Context, hash string) error {
	if err := s.client.Del(ctx, blobKey(hash)).Err(); err != nil {
		return fmt.Errorf("failed to delete blob %s: %w", hash, err)
	}
	return nil
}
