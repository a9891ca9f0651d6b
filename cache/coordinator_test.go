package cache

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
)

// memoryLedger is an in-memory CacheRepository for coordinator tests.
type memoryLedger struct {
	mu      sync.Mutex
	entries map[int64]map[string]string
}

func newMemoryLedger() *memoryLedger {
	return &memoryLedger{entries: map[int64]map[string]string{}}
}

func (l *memoryLedger) Get(userID int64, key string) (string, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	v, ok := l.entries[userID][key]
	return v, ok, nil
}

func (l *memoryLedger) Set(userID int64, key, value string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.entries[userID] == nil {
		l.entries[userID] = map[string]string{}
	}
	l.entries[userID][key] = value
	return nil
}

func (l *memoryLedger) Delete(userID int64, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.entries[userID], key)
	return nil
}

func (l *memoryLedger) DeleteByPrefix(userID int64, prefix string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for key := range l.entries[userID] {
		if strings.HasPrefix(key, prefix) {
			delete(l.entries[userID], key)
		}
	}
	return nil
}

func (l *memoryLedger) DeleteAll(userID int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.entries, userID)
	return nil
}

func (l *memoryLedger) size(userID int64) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries[userID])
}

func TestCoordinatorPutGet(t *testing.T) {
	ctx := context.Background()
	ledger := newMemoryLedger()
	blobs := NewMemoryBlobStore()
	c := NewCoordinator(ledger, blobs, 1024)

	payload := []byte("snapshot payload")
	if err := c.Put(ctx, 1, "collection", payload); err != nil {
		t.Fatalf("Put: %v", err)
	}

	data, found, err := c.Get(ctx, 1, "collection")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !found {
		t.Fatal("expected a cache hit")
	}
	if !bytes.Equal(data, payload) {
		t.Fatalf("got %q, want %q", data, payload)
	}

	// Another user's namespace is untouched.
	if _, found, _ := c.Get(ctx, 2, "collection"); found {
		t.Fatal("user 2 should miss")
	}
}

func TestCoordinatorSelfHealsStaleLedgerEntry(t *testing.T) {
	ctx := context.Background()
	ledger := newMemoryLedger()
	blobs := NewMemoryBlobStore()
	c := NewCoordinator(ledger, blobs, 1024)

	payload := []byte("artwork")
	if err := c.Put(ctx, 1, "cover:album:7:0", payload); err != nil {
		t.Fatalf("Put: %v", err)
	}

	// Simulate a TTL expiry in the ephemeral tier.
	blobs.Evict(ContentHash(payload))

	_, found, err := c.Get(ctx, 1, "cover:album:7:0")
	if err != nil {
		t.Fatalf("Get after eviction: %v", err)
	}
	if found {
		t.Fatal("expected a miss after blob eviction")
	}
	if ledger.size(1) != 0 {
		t.Fatal("stale ledger entry should have been purged")
	}

	// Next Get is a plain miss, no error.
	if _, found, err := c.Get(ctx, 1, "cover:album:7:0"); err != nil || found {
		t.Fatalf("second Get: found=%v err=%v", found, err)
	}
}

func TestCoordinatorSkipsOversizedArtifacts(t *testing.T) {
	ctx := context.Background()
	ledger := newMemoryLedger()
	c := NewCoordinator(ledger, NewMemoryBlobStore(), 8)

	if err := c.Put(ctx, 1, "collection", []byte("way too large payload")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if ledger.size(1) != 0 {
		t.Fatal("oversized artifact must not leave a ledger entry")
	}
	if _, found, _ := c.Get(ctx, 1, "collection"); found {
		t.Fatal("oversized artifact must not be readable")
	}
}

func TestCoordinatorInvalidation(t *testing.T) {
	ctx := context.Background()
	ledger := newMemoryLedger()
	c := NewCoordinator(ledger, NewMemoryBlobStore(), 1024)

	seed := map[string]string{
		"collection":      "snapshot",
		"cover:album:1:0": "full",
		"cover:album:1:300": "small",
		"cover:album:2:0": "other",
	}
	for key, val := range seed {
		if err := c.Put(ctx, 1, key, []byte(val)); err != nil {
			t.Fatalf("Put %s: %v", key, err)
		}
	}

	if err := c.InvalidatePrefix(1, "cover:album:1:"); err != nil {
		t.Fatalf("InvalidatePrefix: %v", err)
	}
	for _, key := range []string{"cover:album:1:0", "cover:album:1:300"} {
		if _, found, _ := c.Get(ctx, 1, key); found {
			t.Fatalf("%s should be invalidated", key)
		}
	}
	if _, found, _ := c.Get(ctx, 1, "cover:album:2:0"); !found {
		t.Fatal("cover:album:2:0 should survive the prefix invalidation")
	}

	if err := c.Invalidate(1, "collection"); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	if _, found, _ := c.Get(ctx, 1, "collection"); found {
		t.Fatal("collection should be invalidated")
	}

	if err := c.InvalidateAll(1); err != nil {
		t.Fatalf("InvalidateAll: %v", err)
	}
	if ledger.size(1) != 0 {
		t.Fatal("InvalidateAll should empty the namespace")
	}
}

func TestContentHashIsStable(t *testing.T) {
	a := ContentHash([]byte("same bytes"))
	b := ContentHash([]byte("same bytes"))
	if a != b {
		t.Fatalf("hashes differ: %s vs %s", a, b)
	}
	if len(a) != 64 {
		t.Fatalf("expected hex sha256, got %d chars", len(a))
	}
	if ContentHash([]byte("other bytes")) == a {
		t.Fatal("different payloads must hash differently")
	}
}
