package presence

import (
	"context"
	"sync"
	"time"
)

// Cache stores the last good FriendStatus per friend. It exists so the UI can
// keep showing a name and avatar while the presence API is temporarily
// unavailable; entries expire so a stale snapshot never outlives a session by
// much.
type Cache interface {
	// Put stores a status, resetting its TTL.
	Put(ctx context.Context, status FriendStatus) error
	// Get retrieves a status by friend id. A miss returns (nil, nil).
	Get(ctx context.Context, friendID string) (*FriendStatus, error)
	// Delete removes a status.
	Delete(ctx context.Context, friendID string) error
}

type memoryEntry struct {
	status    FriendStatus
	expiresAt time.Time
}

// MemoryCache is the default in-process Cache.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	ttl     time.Duration
}

func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
	}
}

func (c *MemoryCache) Put(_ context.Context, status FriendStatus) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[status.ID] = memoryEntry{
		status:    status,
		expiresAt: time.Now().Add(c.ttl),
	}
	return nil
}

func (c *MemoryCache) Get(_ context.Context, friendID string) (*FriendStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[friendID]
	if !ok {
		return nil, nil
	}
	if time.Now().After(entry.expiresAt) {
		delete(c.entries, friendID)
		return nil, nil
	}
	status := entry.status
	return &status, nil
}

func (c *MemoryCache) Delete(_ context.Context, friendID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, friendID)
	return nil
}
