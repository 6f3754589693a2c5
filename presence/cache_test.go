package presence

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCachePutGet(t *testing.T) {
	cache := NewMemoryCache(time.Minute)
	ctx := context.Background()

	status := FriendStatus{ID: "friend-1", DisplayName: "Ghost", AvatarURL: "http://a/g.jpg"}
	require.NoError(t, cache.Put(ctx, status))

	got, err := cache.Get(ctx, "friend-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, status, *got)

	// A miss is (nil, nil), not an error.
	got, err = cache.Get(ctx, "stranger")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMemoryCacheOverwriteResetsEntry(t *testing.T) {
	cache := NewMemoryCache(time.Minute)
	ctx := context.Background()

	require.NoError(t, cache.Put(ctx, FriendStatus{ID: "friend-1", DisplayName: "Old"}))
	require.NoError(t, cache.Put(ctx, FriendStatus{ID: "friend-1", DisplayName: "New"}))

	got, err := cache.Get(ctx, "friend-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "New", got.DisplayName)
}

func TestMemoryCacheExpiry(t *testing.T) {
	cache := NewMemoryCache(20 * time.Millisecond)
	ctx := context.Background()

	require.NoError(t, cache.Put(ctx, FriendStatus{ID: "friend-1"}))
	time.Sleep(40 * time.Millisecond)

	got, err := cache.Get(ctx, "friend-1")
	require.NoError(t, err)
	assert.Nil(t, got, "expired entries must read as a miss")
}

func TestMemoryCacheDelete(t *testing.T) {
	cache := NewMemoryCache(time.Minute)
	ctx := context.Background()

	require.NoError(t, cache.Put(ctx, FriendStatus{ID: "friend-1"}))
	require.NoError(t, cache.Delete(ctx, "friend-1"))

	got, err := cache.Get(ctx, "friend-1")
	require.NoError(t, err)
	assert.Nil(t, got)
}
