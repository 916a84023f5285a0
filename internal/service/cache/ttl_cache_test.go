package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTTLCacheExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewTTLCache(0)
	c.now = func() time.Time { return now }

	require.NoError(t, c.SetBytes(ctx, "k", []byte("v"), time.Minute))
	b, ok, err := c.GetBytes(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("v"), b)

	now = now.Add(2 * time.Minute)
	_, ok, _ = c.GetBytes(ctx, "k")
	assert.False(t, ok)
	assert.Zero(t, c.Len())
}

func TestTTLCacheEvictsWhenFull(t *testing.T) {
	ctx := context.Background()
	c := NewTTLCache(2)

	require.NoError(t, c.SetBytes(ctx, "a", []byte("1"), time.Minute))
	require.NoError(t, c.SetBytes(ctx, "b", []byte("2"), time.Hour))
	require.NoError(t, c.SetBytes(ctx, "c", []byte("3"), time.Hour))

	assert.Equal(t, 2, c.Len())
	_, ok, _ := c.GetBytes(ctx, "a")
	assert.False(t, ok, "entry closest to expiry is evicted")
	_, ok, _ = c.GetBytes(ctx, "c")
	assert.True(t, ok)
}

var _ BytesCache = (*TTLCache)(nil)
var _ BytesCache = (*RedisCache)(nil)
