package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMemoryCache_SetGet(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()

	type payload struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}

	require.NoError(t, c.Set(ctx, "k", payload{Name: "a", Count: 2}, time.Minute))

	var got payload
	hit, err := c.Get(ctx, "k", &got)
	require.NoError(t, err)
	require.True(t, hit)
	require.Equal(t, payload{Name: "a", Count: 2}, got)
}

func TestMemoryCache_MissOnUnknownKey(t *testing.T) {
	c := NewMemoryCache()
	var got string
	hit, err := c.Get(context.Background(), "missing", &got)
	require.NoError(t, err)
	require.False(t, hit)
}

func TestMemoryCache_TTLExpiry(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", "v", time.Millisecond))
	time.Sleep(5 * time.Millisecond)

	var got string
	hit, err := c.Get(ctx, "k", &got)
	require.NoError(t, err)
	require.False(t, hit)
}

func TestMemoryCache_Delete(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "a", 1, time.Minute))
	require.NoError(t, c.Set(ctx, "b", 2, time.Minute))
	require.NoError(t, c.Delete(ctx, "a", "b"))

	var got int
	hit, err := c.Get(ctx, "a", &got)
	require.NoError(t, err)
	require.False(t, hit)
}

func TestMemoryCache_DeleteByPrefix(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "list:1", 1, time.Minute))
	require.NoError(t, c.Set(ctx, "list:2", 2, time.Minute))
	require.NoError(t, c.Set(ctx, "other:1", 3, time.Minute))

	require.NoError(t, c.DeleteByPrefix(ctx, "list:"))

	var got int
	hit, _ := c.Get(ctx, "list:1", &got)
	require.False(t, hit)
	hit, _ = c.Get(ctx, "list:2", &got)
	require.False(t, hit)
	hit, err := c.Get(ctx, "other:1", &got)
	require.NoError(t, err)
	require.True(t, hit)
	require.Equal(t, 3, got)
}
