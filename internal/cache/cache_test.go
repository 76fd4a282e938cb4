package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeClock(c *LRUCache[string]) *time.Time {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	return &now
}

func TestLRUCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c := NewLRUCache[string](2, time.Minute)

	c.Set("a", "1")
	c.Set("b", "2")
	_, _ = c.Get("a")
	c.Set("c", "3")

	_, ok := c.Get("b")
	assert.False(t, ok, "b was least recently used")
	v, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, "1", v)
	assert.Equal(t, 2, c.Size())
}

func TestLRUCache_Expiry(t *testing.T) {
	c := NewLRUCache[string](10, time.Minute)
	now := fakeClock(c)

	c.Set("a", "1")
	c.Set("b", "2")
	*now = now.Add(30 * time.Second)
	c.Set("b", "2")

	*now = now.Add(45 * time.Second)
	_, ok := c.Get("a")
	assert.False(t, ok)
	assert.Equal(t, 0, c.CleanExpired(), "a was dropped by Get, b is fresh")

	*now = now.Add(time.Hour)
	assert.Equal(t, 1, c.CleanExpired())
	assert.Zero(t, c.Size())
}

func TestLRUCache_GetOrLoad(t *testing.T) {
	c := NewLRUCache[string](10, time.Minute)
	calls := 0
	load := func() (string, error) {
		calls++
		return "loaded", nil
	}

	v, err := c.GetOrLoad("k", load)
	require.NoError(t, err)
	assert.Equal(t, "loaded", v)
	_, err = c.GetOrLoad("k", load)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)

	boom := errors.New("boom")
	_, err = c.GetOrLoad("x", func() (string, error) { return "", boom })
	assert.ErrorIs(t, err, boom)
	_, ok := c.Get("x")
	assert.False(t, ok, "errors are not cached")
}

func TestLRUCache_Clear(t *testing.T) {
	c := NewLRUCache[string](10, time.Minute)
	c.Set("a", "1")
	c.Set("b", "2")

	c.Clear()

	assert.Zero(t, c.Size())
	_, ok := c.Get("a")
	assert.False(t, ok)
	c.Set("a", "3")
	assert.Equal(t, 1, c.Size())
}

func TestLRUCache_GetOrLoadDropsResultAfterClear(t *testing.T) {
	c := NewLRUCache[string](10, time.Minute)

	v, err := c.GetOrLoad("k", func() (string, error) {
		c.Clear()
		return "stale", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "stale", v, "the caller still gets its value")
	_, ok := c.Get("k")
	assert.False(t, ok, "a load that straddles Clear is not stored")

	v, err = c.GetOrLoad("k", func() (string, error) { return "fresh", nil })
	require.NoError(t, err)
	assert.Equal(t, "fresh", v)
	v, ok = c.Get("k")
	assert.True(t, ok)
	assert.Equal(t, "fresh", v)
}

func TestManager_StopIsIdempotent(t *testing.T) {
	m := NewManager()
	m.Register("rates", NewLRUCache[string](1, time.Millisecond))
	m.StartCleanup(context.Background(), time.Millisecond)
	time.Sleep(5 * time.Millisecond)

	m.Stop()
	m.Stop()
	NewManager().Stop()
}
