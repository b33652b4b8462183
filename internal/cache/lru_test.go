package cache

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenCache_GetSet(t *testing.T) {
	c := NewTokenCache(2)

	_, ok := c.Get("a")
	assert.False(t, ok)

	c.Set("a", "token-a")
	v, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, "token-a", v)

	hits, misses := c.Stats()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(1), misses)
}

func TestTokenCache_Eviction(t *testing.T) {
	c := NewTokenCache(2)

	c.Set("a", "1")
	c.Set("b", "2")

	// Touch "a" so "b" becomes the eviction candidate.
	_, _ = c.Get("a")

	c.Set("c", "3")
	assert.Equal(t, 2, c.Len())

	_, ok := c.Get("b")
	assert.False(t, ok, "least recently used entry should be evicted")
	_, ok = c.Get("a")
	assert.True(t, ok)
	_, ok = c.Get("c")
	assert.True(t, ok)
}

func TestTokenCache_Disabled(t *testing.T) {
	c := NewTokenCache(0)
	c.Set("a", "1")
	_, ok := c.Get("a")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestTokenCache_Clear(t *testing.T) {
	c := NewTokenCache(4)
	c.Set("a", "1")
	c.Set("b", "2")
	c.Clear()
	assert.Equal(t, 0, c.Len())
}

func BenchmarkTokenCache_Get(b *testing.B) {
	c := NewTokenCache(1024)
	for i := 0; i < 1024; i++ {
		c.Set(fmt.Sprintf("key-%d", i), "token")
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c.Get(fmt.Sprintf("key-%d", i%1024))
	}
}
