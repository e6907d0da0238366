package secrets

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache_PutGet(t *testing.T) {
	c := NewCache[string](time.Minute)
	c.Put("k", "v")

	got, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "v", got)
}

func TestCache_MissReturnsZero(t *testing.T) {
	c := NewCache[int](time.Minute)

	got, ok := c.Get("absent")
	assert.False(t, ok)
	assert.Zero(t, got)
}

func TestCache_Expiry(t *testing.T) {
	c := NewCache[string](10 * time.Millisecond)
	c.Put("k", "v")

	time.Sleep(20 * time.Millisecond)

	_, ok := c.Get("k")
	assert.False(t, ok)
}

func TestCache_Bust(t *testing.T) {
	c := NewCache[string](time.Minute)
	c.Put("k", "v")
	c.Bust("k")

	_, ok := c.Get("k")
	assert.False(t, ok)
}

func TestCache_Overwrite(t *testing.T) {
	c := NewCache[string](time.Minute)
	c.Put("k", "first")
	c.Put("k", "second")

	got, _ := c.Get("k")
	assert.Equal(t, "second", got)
}
