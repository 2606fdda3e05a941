package cache

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShardedGetSet(t *testing.T) {
	c := NewSharded[uint64, string](4, Uint64Hasher)
	c.Set(1, "one")

	v, ok := c.Get(1)
	require.True(t, ok)
	assert.Equal(t, "one", v)

	_, ok = c.Get(2)
	assert.False(t, ok)

	st := c.Stats()
	assert.Equal(t, uint64(1), st.Hits)
	assert.Equal(t, uint64(1), st.Misses)
	assert.InDelta(t, 0.5, st.HitRate, 1e-9)
}

func TestShardedGetOrCreate(t *testing.T) {
	c := NewSharded[string, int](8, StringHasher)
	calls := 0
	create := func() int { calls++; return 7 }

	assert.Equal(t, 7, c.GetOrCreate("k", create))
	assert.Equal(t, 7, c.GetOrCreate("k", create))
	assert.Equal(t, 1, calls)
}

func TestShardedCapacityPerShard(t *testing.T) {
	c := NewSharded[uint64, int](2, func(uint64) uint64 { return 0 })
	for i := uint64(0); i < 5; i++ {
		c.Set(i, int(i))
	}
	assert.Equal(t, 2, c.Len())
	_, ok := c.Get(0)
	assert.False(t, ok)
	_, ok = c.Get(4)
	assert.True(t, ok)
	assert.Equal(t, uint64(3), c.Stats().Evictions)
}

func TestShardedDeleteFunc(t *testing.T) {
	c := NewSharded[uint64, int](0, Uint64Hasher)
	for i := uint64(0); i < 10; i++ {
		c.Set(i, int(i))
	}
	n := c.DeleteFunc(func(_ uint64, v int) bool { return v%2 == 0 })
	assert.Equal(t, 5, n)
	assert.Equal(t, 5, c.Len())
	assert.True(t, c.Delete(1))
	assert.False(t, c.Delete(1))

	c.Clear()
	assert.Equal(t, 0, c.Len())
}

func TestShardedConcurrent(t *testing.T) {
	c := NewSharded[uint64, uint64](32, Uint64Hasher)
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := uint64(0); i < 500; i++ {
				got := c.GetOrCreate(i%64, func() uint64 { return i % 64 })
				if got != i%64 {
					t.Errorf("GetOrCreate(%d) = %d", i%64, got)
				}
			}
		}()
	}
	wg.Wait()
}
