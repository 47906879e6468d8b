package safemap

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSafeMap_StoreLoadDelete(t *testing.T) {
	m := New[string, int]()

	_, ok := m.Load("a")
	assert.False(t, ok)

	m.Store("a", 1)
	m.Store("b", 2)
	assert.Equal(t, 2, m.Len())

	v, ok := m.Load("a")
	require.True(t, ok)
	assert.Equal(t, 1, v)

	m.Store("a", 10)
	v, _ = m.Load("a")
	assert.Equal(t, 10, v)

	m.Delete("a")
	_, ok = m.Load("a")
	assert.False(t, ok)
	assert.Equal(t, 1, m.Len())
}

func TestSafeMap_Range(t *testing.T) {
	m := New[int, string]()
	m.Store(1, "one")
	m.Store(2, "two")
	m.Store(3, "three")

	seen := map[int]string{}
	m.Range(func(k int, v string) bool {
		seen[k] = v
		return true
	})
	assert.Equal(t, map[int]string{1: "one", 2: "two", 3: "three"}, seen)

	count := 0
	m.Range(func(int, string) bool {
		count++
		return false
	})
	assert.Equal(t, 1, count)
}

func TestSafeMap_ConcurrentAccess(t *testing.T) {
	m := New[int, int]()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(base int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				m.Store(base*100+j, j)
				m.Load(base*100 + j)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 800, m.Len())
}
