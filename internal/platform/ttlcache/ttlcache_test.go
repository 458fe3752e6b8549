package ttlcache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type CacheSuite struct {
	suite.Suite
	now     time.Time
	evicted []string
	cache   *Cache[string, int]
}

func TestCacheSuite(t *testing.T) {
	suite.Run(t, new(CacheSuite))
}

func (s *CacheSuite) SetupTest() {
	s.now = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	s.evicted = nil
	c, err := New[string, int](3, time.Minute,
		WithClock[string, int](func() time.Time { return s.now }),
		WithEvictionHook[string, int](func(k string) { s.evicted = append(s.evicted, k) }),
	)
	s.Require().NoError(err)
	s.cache = c
}

func (s *CacheSuite) TestSetThenGet() {
	s.cache.Set("a", 1)
	v, ok := s.cache.Get("a")
	s.True(ok)
	s.Equal(1, v)

	_, ok = s.cache.Get("missing")
	s.False(ok)
}

func (s *CacheSuite) TestTTL() {
	s.Run("entry at exactly ttl is still live", func() {
		s.cache.Set("a", 1)
		s.now = s.now.Add(time.Minute)
		_, ok := s.cache.Get("a")
		s.True(ok)
	})

	s.Run("entry past ttl is a miss and evicted", func() {
		s.cache.Set("b", 2)
		s.now = s.now.Add(time.Minute + time.Millisecond)
		_, ok := s.cache.Get("b")
		s.False(ok)
		s.Contains(s.evicted, "b")
	})

	s.Run("access does not extend ttl", func() {
		s.cache.Set("c", 3)
		s.now = s.now.Add(30 * time.Second)
		_, ok := s.cache.Get("c")
		s.Require().True(ok)
		s.now = s.now.Add(31 * time.Second)
		_, ok = s.cache.Get("c")
		s.False(ok)
	})
}

func (s *CacheSuite) TestEvictionAtCapacity() {
	s.cache.Set("a", 1)
	s.cache.Set("b", 2)
	s.cache.Set("c", 3)
	s.Require().Equal(3, s.cache.Len())

	s.cache.Set("d", 4)

	s.Equal(3, s.cache.Len())
	s.Equal([]string{"a"}, s.evicted, "exactly one prior entry evicted")
	_, ok := s.cache.Get("d")
	s.True(ok)
}

func (s *CacheSuite) TestEvictionPrefersLeastRecentlyUsed() {
	s.cache.Set("a", 1)
	s.cache.Set("b", 2)
	s.cache.Set("c", 3)
	_, _ = s.cache.Get("a")

	s.cache.Set("d", 4)

	s.Equal([]string{"b"}, s.evicted)
	_, ok := s.cache.Get("a")
	s.True(ok)
}

func (s *CacheSuite) TestOverwriteDoesNotEvict() {
	s.cache.Set("a", 1)
	s.cache.Set("b", 2)
	s.cache.Set("c", 3)
	s.cache.Set("a", 10)

	s.Empty(s.evicted)
	v, ok := s.cache.Get("a")
	s.True(ok)
	s.Equal(10, v)
}

func (s *CacheSuite) TestClearAndStats() {
	s.cache.Set("a", 1)
	s.cache.Set("b", 2)

	stats := s.cache.Stats()
	s.Equal(Stats{Size: 2, TTL: time.Minute, MaxSize: 3}, stats)

	s.cache.Clear()
	s.Equal(0, s.cache.Len())
	s.Empty(s.evicted, "clear is not an eviction")
}

func TestNewRejectsBadConfig(t *testing.T) {
	_, err := New[string, int](0, time.Minute)
	assert.Error(t, err)
	_, err = New[string, int](10, 0)
	assert.Error(t, err)
}

func TestConcurrentAccess(t *testing.T) {
	c, err := New[string, int](50, time.Minute)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				key := fmt.Sprintf("k%d", (g*200+i)%120)
				c.Set(key, i)
				c.Get(key)
			}
		}(g)
	}
	wg.Wait()
	assert.LessOrEqual(t, c.Len(), 50)
}
