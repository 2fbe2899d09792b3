package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"weekspend/internal/log"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) now() time.Time { return f.t }

func TestLRUEvictsLeastRecentlyUsed(t *testing.T) {
	c := NewLRUCache[int](2, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)
	_, _ = c.Get("a")
	c.Set("c", 3)

	_, ok := c.Get("b")
	assert.False(t, ok, "b should have been evicted")
	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, 1, v)
	assert.Equal(t, 2, c.Size())
}

func TestLRUExpiry(t *testing.T) {
	clk := &fakeClock{t: time.Date(2025, 1, 6, 12, 0, 0, 0, time.UTC)}
	c := NewLRUCache[string](10, time.Minute).WithClock(clk.now)
	c.Set("k", "v")
	c.Set("k2", "v2")

	clk.t = clk.t.Add(30 * time.Second)
	_, ok := c.Get("k")
	assert.True(t, ok)

	clk.t = clk.t.Add(time.Minute)
	_, ok = c.Get("k")
	assert.False(t, ok)
	assert.Equal(t, 1, c.CleanExpired())
	assert.Equal(t, 0, c.Size())
}

func TestLRUDeletePrefixAndStats(t *testing.T) {
	c := NewLRUCache[int](10, time.Minute)
	c.Set("report:u1:2025-01-06", 1)
	c.Set("report:u1:2025-01-13", 2)
	c.Set("report:u2:2025-01-06", 3)

	assert.Equal(t, 2, c.DeletePrefix("report:u1:"))
	_, ok := c.Get("report:u2:2025-01-06")
	assert.True(t, ok)
	_, ok = c.Get("report:u1:2025-01-06")
	assert.False(t, ok)

	s := c.Stats()
	assert.Equal(t, Stats{Size: 1, Hits: 1, Misses: 1}, s)
}

func TestManagerCleanNow(t *testing.T) {
	clk := &fakeClock{t: time.Now()}
	c := NewLRUCache[int](10, time.Second).WithClock(clk.now)
	c.Set("a", 1)

	m := NewManager(log.Discard())
	m.Register(c)
	m.StartCleanup(time.Hour)
	defer m.Stop()

	clk.t = clk.t.Add(2 * time.Second)
	assert.Equal(t, 1, m.CleanNow())
}

func TestManagerStopWithoutStart(t *testing.T) {
	m := NewManager(nil)
	m.Stop()
}
