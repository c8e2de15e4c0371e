package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type result struct {
	ID    string
	Price float64
}

func TestCache_RoundTrip(t *testing.T) {
	c := New[*result](time.Minute)

	want := &result{ID: "a", Price: 55578.05}
	c.Set("k", want)

	got, ok := c.Get("k")
	require.True(t, ok)
	assert.Same(t, want, got)
}

func TestCache_Miss(t *testing.T) {
	c := New[*result](time.Minute)

	got, ok := c.Get("absent")
	assert.False(t, ok)
	assert.Nil(t, got)
}

func TestCache_ExpiresAfterTTL(t *testing.T) {
	c := New[*result](50 * time.Millisecond)
	c.Set("k", &result{ID: "a"})

	_, ok := c.Get("k")
	require.True(t, ok)

	time.Sleep(80 * time.Millisecond)

	// the stale entry is still stored until it is looked up
	assert.Equal(t, 1, c.Len())
	_, ok = c.Get("k")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestCache_AgeMeasuredFromInsertion(t *testing.T) {
	c := New[*result](100 * time.Millisecond)
	c.Set("k", &result{ID: "a"})

	// reads do not extend the lifetime
	for i := 0; i < 3; i++ {
		time.Sleep(40 * time.Millisecond)
		c.Get("k")
	}
	_, ok := c.Get("k")
	assert.False(t, ok)
}

func TestCache_SetOverwrites(t *testing.T) {
	c := New[*result](time.Minute)
	c.Set("k", &result{ID: "first"})
	c.Set("k", &result{ID: "second"})

	got, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "second", got.ID)
	assert.Equal(t, 1, c.Len())
}

func TestCache_Clear(t *testing.T) {
	c := New[*result](time.Minute)
	for i := 0; i < 10; i++ {
		c.Set(fmt.Sprintf("k%d", i), &result{ID: fmt.Sprint(i)})
	}

	c.Clear()
	c.Clear()

	for i := 0; i < 10; i++ {
		_, ok := c.Get(fmt.Sprintf("k%d", i))
		assert.False(t, ok)
	}
	assert.Equal(t, 0, c.Len())
}

func TestCache_WrongTypeIsMiss(t *testing.T) {
	c := New[*result](time.Minute)
	c.items.Set("k", "not a result", gocache.DefaultExpiration)

	got, ok := c.Get("k")
	assert.False(t, ok)
	assert.Nil(t, got)
	assert.Equal(t, 0, c.Len())
}

func TestCache_ConcurrentAccess(t *testing.T) {
	c := New[*result](time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			c.Set(fmt.Sprintf("k%d", i%5), &result{ID: fmt.Sprint(i), Price: float64(i % 5)})
		}(i)
		go func(i int) {
			defer wg.Done()
			if r, ok := c.Get(fmt.Sprintf("k%d", i%5)); ok {
				assert.Equal(t, float64(i%5), r.Price)
			}
		}(i)
	}
	wg.Wait()

	assert.LessOrEqual(t, c.Len(), 5)
	assert.Equal(t, time.Minute, c.TTL())
}

func TestCache_MissKeepsConcurrentSet(t *testing.T) {
	c := New[*result](time.Hour)

	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
		key := fmt.Sprintf("k%d", i%4)
		// already expired, so readers of key miss and evict
		c.items.Set(key, &result{ID: "stale"}, time.Nanosecond)
		time.Sleep(time.Microsecond)

		wg.Add(2)
		go func() {
			defer wg.Done()
			c.Get(key)
		}()
		go func() {
			defer wg.Done()
			fresh := &result{ID: "fresh"}
			c.Set(key, fresh)
			got, ok := c.Get(key)
			if assert.True(t, ok) {
				assert.Same(t, fresh, got)
			}
		}()
		wg.Wait()
	}
}

func TestCache_MissEvictsOnlyExpired(t *testing.T) {
	c := New[*result](time.Hour)
	c.items.Set("stale", &result{ID: "a"}, time.Nanosecond)
	c.Set("fresh", &result{ID: "b"})
	time.Sleep(time.Millisecond)

	_, ok := c.Get("stale")
	assert.False(t, ok)
	assert.Equal(t, 1, c.Len())

	got, ok := c.Get("fresh")
	require.True(t, ok)
	assert.Equal(t, "b", got.ID)
}
