// ABOUTME: Tests for the dedupe window cache.
// ABOUTME: Covers claiming, expiry, release, eviction order, sweeping and concurrent claims.

package dedupe

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// fakeClock lets tests move time without sleeping
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.t
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.t = f.t.Add(d)
}

func newTestCache(t *testing.T, window time.Duration, size int) (*Cache, *fakeClock) {
	t.Helper()
	clock := &fakeClock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	c := New(window, size)
	c.now = clock.Now
	t.Cleanup(c.Close)
	return c, clock
}

func TestClaim(t *testing.T) {
	c, _ := newTestCache(t, time.Minute, 10)

	assert.False(t, c.seen("dish_order|rose|5"))
	assert.True(t, c.Claim("dish_order|rose|5"))
	assert.True(t, c.seen("dish_order|rose|5"))
	assert.False(t, c.Claim("dish_order|rose|5"), "second claim inside the window must fail")
	assert.True(t, c.Claim("dish_order|henry|5"), "keys are independent")
}

func TestClaim_AfterWindow(t *testing.T) {
	c, clock := newTestCache(t, time.Minute, 10)

	assert.True(t, c.Claim("k"))
	clock.Advance(59 * time.Second)
	assert.False(t, c.Claim("k"))

	clock.Advance(2 * time.Second)
	assert.False(t, c.seen("k"))
	assert.True(t, c.Claim("k"), "expired key can be claimed again")
}

func TestRelease(t *testing.T) {
	c, _ := newTestCache(t, time.Minute, 10)

	c.Claim("k")
	c.Release("k")
	assert.False(t, c.seen("k"))
	assert.True(t, c.Claim("k"))

	c.Release("never-claimed")
	assert.Equal(t, 1, c.Len())
}

func TestEvictionOrder(t *testing.T) {
	c, clock := newTestCache(t, time.Hour, 3)

	for _, k := range []string{"a", "b", "c"} {
		c.Claim(k)
		clock.Advance(time.Second)
	}
	c.Claim("d")

	assert.Equal(t, 3, c.Len())
	assert.False(t, c.seen("a"), "oldest key is evicted")
	assert.True(t, c.seen("b"))
	assert.True(t, c.seen("d"))
}

func TestSweep(t *testing.T) {
	c, clock := newTestCache(t, time.Minute, 10)

	c.Claim("old-1")
	c.Claim("old-2")
	clock.Advance(50 * time.Second)
	c.Claim("fresh")
	clock.Advance(20 * time.Second)

	c.sweep()

	assert.Equal(t, 1, c.Len())
	assert.True(t, c.seen("fresh"))
}

func TestConcurrentClaims(t *testing.T) {
	c, _ := newTestCache(t, time.Minute, 1000)

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if c.Claim("same-key") {
				wins.Add(1)
			}
			c.Claim(fmt.Sprintf("key-%d", i))
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load(), "exactly one goroutine wins a key")
	assert.Equal(t, 51, c.Len())
}

func TestClose_Twice(t *testing.T) {
	c := New(time.Minute, 10)
	c.Close()
	assert.NotPanics(t, c.Close)
}
