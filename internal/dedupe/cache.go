// ABOUTME: Thread-safe TTL set used to suppress repeated submissions within a time window.
// ABOUTME: Keys are claimed atomically and can be released when the guarded call fails.

package dedupe

import (
	"container/list"
	"sync"
	"time"
)

// sweepInterval is how often expired keys are dropped in the background
const sweepInterval = time.Minute

type entry struct {
	at   time.Time
	elem *list.Element
}

// Cache remembers keys for a fixed window. When full, the oldest key is
// evicted. A background goroutine sweeps expired keys until Close.
type Cache struct {
	mu      sync.Mutex
	keys    map[string]*entry
	order   *list.List // oldest at front
	window  time.Duration
	maxSize int
	now     func() time.Time
	done    chan struct{}
	closed  bool
}

// New creates a cache that remembers keys for window, holding at most maxSize.
func New(window time.Duration, maxSize int) *Cache {
	c := &Cache{
		keys:    make(map[string]*entry),
		order:   list.New(),
		window:  window,
		maxSize: maxSize,
		now:     time.Now,
		done:    make(chan struct{}),
	}
	go c.sweepLoop()
	return c
}

// seen reports whether key was claimed within the window.
func (c *Cache) seen(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.liveLocked(key)
}

// Claim records key and returns true, or returns false if key is already
// live. Check and record happen under one lock.
func (c *Cache) Claim(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.liveLocked(key) {
		return false
	}
	c.putLocked(key)
	return true
}

// Release forgets key so it can be claimed again.
func (c *Cache) Release(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.removeLocked(key)
}

// Len returns the number of keys held, expired or not. Reported as a gauge.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.keys)
}

func (c *Cache) liveLocked(key string) bool {
	e, ok := c.keys[key]
	return ok && c.now().Sub(e.at) < c.window
}

func (c *Cache) putLocked(key string) {
	if e, ok := c.keys[key]; ok {
		e.at = c.now()
		c.order.MoveToBack(e.elem)
		return
	}
	if len(c.keys) >= c.maxSize {
		if front := c.order.Front(); front != nil {
			c.removeLocked(front.Value.(string))
		}
	}
	c.keys[key] = &entry{at: c.now(), elem: c.order.PushBack(key)}
}

func (c *Cache) removeLocked(key string) {
	if e, ok := c.keys[key]; ok {
		c.order.Remove(e.elem)
		delete(c.keys, key)
	}
}

func (c *Cache) sweepLoop() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.sweep()
		case <-c.done:
			return
		}
	}
}

// sweep drops expired keys. Entries are ordered by claim time, so it stops at
// the first live one.
func (c *Cache) sweep() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for front := c.order.Front(); front != nil; front = c.order.Front() {
		key := front.Value.(string)
		if now.Sub(c.keys[key].at) < c.window {
			return
		}
		c.removeLocked(key)
	}
}

// Close stops the background sweep. It is safe to call more than once.
func (c *Cache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		close(c.done)
		c.closed = true
	}
}
