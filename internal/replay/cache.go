// ABOUTME: Bounded TTL cache of Hawk nonces used to detect replayed requests
// ABOUTME: Implements hawk.NonceChecker with an atomic check-and-mark

package replay

import (
	"container/list"
	"sync"
	"time"
)

// DefaultSweepInterval is how often expired nonces are swept.
const DefaultSweepInterval = time.Minute

type entry struct {
	key    string
	seenAt time.Time
}

// Cache remembers nonce keys for a fixed window. When full, the oldest key is
// dropped, so maxSize must cover the expected request rate over the window.
type Cache struct {
	mu      sync.Mutex
	seen    map[string]*list.Element
	order   *list.List // *entry, oldest at front
	window  time.Duration
	maxSize int
	now     func() time.Time
	done    chan struct{}
	closed  bool
}

// New creates a cache and starts its sweeper. Call Close to stop it.
func New(window time.Duration, maxSize int) *Cache {
	return newCache(window, maxSize, time.Now, DefaultSweepInterval)
}

func newCache(window time.Duration, maxSize int, now func() time.Time, sweep time.Duration) *Cache {
	if maxSize <= 0 {
		maxSize = 1
	}
	c := &Cache{
		seen:    make(map[string]*list.Element),
		order:   list.New(),
		window:  window,
		maxSize: maxSize,
		now:     now,
		done:    make(chan struct{}),
	}
	go c.sweepLoop(sweep)
	return c
}

// CheckAndMark reports whether key was already seen inside the window and
// records it if not. Exactly one concurrent caller wins for a given key.
func (c *Cache) CheckAndMark(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if el, ok := c.seen[key]; ok {
		e, _ := el.Value.(*entry)
		if now.Sub(e.seenAt) < c.window {
			return true
		}
		c.order.Remove(el)
		delete(c.seen, key)
	}

	for len(c.seen) >= c.maxSize {
		c.dropOldest()
	}
	c.seen[key] = c.order.PushBack(&entry{key: key, seenAt: now})
	return false
}

// Seen reports whether key is inside the window without marking it.
func (c *Cache) Seen(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.seen[key]
	if !ok {
		return false
	}
	e, _ := el.Value.(*entry)
	return c.now().Sub(e.seenAt) < c.window
}

// Len returns the number of tracked keys, expired or not.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.seen)
}

// dropOldest must be called with mu held.
func (c *Cache) dropOldest() {
	front := c.order.Front()
	if front == nil {
		return
	}
	e, _ := front.Value.(*entry)
	c.order.Remove(front)
	delete(c.seen, e.key)
}

func (c *Cache) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
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

// sweep drops expired keys. Keys are in insertion order, so it stops at the
// first live one.
func (c *Cache) sweep() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for front := c.order.Front(); front != nil; front = c.order.Front() {
		e, _ := front.Value.(*entry)
		if now.Sub(e.seenAt) < c.window {
			return
		}
		c.order.Remove(front)
		delete(c.seen, e.key)
	}
}

// Close stops the sweeper. Safe to call more than once.
func (c *Cache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		close(c.done)
		c.closed = true
	}
}
