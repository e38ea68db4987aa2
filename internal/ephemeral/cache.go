// Package ephemeral holds decrypted secrets in volatile memory, XOR-masked
// against a random pad, with a self-destruct timer and wipe-on-clear.
package ephemeral

import (
	"sync"
	"time"

	"github.com/jmcleod/keyguard/internal/util"
)

// Cache stores at most one secret string, masked in memory. Each instance
// owns its own pad and masked slot, created privately per instance. Nothing
// is ever keyed off package-level state, so two caches holding the same
// value share no bytes.
//
// All methods are safe for concurrent use; expiry timers fire on their own
// goroutine and take the same lock.
type Cache struct {
	mu        sync.Mutex
	pad       []byte
	masked    []byte
	createdAt time.Time
	ttl       time.Duration
	timer     *time.Timer
	onExpire  func()
	gen       uint64
}

// New creates an empty cache.
func New() *Cache {
	return &Cache{}
}

// Store masks value against a fresh random pad and arms an expiry timer of
// ttl. Any previously held value is wiped first. When the timer fires, the
// cache clears itself and then invokes onExpire (which may be nil).
func (c *Cache) Store(value string, ttl time.Duration, onExpire func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.clearLocked()

	data := []byte(value)
	pad := util.MustRandomBytes(len(data))
	masked := make([]byte, len(data))
	for i := range data {
		masked[i] = data[i] ^ pad[i]
	}
	util.WipeBytes(data)

	c.pad = pad
	c.masked = masked
	c.createdAt = time.Now()
	c.startTimerLocked(ttl, onExpire)
}

// Retrieve unmasks and returns the held value. The second return is false
// when nothing is currently stored: never stored, already expired, or
// cleared. Liveness is judged from the creation timestamp and armed timer,
// not from the mere presence of masked bytes, so a stale masked slot is
// never returned.
func (c *Cache) Retrieve() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.liveLocked() {
		return "", false
	}

	data := make([]byte, len(c.masked))
	for i := range c.masked {
		data[i] = c.masked[i] ^ c.pad[i]
	}
	value := string(data)
	util.WipeBytes(data)
	return value, true
}

// Has reports whether a value is currently stored and unexpired.
func (c *Cache) Has() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.liveLocked()
}

// Clear wipes the slot. Both pad and masked bytes are overwritten with fresh
// random bytes before the references are dropped, so no snapshot of memory
// catches the old mask/ciphertext pair together. The pending timer is
// cancelled and the creation timestamp reset.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clearLocked()
}

// ResetTimer cancels any pending timer and arms a new one of ttl, resetting
// the creation timestamp. Used on external session extension. It reports
// whether a timer was re-armed: false means the value is already gone or
// past its deadline, in which case nothing was extended.
func (c *Cache) ResetTimer(ttl time.Duration, onExpire func()) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.liveLocked() {
		return false
	}
	c.createdAt = time.Now()
	c.startTimerLocked(ttl, onExpire)
	return true
}

// TimeRemaining returns total minus the time elapsed since the value was
// stored or last extended, floored at zero. With nothing stored it returns
// zero, not a distinguished absent value, so callers can treat the result as
// a plain non-negative duration.
func (c *Cache) TimeRemaining(total time.Duration) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.createdAt.IsZero() {
		return 0
	}
	remaining := total - time.Since(c.createdAt)
	if remaining < 0 {
		return 0
	}
	return remaining
}

func (c *Cache) liveLocked() bool {
	if c.pad == nil || c.createdAt.IsZero() || c.timer == nil {
		return false
	}
	return time.Since(c.createdAt) < c.ttl
}

// startTimerLocked arms the expiry timer. Bumping the generation first
// invalidates every previously armed timer, including one that has already
// fired and is waiting on the lock.
func (c *Cache) startTimerLocked(ttl time.Duration, onExpire func()) {
	if c.timer != nil {
		c.timer.Stop()
	}
	c.gen++
	c.ttl = ttl
	c.onExpire = onExpire

	gen := c.gen
	c.timer = time.AfterFunc(ttl, func() {
		c.expire(gen)
	})
}

func (c *Cache) expire(gen uint64) {
	c.mu.Lock()
	if gen != c.gen {
		// A Clear or re-Store beat this timer; nothing to do.
		c.mu.Unlock()
		return
	}
	onExpire := c.onExpire
	c.clearLocked()
	c.mu.Unlock()

	if onExpire != nil {
		onExpire()
	}
}

func (c *Cache) clearLocked() {
	if c.pad != nil {
		copy(c.pad, util.MustRandomBytes(len(c.pad)))
		copy(c.masked, util.MustRandomBytes(len(c.masked)))
	}
	c.pad = nil
	c.masked = nil
	c.createdAt = time.Time{}
	c.ttl = 0
	c.onExpire = nil
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.gen++
}
