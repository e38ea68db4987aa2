// Package session coordinates per-provider unlock windows: each active
// session owns an ephemeral cache holding one decrypted secret, expires on a
// timer, and can be extended or ended explicitly. Lifecycle changes are
// announced through a synchronous event emitter.
package session

import (
	"sync"
	"time"

	"github.com/jmcleod/keyguard/events"
	"github.com/jmcleod/keyguard/internal/ephemeral"
)

// Event names emitted by the Registry.
const (
	EventStarted  = "started"
	EventExtended = "extended"
	EventEnded    = "ended"
	EventExpired  = "expired"
	EventCleared  = "cleared"
)

// Info describes the current state of one provider's session.
type Info struct {
	Provider  string        `json:"provider"`
	Active    bool          `json:"active"`
	Duration  time.Duration `json:"duration"`
	Elapsed   time.Duration `json:"elapsed"`
	Remaining time.Duration `json:"remaining"`
	ExpiresAt time.Time     `json:"expires_at"`
}

type entry struct {
	cache     *ephemeral.Cache
	duration  time.Duration
	startTime time.Time
}

// Registry owns one session per provider. A session exists if and only if
// its cache currently holds a value: expiry clears the cache and removes the
// map entry as one transition, so Has never disagrees with cache state.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*entry
	emitter  *events.Emitter
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*entry),
		emitter:  events.NewEmitter(),
	}
}

// On registers a handler for the named lifecycle event.
func (r *Registry) On(name string, fn events.Handler) {
	r.emitter.On(name, fn)
}

// Start begins a session for provider holding secret for duration. An
// existing session for the same provider is ended first (its cache wiped,
// "ended" emitted) before the replacement starts.
func (r *Registry) Start(provider, secret string, duration time.Duration) {
	r.mu.Lock()
	replaced := r.endLocked(provider)

	c := ephemeral.New()
	c.Store(secret, duration, func() {
		r.expired(provider, c)
	})
	r.sessions[provider] = &entry{
		cache:     c,
		duration:  duration,
		startTime: time.Now(),
	}
	r.mu.Unlock()

	if replaced {
		r.emitter.Emit(events.Event{Name: EventEnded, Provider: provider})
	}
	r.emitter.Emit(events.Event{Name: EventStarted, Provider: provider, Duration: duration})
}

// APIKey returns the cached plaintext for provider, or false if no session
// is active.
func (r *Registry) APIKey(provider string) (string, bool) {
	r.mu.Lock()
	e, ok := r.sessions[provider]
	r.mu.Unlock()
	if !ok {
		return "", false
	}
	return e.cache.Retrieve()
}

// Has reports whether provider currently has a live session. A map entry
// whose cache has already expired reads as false.
func (r *Registry) Has(provider string) bool {
	r.mu.Lock()
	e, ok := r.sessions[provider]
	r.mu.Unlock()
	return ok && e.cache.Has()
}

// Extend resets provider's session timer to its originally configured
// duration and updates the start time. No-op (returning false) if there is
// no session, or if the session's cache has already passed its deadline and
// is about to expire. The emitted event carries the configured duration;
// callers use it to display remaining time.
func (r *Registry) Extend(provider string) bool {
	r.mu.Lock()
	e, ok := r.sessions[provider]
	if !ok {
		r.mu.Unlock()
		return false
	}
	if !e.cache.ResetTimer(e.duration, func() {
		r.expired(provider, e.cache)
	}) {
		r.mu.Unlock()
		return false
	}
	e.startTime = time.Now()
	duration := e.duration
	r.mu.Unlock()

	r.emitter.Emit(events.Event{Name: EventExtended, Provider: provider, Duration: duration})
	return true
}

// End terminates provider's session, wiping its cache. Returns false if no
// session existed.
func (r *Registry) End(provider string) bool {
	r.mu.Lock()
	ended := r.endLocked(provider)
	r.mu.Unlock()

	if ended {
		r.emitter.Emit(events.Event{Name: EventEnded, Provider: provider})
	}
	return ended
}

// EndAll terminates every session, then emits "cleared".
func (r *Registry) EndAll() {
	r.mu.Lock()
	var ended []string
	for provider := range r.sessions {
		if r.endLocked(provider) {
			ended = append(ended, provider)
		}
	}
	r.mu.Unlock()

	for _, provider := range ended {
		r.emitter.Emit(events.Event{Name: EventEnded, Provider: provider})
	}
	r.emitter.Emit(events.Event{Name: EventCleared})
}

// Info returns a snapshot of provider's session state, or false if no
// session is active.
func (r *Registry) Info(provider string) (Info, bool) {
	r.mu.Lock()
	e, ok := r.sessions[provider]
	r.mu.Unlock()
	if !ok || !e.cache.Has() {
		return Info{}, false
	}

	remaining := e.cache.TimeRemaining(e.duration)
	return Info{
		Provider:  provider,
		Active:    true,
		Duration:  e.duration,
		Elapsed:   e.duration - remaining,
		Remaining: remaining,
		ExpiresAt: time.Now().Add(remaining),
	}, true
}

// Active returns the providers with live sessions.
func (r *Registry) Active() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var providers []string
	for provider, e := range r.sessions {
		if e.cache.Has() {
			providers = append(providers, provider)
		}
	}
	return providers
}

// expired is the cache timer callback. The cache has already wiped itself;
// removing the map entry here completes the transition before "expired" is
// emitted, so reentrant listeners observe consistent state.
func (r *Registry) expired(provider string, c *ephemeral.Cache) {
	r.mu.Lock()
	e, ok := r.sessions[provider]
	// Only remove the entry if it still belongs to the expiring cache; a
	// replacement session started meanwhile must survive.
	if ok && e.cache == c {
		delete(r.sessions, provider)
	} else {
		ok = false
	}
	r.mu.Unlock()

	if ok {
		r.emitter.Emit(events.Event{Name: EventExpired, Provider: provider})
	}
}

func (r *Registry) endLocked(provider string) bool {
	e, ok := r.sessions[provider]
	if !ok {
		return false
	}
	e.cache.Clear()
	delete(r.sessions, provider)
	return true
}
