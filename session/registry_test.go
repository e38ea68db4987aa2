package session

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmcleod/keyguard/events"
)

// eventLog records emitted events in order, safely across goroutines
// (expiry events arrive from timer goroutines).
type eventLog struct {
	mu     sync.Mutex
	events []events.Event
}

func (l *eventLog) record(evt events.Event) {
	l.mu.Lock()
	l.events = append(l.events, evt)
	l.mu.Unlock()
}

func (l *eventLog) named(name string) []events.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []events.Event
	for _, evt := range l.events {
		if evt.Name == name {
			out = append(out, evt)
		}
	}
	return out
}

func watch(r *Registry) *eventLog {
	l := &eventLog{}
	for _, name := range []string{EventStarted, EventExtended, EventEnded, EventExpired, EventCleared} {
		r.On(name, l.record)
	}
	return l
}

func TestStartAndRetrieve(t *testing.T) {
	r := NewRegistry()
	l := watch(r)

	r.Start("openai", "sk-abc", time.Second)

	key, ok := r.APIKey("openai")
	require.True(t, ok)
	assert.Equal(t, "sk-abc", key)
	assert.True(t, r.Has("openai"))

	started := l.named(EventStarted)
	require.Len(t, started, 1)
	assert.Equal(t, "openai", started[0].Provider)
	assert.Equal(t, time.Second, started[0].Duration)
}

func TestAPIKey_NoSession(t *testing.T) {
	r := NewRegistry()
	_, ok := r.APIKey("openai")
	assert.False(t, ok)
	assert.False(t, r.Has("openai"))
}

func TestStart_ReplacesExistingSession(t *testing.T) {
	r := NewRegistry()
	l := watch(r)

	r.Start("openai", "old", time.Second)
	r.Start("openai", "new", time.Second)

	key, ok := r.APIKey("openai")
	require.True(t, ok)
	assert.Equal(t, "new", key)

	// Replacement ends the old session before starting the new one.
	assert.Len(t, l.named(EventEnded), 1)
	assert.Len(t, l.named(EventStarted), 2)
}

func TestExpiry_RemovesSessionAndEmits(t *testing.T) {
	r := NewRegistry()
	l := watch(r)

	r.Start("openai", "sk-abc", 60*time.Millisecond)
	time.Sleep(150 * time.Millisecond)

	assert.False(t, r.Has("openai"))
	_, ok := r.APIKey("openai")
	assert.False(t, ok)

	expired := l.named(EventExpired)
	require.Len(t, expired, 1)
	assert.Equal(t, "openai", expired[0].Provider)
	// Natural expiry is not an explicit end.
	assert.Empty(t, l.named(EventEnded))
}

func TestIndependentProviderTTLs(t *testing.T) {
	r := NewRegistry()

	r.Start("openai", "sk-a", 80*time.Millisecond)
	r.Start("anthropic", "sk-b", 400*time.Millisecond)

	time.Sleep(200 * time.Millisecond)

	assert.False(t, r.Has("openai"), "short session should have expired")
	assert.True(t, r.Has("anthropic"), "long session should still be active")

	key, ok := r.APIKey("anthropic")
	require.True(t, ok)
	assert.Equal(t, "sk-b", key)
}

func TestExtend_ResetsToConfiguredDuration(t *testing.T) {
	r := NewRegistry()
	l := watch(r)

	r.Start("openai", "sk-abc", 150*time.Millisecond)

	// Keep extending past the original lifetime.
	for i := 0; i < 3; i++ {
		time.Sleep(80 * time.Millisecond)
		require.True(t, r.Extend("openai"), "extension %d", i)
	}

	assert.True(t, r.Has("openai"), "session should survive repeated extension")

	// Every extension event carries the originally configured duration.
	extended := l.named(EventExtended)
	require.Len(t, extended, 3)
	for _, evt := range extended {
		assert.Equal(t, 150*time.Millisecond, evt.Duration)
		assert.Equal(t, "openai", evt.Provider)
	}
}

func TestExtend_NoSession(t *testing.T) {
	r := NewRegistry()
	l := watch(r)

	assert.False(t, r.Extend("openai"))
	assert.Empty(t, l.named(EventExtended))
}

func TestExtend_AtExpiryBoundary(t *testing.T) {
	// Extending right as the timer fires must be all-or-nothing: either the
	// extension wins and the session survives its full new lifetime, or it
	// reports false and no extended event is emitted for a dead session.
	for i := 0; i < 25; i++ {
		r := NewRegistry()
		l := watch(r)

		r.Start("openai", "sk-abc", 5*time.Millisecond)
		time.Sleep(5 * time.Millisecond)

		if r.Extend("openai") {
			// Give a stale timer goroutine time to run, then check well
			// inside the new 5ms window.
			time.Sleep(2 * time.Millisecond)
			require.True(t, r.Has("openai"), "iteration %d: extended session was killed by the old timer", i)
		} else {
			assert.Empty(t, l.named(EventExtended), "iteration %d: extended emitted for a dead session", i)
		}
		r.EndAll()
	}
}

func TestEnd(t *testing.T) {
	r := NewRegistry()
	l := watch(r)

	r.Start("openai", "sk-abc", time.Second)
	assert.True(t, r.End("openai"))
	assert.False(t, r.Has("openai"))
	assert.Len(t, l.named(EventEnded), 1)

	// Ending twice is a no-op.
	assert.False(t, r.End("openai"))
	assert.Len(t, l.named(EventEnded), 1)
}

func TestEndAll(t *testing.T) {
	r := NewRegistry()
	l := watch(r)

	r.Start("openai", "a", time.Second)
	r.Start("anthropic", "b", time.Second)
	r.Start("google", "c", time.Second)

	r.EndAll()

	assert.Empty(t, r.Active())
	assert.Len(t, l.named(EventEnded), 3)
	assert.Len(t, l.named(EventCleared), 1)
}

func TestInfo(t *testing.T) {
	r := NewRegistry()

	_, ok := r.Info("openai")
	assert.False(t, ok)

	r.Start("openai", "sk-abc", time.Second)
	info, ok := r.Info("openai")
	require.True(t, ok)
	assert.True(t, info.Active)
	assert.Equal(t, "openai", info.Provider)
	assert.Equal(t, time.Second, info.Duration)
	assert.Greater(t, info.Remaining, time.Duration(0))
	assert.LessOrEqual(t, info.Remaining, time.Second)
	assert.True(t, info.ExpiresAt.After(time.Now().Add(-time.Millisecond)))
}

func TestExpiredListenerSeesConsistentState(t *testing.T) {
	r := NewRegistry()

	consistent := make(chan bool, 1)
	r.On(EventExpired, func(evt events.Event) {
		// By the time the event fires, the registry must already have
		// removed the entry.
		consistent <- !r.Has(evt.Provider)
	})

	r.Start("openai", "sk-abc", 50*time.Millisecond)

	select {
	case ok := <-consistent:
		assert.True(t, ok, "expired listener observed a stale session entry")
	case <-time.After(time.Second):
		t.Fatal("expired event never fired")
	}
}
