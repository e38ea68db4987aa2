package keymanager

import (
	"github.com/jmcleod/keyguard/events"
	"github.com/jmcleod/keyguard/session"
)

// Event names emitted by the Manager. Session lifecycle events are re-emitted
// from the registry under the session* names; every operation additionally has
// an error shadow carrying the classified error in Event.Err.
const (
	EventEnrolled        = "enrolled"
	EventSecretStored    = "secretStored"
	EventSecretRetrieved = "secretRetrieved"
	EventSecretTested    = "secretTested"
	EventRevoked         = "revoked"

	EventSessionStarted  = "sessionStarted"
	EventSessionExtended = "sessionExtended"
	EventSessionExpired  = "sessionExpired"
	EventSessionEnded    = "sessionEnded"
	EventSessionsCleared = "sessionsCleared"

	EventEnrollError   = "enrollError"
	EventStoreError    = "storeSecretError"
	EventRetrieveError = "retrieveSecretError"
	EventTestError     = "testSecretError"
	EventRevokeError   = "revokeError"
)

// On registers a handler for the named event. Handlers run synchronously, in
// registration order, on the goroutine that caused the event (the expiry
// timer's goroutine for sessionExpired).
func (m *Manager) On(name string, fn events.Handler) {
	m.emitter.On(name, fn)
}

func (m *Manager) relaySessionEvents() {
	relay := func(from, to string) {
		m.registry.On(from, func(e events.Event) {
			e.Name = to
			m.emitter.Emit(e)
		})
	}
	relay(session.EventStarted, EventSessionStarted)
	relay(session.EventExtended, EventSessionExtended)
	relay(session.EventExpired, EventSessionExpired)
	relay(session.EventEnded, EventSessionEnded)
	relay(session.EventCleared, EventSessionsCleared)
}

func (m *Manager) emitErr(name, provider string, err error) {
	m.emitter.Emit(events.Event{Name: name, Provider: provider, Err: err})
}
