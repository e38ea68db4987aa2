// Package events provides the synchronous observer registry used for
// lifecycle notifications. Handlers run in registration order on the same
// call stack as the mutation that triggered them; there is no batching and
// no deferred dispatch.
package events

import (
	"sync"
	"time"
)

// Event is the payload delivered to handlers. Fields beyond Name and
// Provider are populated per event kind: Duration on session start/extend,
// FromCache on retrievals, Err on *Error shadows.
type Event struct {
	Name      string
	Provider  string
	Duration  time.Duration
	FromCache bool
	Err       error
}

// Handler receives emitted events.
type Handler func(Event)

// Emitter dispatches events to handlers registered per event name.
// Safe for concurrent use.
type Emitter struct {
	mu       sync.Mutex
	handlers map[string][]Handler
}

// NewEmitter creates an empty emitter.
func NewEmitter() *Emitter {
	return &Emitter{handlers: make(map[string][]Handler)}
}

// On registers fn for the named event. Handlers for a name run in the order
// they were registered.
func (e *Emitter) On(name string, fn Handler) {
	if fn == nil {
		return
	}
	e.mu.Lock()
	e.handlers[name] = append(e.handlers[name], fn)
	e.mu.Unlock()
}

// Emit invokes every handler registered for evt.Name, synchronously.
// Handlers are called outside the emitter's lock, so they may register
// further handlers or emit follow-up events.
func (e *Emitter) Emit(evt Event) {
	e.mu.Lock()
	registered := e.handlers[evt.Name]
	handlers := make([]Handler, len(registered))
	copy(handlers, registered)
	e.mu.Unlock()

	for _, fn := range handlers {
		fn(evt)
	}
}
