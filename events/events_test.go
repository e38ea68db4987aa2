package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEmit_RegistrationOrder(t *testing.T) {
	e := NewEmitter()
	var order []int

	e.On("ping", func(Event) { order = append(order, 1) })
	e.On("ping", func(Event) { order = append(order, 2) })
	e.On("ping", func(Event) { order = append(order, 3) })

	e.Emit(Event{Name: "ping"})
	assert.Equal(t, []int{1, 2, 3}, order)
}

func TestEmit_Synchronous(t *testing.T) {
	e := NewEmitter()
	fired := false
	e.On("ping", func(Event) { fired = true })

	e.Emit(Event{Name: "ping"})
	// No microtask deferral: the handler has run by the time Emit returns.
	assert.True(t, fired)
}

func TestEmit_OnlyMatchingName(t *testing.T) {
	e := NewEmitter()
	var got []string
	e.On("a", func(evt Event) { got = append(got, "a:"+evt.Provider) })
	e.On("b", func(evt Event) { got = append(got, "b:"+evt.Provider) })

	e.Emit(Event{Name: "a", Provider: "openai"})
	assert.Equal(t, []string{"a:openai"}, got)
}

func TestEmit_NoHandlers(t *testing.T) {
	e := NewEmitter()
	assert.NotPanics(t, func() {
		e.Emit(Event{Name: "nobody-listening"})
	})
}

func TestOn_HandlerMayReenter(t *testing.T) {
	e := NewEmitter()
	var secondary bool
	e.On("first", func(Event) {
		e.Emit(Event{Name: "second"})
	})
	e.On("second", func(Event) { secondary = true })

	e.Emit(Event{Name: "first"})
	assert.True(t, secondary)
}
