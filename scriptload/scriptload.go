// Package scriptload models the capability of pulling an external vendor
// script into the host and hearing back from it. The browser counterpart
// injects a script tag and listens for custom events on the resulting
// element; here a Loader fetches and runs the vendor's bootstrap on behalf
// of a module and raises the same events on a ScriptHandle.
package scriptload

import (
	"context"
	"sync"
)

// Event is a named notification raised by a loaded script.
type Event struct {
	Type   string
	Detail interface{}
}

// Listener consumes events of one type from a script handle.
type Listener func(Event)

// Handle receives the events of one loaded script.
type Handle interface {
	// AddEventListener registers fn for events of the named type. Events of
	// that type emitted before registration are replayed to fn in order, so
	// a caller subscribing right after Load cannot miss early events.
	AddEventListener(event string, fn Listener)
}

// Loader fetches and runs an external script on behalf of the named module.
//
// A nil Handle with a nil error means the loader declined the request;
// callers should treat that as a silent no-op.
type Loader interface {
	Load(ctx context.Context, url string, moduleName string) (Handle, error)
}

// ScriptHandle is the dispatching side of Handle. The loading side emits,
// the module side listens. Dispatch is synchronous, in registration order.
type ScriptHandle struct {
	mu        sync.Mutex
	listeners map[string][]Listener
	emitted   []Event
}

func NewHandle() *ScriptHandle {
	return &ScriptHandle{
		listeners: make(map[string][]Listener),
	}
}

func (h *ScriptHandle) AddEventListener(event string, fn Listener) {
	h.mu.Lock()
	h.listeners[event] = append(h.listeners[event], fn)

	var replay []Event
	for _, ev := range h.emitted {
		if ev.Type == event {
			replay = append(replay, ev)
		}
	}
	h.mu.Unlock()

	for _, ev := range replay {
		fn(ev)
	}
}

// Emit delivers the event to all current listeners of its type and records
// it for listeners yet to register. Listeners run outside the handle lock.
func (h *ScriptHandle) Emit(event string, detail interface{}) {
	ev := Event{Type: event, Detail: detail}

	h.mu.Lock()
	h.emitted = append(h.emitted, ev)
	listeners := make([]Listener, len(h.listeners[event]))
	copy(listeners, h.listeners[event])
	h.mu.Unlock()

	for _, fn := range listeners {
		fn(ev)
	}
}

// NoopLoader declines every load request. It stands in when a host embeds
// the modules without any script delivery wired up.
type NoopLoader struct{}

func (NoopLoader) Load(ctx context.Context, url string, moduleName string) (Handle, error) {
	return nil, nil
}
