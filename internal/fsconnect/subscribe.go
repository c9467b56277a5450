// internal/fsconnect/subscribe.go
package fsconnect

import (
	"log/slog"
	"runtime/debug"
	"sync"
)

// DataReceived is a data record delivered for a request.
type DataReceived struct {
	RequestID   ID
	DefineID    ID
	ObjectID    uint32
	Flags       uint32
	EntryNumber uint32
	OutOf       uint32
	DefineCount uint32
	Record      Record
}

// ObjectAddRemove reports a simulation object appearing or leaving.
type ObjectAddRemove struct {
	Added      bool
	ObjectType ObjectType
	ObjectID   uint32
}

// ClientEvent is a mapped client event echoed back by the host.
type ClientEvent struct {
	GroupID ID
	EventID ID
	Data    uint32
}

// SystemState answers RequestSystemState.
type SystemState struct {
	RequestID ID
	Integer   uint32
	Float     float32
	String    string
}

// ------------------------------------------------------------
// HANDLER LISTS
// ------------------------------------------------------------

type handlerEntry[T any] struct {
	id uint64
	fn func(T)
}

type handlers[T any] struct {
	mu   sync.Mutex
	next uint64
	list []handlerEntry[T]
}

func (h *handlers[T]) add(fn func(T)) (cancel func()) {
	if fn == nil {
		return func() {}
	}

	h.mu.Lock()
	h.next++
	id := h.next
	h.list = append(h.list, handlerEntry[T]{id: id, fn: fn})
	h.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			for i, e := range h.list {
				if e.id == id {
					h.list = append(h.list[:i:i], h.list[i+1:]...)
					return
				}
			}
		})
	}
}

func (h *handlers[T]) snapshot() []func(T) {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]func(T), len(h.list))
	for i, e := range h.list {
		out[i] = e.fn
	}
	return out
}

// emit calls every handler in registration order. A panicking handler is
// logged and skipped.
func (h *handlers[T]) emit(log *slog.Logger, m *Metrics, kind string, v T) {
	for _, fn := range h.snapshot() {
		call(log, m, kind, func() { fn(v) })
	}
}

func call(log *slog.Logger, m *Metrics, kind string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			m.handlerPanic(kind)
			log.Error("event handler panicked", "event", kind, "panic", r, "stack", string(debug.Stack()))
		}
	}()
	fn()
}

type subscriptions struct {
	connection  handlers[bool]
	data        handlers[DataReceived]
	addRemove   handlers[ObjectAddRemove]
	errors      handlers[*HostException]
	aircraft    handlers[struct{}]
	flight      handlers[struct{}]
	pause       handlers[bool]
	sim         handlers[bool]
	crashed     handlers[struct{}]
	clientEvent handlers[ClientEvent]
	systemState handlers[SystemState]
}

func unit(fn func()) func(struct{}) {
	if fn == nil {
		return nil
	}
	return func(struct{}) { fn() }
}

// ------------------------------------------------------------
// SUBSCRIBE
// ------------------------------------------------------------
//
// Handlers run on the receiver goroutine in arrival order. They must not
// block on the session (RequestAndWait, Shutdown); Disconnect is safe.
// Each On* call returns a func that removes the handler.

// OnConnectionChanged fires with true on the host's open message and with
// false once the transport has been released.
func (s *Session) OnConnectionChanged(fn func(connected bool)) func() {
	return s.subs.connection.add(fn)
}

func (s *Session) OnDataReceived(fn func(DataReceived)) func() {
	return s.subs.data.add(fn)
}

func (s *Session) OnObjectAddRemove(fn func(ObjectAddRemove)) func() {
	return s.subs.addRemove.add(fn)
}

// OnError receives every host exception.
func (s *Session) OnError(fn func(*HostException)) func() {
	return s.subs.errors.add(fn)
}

func (s *Session) OnAircraftLoaded(fn func()) func() {
	return s.subs.aircraft.add(unit(fn))
}

func (s *Session) OnFlightLoaded(fn func()) func() {
	return s.subs.flight.add(unit(fn))
}

func (s *Session) OnPauseStateChanged(fn func(paused bool)) func() {
	return s.subs.pause.add(fn)
}

// OnSimStateChanged fires with true when the simulation starts running.
func (s *Session) OnSimStateChanged(fn func(running bool)) func() {
	return s.subs.sim.add(fn)
}

func (s *Session) OnCrashed(fn func()) func() {
	return s.subs.crashed.add(unit(fn))
}

// OnClientEvent receives mapped client events, input events included.
func (s *Session) OnClientEvent(fn func(ClientEvent)) func() {
	return s.subs.clientEvent.add(fn)
}

func (s *Session) OnSystemState(fn func(SystemState)) func() {
	return s.subs.systemState.add(fn)
}
