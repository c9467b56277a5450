// Package fsconnect is the client-side connection and dispatch engine for a
// flight simulation host reached over its inter-process client protocol.
//
// A Session owns one Transport and one receiver goroutine. The receiver
// waits for the transport's data-ready signal, drains inbound host messages
// and fans each one out to:
//
//   - the pending request table (RequestAndWait callers),
//   - public subscribers registered with the On* methods,
//   - internal handling of open/quit/pause/sim-state messages.
//
// Identifiers for data definitions, requests, client events and
// notification groups come from one per-session Allocator and never
// collide while the session lives.
//
// Registration calls (RegisterDataDefinition, MapClientEventToSimEvent,
// RegisterInputEvent, ...) are serialized by the session and are meant to
// run during setup. Fire-and-forget calls (TransmitClientEvent, SetPaused,
// UpdateData, ...) may be issued from any goroutine.
//
// Handlers run on the receiver goroutine. They must not block on session
// operations that wait for the receiver (RequestAndWait, Shutdown); calling
// Disconnect from a handler is safe.
package fsconnect
