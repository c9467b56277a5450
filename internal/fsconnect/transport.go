// internal/fsconnect/transport.go
package fsconnect

import "context"

// Transport is the host session handle: open (DialFunc), send, receive, dispose.
//
// Send may be called from any goroutine, concurrently with Receive.
// Receive and Close are only called by the session's receiver goroutine.
type Transport interface {
	// Send issues one host call and returns the packet's send id,
	// which the host echoes in exceptions.
	Send(req Request) (sendID uint32, err error)

	// Ready fires when at least one message may be waiting.
	// It behaves like an auto-reset event: one signal may cover many messages.
	Ready() <-chan struct{}

	// Receive returns the next message, or ErrNoMessage when drained.
	// ErrTransportClosed reports a dead link; the session disconnects.
	Receive() (Message, error)

	// Close releases the handle.
	Close() error
}

// DialOptions are passed to a DialFunc on Connect.
type DialOptions struct {
	AppName     string
	ConfigIndex uint32
}

// DialFunc opens a Transport. A failure must leave nothing open.
type DialFunc func(ctx context.Context, opts DialOptions) (Transport, error)
