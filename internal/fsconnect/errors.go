// internal/fsconnect/errors.go
package fsconnect

import (
	"errors"
	"fmt"
)

var (
	// Connection lifecycle
	ErrConnectFailed    = errors.New("fsconnect: could not connect to host")
	ErrNotConnected     = errors.New("fsconnect: not connected")
	ErrAlreadyConnected = errors.New("fsconnect: already connected")
	ErrDisconnected     = errors.New("fsconnect: disconnected while waiting")

	// Registration
	ErrAlreadyRegistered  = errors.New("fsconnect: already registered")
	ErrEmptyDefinition    = errors.New("fsconnect: definition has no fields")
	ErrUnknownDefinition  = errors.New("fsconnect: unknown definition")
	ErrDefinitionRejected = errors.New("fsconnect: definition rejected by host")
	ErrIDExhausted        = errors.New("fsconnect: identifier space exhausted")

	// Requests
	ErrNoResponse     = errors.New("fsconnect: no response from host")
	ErrRequestPending = errors.New("fsconnect: request already has a waiter")

	// Transport
	ErrNoMessage       = errors.New("fsconnect: no message available")
	ErrTransportClosed = errors.New("fsconnect: transport can no longer reach the host")
)

// HostException is a request the host rejected.
// It is delivered to OnError subscribers; when the rejected packet belonged
// to a data definition registration, Definition and Field are set.
type HostException struct {
	Exception ExceptionCode
	SendID    uint32
	Index     uint32

	Definition ID
	Field      string
}

func (e *HostException) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("host exception %s (send=%d index=%d) definition=%d field=%q",
			e.Exception, e.SendID, e.Index, e.Definition, e.Field)
	}
	return fmt.Sprintf("host exception %s (send=%d index=%d)", e.Exception, e.SendID, e.Index)
}

// Code exposes the raw exception code for status reporting.
func (e *HostException) Code() uint16 {
	if e.Exception > 0xFFFF {
		return 0xFFFF
	}
	return uint16(e.Exception)
}
