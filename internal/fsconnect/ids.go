// internal/fsconnect/ids.go
package fsconnect

import (
	"fmt"
	"sync/atomic"
)

// ID identifies a definition, request, client event or notification group.
// The host treats all four as plain 32-bit values; one Allocator keeps them
// from colliding.
type ID uint32

// FirstID is the first identifier handed out by an Allocator.
// IDs below it are reserved for the session's own system events and groups.
const FirstID ID = 256

// Allocator issues strictly increasing identifiers.
// It is safe for concurrent use.
type Allocator struct {
	next atomic.Uint32
}

// NewAllocator returns an allocator starting at FirstID.
func NewAllocator() *Allocator {
	a := &Allocator{}
	a.next.Store(uint32(FirstID))
	return a
}

// Next returns a fresh identifier.
// Running into the host's Unused sentinel panics: it cannot happen within
// a realistic session and continuing would hand out aliased ids.
func (a *Allocator) Next() ID {
	for {
		cur := a.next.Load()
		if cur >= uint32(Unused) {
			panic(fmt.Errorf("%w: allocator reached 0x%08X", ErrIDExhausted, cur))
		}
		if a.next.CompareAndSwap(cur, cur+1) {
			return ID(cur)
		}
	}
}

// peek returns the identifier the next call to Next would return.
func (a *Allocator) peek() ID {
	return ID(a.next.Load())
}
