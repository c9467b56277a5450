// internal/fsconnect/bridge.go
package fsconnect

import (
	"context"
	"sync"
	"time"
)

// Requester is the part of a Session a Bridge needs.
type Requester interface {
	NextID() ID
	RequestAndWait(ctx context.Context, requestID, defineID ID, timeout time.Duration) (Record, error)
}

// Bridge turns one data definition into a blocking fetch.
//
// Calls are queued: a second caller waits for the first round to finish.
// Each round draws a fresh request id, so a record that arrives after its
// round timed out can never satisfy a later round.
type Bridge struct {
	req      Requester
	defineID ID
	timeout  time.Duration

	mu   sync.Mutex
	last ID
}

// NewBridge builds a bridge for defineID. A timeout of zero uses the
// session default.
func NewBridge(req Requester, defineID ID, timeout time.Duration) *Bridge {
	return &Bridge{req: req, defineID: defineID, timeout: timeout}
}

// Fetch performs one request/response round.
func (b *Bridge) Fetch(ctx context.Context) (Record, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return Record{}, err
	}

	b.last = b.req.NextID()
	return b.req.RequestAndWait(ctx, b.last, b.defineID, b.timeout)
}

// DefineID is the definition this bridge fetches.
func (b *Bridge) DefineID() ID {
	return b.defineID
}

// LastRequestID is the request id of the most recent round.
func (b *Bridge) LastRequestID() ID {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.last
}
