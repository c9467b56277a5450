// internal/poller/types.go
package poller

import (
	"context"
	"time"

	"github.com/tamzrod/fsbridge/internal/radio"
)

// Refresher reads all radio frequencies in one round trip.
// All-or-nothing: on error the returned value is not fresh.
type Refresher interface {
	Refresh(ctx context.Context) (radio.Frequencies, error)
}

// HostState reports the host session flags copied into each result.
type HostState interface {
	Connected() bool
	Paused() bool
}

// PollResult is a snapshot produced by one poll cycle.
type PollResult struct {
	At time.Time

	Connected bool
	Paused    bool

	Frequencies radio.Frequencies // valid only when Err is nil
	Err         error             // non-nil means the poll cycle failed
}
