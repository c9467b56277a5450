// cmd/fsbridge/status.go
package main

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/tamzrod/fsbridge/internal/poller"
	"github.com/tamzrod/fsbridge/internal/status"
	"github.com/tamzrod/fsbridge/internal/writer"
)

// tracker is the runner-owned status state. It reports whether a change
// must be delivered.
type tracker struct {
	snap status.Snapshot
	log  *slog.Logger
}

func newTracker(log *slog.Logger) *tracker {
	// Default snapshot state on start.
	return &tracker{
		snap: status.Snapshot{Health: status.HealthUnknown},
		log:  log,
	}
}

// apply folds one poll result into the snapshot.
func (t *tracker) apply(res poller.PollResult) bool {
	prev := t.snap

	t.snap.Connected = res.Connected
	t.snap.Paused = res.Paused

	if res.Err == nil {
		// Recovery / OK
		if err := t.snap.SetFrequencies(res.Frequencies); err != nil {
			// the host handed back something the block cannot hold
			res.Err = err
		} else {
			t.snap.Health = status.HealthOK
			// Reset last error code and seconds-in-error when healthy.
			t.snap.LastErrorCode = 0
			t.snap.SecondsInError = 0
		}
	}

	if res.Err != nil {
		// Error: a lost host freezes data, anything else is a failed refresh.
		if res.Connected {
			t.snap.Health = status.HealthError
		} else {
			t.snap.Health = status.HealthStale
		}
		// Set raw-ish error code (best-effort pass-through).
		t.snap.LastErrorCode = errorCode(res.Err)

		// NOTE: seconds_in_error increments on the 1Hz ticker only.
	}

	if prev.Health != t.snap.Health {
		t.log.Info("bridge health", "from", prev.Health, "to", t.snap.Health, "err", res.Err)
	}
	return prev != t.snap
}

// tick advances seconds-in-error while not OK. It saturates at 65535.
func (t *tracker) tick() bool {
	if t.snap.Health == status.HealthOK || t.snap.SecondsInError == 65535 {
		return false
	}
	t.snap.SecondsInError++
	return true
}

// runStatus consumes poll results and keeps the mirror targets in sync.
// w may be nil when no targets are configured.
func runStatus(ctx context.Context, in <-chan poller.PollResult, w writer.Writer, log *slog.Logger) error {
	t := newTracker(log)

	deliver := func(reason string) {
		if w == nil {
			return
		}
		if err := w.WriteStatus(t.snap); err != nil {
			log.Warn("status write failed", "reason", reason, "err", err)
		}
	}

	secTicker := time.NewTicker(time.Second)
	defer secTicker.Stop()

	// Full block write on start (identity re-assert).
	deliver("start")

	for {
		select {
		case <-ctx.Done():
			// Last word to the targets: the bridge is gone.
			t.snap.Health = status.HealthDisabled
			t.snap.Connected = false
			deliver("stop")
			return nil

		case res := <-in:
			if res.Err != nil {
				log.Debug("poll failed", "err", res.Err)
			}
			if t.apply(res) {
				deliver("poll")
			}

		case <-secTicker.C:
			if t.tick() {
				deliver("tick")
			}
		}
	}
}

// errorCode extracts a best-effort uint16 code from an error without assuming concrete types.
// If the error does not expose a code, returns 1 (generic error).
func errorCode(err error) uint16 {
	if err == nil {
		return 0
	}

	type coder interface{ Code() uint16 }

	var c coder
	if errors.As(err, &c) {
		return c.Code()
	}
	return 1
}
