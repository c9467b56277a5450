// internal/poller/runner.go
package poller

import (
	"context"
	"time"
)

// Run polls once immediately, then on every tick, and emits each PollResult
// on out. Cycles never overlap; a slow consumer delays the next cycle.
// Run returns when ctx is done.
func (p *Poller) Run(ctx context.Context, out chan<- PollResult) {
	emit := func() bool {
		res := p.PollOnce(ctx)
		select {
		case out <- res:
			return true
		case <-ctx.Done():
			return false
		}
	}

	if !emit() {
		return
	}

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !emit() {
				return
			}
		}
	}
}
