// internal/poller/poller.go
package poller

import (
	"context"
	"errors"
	"time"
)

var ErrNotConnected = errors.New("poller: host not connected")

// Config is the minimal runtime config the poller needs.
type Config struct {
	Interval time.Duration
	Timeout  time.Duration // per cycle; 0 leaves the refresher's own bound
}

// Poller is a dumb, clock-driven reader.
type Poller struct {
	cfg   Config
	radio Refresher
	host  HostState
}

// New creates a poller with immutable config.
// host may be nil, in which case every cycle refreshes.
func New(cfg Config, r Refresher, host HostState) (*Poller, error) {
	if cfg.Interval <= 0 {
		return nil, errors.New("poller: interval must be > 0")
	}
	if cfg.Timeout < 0 {
		return nil, errors.New("poller: timeout must be >= 0")
	}
	if r == nil {
		return nil, errors.New("poller: refresher required")
	}
	return &Poller{cfg: cfg, radio: r, host: host}, nil
}

// PollOnce performs exactly one poll cycle.
// All-or-nothing: any failure aborts the cycle.
func (p *Poller) PollOnce(ctx context.Context) PollResult {
	res := PollResult{At: time.Now()}

	if p.host != nil {
		res.Connected = p.host.Connected()
		res.Paused = p.host.Paused()
		if !res.Connected {
			res.Err = ErrNotConnected
			return res
		}
	} else {
		res.Connected = true
	}

	if p.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.Timeout)
		defer cancel()
	}

	f, err := p.radio.Refresh(ctx)
	if err != nil {
		res.Err = err
		return res
	}

	// Commit only if the whole record decoded
	res.Frequencies = f
	return res
}
