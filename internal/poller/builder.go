// internal/poller/builder.go
package poller

import (
	"time"

	cfg "github.com/tamzrod/fsbridge/internal/config"
)

// Build constructs a Poller from normalized radio config.
// Each cycle is bounded by the radio timeout plus one interval.
func Build(rc cfg.RadioConfig, r Refresher, host HostState) (*Poller, error) {
	interval := time.Duration(rc.RefreshIntervalMs) * time.Millisecond
	timeout := time.Duration(rc.TimeoutMs) * time.Millisecond

	return New(
		Config{
			Interval: interval,
			Timeout:  timeout + interval,
		},
		r,
		host,
	)
}
