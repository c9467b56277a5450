// internal/panel/panel.go
//
// Hardware standby knobs. A Modbus device exposes two BCD16 holding
// registers (COM1 standby, COM2 standby); when one changes to a valid
// frequency the radio is retuned.
package panel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/tamzrod/fsbridge/internal/bcd"
	cfg "github.com/tamzrod/fsbridge/internal/config"
	"github.com/tamzrod/fsbridge/internal/radio"
	wmodbus "github.com/tamzrod/fsbridge/internal/writer/modbus"
)

// Registers read per cycle.
const Registers = 2

// Reader abstracts the Modbus read the panel needs.
type Reader interface {
	ReadHoldingRegisters(unitID uint8, addr, qty uint16) ([]uint16, error)
}

// Tuner is the radio operation the panel drives.
type Tuner interface {
	SetStandby(r radio.Radio, mhz float64) error
}

// Config is the minimal runtime config the panel needs.
type Config struct {
	UnitID   uint8
	Address  uint16
	Interval time.Duration
}

// Panel is a clock-driven reader of the standby registers.
type Panel struct {
	cfg   Config
	in    Reader
	radio Tuner
	log   *slog.Logger

	// last applied register value per radio; the first read only primes it
	last   [Registers]uint16
	primed bool
}

// New creates a panel with immutable config.
func New(c Config, in Reader, t Tuner, log *slog.Logger) (*Panel, error) {
	if c.Interval <= 0 {
		return nil, errors.New("panel: interval must be > 0")
	}
	if in == nil || t == nil {
		return nil, errors.New("panel: reader and tuner required")
	}
	if log == nil {
		log = slog.Default()
	}
	return &Panel{cfg: c, in: in, radio: t, log: log.With("component", "panel")}, nil
}

// PollOnce reads both registers and retunes every radio whose register
// changed. A zero register means "no selection" and is ignored.
// A failed tune leaves the register pending so the next cycle retries.
func (p *Panel) PollOnce() error {
	regs, err := p.in.ReadHoldingRegisters(p.cfg.UnitID, p.cfg.Address, Registers)
	if err != nil {
		return fmt.Errorf("panel: read: %w", err)
	}
	if len(regs) != Registers {
		return fmt.Errorf("panel: read %d registers, want %d", len(regs), Registers)
	}

	if !p.primed {
		copy(p.last[:], regs)
		p.primed = true
		p.log.Info("panel primed", "com1", fmt.Sprintf("0x%04X", regs[0]), "com2", fmt.Sprintf("0x%04X", regs[1]))
		return nil
	}

	var errs []string
	for i, v := range regs {
		if v == p.last[i] {
			continue
		}
		r := radio.Radio(i + 1)

		if v == 0 {
			p.last[i] = v
			continue
		}

		mhz, err := bcd.DecodeFrequency16(v)
		if err == nil {
			err = radio.Validate(mhz)
		}
		if err != nil {
			// bad input is not retried until the register changes again
			p.last[i] = v
			errs = append(errs, fmt.Sprintf("%s register 0x%04X: %v", r, v, err))
			continue
		}

		if err := p.radio.SetStandby(r, mhz); err != nil {
			errs = append(errs, fmt.Sprintf("%s tune %.2f: %v", r, mhz, err))
			continue
		}
		p.last[i] = v
		p.log.Info("standby from panel", "radio", r.String(), "mhz", mhz)
	}

	if len(errs) > 0 {
		return errors.New("panel: " + strings.Join(errs, " | "))
	}
	return nil
}

// Run polls until ctx is done. Errors are logged, never fatal.
func (p *Panel) Run(ctx context.Context) {
	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.PollOnce(); err != nil {
				p.log.Warn("panel poll failed", "err", err)
			}
		}
	}
}

// Build connects the panel's Modbus client from normalized config.
// The returned closer releases the client.
func Build(pc cfg.PanelConfig, t Tuner, log *slog.Logger) (*Panel, func() error, error) {
	ep, err := cfg.ParseEndpoint(pc.Endpoint)
	if err != nil {
		return nil, nil, fmt.Errorf("panel: %w", err)
	}
	cli, err := wmodbus.NewEndpointClient(wmodbus.FromConfig(ep, pc.TimeoutMs, pc.Serial))
	if err != nil {
		return nil, nil, err
	}
	p, err := New(Config{
		UnitID:   pc.UnitID,
		Address:  pc.Address,
		Interval: time.Duration(pc.IntervalMs) * time.Millisecond,
	}, cli, t, log)
	if err != nil {
		_ = cli.Close()
		return nil, nil, err
	}
	return p, cli.Close, nil
}
