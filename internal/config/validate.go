// internal/config/validate.go
package config

import (
	"fmt"
	"strings"

	"github.com/tamzrod/fsbridge/internal/fsconnect"
	"github.com/tamzrod/fsbridge/internal/status"
)

// Endpoint schemes.
const (
	SchemeTCP = "tcp"
	SchemeRTU = "rtu"
)

// Endpoint is a parsed Modbus endpoint.
type Endpoint struct {
	Scheme  string
	Address string // host:port for tcp, device path for rtu
}

// ParseEndpoint accepts tcp://host:port and rtu://<device>.
// A bare host:port is taken as tcp.
func ParseEndpoint(s string) (Endpoint, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Endpoint{}, fmt.Errorf("endpoint is empty")
	}
	scheme, rest, found := strings.Cut(s, "://")
	if !found {
		return Endpoint{Scheme: SchemeTCP, Address: s}, nil
	}
	scheme = strings.ToLower(scheme)
	if scheme != SchemeTCP && scheme != SchemeRTU {
		return Endpoint{}, fmt.Errorf("endpoint %q: unsupported scheme %q", s, scheme)
	}
	if rest == "" {
		return Endpoint{}, fmt.Errorf("endpoint %q: missing address", s)
	}
	return Endpoint{Scheme: scheme, Address: rest}, nil
}

// Validate checks configuration correctness.
// It performs declarative validation only.
// It MUST NOT mutate configuration.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}

	switch strings.ToLower(cfg.Log.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level %q: want debug, info, warn or error", cfg.Log.Level)
	}

	// ------------------------------------------------------------
	// HOST
	// ------------------------------------------------------------

	switch cfg.Host.Transport {
	case "", TransportDLL, TransportSimulated:
	default:
		return fmt.Errorf("host.transport %q: want %s or %s", cfg.Host.Transport, TransportDLL, TransportSimulated)
	}
	if cfg.Host.TimeoutMs < 0 {
		return fmt.Errorf("host.timeout_ms must be >= 0")
	}

	if r := cfg.Host.Remote; r.Enabled() {
		if cfg.Host.Transport == TransportSimulated {
			return fmt.Errorf("host.remote is not supported with the simulated transport")
		}
		if r.Protocol != "" {
			if _, err := fsconnect.ParseProtocol(r.Protocol); err != nil {
				return fmt.Errorf("host.remote.protocol: %w", err)
			}
		}
		if r.Port <= 0 || r.Port > 65535 {
			return fmt.Errorf("host.remote.port %d out of range", r.Port)
		}
		switch fsconnect.FileLocation(strings.ToLower(r.CfgLocation)) {
		case "", fsconnect.LocationLocal, fsconnect.LocationDocuments:
		default:
			return fmt.Errorf("host.remote.cfg_location %q: want local or documents", r.CfgLocation)
		}
	}

	// ------------------------------------------------------------
	// RADIO
	// ------------------------------------------------------------

	if cfg.Radio.RefreshIntervalMs < 0 || cfg.Radio.TimeoutMs < 0 {
		return fmt.Errorf("radio intervals must be >= 0")
	}

	// ------------------------------------------------------------
	// MIRROR TARGETS
	// ------------------------------------------------------------

	if err := checkASCII("mirror.name", cfg.Mirror.Name); err != nil {
		return err
	}

	type span struct {
		start uint16
		end   uint16
		owner string
	}

	// key = scheme | address | unit_id
	spans := make(map[string][]span)

	claim := func(ep Endpoint, unitID uint8, start, end uint16, owner string) error {
		key := fmt.Sprintf("%s|%s|%d", ep.Scheme, ep.Address, unitID)
		for _, s := range spans[key] {
			// overlap check (inclusive)
			if !(end < s.start || start > s.end) {
				return fmt.Errorf(
					"register overlap: endpoint=%s://%s unit_id=%d range=%d-%d (%s) overlaps range=%d-%d (%s)",
					ep.Scheme, ep.Address, unitID, start, end, owner, s.start, s.end, s.owner,
				)
			}
		}
		spans[key] = append(spans[key], span{start: start, end: end, owner: owner})
		return nil
	}

	ids := make(map[string]bool)
	for i, t := range cfg.Mirror.Targets {
		if t.ID == "" {
			return fmt.Errorf("mirror.targets[%d]: id required", i)
		}
		if ids[t.ID] {
			return fmt.Errorf("mirror target %q: duplicate id", t.ID)
		}
		ids[t.ID] = true

		ep, err := ParseEndpoint(t.Endpoint)
		if err != nil {
			return fmt.Errorf("mirror target %q: %w", t.ID, err)
		}
		if t.TimeoutMs < 0 {
			return fmt.Errorf("mirror target %q: timeout_ms must be >= 0", t.ID)
		}
		if err := validateSerial(ep, t.Serial); err != nil {
			return fmt.Errorf("mirror target %q: %w", t.ID, err)
		}

		// the block must fit in the 16-bit address space
		start := uint32(t.Slot) * status.SlotsPerDevice
		if start+status.SlotsPerDevice-1 > 0xFFFF {
			return fmt.Errorf("mirror target %q: slot %d exceeds register space", t.ID, t.Slot)
		}
		if err := claim(ep, t.UnitID, uint16(start), uint16(start+status.SlotsPerDevice-1), "target "+t.ID); err != nil {
			return err
		}
	}

	// ------------------------------------------------------------
	// PANEL
	// ------------------------------------------------------------

	if p := cfg.Panel; p != nil {
		ep, err := ParseEndpoint(p.Endpoint)
		if err != nil {
			return fmt.Errorf("panel: %w", err)
		}
		if p.IntervalMs < 0 || p.TimeoutMs < 0 {
			return fmt.Errorf("panel: intervals must be >= 0")
		}
		if p.Address == 0xFFFF {
			return fmt.Errorf("panel: address %d leaves no room for two registers", p.Address)
		}
		if err := validateSerial(ep, p.Serial); err != nil {
			return fmt.Errorf("panel: %w", err)
		}
		// the panel reads what the mirror would overwrite
		if err := claim(ep, p.UnitID, p.Address, p.Address+1, "panel"); err != nil {
			return err
		}
	}

	return nil
}

func validateSerial(ep Endpoint, s SerialConfig) error {
	if ep.Scheme != SchemeRTU {
		return nil
	}
	switch strings.ToUpper(s.Parity) {
	case "", "N", "E", "O":
	default:
		return fmt.Errorf("serial.parity %q: want N, E or O", s.Parity)
	}
	if s.DataBits != 0 && (s.DataBits < 5 || s.DataBits > 8) {
		return fmt.Errorf("serial.data_bits %d out of range", s.DataBits)
	}
	if s.StopBits != 0 && s.StopBits != 1 && s.StopBits != 2 {
		return fmt.Errorf("serial.stop_bits %d: want 1 or 2", s.StopBits)
	}
	if s.BaudRate < 0 {
		return fmt.Errorf("serial.baud_rate must be >= 0")
	}
	return nil
}

// ASCII only, as the name is packed two characters per register.
func checkASCII(field, s string) error {
	for i := 0; i < len(s); i++ {
		if s[i] > 0x7F {
			return fmt.Errorf("%s must contain ASCII characters only", field)
		}
	}
	return nil
}
