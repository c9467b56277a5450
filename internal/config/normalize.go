// internal/config/normalize.go
package config

import (
	"strings"

	"github.com/tamzrod/fsbridge/internal/status"
)

// Defaults applied by Normalize.
const (
	DefaultAppName           = "fsbridge"
	DefaultLogLevel          = "info"
	DefaultHostTimeoutMs     = 10000
	DefaultRefreshIntervalMs = 1000
	DefaultRadioTimeoutMs    = 2000
	DefaultModbusTimeoutMs   = 1000
	DefaultPanelIntervalMs   = 500
	DefaultRemoteProtocol    = "ipv4"
)

// Normalize applies post-validation normalization.
// It is allowed to mutate configuration.
// It MUST be called only after Validate().
func Normalize(cfg *Config) {
	if cfg == nil {
		return
	}

	if cfg.AppName == "" {
		cfg.AppName = DefaultAppName
	}
	cfg.Log.Level = strings.ToLower(cfg.Log.Level)
	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}

	// ---- host ----

	if cfg.Host.Transport == "" {
		cfg.Host.Transport = TransportDLL
	}
	if cfg.Host.TimeoutMs == 0 {
		cfg.Host.TimeoutMs = DefaultHostTimeoutMs
	}
	if cfg.Host.Remote.Enabled() {
		if cfg.Host.Remote.Protocol == "" {
			cfg.Host.Remote.Protocol = DefaultRemoteProtocol
		}
		cfg.Host.Remote.CfgLocation = strings.ToLower(cfg.Host.Remote.CfgLocation)
		if cfg.Host.Remote.CfgLocation == "" {
			cfg.Host.Remote.CfgLocation = "local"
		}
	}

	// ---- radio ----

	if cfg.Radio.RefreshIntervalMs == 0 {
		cfg.Radio.RefreshIntervalMs = DefaultRefreshIntervalMs
	}
	if cfg.Radio.TimeoutMs == 0 {
		cfg.Radio.TimeoutMs = DefaultRadioTimeoutMs
	}

	// ---- mirror ----

	// Truncate the name to what the block can hold; ASCII already validated.
	if len(cfg.Mirror.Name) > status.NameMaxChars {
		cfg.Mirror.Name = cfg.Mirror.Name[:status.NameMaxChars]
	}
	if cfg.Mirror.Name == "" {
		cfg.Mirror.Name = cfg.AppName
		if len(cfg.Mirror.Name) > status.NameMaxChars {
			cfg.Mirror.Name = cfg.Mirror.Name[:status.NameMaxChars]
		}
	}
	for i := range cfg.Mirror.Targets {
		t := &cfg.Mirror.Targets[i]
		if t.TimeoutMs == 0 {
			t.TimeoutMs = DefaultModbusTimeoutMs
		}
		normalizeSerial(&t.Serial)
	}

	// ---- panel ----

	if p := cfg.Panel; p != nil {
		if p.IntervalMs == 0 {
			p.IntervalMs = DefaultPanelIntervalMs
		}
		if p.TimeoutMs == 0 {
			p.TimeoutMs = DefaultModbusTimeoutMs
		}
		normalizeSerial(&p.Serial)
	}
}

// Serial defaults follow the Modbus RTU convention: 19200 8E1.
func normalizeSerial(s *SerialConfig) {
	if s.BaudRate == 0 {
		s.BaudRate = 19200
	}
	if s.DataBits == 0 {
		s.DataBits = 8
	}
	s.Parity = strings.ToUpper(s.Parity)
	if s.Parity == "" {
		s.Parity = "E"
	}
	if s.StopBits == 0 {
		s.StopBits = 1
	}
}
