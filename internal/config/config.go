// internal/config/config.go
package config

import (
	"fmt"
	"os"

	"github.com/caarlos0/env/v6"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. FSBRIDGE_HOST_TRANSPORT.
const EnvPrefix = "FSBRIDGE_"

type Config struct {
	AppName string       `yaml:"app_name" env:"APP_NAME"`
	Log     LogConfig    `yaml:"log" envPrefix:"LOG_"`
	Host    HostConfig   `yaml:"host" envPrefix:"HOST_"`
	Radio   RadioConfig  `yaml:"radio" envPrefix:"RADIO_"`
	Mirror  MirrorConfig `yaml:"mirror" envPrefix:"MIRROR_"`
	Panel   *PanelConfig `yaml:"panel"`
	HTTP    HTTPConfig   `yaml:"http" envPrefix:"HTTP_"`
}

// ---- LOG ----

type LogConfig struct {
	Level string `yaml:"level" env:"LEVEL"` // debug | info | warn | error
}

// ---- HOST ----

const (
	TransportDLL       = "dll"
	TransportSimulated = "simulated"
)

type HostConfig struct {
	Transport   string       `yaml:"transport" env:"TRANSPORT"`
	Library     string       `yaml:"library" env:"LIBRARY"`           // dll transport only
	ConfigIndex uint32       `yaml:"config_index" env:"CONFIG_INDEX"` // entry in SimConnect.cfg
	TimeoutMs   int          `yaml:"timeout_ms" env:"TIMEOUT_MS"`     // default request timeout
	Remote      RemoteConfig `yaml:"remote" envPrefix:"REMOTE_"`
}

// RemoteConfig is opt-in: an empty Address means a local host.
type RemoteConfig struct {
	Protocol    string `yaml:"protocol" env:"PROTOCOL"` // ipv4 | ipv6 | pipe
	Address     string `yaml:"address" env:"ADDRESS"`
	Port        int    `yaml:"port" env:"PORT"`
	CfgLocation string `yaml:"cfg_location" env:"CFG_LOCATION"` // local | documents
}

func (r RemoteConfig) Enabled() bool { return r.Address != "" }

// ---- RADIO ----

type RadioConfig struct {
	RefreshIntervalMs int `yaml:"refresh_interval_ms" env:"REFRESH_INTERVAL_MS"`
	TimeoutMs         int `yaml:"timeout_ms" env:"TIMEOUT_MS"`
}

// ---- MIRROR ----

// MirrorConfig places the bridge status block on Modbus targets.
type MirrorConfig struct {
	Name    string         `yaml:"name" env:"NAME"` // ASCII, stored in the block
	Targets []TargetConfig `yaml:"targets"`
}

type TargetConfig struct {
	ID        string       `yaml:"id"`
	Endpoint  string       `yaml:"endpoint"` // tcp://host:port | rtu:///dev/ttyUSB0
	UnitID    uint8        `yaml:"unit_id"`
	Slot      uint16       `yaml:"slot"` // block starts at slot * 20
	TimeoutMs int          `yaml:"timeout_ms"`
	Serial    SerialConfig `yaml:"serial"`
}

type SerialConfig struct {
	BaudRate int    `yaml:"baud_rate"`
	DataBits int    `yaml:"data_bits"`
	Parity   string `yaml:"parity"` // N | E | O
	StopBits int    `yaml:"stop_bits"`
}

// ---- PANEL ----

// PanelConfig reads standby frequencies from a Modbus device.
// Address holds COM1 standby, Address+1 COM2 standby, both BCD16.
type PanelConfig struct {
	Endpoint   string       `yaml:"endpoint"`
	UnitID     uint8        `yaml:"unit_id"`
	Address    uint16       `yaml:"address"`
	IntervalMs int          `yaml:"interval_ms"`
	TimeoutMs  int          `yaml:"timeout_ms"`
	Serial     SerialConfig `yaml:"serial"`
}

// ---- HTTP ----

type HTTPConfig struct {
	Listen string `yaml:"listen" env:"LISTEN"` // empty disables the API
}

// ------------------------------------------------------------
// LOAD
// ------------------------------------------------------------

// Load reads a YAML file and applies FSBRIDGE_* environment overrides.
// It does not validate.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(b)
}

// Parse decodes YAML and applies environment overrides.
func Parse(b []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("config: yaml: %w", err)
	}
	if err := env.Parse(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("config: env: %w", err)
	}
	return &cfg, nil
}
