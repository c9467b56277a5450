// internal/writer/modbus/client.go
package modbus

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/goburrow/modbus"

	cfg "github.com/tamzrod/fsbridge/internal/config"
)

// EndpointClient is a single connection to one Modbus endpoint, TCP or RTU.
// It serializes requests because it mutates SlaveId per call.
type EndpointClient struct {
	mu      sync.Mutex
	handler handler
	slave   func(id uint8)
	client  modbus.Client
	name    string
}

// handler is the part of the goburrow TCP and RTU handlers used here.
type handler interface {
	modbus.ClientHandler
	Connect() error
	Close() error
}

type Config struct {
	Scheme  string // tcp | rtu
	Address string // host:port or serial device
	Timeout time.Duration
	Serial  Serial // rtu only
}

type Serial struct {
	BaudRate int
	DataBits int
	Parity   string
	StopBits int
}

// FromConfig builds client config for a parsed endpoint.
func FromConfig(ep cfg.Endpoint, timeoutMs int, s cfg.SerialConfig) Config {
	return Config{
		Scheme:  ep.Scheme,
		Address: ep.Address,
		Timeout: time.Duration(timeoutMs) * time.Millisecond,
		Serial: Serial{
			BaudRate: s.BaudRate,
			DataBits: s.DataBits,
			Parity:   s.Parity,
			StopBits: s.StopBits,
		},
	}
}

// NewEndpointClient connects to the endpoint. One attempt, no retries.
func NewEndpointClient(conf Config) (*EndpointClient, error) {
	if conf.Address == "" {
		return nil, errors.New("writer modbus: address required")
	}

	c := &EndpointClient{name: conf.Scheme + "://" + conf.Address}

	switch conf.Scheme {
	case "tcp", "":
		h := modbus.NewTCPClientHandler(conf.Address)
		if conf.Timeout > 0 {
			h.Timeout = conf.Timeout
		}
		c.handler = h
		c.slave = func(id uint8) { h.SlaveId = id }

	case "rtu":
		h := modbus.NewRTUClientHandler(conf.Address)
		if conf.Timeout > 0 {
			h.Timeout = conf.Timeout
		}
		h.BaudRate = conf.Serial.BaudRate
		h.DataBits = conf.Serial.DataBits
		h.Parity = conf.Serial.Parity
		h.StopBits = conf.Serial.StopBits
		c.handler = h
		c.slave = func(id uint8) { h.SlaveId = id }

	default:
		return nil, fmt.Errorf("writer modbus: unsupported scheme %q", conf.Scheme)
	}

	if err := c.handler.Connect(); err != nil {
		return nil, fmt.Errorf("writer modbus: connect %s: %w", c.name, err)
	}
	c.client = modbus.NewClient(c.handler)
	return c, nil
}

func (c *EndpointClient) String() string { return c.name }

func (c *EndpointClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.handler.Close()
}

// WriteRegisters writes holding registers (FC 16).
func (c *EndpointClient) WriteRegisters(unitID uint8, addr uint16, regs []uint16) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.slave(unitID)

	qty := uint16(len(regs))
	payload := packRegisters(regs)

	_, err := c.client.WriteMultipleRegisters(addr, qty, payload)
	return err
}

// ReadHoldingRegisters reads holding registers (FC 3).
func (c *EndpointClient) ReadHoldingRegisters(unitID uint8, addr, qty uint16) ([]uint16, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.slave(unitID)

	b, err := c.client.ReadHoldingRegisters(addr, qty)
	if err != nil {
		return nil, err
	}
	if len(b) != int(qty)*2 {
		return nil, fmt.Errorf("writer modbus: read %d registers, got %d bytes", qty, len(b))
	}
	return unpackRegisters(b), nil
}

func packRegisters(regs []uint16) []byte {
	out := make([]byte, len(regs)*2)
	for i, r := range regs {
		out[2*i] = byte(r >> 8)
		out[2*i+1] = byte(r)
	}
	return out
}

func unpackRegisters(data []byte) []uint16 {
	n := len(data) / 2
	out := make([]uint16, n)
	for i := 0; i < n; i++ {
		out[i] = uint16(data[2*i])<<8 | uint16(data[2*i+1])
	}
	return out
}
