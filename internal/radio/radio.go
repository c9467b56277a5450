// internal/radio/radio.go
//
// COM radio control on top of a host session.
// Setters fire client events and return; Refresh is one blocking round
// trip that replaces all four cached frequencies or none of them.
package radio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/tamzrod/fsbridge/internal/bcd"
	"github.com/tamzrod/fsbridge/internal/fsconnect"
)

// Valid COM band, MHz.
const (
	MinMHz = 118.000
	MaxMHz = 135.975
)

var (
	ErrOutOfRange   = errors.New("radio: frequency outside COM band")
	ErrUnknownRadio = errors.New("radio: unknown radio")
)

// Radio selects a COM radio.
type Radio int

const (
	COM1 Radio = 1
	COM2 Radio = 2
)

func (r Radio) String() string {
	switch r {
	case COM1:
		return "COM1"
	case COM2:
		return "COM2"
	}
	return fmt.Sprintf("COM?(%d)", int(r))
}

// ParseRadio accepts 1, 2, com1, com2 in any case.
func ParseRadio(s string) (Radio, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "com1":
		return COM1, nil
	case "2", "com2":
		return COM2, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownRadio, s)
}

// Frequencies is one consistent snapshot of both radios, MHz.
type Frequencies struct {
	Com1Active  float64 `json:"com1_active"`
	Com1Standby float64 `json:"com1_standby"`
	Com2Active  float64 `json:"com2_active"`
	Com2Standby float64 `json:"com2_standby"`
}

// Get returns the active and standby frequency of r.
func (f Frequencies) Get(r Radio) (active, standby float64, err error) {
	switch r {
	case COM1:
		return f.Com1Active, f.Com1Standby, nil
	case COM2:
		return f.Com2Active, f.Com2Standby, nil
	}
	return 0, 0, fmt.Errorf("%w: %d", ErrUnknownRadio, int(r))
}

// Conn is the part of a host session the manager uses.
type Conn interface {
	fsconnect.Requester
	RegisterDataDefinitionID(id fsconnect.ID, def fsconnect.Definition) error
	ConfirmDefinition(ctx context.Context, id fsconnect.ID) error
	MapWellKnownEvent(group, event fsconnect.ID, name fsconnect.EventName) error
	SetNotificationGroupPriority(group fsconnect.ID) error
	TransmitClientEvent(event fsconnect.ID, data uint32, group fsconnect.ID) error
}

// Definition is the record Refresh reads. Field order matches Frequencies.
var Definition = fsconnect.Definition{
	Name: "com radios",
	Fields: []fsconnect.Field{
		{Name: "COM ACTIVE FREQUENCY", Unit: "Frequency BCD32", Type: fsconnect.DataTypeInt32, Instance: 1},
		{Name: "COM STANDBY FREQUENCY", Unit: "Frequency BCD32", Type: fsconnect.DataTypeInt32, Instance: 1},
		{Name: "COM ACTIVE FREQUENCY", Unit: "Frequency BCD32", Type: fsconnect.DataTypeInt32, Instance: 2},
		{Name: "COM STANDBY FREQUENCY", Unit: "Frequency BCD32", Type: fsconnect.DataTypeInt32, Instance: 2},
	},
}

type action int

const (
	setStandby action = iota
	setActive
	swap
)

// per radio, per action
var catalog = map[Radio][3]fsconnect.EventName{
	COM1: {fsconnect.EventComStbyRadioSetHz, fsconnect.EventComRadioSetHz, fsconnect.EventComStbyRadioSwitchTo},
	COM2: {fsconnect.EventCom2StbyRadioSetHz, fsconnect.EventCom2RadioSetHz, fsconnect.EventCom2RadioSwap},
}

// Manager controls the COM radios of the user aircraft.
type Manager struct {
	conn     Conn
	log      *slog.Logger
	group    fsconnect.ID
	defineID fsconnect.ID
	events   map[Radio][3]fsconnect.ID
	bridge   *fsconnect.Bridge

	mu      sync.RWMutex
	freqs   Frequencies
	updated time.Time
}

// Option configures a Manager.
type Option func(*options)

type options struct {
	log     *slog.Logger
	timeout time.Duration
}

func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithTimeout bounds each Refresh round trip.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// New registers the radio group, its six events and the frequency
// definition on conn. conn must be connected.
func New(conn Conn, opts ...Option) (*Manager, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = slog.Default()
	}

	m := &Manager{
		conn:   conn,
		log:    o.log.With("component", "radio"),
		group:  conn.NextID(),
		events: make(map[Radio][3]fsconnect.ID, len(catalog)),
	}

	for _, r := range []Radio{COM1, COM2} {
		var ids [3]fsconnect.ID
		for a, name := range catalog[r] {
			ids[a] = conn.NextID()
			if err := conn.MapWellKnownEvent(m.group, ids[a], name); err != nil {
				return nil, fmt.Errorf("radio: map %s: %w", name, err)
			}
		}
		m.events[r] = ids
	}
	if err := conn.SetNotificationGroupPriority(m.group); err != nil {
		return nil, fmt.Errorf("radio: group priority: %w", err)
	}

	m.defineID = conn.NextID()
	if err := conn.RegisterDataDefinitionID(m.defineID, Definition); err != nil {
		return nil, fmt.Errorf("radio: register definition: %w", err)
	}
	if err := conn.ConfirmDefinition(context.Background(), m.defineID); err != nil {
		return nil, fmt.Errorf("radio: register definition: %w", err)
	}
	m.bridge = fsconnect.NewBridge(conn, m.defineID, o.timeout)

	m.log.Info("radio manager ready", "group", m.group, "define_id", m.defineID)
	return m, nil
}

// DefineID is the frequency definition's id.
func (m *Manager) DefineID() fsconnect.ID {
	return m.defineID
}

// eventID returns the client event used for a radio action.
func (m *Manager) eventID(r Radio, a action) (fsconnect.ID, error) {
	ids, ok := m.events[r]
	if !ok {
		return 0, fmt.Errorf("%w: %d", ErrUnknownRadio, int(r))
	}
	return ids[a], nil
}

// ------------------------------------------------------------
// FIRE-AND-FORGET
// ------------------------------------------------------------

// SetStandby tunes the standby frequency of r.
func (m *Manager) SetStandby(r Radio, mhz float64) error {
	return m.tune(r, setStandby, mhz)
}

// SetActive tunes the active frequency of r.
func (m *Manager) SetActive(r Radio, mhz float64) error {
	return m.tune(r, setActive, mhz)
}

// Swap exchanges active and standby on r.
func (m *Manager) Swap(r Radio) error {
	ev, err := m.eventID(r, swap)
	if err != nil {
		return err
	}
	if err := m.conn.TransmitClientEvent(ev, 0, m.group); err != nil {
		return fmt.Errorf("radio: swap %s: %w", r, err)
	}
	m.log.Debug("swap sent", "radio", r.String())
	return nil
}

func (m *Manager) tune(r Radio, a action, mhz float64) error {
	ev, err := m.eventID(r, a)
	if err != nil {
		return err
	}
	if err := Validate(mhz); err != nil {
		return err
	}
	v, err := bcd.EncodeFrequency(mhz)
	if err != nil {
		return fmt.Errorf("radio: %s %.3f: %w", r, mhz, err)
	}
	if err := m.conn.TransmitClientEvent(ev, v, m.group); err != nil {
		return fmt.Errorf("radio: tune %s: %w", r, err)
	}
	m.log.Debug("frequency sent", "radio", r.String(), "mhz", mhz, "bcd", fmt.Sprintf("0x%08X", v))
	return nil
}

// Validate checks mhz against the COM band.
func Validate(mhz float64) error {
	// tolerate representation noise at the edges
	const eps = 1e-9
	if mhz < MinMHz-eps || mhz > MaxMHz+eps {
		return fmt.Errorf("%w: %.3f (valid %.3f-%.3f)", ErrOutOfRange, mhz, MinMHz, MaxMHz)
	}
	return nil
}

// ------------------------------------------------------------
// REFRESH
// ------------------------------------------------------------

// Refresh reads all four frequencies in one round trip. On any failure
// the cached values stay as they were.
func (m *Manager) Refresh(ctx context.Context) (Frequencies, error) {
	rec, err := m.bridge.Fetch(ctx)
	if err != nil {
		m.log.Debug("refresh failed", "request_id", m.bridge.LastRequestID(), "error", err)
		return m.Frequencies(), fmt.Errorf("radio: refresh: %w", err)
	}

	var raw [4]float64
	for i := range raw {
		v, err := rec.Uint32(i)
		if err != nil {
			return m.Frequencies(), fmt.Errorf("radio: refresh field %d: %w", i, err)
		}
		mhz, err := bcd.DecodeFrequency(v)
		if err != nil {
			return m.Frequencies(), fmt.Errorf("radio: refresh field %d: %w", i, err)
		}
		raw[i] = mhz
	}

	f := Frequencies{
		Com1Active:  raw[0],
		Com1Standby: raw[1],
		Com2Active:  raw[2],
		Com2Standby: raw[3],
	}

	m.mu.Lock()
	m.freqs = f
	m.updated = time.Now()
	m.mu.Unlock()

	return f, nil
}

// Frequencies returns the last refreshed values.
func (m *Manager) Frequencies() Frequencies {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.freqs
}

// Updated is when the cache was last replaced; zero before the first
// successful Refresh.
func (m *Manager) Updated() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.updated
}
