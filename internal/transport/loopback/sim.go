// internal/transport/loopback/sim.go
package loopback

import (
	"encoding/binary"
	"log/slog"
	"math"
	"sync"

	"github.com/tamzrod/fsbridge/internal/bcd"
	"github.com/tamzrod/fsbridge/internal/fsconnect"
)

// Simulator is a Responder that behaves like a small host: it knows a set
// of variables, answers data requests from registered definitions, applies
// radio and pause events and rejects unknown variable names.
type Simulator struct {
	mu     sync.Mutex
	vars   map[string]float64
	defs   map[fsconnect.ID][]fsconnect.AddToDataDefinition
	events map[fsconnect.ID]string
	system map[string]fsconnect.ID
	paused bool
	log    *slog.Logger
}

const (
	varCom1Active  = "COM ACTIVE FREQUENCY:1"
	varCom1Standby = "COM STANDBY FREQUENCY:1"
	varCom2Active  = "COM ACTIVE FREQUENCY:2"
	varCom2Standby = "COM STANDBY FREQUENCY:2"
)

// NewSimulator returns a simulator with both COM radios tuned.
func NewSimulator(log *slog.Logger) *Simulator {
	if log == nil {
		log = slog.Default()
	}
	s := &Simulator{
		vars:   make(map[string]float64),
		defs:   make(map[fsconnect.ID][]fsconnect.AddToDataDefinition),
		events: make(map[fsconnect.ID]string),
		system: make(map[string]fsconnect.ID),
		log:    log,
	}
	s.setFreq(varCom1Active, 122.80)
	s.setFreq(varCom1Standby, 121.50)
	s.setFreq(varCom2Active, 124.35)
	s.setFreq(varCom2Standby, 118.00)
	s.vars["SIM ON GROUND"] = 1
	return s
}

func (s *Simulator) setFreq(name string, mhz float64) {
	v, err := bcd.EncodeFrequency(mhz)
	if err != nil {
		panic(err)
	}
	s.vars[name] = float64(v)
}

// Set assigns a variable, creating it if needed.
func (s *Simulator) Set(name string, v float64) {
	s.mu.Lock()
	s.vars[name] = v
	s.mu.Unlock()
}

// Get returns a variable's value.
func (s *Simulator) Get(name string) (float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.vars[name]
	return v, ok
}

// Paused reports the simulated pause state.
func (s *Simulator) Paused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused
}

// Respond implements Responder.
func (s *Simulator) Respond(h *Host, sendID uint32, req fsconnect.Request) {
	switch r := req.(type) {
	case fsconnect.AddToDataDefinition:
		s.mu.Lock()
		_, known := s.vars[r.DatumName]
		if known {
			s.defs[r.DefineID] = append(s.defs[r.DefineID], r)
		}
		s.mu.Unlock()
		if !known {
			s.log.Debug("sim: unknown variable", "name", r.DatumName)
			h.Inject(fsconnect.ExceptionMessage{
				Exception: fsconnect.ExceptionNameUnrecognized,
				SendID:    sendID,
				Index:     1,
			})
		}

	case fsconnect.RequestDataOnSimObjectType:
		s.answer(h, sendID, r.RequestID, r.DefineID, true)

	case fsconnect.RequestDataOnSimObject:
		if r.Period != fsconnect.PeriodNever {
			s.answer(h, sendID, r.RequestID, r.DefineID, false)
		}

	case fsconnect.SubscribeToSystemEvent:
		s.mu.Lock()
		s.system[r.SystemEventName] = r.EventID
		s.mu.Unlock()

	case fsconnect.MapClientEventToSimEvent:
		s.mu.Lock()
		s.events[r.EventID] = r.EventName
		s.mu.Unlock()

	case fsconnect.TransmitClientEvent:
		s.apply(h, r)

	case fsconnect.RequestSystemState:
		var v uint32
		if r.State == "Sim" {
			v = 1
		}
		h.Inject(fsconnect.SystemStateMessage{RequestID: r.RequestID, Integer: v})
	}
}

func (s *Simulator) answer(h *Host, sendID uint32, requestID, defineID fsconnect.ID, byType bool) {
	s.mu.Lock()
	fields, ok := s.defs[defineID]
	var data []byte
	if ok {
		data = s.encodeLocked(fields)
	}
	s.mu.Unlock()

	if !ok {
		h.Inject(fsconnect.ExceptionMessage{
			Exception: fsconnect.ExceptionUnrecognizedID,
			SendID:    sendID,
			Index:     2,
		})
		return
	}
	h.Inject(fsconnect.SimObjectDataMessage{
		RequestID:   requestID,
		ObjectID:    fsconnect.ObjectIDUser,
		DefineID:    defineID,
		EntryNumber: 1,
		OutOf:       1,
		DefineCount: uint32(len(fields)),
		Data:        data,
		ByType:      byType,
	})
}

func (s *Simulator) encodeLocked(fields []fsconnect.AddToDataDefinition) []byte {
	var out []byte
	for _, f := range fields {
		v := s.vars[f.DatumName]
		switch f.DataType {
		case fsconnect.DataTypeInt32:
			out = binary.LittleEndian.AppendUint32(out, uint32(int64(v)))
		case fsconnect.DataTypeInt64:
			out = binary.LittleEndian.AppendUint64(out, uint64(int64(v)))
		case fsconnect.DataTypeFloat32:
			out = binary.LittleEndian.AppendUint32(out, math.Float32bits(float32(v)))
		default:
			out = binary.LittleEndian.AppendUint64(out, math.Float64bits(v))
		}
	}
	return out
}

func (s *Simulator) apply(h *Host, r fsconnect.TransmitClientEvent) {
	s.mu.Lock()
	name := s.events[r.EventID]
	var pauseEvent fsconnect.ID
	var notify bool

	switch name {
	case "COM_STBY_RADIO_SET_HZ":
		s.vars[varCom1Standby] = float64(r.Data)
	case "COM_RADIO_SET_HZ":
		s.vars[varCom1Active] = float64(r.Data)
	case "COM_STBY_RADIO_SWAP":
		s.vars[varCom1Active], s.vars[varCom1Standby] = s.vars[varCom1Standby], s.vars[varCom1Active]
	case "COM2_STBY_RADIO_SET_HZ":
		s.vars[varCom2Standby] = float64(r.Data)
	case "COM2_RADIO_SET_HZ":
		s.vars[varCom2Active] = float64(r.Data)
	case "COM2_RADIO_SWAP":
		s.vars[varCom2Active], s.vars[varCom2Standby] = s.vars[varCom2Standby], s.vars[varCom2Active]
	case "PAUSE_SET":
		s.paused = r.Data != 0
		pauseEvent, notify = s.system["Pause"]
	default:
		s.log.Debug("sim: unhandled event", "event_id", r.EventID, "name", name)
	}
	paused := s.paused
	s.mu.Unlock()

	if notify {
		var data uint32
		if paused {
			data = 1
		}
		h.Inject(fsconnect.EventMessage{GroupID: fsconnect.Unused, EventID: pauseEvent, Data: data})
	}
}
