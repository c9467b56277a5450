// internal/fsconnect/receive.go
package fsconnect

import (
	"errors"
	"fmt"
)

// receive is the session's only reader of tr. It drains on every Ready
// signal and exits when stop closes, releasing tr on the way out.
func (s *Session) receive(tr Transport, stop <-chan struct{}, done chan<- struct{}) {
	defer s.finish(tr, done)

	failures := 0
	for {
		select {
		case <-stop:
			return
		case <-tr.Ready():
			if !s.drain(tr, stop, &failures) {
				return
			}
		}
	}
}

// maxReadErrors bounds consecutive failed reads before the link is
// declared dead. Any good message resets the count.
const maxReadErrors = 16

// drain reads until the transport is empty. It returns false once the
// session has been torn down because the transport died.
func (s *Session) drain(tr Transport, stop <-chan struct{}, failures *int) bool {
	for {
		select {
		case <-stop:
			return true
		default:
		}

		msg, err := tr.Receive()
		if errors.Is(err, ErrNoMessage) {
			return true
		}
		if errors.Is(err, ErrTransportClosed) {
			s.log.Warn("host transport closed", "error", err)
			s.metrics.receiveError()
			return s.giveUp()
		}
		if err != nil {
			// A bad read is not fatal to the session.
			s.metrics.receiveError()
			s.log.Debug("receive failed", "error", err)
			if *failures++; *failures >= maxReadErrors {
				s.log.Warn("too many consecutive receive errors", "count", *failures, "error", err)
				return s.giveUp()
			}
			continue
		}
		*failures = 0
		s.dispatch(msg)
	}
}

// giveUp disconnects on behalf of a dead transport.
func (s *Session) giveUp() bool {
	_ = s.Disconnect()
	return false
}

func (s *Session) finish(tr Transport, done chan<- struct{}) {
	if err := tr.Close(); err != nil {
		s.log.Warn("closing transport", "error", err)
	}

	s.mu.Lock()
	wasOpen := s.isOpen
	s.state = StateDisconnected
	s.tr = nil
	s.isOpen = false
	s.info = ConnectionInfo{}
	s.mu.Unlock()

	s.metrics.setConnected(false)
	if wasOpen {
		s.subs.connection.emit(s.log, s.metrics, "connection", false)
	}
	close(done)
}

// ------------------------------------------------------------
// DISPATCH
// ------------------------------------------------------------

func (s *Session) dispatch(msg Message) {
	s.metrics.received(MessageName(msg))

	switch m := msg.(type) {
	case OpenMessage:
		s.handleOpen(m)
	case QuitMessage:
		s.log.Info("host is quitting")
		_ = s.Disconnect()
	case ExceptionMessage:
		s.handleException(m)
	case EventMessage:
		s.handleEvent(m)
	case ObjectAddRemoveMessage:
		s.subs.addRemove.emit(s.log, s.metrics, "object_add_remove", ObjectAddRemove{
			Added:      m.EventID == evObjectAdded,
			ObjectType: m.ObjectType,
			ObjectID:   m.ObjectID,
		})
	case SimObjectDataMessage:
		s.handleData(m)
	case SystemStateMessage:
		if s.releaseBarrier(m.RequestID) {
			return
		}
		s.subs.systemState.emit(s.log, s.metrics, "system_state", SystemState{
			RequestID: m.RequestID,
			Integer:   m.Integer,
			Float:     m.Float,
			String:    m.String,
		})
	default:
		s.log.Debug("unhandled host message", "message", MessageName(msg))
	}
}

func (s *Session) handleOpen(m OpenMessage) {
	s.mu.Lock()
	if s.state != StateConnecting {
		s.mu.Unlock()
		return
	}
	s.state = StateConnected
	s.isOpen = true
	s.info = ConnectionInfo{
		ApplicationName:    m.ApplicationName,
		ApplicationVersion: version(m.ApplicationVersion),
		ApplicationBuild:   version(m.ApplicationBuild),
		SimConnectVersion:  version(m.SimConnectVersion),
		SimConnectBuild:    version(m.SimConnectBuild),
	}
	info := s.info
	close(s.opened)
	s.mu.Unlock()

	s.metrics.setConnected(true)
	s.log.Info("connected to host",
		"application", info.ApplicationName,
		"version", info.ApplicationVersion,
		"build", info.ApplicationBuild,
		"simconnect", info.SimConnectVersion)
	s.subs.connection.emit(s.log, s.metrics, "connection", true)
}

func version(v [2]uint32) string {
	return fmt.Sprintf("%d.%d", v[0], v[1])
}

func (s *Session) handleException(m ExceptionMessage) {
	ex := &HostException{Exception: m.Exception, SendID: m.SendID, Index: m.Index}

	// Wait out any send whose id is still being recorded.
	s.corrMu.Lock()
	s.corrMu.Unlock()

	var failed *waiter
	s.mu.Lock()
	if ref, ok := s.sends[m.SendID]; ok {
		switch {
		case ref.isDefine:
			ex.Definition = ref.define
			ex.Field = ref.field
			if reg := s.defs[ref.define]; reg != nil && reg.rejected == nil {
				reg.rejected = ex
			}
		case ref.isRequest:
			if w := s.pending[ref.request]; w != nil && w.sendID == m.SendID {
				delete(s.pending, ref.request)
				failed = w
			}
			delete(s.sends, m.SendID)
		}
	}
	s.mu.Unlock()

	s.metrics.exception(m.Exception)
	if ex.Field != "" {
		s.log.Warn("host rejected data definition field",
			"define_id", ex.Definition, "field", ex.Field, "exception", ex.Exception.String(), "send_id", ex.SendID)
	} else {
		s.log.Warn("host exception", "exception", ex.Exception.String(), "send_id", ex.SendID, "index", ex.Index)
	}

	if failed != nil {
		failed.resolve(result{err: ex})
		s.metrics.waitOutcome("exception")
	}
	s.subs.errors.emit(s.log, s.metrics, "error", ex)
}

func (s *Session) handleEvent(m EventMessage) {
	switch m.EventID {
	case evAircraftLoaded:
		s.log.Debug("aircraft loaded", "file", m.FileName)
		s.subs.aircraft.emit(s.log, s.metrics, "aircraft_loaded", struct{}{})
	case evFlightLoaded:
		s.log.Debug("flight loaded", "file", m.FileName)
		s.subs.flight.emit(s.log, s.metrics, "flight_loaded", struct{}{})
	case evCrashed:
		s.subs.crashed.emit(s.log, s.metrics, "crashed", struct{}{})
	case evSim:
		s.subs.sim.emit(s.log, s.metrics, "sim", m.Data == 1)
	case evPause:
		paused := m.Data == 1
		s.mu.Lock()
		s.paused = paused
		s.mu.Unlock()
		s.subs.pause.emit(s.log, s.metrics, "pause", paused)
	case evPaused:
		s.log.Debug("host paused")
	default:
		key := eventKey{group: m.GroupID, event: m.EventID}
		s.mu.Lock()
		ie := s.inputs[key]
		s.mu.Unlock()

		if ie != nil && ie.Handler != nil {
			call(s.log, s.metrics, "input", func() { ie.Handler(m.Data) })
		}
		s.subs.clientEvent.emit(s.log, s.metrics, "client_event", ClientEvent{
			GroupID: m.GroupID,
			EventID: m.EventID,
			Data:    m.Data,
		})
	}
}

func (s *Session) handleData(m SimObjectDataMessage) {
	s.mu.Lock()
	var def Definition
	if reg := s.defs[m.DefineID]; reg != nil {
		def = reg.def
	}
	w := s.pending[m.RequestID]
	if w != nil && w.defineID == m.DefineID {
		delete(s.pending, m.RequestID)
		s.forgetSendLocked(w)
	} else {
		w = nil
	}
	s.mu.Unlock()

	rec := Record{Definition: def, Raw: m.Data}
	if w != nil {
		w.resolve(result{rec: rec})
	}

	s.subs.data.emit(s.log, s.metrics, "data", DataReceived{
		RequestID:   m.RequestID,
		DefineID:    m.DefineID,
		ObjectID:    m.ObjectID,
		Flags:       m.Flags,
		EntryNumber: m.EntryNumber,
		OutOf:       m.OutOf,
		DefineCount: m.DefineCount,
		Record:      rec,
	})
}
