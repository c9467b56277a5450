// internal/fsconnect/session.go
package fsconnect

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultRequestTimeout bounds RequestAndWait when no timeout is given.
const DefaultRequestTimeout = 10 * time.Second

// State is the connection lifecycle owned by a Session.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateDisconnecting
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDisconnecting:
		return "disconnecting"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// ConnectionInfo is what the host reported in its open message.
type ConnectionInfo struct {
	ApplicationName    string
	ApplicationVersion string
	ApplicationBuild   string
	SimConnectVersion  string
	SimConnectBuild    string
}

// ---- reserved ids (below FirstID) ----

const (
	evAircraftLoaded ID = iota + 1
	evFlightLoaded
	evPaused
	evPause
	evSim
	evCrashed
	evObjectAdded
	evObjectRemoved
	evPauseSet
	evSetText
)

const groupSession ID = 98

type systemEvent struct {
	id   ID
	name string
}

var systemEvents = []systemEvent{
	{evAircraftLoaded, "AircraftLoaded"},
	{evFlightLoaded, "FlightLoaded"},
	{evPaused, "Paused"},
	{evPause, "Pause"},
	{evSim, "Sim"},
	{evCrashed, "Crashed"},
	{evObjectAdded, "ObjectAdded"},
	{evObjectRemoved, "ObjectRemoved"},
}

// Session is one connection to the host.
type Session struct {
	dial    DialFunc
	ids     *Allocator
	log     *slog.Logger
	metrics *Metrics

	appName     string
	configIndex uint32
	timeout     time.Duration

	// regMu serializes the register/map family.
	regMu sync.Mutex
	// corrMu is held across a send and the recording of its send id.
	corrMu sync.Mutex

	mu     sync.Mutex
	state  State
	tr     Transport
	stop   chan struct{}
	done   chan struct{}
	opened chan struct{}
	isOpen bool
	info   ConnectionInfo
	paused bool

	defs    map[ID]*registration
	sends   map[uint32]sendRef
	bound   map[eventKey]struct{}
	inputs  map[eventKey]*InputEvent
	pending map[ID]*waiter

	// barriers are ConfirmDefinition round trips keyed by request id.
	barriers map[ID]chan struct{}

	subs subscriptions
}

// Option configures a Session.
type Option func(*Session)

func WithLogger(l *slog.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.log = l
		}
	}
}

func WithMetrics(m *Metrics) Option {
	return func(s *Session) { s.metrics = m }
}

// WithRequestTimeout sets the default RequestAndWait deadline.
func WithRequestTimeout(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.timeout = d
		}
	}
}

func WithAppName(name string) Option {
	return func(s *Session) { s.appName = name }
}

// WithConfigIndex selects the transport config section to connect with.
func WithConfigIndex(i uint32) Option {
	return func(s *Session) { s.configIndex = i }
}

// New creates a disconnected session that opens transports with dial.
func New(dial DialFunc, opts ...Option) *Session {
	s := &Session{
		dial:    dial,
		ids:     NewAllocator(),
		log:     slog.Default(),
		appName: "fsbridge",
		timeout: DefaultRequestTimeout,
	}
	for _, o := range opts {
		o(s)
	}
	s.log = s.log.With("session", uuid.NewString())
	s.resetTablesLocked()
	return s
}

func (s *Session) resetTablesLocked() {
	s.defs = make(map[ID]*registration)
	s.sends = make(map[uint32]sendRef)
	s.bound = make(map[eventKey]struct{})
	s.inputs = make(map[eventKey]*InputEvent)
	s.pending = make(map[ID]*waiter)
	s.barriers = make(map[ID]chan struct{})
}

// NextID allocates an identifier from the session's identifier space.
func (s *Session) NextID() ID {
	return s.ids.Next()
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Connected reports whether the host has acknowledged the connection.
func (s *Session) Connected() bool {
	return s.State() == StateConnected
}

// Info returns the host's open-message details; empty until connected.
func (s *Session) Info() ConnectionInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.info
}

// Paused returns the last known pause state.
func (s *Session) Paused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused
}

// activeLocked reports whether requests may be sent. Caller holds mu.
func (s *Session) activeLocked() bool {
	return s.tr != nil && (s.state == StateConnecting || s.state == StateConnected)
}

// ------------------------------------------------------------
// CONNECT / DISCONNECT
// ------------------------------------------------------------

// Connect opens the transport, starts the receiver and subscribes to the
// session's system events. It returns once the requests are sent; use
// WaitConnected to block until the host acknowledges.
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateDisconnected {
		s.mu.Unlock()
		return ErrAlreadyConnected
	}
	s.state = StateConnecting
	s.mu.Unlock()

	tr, err := s.dial(ctx, DialOptions{AppName: s.appName, ConfigIndex: s.configIndex})
	if err != nil {
		s.mu.Lock()
		s.state = StateDisconnected
		s.mu.Unlock()
		return fmt.Errorf("%w: %w", ErrConnectFailed, err)
	}

	s.mu.Lock()
	s.tr = tr
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	s.opened = make(chan struct{})
	s.isOpen = false
	s.paused = false
	s.resetTablesLocked()
	stop, done := s.stop, s.done
	s.mu.Unlock()

	go s.receive(tr, stop, done)

	for _, se := range systemEvents {
		if _, err := s.send(SubscribeToSystemEvent{EventID: se.id, SystemEventName: se.name}); err != nil {
			_ = s.Disconnect()
			return err
		}
	}
	if _, err := s.send(MapClientEventToSimEvent{EventID: evPauseSet, EventName: "PAUSE_SET"}); err != nil {
		_ = s.Disconnect()
		return err
	}

	s.log.Info("connecting to host", "app", s.appName, "config_index", s.configIndex)
	return nil
}

// ConnectRemote writes the transport config file for target into dir and
// connects through it.
func (s *Session) ConnectRemote(ctx context.Context, target RemoteTarget, dir string) error {
	path, err := WriteConfigFile(dir, target)
	if err != nil {
		return err
	}
	s.log.Info("wrote transport config", "path", path, "protocol", target.Protocol, "address", target.Address, "port", target.Port)
	return s.Connect(ctx)
}

// WaitConnected blocks until the host's open message arrives.
func (s *Session) WaitConnected(ctx context.Context) error {
	s.mu.Lock()
	opened, done := s.opened, s.done
	s.mu.Unlock()

	if opened == nil {
		return ErrNotConnected
	}
	select {
	case <-opened:
		return nil
	case <-done:
		return ErrDisconnected
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Disconnect tears the connection down. It is idempotent, does not block on
// the receiver and may be called from a handler. Pending RequestAndWait
// callers fail with ErrDisconnected before it returns. The transport is
// released by the receiver; Done reports when that has happened.
func (s *Session) Disconnect() error {
	s.mu.Lock()
	if s.state != StateConnecting && s.state != StateConnected {
		s.mu.Unlock()
		return nil
	}
	s.state = StateDisconnecting
	tr := s.tr
	stop := s.stop

	bound := make([]eventKey, 0, len(s.bound))
	for k := range s.bound {
		bound = append(bound, k)
	}
	inputs := make([]*InputEvent, 0, len(s.inputs))
	for _, ie := range s.inputs {
		inputs = append(inputs, ie)
	}
	pending := s.pending
	s.pending = make(map[ID]*waiter)
	s.mu.Unlock()

	s.log.Debug("disconnecting: unsubscribing from host events")

	var errs []error
	try := func(req Request) {
		if _, err := tr.Send(req); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", RequestName(req), err))
		}
	}

	for _, se := range systemEvents {
		try(UnsubscribeFromSystemEvent{EventID: se.id})
	}
	try(RemoveClientEvent{GroupID: groupSession, EventID: evPauseSet})
	for _, k := range bound {
		try(RemoveClientEvent{GroupID: k.group, EventID: k.event})
	}
	for _, ie := range inputs {
		try(RemoveClientEvent{GroupID: ie.NotificationGroup, EventID: ie.ClientEvent})
		try(RemoveInputEvent{GroupID: ie.InputGroup, InputDefinition: ie.InputDefinition})
	}

	for id, w := range pending {
		w.resolve(result{err: fmt.Errorf("%w: request %d", ErrDisconnected, id)})
		s.metrics.waitOutcome("disconnected")
	}

	close(stop)

	if len(errs) > 0 {
		// The host may already be gone; teardown continues regardless.
		s.log.Debug("teardown requests failed", "error", errors.Join(errs...))
	}
	s.log.Info("disconnected from host")
	return nil
}

// Done is closed when the receiver has stopped and released the transport.
func (s *Session) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done == nil {
		c := make(chan struct{})
		close(c)
		return c
	}
	return s.done
}

// Shutdown disconnects and waits for the receiver to release the transport.
// It must not be called from a handler.
func (s *Session) Shutdown(ctx context.Context) error {
	if err := s.Disconnect(); err != nil {
		return err
	}
	select {
	case <-s.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ------------------------------------------------------------
// FIRE-AND-FORGET
// ------------------------------------------------------------

func (s *Session) send(req Request) (uint32, error) {
	s.mu.Lock()
	tr := s.tr
	active := s.activeLocked()
	s.mu.Unlock()

	if !active {
		return 0, ErrNotConnected
	}

	sendID, err := tr.Send(req)
	s.metrics.sent(RequestName(req), err)
	if err != nil {
		return 0, fmt.Errorf("fsconnect: %s: %w", RequestName(req), err)
	}
	s.log.Debug("request sent", "request", RequestName(req), "send_id", sendID)
	return sendID, nil
}

// sendTracked sends req and, still holding corrMu, lets record store the
// send id under mu. The receiver takes corrMu before correlating an
// exception, so a fast host cannot overtake the bookkeeping.
func (s *Session) sendTracked(req Request, record func(sendID uint32)) (uint32, error) {
	s.corrMu.Lock()
	defer s.corrMu.Unlock()

	sendID, err := s.send(req)
	if err != nil {
		return 0, err
	}
	s.mu.Lock()
	record(sendID)
	s.mu.Unlock()
	return sendID, nil
}

// TransmitClientEvent fires a mapped client event at the user aircraft.
func (s *Session) TransmitClientEvent(event ID, data uint32, group ID) error {
	_, err := s.send(TransmitClientEvent{
		ObjectID: ObjectIDUser,
		EventID:  event,
		Data:     data,
		GroupID:  group,
		Flags:    EventFlagDefault,
	})
	return err
}

// SendEvent fires a mapped client event with highest priority,
// bypassing notification group lookup.
func (s *Session) SendEvent(event ID, data uint32) error {
	_, err := s.send(TransmitClientEvent{
		ObjectID: ObjectIDUser,
		EventID:  event,
		Data:     data,
		GroupID:  ID(PriorityHighest),
		Flags:    EventFlagGroupIDIsPriority,
	})
	return err
}

// SetPaused pauses or resumes the simulation.
func (s *Session) SetPaused(pause bool) error {
	var data uint32
	if pause {
		data = 1
	}
	_, err := s.send(TransmitClientEvent{
		ObjectID: ObjectIDUser,
		EventID:  evPauseSet,
		Data:     data,
		GroupID:  ID(PriorityHighest),
		Flags:    EventFlagGroupIDIsPriority,
	})
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.paused = pause
	s.mu.Unlock()
	return nil
}

// TogglePause inverts the last known pause state.
func (s *Session) TogglePause() error {
	return s.SetPaused(!s.Paused())
}

// SetText shows text in the simulator for d.
func (s *Session) SetText(text string, d time.Duration) error {
	_, err := s.send(Text{
		Type:    TextPrintBlack,
		Seconds: float32(d.Seconds()),
		EventID: evSetText,
		Message: text,
	})
	return err
}

// RequestSystemState asks for a named host state ("AircraftLoaded",
// "FlightLoaded", "Sim", ...). The answer arrives via OnSystemState.
func (s *Session) RequestSystemState(requestID ID, state string) error {
	_, err := s.send(RequestSystemState{RequestID: requestID, State: state})
	return err
}

// RequestData asks once for defineID on objects of type t within radius
// meters (radius 0 with ObjectTypeUser selects the user aircraft).
func (s *Session) RequestData(requestID, defineID ID, radius uint32, t ObjectType) error {
	_, err := s.send(RequestDataOnSimObjectType{
		RequestID:    requestID,
		DefineID:     defineID,
		RadiusMeters: radius,
		Type:         t,
	})
	return err
}

// RequestDataOnSimObject issues a fully specified per-object request.
func (s *Session) RequestDataOnSimObject(req RequestDataOnSimObject) error {
	_, err := s.send(req)
	return err
}

// SubscribeData starts periodic delivery of defineID for the user aircraft.
func (s *Session) SubscribeData(requestID, defineID ID, period Period, flags RequestFlag) error {
	return s.RequestDataOnSimObject(RequestDataOnSimObject{
		RequestID: requestID,
		DefineID:  defineID,
		ObjectID:  ObjectIDUser,
		Period:    period,
		Flags:     flags,
	})
}

// UnsubscribeData stops a periodic request started with SubscribeData.
func (s *Session) UnsubscribeData(requestID, defineID ID) error {
	return s.SubscribeData(requestID, defineID, PeriodNever, RequestFlagDefault)
}

// UpdateData writes a record for defineID onto objectID.
func (s *Session) UpdateData(defineID ID, record []byte, objectID uint32) error {
	s.mu.Lock()
	reg := s.defs[defineID]
	s.mu.Unlock()

	if reg == nil {
		return fmt.Errorf("%w: %d", ErrUnknownDefinition, defineID)
	}
	if want := reg.def.Size(); len(record) != want {
		return fmt.Errorf("fsconnect: record for definition %d is %d bytes, want %d", defineID, len(record), want)
	}

	_, err := s.send(SetDataOnSimObject{
		DefineID: defineID,
		ObjectID: objectID,
		Flags:    DataSetFlagDefault,
		Data:     record,
	})
	return err
}
