// internal/fsconnect/registry.go
package fsconnect

import (
	"context"
	"fmt"
	"time"
)

// registration is the client side of a data definition.
// rejected is set once the host raised an exception for one of its fields.
type registration struct {
	def      Definition
	rejected *HostException
}

// sendRef correlates a send id with what it was sent for.
type sendRef struct {
	define    ID
	field     string
	isDefine  bool
	request   ID
	isRequest bool
}

type eventKey struct {
	group ID
	event ID
}

// ------------------------------------------------------------
// DATA DEFINITIONS
// ------------------------------------------------------------

// RegisterDataDefinition allocates an id and registers def under it.
func (s *Session) RegisterDataDefinition(def Definition) (ID, error) {
	id := s.ids.Next()
	if err := s.RegisterDataDefinitionID(id, def); err != nil {
		return Unused, err
	}
	return id, nil
}

// RegisterDataDefinitionID adds every field of def to the host definition id
// in order and records the layout client side.
//
// The host validates fields asynchronously. A rejected field is reported via
// OnError as a *HostException naming the field; afterwards requests on the
// definition fail with ErrDefinitionRejected.
func (s *Session) RegisterDataDefinitionID(id ID, def Definition) error {
	if len(def.Fields) == 0 {
		return fmt.Errorf("%w: %q", ErrEmptyDefinition, def.Name)
	}

	s.regMu.Lock()
	defer s.regMu.Unlock()

	s.mu.Lock()
	if !s.activeLocked() {
		s.mu.Unlock()
		return ErrNotConnected
	}
	if _, dup := s.defs[id]; dup {
		s.mu.Unlock()
		s.log.Warn("data definition already registered", "define_id", id, "name", def.Name)
		return fmt.Errorf("%w: definition %d", ErrAlreadyRegistered, id)
	}
	s.defs[id] = &registration{def: def}
	s.mu.Unlock()

	for _, f := range def.Fields {
		ref := sendRef{define: id, field: f.DatumName(), isDefine: true}
		_, err := s.sendTracked(AddToDataDefinition{
			DefineID:  id,
			DatumName: f.DatumName(),
			UnitsName: f.Unit,
			DataType:  f.dataType(),
			DatumID:   Unused,
		}, func(sendID uint32) { s.sends[sendID] = ref })
		if err != nil {
			s.mu.Lock()
			delete(s.defs, id)
			s.mu.Unlock()
			return fmt.Errorf("fsconnect: register %q field %s: %w", def.Name, f.DatumName(), err)
		}
	}

	s.log.Info("data definition registered", "define_id", id, "name", def.Name, "fields", len(def.Fields))
	return nil
}

// ConfirmDefinition waits until the host has processed every field sent for
// id and reports a rejection as ErrDefinitionRejected. The host answers
// packets in order, so an exception for a field always arrives before the
// answer to a system state request sent after it.
// It must not be called from a handler.
func (s *Session) ConfirmDefinition(ctx context.Context, id ID) error {
	reqID := s.ids.Next()
	ch := make(chan struct{})

	s.mu.Lock()
	if !s.activeLocked() {
		s.mu.Unlock()
		return ErrNotConnected
	}
	if _, ok := s.defs[id]; !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrUnknownDefinition, id)
	}
	s.barriers[reqID] = ch
	stop := s.stop
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.barriers, reqID)
		s.mu.Unlock()
	}()

	if _, err := s.send(RequestSystemState{RequestID: reqID, State: "Sim"}); err != nil {
		return err
	}

	timer := time.NewTimer(s.timeout)
	defer timer.Stop()

	select {
	case <-ch:
	case <-timer.C:
		return fmt.Errorf("%w: confirming definition %d after %s", ErrNoResponse, id, s.timeout)
	case <-stop:
		return fmt.Errorf("%w: confirming definition %d", ErrDisconnected, id)
	case <-ctx.Done():
		return ctx.Err()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.definitionErrLocked(id)
}

// releaseBarrier ends the ConfirmDefinition waiting on requestID, if any.
func (s *Session) releaseBarrier(requestID ID) bool {
	s.mu.Lock()
	ch, ok := s.barriers[requestID]
	delete(s.barriers, requestID)
	s.mu.Unlock()
	if ok {
		close(ch)
	}
	return ok
}

// Definition returns the layout registered under id.
func (s *Session) Definition(id ID) (Definition, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	reg, ok := s.defs[id]
	if !ok {
		return Definition{}, false
	}
	return reg.def, true
}

// definitionErrLocked returns why requests on id cannot proceed. Caller holds mu.
func (s *Session) definitionErrLocked(id ID) error {
	reg, ok := s.defs[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownDefinition, id)
	}
	if reg.rejected != nil {
		return fmt.Errorf("%w: %w", ErrDefinitionRejected, reg.rejected)
	}
	return nil
}

// ------------------------------------------------------------
// CLIENT EVENTS
// ------------------------------------------------------------

// MapClientEventToSimEvent binds event to the host event name and adds it
// to the notification group. Mapping the same (group, event) pair twice
// returns ErrAlreadyRegistered and sends nothing.
func (s *Session) MapClientEventToSimEvent(group, event ID, name string) error {
	s.regMu.Lock()
	defer s.regMu.Unlock()

	key := eventKey{group: group, event: event}
	if err := s.claimEvent(key, name); err != nil {
		return err
	}

	if _, err := s.send(MapClientEventToSimEvent{EventID: event, EventName: name}); err != nil {
		s.releaseEvent(key)
		return err
	}
	if _, err := s.send(AddClientEventToNotificationGroup{GroupID: group, EventID: event}); err != nil {
		s.releaseEvent(key)
		return err
	}

	s.log.Debug("client event mapped", "group", group, "event", event, "name", name)
	return nil
}

// MapWellKnownEvent maps event to the host name of a catalog entry.
func (s *Session) MapWellKnownEvent(group, event ID, name EventName) error {
	hostName, ok := HostEventName(name)
	if !ok {
		return fmt.Errorf("fsconnect: unknown event %q", name)
	}
	return s.MapClientEventToSimEvent(group, event, hostName)
}

// SetNotificationGroupPriority gives group the highest priority.
func (s *Session) SetNotificationGroupPriority(group ID) error {
	return s.SetNotificationGroupPriorityTo(group, PriorityHighest)
}

// SetNotificationGroupPriorityTo sets the delivery priority of group.
func (s *Session) SetNotificationGroupPriorityTo(group ID, priority uint32) error {
	_, err := s.send(SetNotificationGroupPriority{GroupID: group, Priority: priority})
	return err
}

func (s *Session) claimEvent(key eventKey, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.activeLocked() {
		return ErrNotConnected
	}
	_, mapped := s.bound[key]
	_, input := s.inputs[key]
	if mapped || input {
		s.log.Warn("client event already registered", "group", key.group, "event", key.event, "name", name)
		return fmt.Errorf("%w: group %d event %d", ErrAlreadyRegistered, key.group, key.event)
	}
	s.bound[key] = struct{}{}
	return nil
}

func (s *Session) releaseEvent(key eventKey) {
	s.mu.Lock()
	delete(s.bound, key)
	s.mu.Unlock()
}

// ------------------------------------------------------------
// INPUT EVENTS
// ------------------------------------------------------------

// InputEvent binds a device input (joystick button, key) to a client event.
type InputEvent struct {
	NotificationGroup ID
	ClientEvent       ID
	ClientEventName   string // custom host name, e.g. "#0x11000"
	InputGroup        ID
	InputDefinition   string // e.g. "joystick:0:button:3"

	// Handler runs on the receiver goroutine for each press.
	Handler func(data uint32)
}

// RegisterInputEvent maps ie with highest priority for both groups.
// Registering the same (group, client event) pair again returns
// ErrAlreadyRegistered and sends nothing.
func (s *Session) RegisterInputEvent(ie InputEvent) error {
	if ie.InputDefinition == "" || ie.ClientEventName == "" {
		return fmt.Errorf("fsconnect: input event needs a client event name and input definition")
	}

	s.regMu.Lock()
	defer s.regMu.Unlock()

	key := eventKey{group: ie.NotificationGroup, event: ie.ClientEvent}

	s.mu.Lock()
	if !s.activeLocked() {
		s.mu.Unlock()
		return ErrNotConnected
	}
	_, mapped := s.bound[key]
	_, input := s.inputs[key]
	if mapped || input {
		s.mu.Unlock()
		s.log.Warn("input event already registered", "group", key.group, "event", key.event, "input", ie.InputDefinition)
		return fmt.Errorf("%w: group %d event %d", ErrAlreadyRegistered, key.group, key.event)
	}
	bound := ie
	s.inputs[key] = &bound
	s.mu.Unlock()

	reqs := []Request{
		MapClientEventToSimEvent{EventID: ie.ClientEvent, EventName: ie.ClientEventName},
		AddClientEventToNotificationGroup{GroupID: ie.NotificationGroup, EventID: ie.ClientEvent},
		SetNotificationGroupPriority{GroupID: ie.NotificationGroup, Priority: PriorityHighest},
		MapInputEventToClientEvent{
			GroupID:         ie.InputGroup,
			InputDefinition: ie.InputDefinition,
			DownEventID:     ie.ClientEvent,
			DownValue:       1,
			UpEventID:       Unused,
		},
		SetInputGroupPriority{GroupID: ie.InputGroup, Priority: PriorityHighest},
	}
	for _, r := range reqs {
		if _, err := s.send(r); err != nil {
			s.mu.Lock()
			delete(s.inputs, key)
			s.mu.Unlock()
			return err
		}
	}

	s.log.Info("input event registered", "input", ie.InputDefinition, "event", ie.ClientEventName)
	return nil
}
