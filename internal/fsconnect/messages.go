// internal/fsconnect/messages.go
package fsconnect

// Message is one inbound host message returned by Transport.Receive.
type Message interface {
	messageName() string
}

// OpenMessage acknowledges the connection.
type OpenMessage struct {
	ApplicationName    string
	ApplicationVersion [2]uint32
	ApplicationBuild   [2]uint32
	SimConnectVersion  [2]uint32
	SimConnectBuild    [2]uint32
}

// QuitMessage is the host shutting the connection down.
type QuitMessage struct{}

// ExceptionMessage is the host rejecting an earlier request.
type ExceptionMessage struct {
	Exception ExceptionCode
	SendID    uint32
	Index     uint32
}

// EventMessage carries a system or client event notification.
type EventMessage struct {
	GroupID ID
	EventID ID
	Data    uint32

	// FileName is set for load events (aircraft or flight file).
	FileName string
}

// ObjectAddRemoveMessage reports a simulation object appearing or leaving.
type ObjectAddRemoveMessage struct {
	EventID    ID
	ObjectType ObjectType
	ObjectID   uint32
}

// SimObjectDataMessage carries a data record for a request.
// ByType is set when the record answers a by-type request.
type SimObjectDataMessage struct {
	RequestID   ID
	ObjectID    uint32
	DefineID    ID
	Flags       uint32
	EntryNumber uint32
	OutOf       uint32
	DefineCount uint32
	Data        []byte
	ByType      bool
}

// SystemStateMessage answers RequestSystemState.
type SystemStateMessage struct {
	RequestID ID
	Integer   uint32
	Float     float32
	String    string
}

func (OpenMessage) messageName() string            { return "open" }
func (QuitMessage) messageName() string            { return "quit" }
func (ExceptionMessage) messageName() string       { return "exception" }
func (EventMessage) messageName() string           { return "event" }
func (ObjectAddRemoveMessage) messageName() string { return "object_add_remove" }
func (SimObjectDataMessage) messageName() string   { return "simobject_data" }
func (SystemStateMessage) messageName() string     { return "system_state" }

// MessageName returns a short label for m, for logs and metrics.
func MessageName(m Message) string {
	if m == nil {
		return "<nil>"
	}
	return m.messageName()
}
