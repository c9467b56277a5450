// internal/fsconnect/requests.go
package fsconnect

// Request is one outbound host call. Transports switch on the concrete type.
type Request interface {
	requestName() string
}

// ---- data definitions ----

type AddToDataDefinition struct {
	DefineID  ID
	DatumName string
	UnitsName string
	DataType  DataType
	Epsilon   float32
	DatumID   ID
}

type RequestDataOnSimObject struct {
	RequestID ID
	DefineID  ID
	ObjectID  uint32
	Period    Period
	Flags     RequestFlag
	Origin    uint32
	Interval  uint32
	Limit     uint32
}

type RequestDataOnSimObjectType struct {
	RequestID    ID
	DefineID     ID
	RadiusMeters uint32
	Type         ObjectType
}

type SetDataOnSimObject struct {
	DefineID ID
	ObjectID uint32
	Flags    DataSetFlag
	Data     []byte
}

// ---- client events / groups ----

type MapClientEventToSimEvent struct {
	EventID   ID
	EventName string
}

type AddClientEventToNotificationGroup struct {
	GroupID  ID
	EventID  ID
	Maskable bool
}

type SetNotificationGroupPriority struct {
	GroupID  ID
	Priority uint32
}

type RemoveClientEvent struct {
	GroupID ID
	EventID ID
}

type TransmitClientEvent struct {
	ObjectID uint32
	EventID  ID
	Data     uint32
	GroupID  ID
	Flags    EventFlag
}

// ---- input events ----

type MapInputEventToClientEvent struct {
	GroupID         ID
	InputDefinition string
	DownEventID     ID
	DownValue       uint32
	UpEventID       ID
	UpValue         uint32
	Maskable        bool
}

type SetInputGroupPriority struct {
	GroupID  ID
	Priority uint32
}

type RemoveInputEvent struct {
	GroupID         ID
	InputDefinition string
}

// ---- system events / state / text ----

type SubscribeToSystemEvent struct {
	EventID         ID
	SystemEventName string
}

type UnsubscribeFromSystemEvent struct {
	EventID ID
}

type RequestSystemState struct {
	RequestID ID
	State     string
}

type Text struct {
	Type    TextType
	Seconds float32
	EventID ID
	Message string
}

func (AddToDataDefinition) requestName() string               { return "AddToDataDefinition" }
func (RequestDataOnSimObject) requestName() string            { return "RequestDataOnSimObject" }
func (RequestDataOnSimObjectType) requestName() string        { return "RequestDataOnSimObjectType" }
func (SetDataOnSimObject) requestName() string                { return "SetDataOnSimObject" }
func (MapClientEventToSimEvent) requestName() string          { return "MapClientEventToSimEvent" }
func (AddClientEventToNotificationGroup) requestName() string { return "AddClientEventToNotificationGroup" }
func (SetNotificationGroupPriority) requestName() string      { return "SetNotificationGroupPriority" }
func (RemoveClientEvent) requestName() string                 { return "RemoveClientEvent" }
func (TransmitClientEvent) requestName() string               { return "TransmitClientEvent" }
func (MapInputEventToClientEvent) requestName() string        { return "MapInputEventToClientEvent" }
func (SetInputGroupPriority) requestName() string             { return "SetInputGroupPriority" }
func (RemoveInputEvent) requestName() string                  { return "RemoveInputEvent" }
func (SubscribeToSystemEvent) requestName() string            { return "SubscribeToSystemEvent" }
func (UnsubscribeFromSystemEvent) requestName() string        { return "UnsubscribeFromSystemEvent" }
func (RequestSystemState) requestName() string                { return "RequestSystemState" }
func (Text) requestName() string                              { return "Text" }

// RequestName returns the host call name of r, for logs and metrics.
func RequestName(r Request) string {
	if r == nil {
		return "<nil>"
	}
	return r.requestName()
}
