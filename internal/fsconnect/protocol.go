// internal/fsconnect/protocol.go
package fsconnect

import "fmt"

// Host protocol constants.
// Values are fixed by the host and MUST NOT be configurable.

// ---- SENTINELS ----

// Unused marks an optional id parameter as absent.
const Unused ID = 0xFFFFFFFF

// ObjectIDUser addresses the user's aircraft.
const ObjectIDUser uint32 = 0

// ---- NOTIFICATION GROUP PRIORITIES ----

const (
	PriorityHighest         uint32 = 1
	PriorityHighestMaskable uint32 = 10000000
	PriorityStandard        uint32 = 1900000000
	PriorityDefault         uint32 = 2000000000
	PriorityLowest          uint32 = 4000000000
)

// ---- DATA TYPES ----

// DataType is the host-side storage type of one definition field.
type DataType uint32

const (
	DataTypeInvalid DataType = iota
	DataTypeInt32
	DataTypeInt64
	DataTypeFloat32
	DataTypeFloat64
	DataTypeString8
	DataTypeString32
	DataTypeString64
	DataTypeString128
	DataTypeString256
	DataTypeString260
)

// Size returns the number of bytes the field occupies in a record.
func (t DataType) Size() int {
	switch t {
	case DataTypeInt32, DataTypeFloat32:
		return 4
	case DataTypeInt64, DataTypeFloat64:
		return 8
	case DataTypeString8:
		return 8
	case DataTypeString32:
		return 32
	case DataTypeString64:
		return 64
	case DataTypeString128:
		return 128
	case DataTypeString256:
		return 256
	case DataTypeString260:
		return 260
	default:
		return 0
	}
}

func (t DataType) isString() bool {
	return t >= DataTypeString8 && t <= DataTypeString260
}

// ---- REQUEST PERIODS / FLAGS ----

// Period controls how often the host sends data for a request.
type Period uint32

const (
	PeriodNever Period = iota
	PeriodOnce
	PeriodVisualFrame
	PeriodSimFrame
	PeriodSecond
)

// RequestFlag modifies a periodic data request.
type RequestFlag uint32

const (
	RequestFlagDefault RequestFlag = 0
	RequestFlagChanged RequestFlag = 1
	RequestFlagTagged  RequestFlag = 2
)

// ObjectType selects objects for by-type data requests.
type ObjectType uint32

const (
	ObjectTypeUser ObjectType = iota
	ObjectTypeAll
	ObjectTypeAircraft
	ObjectTypeHelicopter
	ObjectTypeBoat
	ObjectTypeGround
)

func (t ObjectType) String() string {
	switch t {
	case ObjectTypeUser:
		return "user"
	case ObjectTypeAll:
		return "all"
	case ObjectTypeAircraft:
		return "aircraft"
	case ObjectTypeHelicopter:
		return "helicopter"
	case ObjectTypeBoat:
		return "boat"
	case ObjectTypeGround:
		return "ground"
	default:
		return fmt.Sprintf("objtype(%d)", uint32(t))
	}
}

// ---- EVENT / TEXT FLAGS ----

// EventFlag modifies TransmitClientEvent.
type EventFlag uint32

const (
	EventFlagDefault           EventFlag = 0
	EventFlagGroupIDIsPriority EventFlag = 0x10
)

// TextType selects how the host renders SetText output.
type TextType uint32

const (
	TextPrintBlack TextType = 0x100
)

// DataSetFlag modifies SetDataOnSimObject.
type DataSetFlag uint32

const (
	DataSetFlagDefault DataSetFlag = 0
	DataSetFlagTagged  DataSetFlag = 1
)

// ---- EXCEPTIONS ----

// ExceptionCode is the host's reason for rejecting a request.
type ExceptionCode uint32

var exceptionNames = [...]string{
	"NONE",
	"ERROR",
	"SIZE_MISMATCH",
	"UNRECOGNIZED_ID",
	"UNOPENED",
	"VERSION_MISMATCH",
	"TOO_MANY_GROUPS",
	"NAME_UNRECOGNIZED",
	"TOO_MANY_EVENT_NAMES",
	"EVENT_ID_DUPLICATE",
	"TOO_MANY_MAPS",
	"TOO_MANY_OBJECTS",
	"TOO_MANY_REQUESTS",
	"WEATHER_INVALID_PORT",
	"WEATHER_INVALID_METAR",
	"WEATHER_UNABLE_TO_GET_OBSERVATION",
	"WEATHER_UNABLE_TO_CREATE_STATION",
	"WEATHER_UNABLE_TO_REMOVE_STATION",
	"INVALID_DATA_TYPE",
	"INVALID_DATA_SIZE",
	"DATA_ERROR",
	"INVALID_ARRAY",
	"CREATE_OBJECT_FAILED",
	"LOAD_FLIGHTPLAN_FAILED",
	"OPERATION_INVALID_FOR_OBJECT_TYPE",
	"ILLEGAL_OPERATION",
	"ALREADY_SUBSCRIBED",
	"INVALID_ENUM",
	"DEFINITION_ERROR",
	"DUPLICATE_ID",
	"DATUM_ID",
	"OUT_OF_BOUNDS",
	"ALREADY_CREATED",
	"OBJECT_OUTSIDE_REALITY_BUBBLE",
	"OBJECT_CONTAINER",
	"OBJECT_AI",
	"OBJECT_ATC",
	"OBJECT_SCHEDULE",
}

const (
	ExceptionNone             ExceptionCode = 0
	ExceptionError            ExceptionCode = 1
	ExceptionSizeMismatch     ExceptionCode = 2
	ExceptionUnrecognizedID   ExceptionCode = 3
	ExceptionNameUnrecognized ExceptionCode = 7
	ExceptionEventIDDuplicate ExceptionCode = 9
	ExceptionDefinitionError  ExceptionCode = 28
	ExceptionDuplicateID      ExceptionCode = 29
)

func (c ExceptionCode) String() string {
	if int(c) < len(exceptionNames) {
		return exceptionNames[c]
	}
	return fmt.Sprintf("EXCEPTION_%d", uint32(c))
}
