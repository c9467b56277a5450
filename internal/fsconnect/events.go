// internal/fsconnect/events.go
package fsconnect

// EventName is a catalog key for a host event this module knows about.
type EventName string

const (
	EventComStbyRadioSetHz    EventName = "ComStbyRadioSetHz"
	EventComRadioSetHz        EventName = "ComRadioSetHz"
	EventComStbyRadioSwitchTo EventName = "ComStbyRadioSwitchTo"
	EventCom2StbyRadioSetHz   EventName = "Com2StbyRadioSetHz"
	EventCom2RadioSetHz       EventName = "Com2RadioSetHz"
	EventCom2RadioSwap        EventName = "Com2RadioSwap"
	EventPauseSet             EventName = "PauseSet"
)

var wellKnownEvents = map[EventName]string{
	EventComStbyRadioSetHz:    "COM_STBY_RADIO_SET_HZ",
	EventComRadioSetHz:        "COM_RADIO_SET_HZ",
	EventComStbyRadioSwitchTo: "COM_STBY_RADIO_SWAP",
	EventCom2StbyRadioSetHz:   "COM2_STBY_RADIO_SET_HZ",
	EventCom2RadioSetHz:       "COM2_RADIO_SET_HZ",
	EventCom2RadioSwap:        "COM2_RADIO_SWAP",
	EventPauseSet:             "PAUSE_SET",
}

// HostEventName returns the host's name for a catalog event.
func HostEventName(name EventName) (string, bool) {
	s, ok := wellKnownEvents[name]
	return s, ok
}
