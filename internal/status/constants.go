// internal/status/constants.go
package status

// Bridge Status Block layout constants.
// These values define the protocol and MUST NOT be configurable.

// ---- BLOCK GEOMETRY ----

// SlotsPerDevice is the fixed number of registers per status block.
const SlotsPerDevice = 20

// ---- SLOT INDICES ----

// SlotHealthCode holds the bridge health state.
const SlotHealthCode = 0

// SlotLastErrorCode holds the last error code (host exception or 1).
const SlotLastErrorCode = 1

// SlotSecondsInError holds the duration (in seconds) the bridge has been in error.
const SlotSecondsInError = 2

// SlotConnected is 1 while the host session is open.
const SlotConnected = 3

// SlotPaused is 1 while the host reports pause.
const SlotPaused = 4

// ---- RADIO (BCD16, implied leading 1: 124.10 -> 0x2410) ----

const SlotCom1Active = 5
const SlotCom1Standby = 6
const SlotCom2Active = 7
const SlotCom2Standby = 8

// ---- RESERVED RANGE ----

// Slots 9-11 are reserved for future use.
const SlotReservedStart = 9
const SlotReservedEnd = 11

// ---- BRIDGE NAME ----

// SlotNameStart is the first slot used for the bridge name.
// The name is always placed at the END of the status block.
const SlotNameStart = SlotsPerDevice - SlotNameSlots

// SlotNameSlots is the number of slots reserved for the name.
const SlotNameSlots = 8

// SlotNameEnd is the last slot used for the name (inclusive).
const SlotNameEnd = SlotNameStart + SlotNameSlots - 1

// ---- LIMITS ----

// NameMaxChars is the maximum number of ASCII characters stored for the name.
const NameMaxChars = 16

// ---- HEALTH CODES ----

// HealthUnknown represents an unknown or boot state.
const HealthUnknown uint16 = 0

// HealthOK represents a connected bridge with fresh frequencies.
const HealthOK uint16 = 1

// HealthError represents a failed refresh on a connected session.
const HealthError uint16 = 2

// HealthStale represents a lost host session; frequencies are frozen.
const HealthStale uint16 = 3

// HealthDisabled represents a bridge that was shut down.
const HealthDisabled uint16 = 4
