// internal/status/snapshot.go
package status

// Snapshot represents exactly what the writer is allowed to deliver.
// It contains no logic and no memory of the past beyond current state.
type Snapshot struct {
	Health         uint16
	LastErrorCode  uint16
	SecondsInError uint16

	Connected bool
	Paused    bool

	// BCD16 register values; zero until the first successful refresh.
	Com1Active  uint16
	Com1Standby uint16
	Com2Active  uint16
	Com2Standby uint16
}
