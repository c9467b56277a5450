// internal/writer/types.go
package writer

import "github.com/tamzrod/fsbridge/internal/status"

// TargetBlock is one status block destination on an endpoint.
type TargetBlock struct {
	TargetID string
	Endpoint string // client key, scheme://address
	UnitID   uint8
	BaseSlot uint16 // block starts at BaseSlot * SlotsPerDevice
}

// Plan is the fully-built write plan for the mirror.
type Plan struct {
	Name    string
	Targets []TargetBlock
}

// Writer delivers status snapshots to every target.
type Writer interface {
	WriteStatus(s status.Snapshot) error
}
