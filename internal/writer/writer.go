// internal/writer/writer.go
package writer

import (
	"errors"
	"strings"

	"github.com/tamzrod/fsbridge/internal/status"
)

// endpointClient is the exact contract the writer uses.
type endpointClient interface {
	WriteRegisters(unitID uint8, addr uint16, regs []uint16) error
}

type mirrorWriter struct {
	blocks []*blockWriter
}

// New builds a writer with one block writer per target. Every target
// shares the plan's name.
func New[C endpointClient](plan Plan, clients map[string]C) Writer {
	nameRegs := status.EncodeName(plan.Name)

	w := &mirrorWriter{}
	for _, t := range plan.Targets {
		var cli endpointClient
		if c, ok := clients[t.Endpoint]; ok {
			cli = c
		}
		w.blocks = append(w.blocks, newBlockWriter(t, cli, nameRegs))
	}
	return w
}

// WriteStatus writes s to every target. A failing target does not stop
// the others; errors are joined.
func (w *mirrorWriter) WriteStatus(s status.Snapshot) error {
	var errs []string

	for _, bw := range w.blocks {
		if err := bw.WriteStatus(s); err != nil {
			errs = append(errs, err.Error())
		}
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, " | "))
	}
	return nil
}
