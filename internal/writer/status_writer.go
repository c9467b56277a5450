// internal/writer/status_writer.go
package writer

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tamzrod/fsbridge/internal/status"
)

// blockWriter keeps one target's status block in sync.
type blockWriter struct {
	target TargetBlock
	cli    endpointClient

	needFull bool
	last     []uint16 // what the target holds after the last successful write
	nameRegs []uint16
}

func newBlockWriter(t TargetBlock, cli endpointClient, nameRegs []uint16) *blockWriter {
	return &blockWriter{
		target:   t,
		cli:      cli,
		needFull: true, // full re-assert on first successful write
		nameRegs: nameRegs,
	}
}

// WriteStatus delivers a snapshot into the target's block.
// On any write failure, the next call will re-assert the full block.
func (bw *blockWriter) WriteStatus(s status.Snapshot) error {
	if bw.cli == nil {
		return fmt.Errorf("status writer: missing client for endpoint %s", bw.target.Endpoint)
	}

	regs := status.Encode(s, bw.nameRegs)
	base := bw.baseAddr()

	// ------------------------------------------------------------
	// Full block write (identity re-assert)
	// ------------------------------------------------------------
	if bw.needFull || len(bw.last) != len(regs) {
		if err := bw.cli.WriteRegisters(bw.target.UnitID, base, regs); err != nil {
			bw.needFull = true
			return fmt.Errorf("status writer: target %s: full block write failed: %w", bw.target.TargetID, err)
		}
		bw.needFull = false
		bw.last = regs
		return nil
	}

	// ------------------------------------------------------------
	// Incremental: one write per run of changed slots
	// ------------------------------------------------------------
	var errs []string
	for _, r := range changedRuns(bw.last, regs) {
		if err := bw.cli.WriteRegisters(bw.target.UnitID, base+uint16(r.start), regs[r.start:r.end]); err != nil {
			errs = append(errs, fmt.Sprintf("slots %d-%d write failed: %v", r.start, r.end-1, err))
			continue
		}
		copy(bw.last[r.start:r.end], regs[r.start:r.end])
	}

	if len(errs) > 0 {
		// Any partial failure: re-assert on next call.
		bw.needFull = true
		return errors.New("status writer: target " + bw.target.TargetID + ": " + strings.Join(errs, " | "))
	}

	return nil
}

func (bw *blockWriter) baseAddr() uint16 {
	// Each target owns a fixed SlotsPerDevice block.
	return bw.target.BaseSlot * status.SlotsPerDevice
}

type run struct{ start, end int } // [start, end)

// changedRuns returns maximal runs of slots where prev and next differ.
func changedRuns(prev, next []uint16) []run {
	var out []run
	for i := 0; i < len(next); i++ {
		if prev[i] == next[i] {
			continue
		}
		j := i + 1
		for j < len(next) && prev[j] != next[j] {
			j++
		}
		out = append(out, run{start: i, end: j})
		i = j
	}
	return out
}
