// internal/status/encode.go
package status

import (
	"fmt"

	"github.com/tamzrod/fsbridge/internal/bcd"
	"github.com/tamzrod/fsbridge/internal/radio"
)

// Encode converts a Snapshot and name registers into a full status block.
// Layout is protocol-locked.
// No IO. No side effects.
func Encode(s Snapshot, nameRegs []uint16) []uint16 {
	regs := make([]uint16, SlotsPerDevice)

	regs[SlotHealthCode] = s.Health
	regs[SlotLastErrorCode] = s.LastErrorCode
	regs[SlotSecondsInError] = s.SecondsInError
	regs[SlotConnected] = flag(s.Connected)
	regs[SlotPaused] = flag(s.Paused)

	regs[SlotCom1Active] = s.Com1Active
	regs[SlotCom1Standby] = s.Com1Standby
	regs[SlotCom2Active] = s.Com2Active
	regs[SlotCom2Standby] = s.Com2Standby

	// Reserved slots are left as zero.

	for i := 0; i < SlotNameSlots && i < len(nameRegs); i++ {
		regs[SlotNameStart+i] = nameRegs[i]
	}

	return regs
}

// SetFrequencies stores f into s as BCD16 registers.
// On error s is left unchanged.
func (s *Snapshot) SetFrequencies(f radio.Frequencies) error {
	var out [4]uint16
	for i, mhz := range [4]float64{f.Com1Active, f.Com1Standby, f.Com2Active, f.Com2Standby} {
		v, err := bcd.EncodeFrequency16(mhz)
		if err != nil {
			return fmt.Errorf("status: frequency %.3f: %w", mhz, err)
		}
		out[i] = v
	}
	s.Com1Active, s.Com1Standby, s.Com2Active, s.Com2Standby = out[0], out[1], out[2], out[3]
	return nil
}

// EncodeName packs up to 16 ASCII characters into 8 registers.
// Each register stores two ASCII bytes in big-endian order.
func EncodeName(name string) []uint16 {
	out := make([]uint16, SlotNameSlots)

	b := []byte(name)
	if len(b) > NameMaxChars {
		b = b[:NameMaxChars]
	}

	// sanitize to printable ASCII
	for i := 0; i < len(b); i++ {
		if b[i] < 0x20 || b[i] > 0x7E {
			b[i] = '?'
		}
	}

	for i := 0; i < NameMaxChars; i += 2 {
		var hi, lo byte
		if i < len(b) {
			hi = b[i]
		}
		if i+1 < len(b) {
			lo = b[i+1]
		}
		out[i/2] = uint16(hi)<<8 | uint16(lo)
	}

	return out
}

func flag(b bool) uint16 {
	if b {
		return 1
	}
	return 0
}
