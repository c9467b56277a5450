// internal/status/encode_test.go
package status

import (
	"errors"
	"testing"

	"github.com/tamzrod/fsbridge/internal/bcd"
	"github.com/tamzrod/fsbridge/internal/radio"
)

func TestLayoutIsLocked(t *testing.T) {
	if SlotNameEnd != SlotsPerDevice-1 {
		t.Fatalf("name must end the block: end=%d size=%d", SlotNameEnd, SlotsPerDevice)
	}
	if SlotReservedEnd >= SlotNameStart {
		t.Fatalf("reserved range %d-%d runs into name at %d", SlotReservedStart, SlotReservedEnd, SlotNameStart)
	}
	if NameMaxChars != 2*SlotNameSlots {
		t.Fatalf("name chars %d do not fill %d slots", NameMaxChars, SlotNameSlots)
	}
}

func TestEncodeFullBlock(t *testing.T) {
	s := Snapshot{
		Health:         HealthError,
		LastErrorCode:  7,
		SecondsInError: 12,
		Connected:      true,
		Paused:         false,
	}
	if err := s.SetFrequencies(radio.Frequencies{
		Com1Active: 122.80, Com1Standby: 124.10,
		Com2Active: 124.35, Com2Standby: 118.00,
	}); err != nil {
		t.Fatalf("SetFrequencies err=%v", err)
	}

	regs := Encode(s, EncodeName("BRIDGE"))
	if len(regs) != SlotsPerDevice {
		t.Fatalf("expected %d regs, got %d", SlotsPerDevice, len(regs))
	}

	want := map[int]uint16{
		SlotHealthCode:     HealthError,
		SlotLastErrorCode:  7,
		SlotSecondsInError: 12,
		SlotConnected:      1,
		SlotPaused:         0,
		SlotCom1Active:     0x2280,
		SlotCom1Standby:    0x2410,
		SlotCom2Active:     0x2435,
		SlotCom2Standby:    0x1800,
		SlotNameStart:      uint16('B')<<8 | uint16('R'),
		SlotNameStart + 2:  uint16('G')<<8 | uint16('E'),
		SlotNameStart + 3:  0,
	}
	for slot, v := range want {
		if regs[slot] != v {
			t.Fatalf("slot %d: got=0x%04X want=0x%04X", slot, regs[slot], v)
		}
	}
	for slot := SlotReservedStart; slot <= SlotReservedEnd; slot++ {
		if regs[slot] != 0 {
			t.Fatalf("reserved slot %d not zero: %d", slot, regs[slot])
		}
	}
}

func TestSetFrequenciesRejectsInvalid(t *testing.T) {
	s := Snapshot{Com1Active: 0x2280}
	err := s.SetFrequencies(radio.Frequencies{Com1Active: 124.125, Com1Standby: 124.10, Com2Active: 124.10, Com2Standby: 124.10})
	if !errors.Is(err, bcd.ErrPrecision) {
		t.Fatalf("expected ErrPrecision, got %v", err)
	}
	if s.Com1Active != 0x2280 || s.Com1Standby != 0 {
		t.Fatalf("snapshot modified on error: %+v", s)
	}
}

func TestEncodeName(t *testing.T) {
	regs := EncodeName("ABCDEFGHIJKLMNOPQRS")
	if len(regs) != SlotNameSlots {
		t.Fatalf("expected %d regs, got %d", SlotNameSlots, len(regs))
	}
	if regs[SlotNameSlots-1] != uint16('O')<<8|uint16('P') {
		t.Fatalf("name not truncated to %d chars: last=0x%04X", NameMaxChars, regs[SlotNameSlots-1])
	}

	regs = EncodeName("a\tb")
	if regs[0] != uint16('a')<<8|uint16('?') || regs[1] != uint16('b')<<8 {
		t.Fatalf("control characters not sanitized: %04X %04X", regs[0], regs[1])
	}
}
