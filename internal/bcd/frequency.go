// internal/bcd/frequency.go
package bcd

import (
	"errors"
	"fmt"
	"math"
)

// Frequency wire formats.
//
// BCD32 carries the frequency in MHz with four fractional digits,
// one decimal digit per nibble, most significant nibble first:
//
//	124.10 MHz -> 0124.1000 -> 0x01241000
//	              hi=0x0124  lo=0x1000
//
// BCD16 is the legacy four-digit form with the leading "1" implied:
//
//	124.10 MHz -> (1)24.10 -> 0x2410
//
// Only two fractional digits are supported on encode. A third decimal
// (e.g. 128.725) is rejected, never rounded.

var (
	ErrPrecision = errors.New("bcd: frequency has more than two decimals")
	ErrRange     = errors.New("bcd: frequency out of encodable range")
	ErrNibble    = errors.New("bcd: non-decimal nibble")
)

const (
	digits32 = 8
	digits16 = 4

	// scale32 is the BCD32 fixed point: four fractional digits.
	scale32 = 10000

	// hundredths tolerance for float input (124.1 is not exact in binary).
	precisionEpsilon = 1e-6
)

// EncodeFrequency packs a two-decimal MHz value into BCD32.
func EncodeFrequency(mhz float64) (uint32, error) {
	hundredths, err := toHundredths(mhz)
	if err != nil {
		return 0, err
	}
	if hundredths >= 1000000 {
		return 0, fmt.Errorf("%w: %.2f", ErrRange, mhz)
	}
	return pack(uint64(hundredths)*100, digits32), nil
}

// DecodeFrequency unpacks a BCD32 value into MHz.
// Decoding is exact for any valid BCD32, including values with third or
// fourth decimals produced by the host.
func DecodeFrequency(v uint32) (float64, error) {
	n, err := unpack(uint64(v), digits32)
	if err != nil {
		return 0, err
	}
	return float64(n) / scale32, nil
}

// EncodeFrequency16 packs a two-decimal MHz value in [100.00, 199.99] into BCD16.
func EncodeFrequency16(mhz float64) (uint16, error) {
	hundredths, err := toHundredths(mhz)
	if err != nil {
		return 0, err
	}
	if hundredths < 10000 || hundredths > 19999 {
		return 0, fmt.Errorf("%w: %.2f (bcd16 covers 100.00-199.99)", ErrRange, mhz)
	}
	return uint16(pack(uint64(hundredths-10000), digits16)), nil
}

// DecodeFrequency16 unpacks a BCD16 value into MHz, restoring the leading 1.
func DecodeFrequency16(v uint16) (float64, error) {
	n, err := unpack(uint64(v), digits16)
	if err != nil {
		return 0, err
	}
	return float64(n+10000) / 100, nil
}

func toHundredths(mhz float64) (int64, error) {
	if math.IsNaN(mhz) || math.IsInf(mhz, 0) || mhz < 0 {
		return 0, fmt.Errorf("%w: %v", ErrRange, mhz)
	}
	scaled := mhz * 100
	rounded := math.Round(scaled)
	if math.Abs(scaled-rounded) > precisionEpsilon {
		return 0, fmt.Errorf("%w: %v", ErrPrecision, mhz)
	}
	return int64(rounded), nil
}

// pack writes n as count BCD nibbles, most significant first.
func pack(n uint64, count int) uint32 {
	var out uint32
	for i := 0; i < count; i++ {
		out |= uint32(n%10) << (4 * uint(i))
		n /= 10
	}
	return out
}

func unpack(v uint64, count int) (uint64, error) {
	var n uint64
	for i := count - 1; i >= 0; i-- {
		nib := (v >> (4 * uint(i))) & 0xF
		if nib > 9 {
			return 0, fmt.Errorf("%w: 0x%X at digit %d", ErrNibble, v, count-1-i)
		}
		n = n*10 + nib
	}
	return n, nil
}
