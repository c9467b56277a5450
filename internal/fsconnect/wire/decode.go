// internal/fsconnect/wire/decode.go
//
// Decoding of inbound host packets.
// Layouts are little-endian and packed on 1-byte boundaries.
package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/tamzrod/fsbridge/internal/fsconnect"
)

// Packet kinds (dwID).
const (
	KindNull             uint32 = 0
	KindException        uint32 = 1
	KindOpen             uint32 = 2
	KindQuit             uint32 = 3
	KindEvent            uint32 = 4
	KindObjectAddRemove  uint32 = 5
	KindEventFilename    uint32 = 6
	KindSimObjectData    uint32 = 8
	KindSimObjectDataTyp uint32 = 9
	KindSystemState      uint32 = 15
)

// Fixed sizes in bytes.
const (
	HeaderSize          = 12
	appNameSize         = 256
	OpenSize            = HeaderSize + appNameSize + 8*4 + 2*4
	ExceptionSize       = HeaderSize + 3*4
	EventSize           = HeaderSize + 3*4
	ObjectAddRemoveSize = EventSize + 4
	fileNameSize        = 260
	EventFilenameSize   = EventSize + fileNameSize + 4
	SimObjectDataSize   = HeaderSize + 7*4
	systemStringSize    = 260
	SystemStateSize     = HeaderSize + 3*4 + systemStringSize
)

var (
	ErrShort       = errors.New("wire: packet too short")
	ErrSize        = errors.New("wire: declared size does not match buffer")
	ErrUnsupported = errors.New("wire: unsupported packet kind")
)

// Header is the common prefix of every packet.
type Header struct {
	Size    uint32
	Version uint32
	Kind    uint32
}

// ReadHeader parses the packet header.
func ReadHeader(b []byte) (Header, error) {
	if len(b) < HeaderSize {
		return Header{}, fmt.Errorf("%w: %d bytes", ErrShort, len(b))
	}
	return Header{
		Size:    binary.LittleEndian.Uint32(b[0:]),
		Version: binary.LittleEndian.Uint32(b[4:]),
		Kind:    binary.LittleEndian.Uint32(b[8:]),
	}, nil
}

// Decode converts one packet into a session message. b is not retained.
// A null packet yields fsconnect.ErrNoMessage.
func Decode(b []byte) (fsconnect.Message, error) {
	h, err := ReadHeader(b)
	if err != nil {
		return nil, err
	}
	if int(h.Size) > len(b) || h.Size < HeaderSize {
		return nil, fmt.Errorf("%w: header says %d, have %d", ErrSize, h.Size, len(b))
	}
	b = b[:h.Size]

	switch h.Kind {
	case KindNull:
		return nil, fsconnect.ErrNoMessage

	case KindOpen:
		if err := need(b, OpenSize, "open"); err != nil {
			return nil, err
		}
		return fsconnect.OpenMessage{
			ApplicationName:    cString(b[HeaderSize : HeaderSize+appNameSize]),
			ApplicationVersion: pair(b, HeaderSize+appNameSize),
			ApplicationBuild:   pair(b, HeaderSize+appNameSize+8),
			SimConnectVersion:  pair(b, HeaderSize+appNameSize+16),
			SimConnectBuild:    pair(b, HeaderSize+appNameSize+24),
		}, nil

	case KindQuit:
		return fsconnect.QuitMessage{}, nil

	case KindException:
		if err := need(b, ExceptionSize, "exception"); err != nil {
			return nil, err
		}
		return fsconnect.ExceptionMessage{
			Exception: fsconnect.ExceptionCode(u32(b, 12)),
			SendID:    u32(b, 16),
			Index:     u32(b, 20),
		}, nil

	case KindEvent:
		if err := need(b, EventSize, "event"); err != nil {
			return nil, err
		}
		return fsconnect.EventMessage{
			GroupID: fsconnect.ID(u32(b, 12)),
			EventID: fsconnect.ID(u32(b, 16)),
			Data:    u32(b, 20),
		}, nil

	case KindEventFilename:
		if err := need(b, EventFilenameSize, "event filename"); err != nil {
			return nil, err
		}
		return fsconnect.EventMessage{
			GroupID:  fsconnect.ID(u32(b, 12)),
			EventID:  fsconnect.ID(u32(b, 16)),
			Data:     u32(b, 20),
			FileName: cString(b[EventSize : EventSize+fileNameSize]),
		}, nil

	case KindObjectAddRemove:
		if err := need(b, ObjectAddRemoveSize, "object add/remove"); err != nil {
			return nil, err
		}
		return fsconnect.ObjectAddRemoveMessage{
			EventID:    fsconnect.ID(u32(b, 16)),
			ObjectID:   u32(b, 20),
			ObjectType: fsconnect.ObjectType(u32(b, 24)),
		}, nil

	case KindSimObjectData, KindSimObjectDataTyp:
		if err := need(b, SimObjectDataSize, "simobject data"); err != nil {
			return nil, err
		}
		data := make([]byte, len(b)-SimObjectDataSize)
		copy(data, b[SimObjectDataSize:])
		return fsconnect.SimObjectDataMessage{
			RequestID:   fsconnect.ID(u32(b, 12)),
			ObjectID:    u32(b, 16),
			DefineID:    fsconnect.ID(u32(b, 20)),
			Flags:       u32(b, 24),
			EntryNumber: u32(b, 28),
			OutOf:       u32(b, 32),
			DefineCount: u32(b, 36),
			Data:        data,
			ByType:      h.Kind == KindSimObjectDataTyp,
		}, nil

	case KindSystemState:
		if err := need(b, SystemStateSize, "system state"); err != nil {
			return nil, err
		}
		return fsconnect.SystemStateMessage{
			RequestID: fsconnect.ID(u32(b, 12)),
			Integer:   u32(b, 16),
			Float:     math.Float32frombits(u32(b, 20)),
			String:    cString(b[24 : 24+systemStringSize]),
		}, nil
	}

	return nil, fmt.Errorf("%w: %d", ErrUnsupported, h.Kind)
}

func need(b []byte, n int, what string) error {
	if len(b) < n {
		return fmt.Errorf("%w: %s needs %d bytes, have %d", ErrShort, what, n, len(b))
	}
	return nil
}

func u32(b []byte, off int) uint32 {
	return binary.LittleEndian.Uint32(b[off:])
}

func pair(b []byte, off int) [2]uint32 {
	return [2]uint32{u32(b, off), u32(b, off+4)}
}

func cString(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}
