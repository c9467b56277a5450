// internal/writer/modbus/client_test.go
package modbus

import (
	"encoding/binary"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	cfg "github.com/tamzrod/fsbridge/internal/config"
)

// fakeServer is a minimal Modbus TCP server holding one register bank.
type fakeServer struct {
	ln   net.Listener
	mu   sync.Mutex
	regs map[uint16]uint16
	unit []uint8 // unit ids seen, in order
}

func newFakeServer(t *testing.T) *fakeServer {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	s := &fakeServer{ln: ln, regs: map[uint16]uint16{}}
	t.Cleanup(func() { _ = ln.Close() })
	go s.serve()
	return s
}

func (s *fakeServer) serve() {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}
		go s.handle(conn)
	}
}

func (s *fakeServer) handle(conn net.Conn) {
	defer conn.Close()
	for {
		hdr := make([]byte, 7)
		if _, err := io.ReadFull(conn, hdr); err != nil {
			return
		}
		n := int(binary.BigEndian.Uint16(hdr[4:6])) - 1
		pdu := make([]byte, n)
		if _, err := io.ReadFull(conn, pdu); err != nil {
			return
		}

		s.mu.Lock()
		s.unit = append(s.unit, hdr[6])
		var resp []byte
		addr := binary.BigEndian.Uint16(pdu[1:3])
		qty := binary.BigEndian.Uint16(pdu[3:5])
		switch pdu[0] {
		case 3:
			resp = []byte{3, byte(qty * 2)}
			for i := uint16(0); i < qty; i++ {
				resp = binary.BigEndian.AppendUint16(resp, s.regs[addr+i])
			}
		case 16:
			for i := uint16(0); i < qty; i++ {
				s.regs[addr+i] = binary.BigEndian.Uint16(pdu[6+2*i:])
			}
			resp = append([]byte{16}, pdu[1:5]...)
		default:
			resp = []byte{pdu[0] | 0x80, 1}
		}
		s.mu.Unlock()

		out := make([]byte, 7, 7+len(resp))
		copy(out, hdr[:4])
		binary.BigEndian.PutUint16(out[4:6], uint16(len(resp)+1))
		out[6] = hdr[6]
		out = append(out, resp...)
		if _, err := conn.Write(out); err != nil {
			return
		}
	}
}

func TestWriteThenReadOverTCP(t *testing.T) {
	srv := newFakeServer(t)

	c, err := NewEndpointClient(Config{Scheme: "tcp", Address: srv.ln.Addr().String(), Timeout: time.Second})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer c.Close()

	if err := c.WriteRegisters(5, 40, []uint16{0x2410, 0x1800, 7}); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := c.ReadHoldingRegisters(6, 41, 2)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(got) != 2 || got[0] != 0x1800 || got[1] != 7 {
		t.Fatalf("unexpected registers: %v", got)
	}

	srv.mu.Lock()
	defer srv.mu.Unlock()
	if len(srv.unit) != 2 || srv.unit[0] != 5 || srv.unit[1] != 6 {
		t.Fatalf("unit ids not applied per call: %v", srv.unit)
	}
}

func TestNewEndpointClientErrors(t *testing.T) {
	if _, err := NewEndpointClient(Config{Scheme: "tcp"}); err == nil {
		t.Fatalf("expected address error")
	}
	if _, err := NewEndpointClient(Config{Scheme: "udp", Address: "x:1"}); err == nil {
		t.Fatalf("expected scheme error")
	}
}

func TestFromConfig(t *testing.T) {
	c := FromConfig(
		cfg.Endpoint{Scheme: cfg.SchemeRTU, Address: "/dev/ttyUSB0"},
		1500,
		cfg.SerialConfig{BaudRate: 9600, DataBits: 8, Parity: "N", StopBits: 2},
	)
	if c.Scheme != "rtu" || c.Address != "/dev/ttyUSB0" || c.Timeout != 1500*time.Millisecond {
		t.Fatalf("unexpected config: %+v", c)
	}
	if c.Serial.BaudRate != 9600 || c.Serial.Parity != "N" || c.Serial.StopBits != 2 {
		t.Fatalf("unexpected serial: %+v", c.Serial)
	}
}

func TestPackUnpackRegisters(t *testing.T) {
	b := packRegisters([]uint16{0x0102, 0xA0B0})
	if b[0] != 0x01 || b[1] != 0x02 || b[2] != 0xA0 || b[3] != 0xB0 {
		t.Fatalf("big-endian packing broken: % x", b)
	}
	r := unpackRegisters(b)
	if r[0] != 0x0102 || r[1] != 0xA0B0 {
		t.Fatalf("unpack mismatch: %v", r)
	}
}
