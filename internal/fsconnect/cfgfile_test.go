// internal/fsconnect/cfgfile_test.go
package fsconnect

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestConfigFileContents(t *testing.T) {
	got := ConfigFileContents(RemoteTarget{Protocol: ProtocolIPv4, Address: "192.168.1.20", Port: 500})
	want := "[SimConnect]\r\nProtocol=Ipv4\r\nAddress=192.168.1.20\r\nPort=500\r\n"
	if got != want {
		t.Fatalf("contents = %q, want %q", got, want)
	}
}

func TestWriteConfigFileReplacesExisting(t *testing.T) {
	dir := t.TempDir()

	if _, err := WriteConfigFile(dir, RemoteTarget{Protocol: ProtocolPipe, Address: "old", Port: 1}); err != nil {
		t.Fatalf("first write: %v", err)
	}
	path, err := WriteConfigFile(dir, RemoteTarget{Protocol: ProtocolIPv6, Address: "::1", Port: 4506})
	if err != nil {
		t.Fatalf("second write: %v", err)
	}
	if path != filepath.Join(dir, ConfigFileName) {
		t.Fatalf("path = %s", path)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(b) != "[SimConnect]\r\nProtocol=Ipv6\r\nAddress=::1\r\nPort=4506\r\n" {
		t.Fatalf("file = %q", b)
	}

	if err := RemoveConfigFile(dir); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := RemoveConfigFile(dir); err != nil {
		t.Fatalf("second remove: %v", err)
	}
}

func TestWriteConfigFileValidatesTarget(t *testing.T) {
	dir := t.TempDir()
	cases := []RemoteTarget{
		{Protocol: "Tcp", Address: "host", Port: 500},
		{Protocol: ProtocolIPv4, Address: " ", Port: 500},
		{Protocol: ProtocolIPv4, Address: "host", Port: 0},
		{Protocol: ProtocolIPv4, Address: "host", Port: 70000},
	}
	for _, c := range cases {
		if _, err := WriteConfigFile(dir, c); !errors.Is(err, ErrInvalidTarget) {
			t.Fatalf("%+v: err = %v, want ErrInvalidTarget", c, err)
		}
	}
}

func TestParseProtocol(t *testing.T) {
	for in, want := range map[string]Protocol{"ipv4": ProtocolIPv4, "IPV6": ProtocolIPv6, " Pipe ": ProtocolPipe} {
		got, err := ParseProtocol(in)
		if err != nil || got != want {
			t.Fatalf("ParseProtocol(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseProtocol("udp"); err == nil {
		t.Fatalf("expected error for udp")
	}
}
