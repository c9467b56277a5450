// internal/fsconnect/cfgfile.go
package fsconnect

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ConfigFileName is the file the host's client library reads on open.
const ConfigFileName = "SimConnect.cfg"

// Protocol selects how the client library reaches a remote host.
type Protocol string

const (
	ProtocolIPv4 Protocol = "Ipv4"
	ProtocolIPv6 Protocol = "Ipv6"
	ProtocolPipe Protocol = "Pipe"
)

// ParseProtocol accepts any letter case.
func ParseProtocol(s string) (Protocol, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ipv4":
		return ProtocolIPv4, nil
	case "ipv6":
		return ProtocolIPv6, nil
	case "pipe":
		return ProtocolPipe, nil
	}
	return "", fmt.Errorf("fsconnect: unknown protocol %q", s)
}

// FileLocation is where the config file is written.
type FileLocation string

const (
	// LocationLocal is next to the running executable.
	LocationLocal FileLocation = "local"
	// LocationDocuments is the user's Documents folder.
	LocationDocuments FileLocation = "documents"
)

// RemoteTarget describes a host on another machine.
type RemoteTarget struct {
	Protocol Protocol
	Address  string
	Port     int
}

var (
	ErrInvalidTarget = errors.New("fsconnect: invalid remote target")
)

func (t RemoteTarget) validate() error {
	switch t.Protocol {
	case ProtocolIPv4, ProtocolIPv6, ProtocolPipe:
	default:
		return fmt.Errorf("%w: protocol %q", ErrInvalidTarget, t.Protocol)
	}
	if strings.TrimSpace(t.Address) == "" {
		return fmt.Errorf("%w: empty address", ErrInvalidTarget)
	}
	if t.Port <= 0 || t.Port > 65535 {
		return fmt.Errorf("%w: port %d", ErrInvalidTarget, t.Port)
	}
	return nil
}

// ConfigFileContents renders the config file for t with CRLF line endings.
func ConfigFileContents(t RemoteTarget) string {
	lines := []string{
		"[SimConnect]",
		"Protocol=" + string(t.Protocol),
		"Address=" + t.Address,
		"Port=" + strconv.Itoa(t.Port),
	}
	return strings.Join(lines, "\r\n") + "\r\n"
}

// WriteConfigFile writes the config file for t into dir, replacing any
// existing one, and returns its path.
func WriteConfigFile(dir string, t RemoteTarget) (string, error) {
	if err := t.validate(); err != nil {
		return "", err
	}
	if dir == "" {
		return "", fmt.Errorf("fsconnect: config file directory is empty")
	}

	path := filepath.Join(dir, ConfigFileName)
	if err := os.WriteFile(path, []byte(ConfigFileContents(t)), 0o644); err != nil {
		return "", fmt.Errorf("fsconnect: write %s: %w", path, err)
	}
	return path, nil
}

// ConfigFileDir resolves a FileLocation to a directory.
func ConfigFileDir(loc FileLocation) (string, error) {
	switch loc {
	case LocationLocal, "":
		exe, err := os.Executable()
		if err != nil {
			return "", fmt.Errorf("fsconnect: locate executable: %w", err)
		}
		return filepath.Dir(exe), nil
	case LocationDocuments:
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("fsconnect: locate home directory: %w", err)
		}
		return filepath.Join(home, "Documents"), nil
	}
	return "", fmt.Errorf("fsconnect: unknown config file location %q", loc)
}

// RemoveConfigFile deletes a previously written config file, if any.
func RemoveConfigFile(dir string) error {
	err := os.Remove(filepath.Join(dir, ConfigFileName))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
