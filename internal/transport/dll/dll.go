// internal/transport/dll/dll.go
//
// Transport over the host's native client library.
// Only functional on Windows; elsewhere Dial reports ErrUnsupported.
package dll

import (
	"errors"
	"log/slog"
	"time"

	"github.com/tamzrod/fsbridge/internal/fsconnect"
)

// DefaultLibrary is looked up on the normal DLL search path.
const DefaultLibrary = "SimConnect.dll"

// pollInterval bounds how long the signal goroutine blocks in one wait.
const pollInterval = 100 * time.Millisecond

var ErrUnsupported = errors.New("dll: native host transport requires windows")

// Dialer opens transports through one library path.
type Dialer struct {
	Library string
	Log     *slog.Logger
}

// DialFunc returns d as a fsconnect.DialFunc.
func (d Dialer) DialFunc() fsconnect.DialFunc {
	return d.dial
}

func (d Dialer) library() string {
	if d.Library == "" {
		return DefaultLibrary
	}
	return d.Library
}

func (d Dialer) logger() *slog.Logger {
	if d.Log == nil {
		return slog.Default()
	}
	return d.Log
}
