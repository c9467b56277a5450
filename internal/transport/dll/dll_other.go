//go:build !windows

// internal/transport/dll/dll_other.go
package dll

import (
	"context"
	"fmt"

	"github.com/tamzrod/fsbridge/internal/fsconnect"
)

func (d Dialer) dial(_ context.Context, _ fsconnect.DialOptions) (fsconnect.Transport, error) {
	return nil, fmt.Errorf("%w (library %s)", ErrUnsupported, d.library())
}
