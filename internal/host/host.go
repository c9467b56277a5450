// internal/host/host.go
package host

import (
	"context"
	"log/slog"

	"github.com/tamzrod/fsbridge/internal/config"
	"github.com/tamzrod/fsbridge/internal/fsconnect"
	"github.com/tamzrod/fsbridge/internal/transport/dll"
	"github.com/tamzrod/fsbridge/internal/transport/loopback"
)

// SimulatorName is the application name the simulated host reports.
const SimulatorName = "fsbridge simulator"

// Dialer selects the host transport.
func Dialer(hc config.HostConfig, log *slog.Logger) fsconnect.DialFunc {
	if hc.Transport == config.TransportSimulated {
		sim := loopback.NewSimulator(log.With("component", "simulator"))
		h := loopback.New(
			loopback.WithAutoOpen(SimulatorName),
			loopback.WithResponder(sim.Respond),
		)
		return h.Dial
	}
	return dll.Dialer{Library: hc.Library, Log: log}.DialFunc()
}

// Connector returns the connect step, writing the remote config file first
// when a remote host is configured. cleanup removes that file again and is
// a no-op for a local host.
func Connector(hc config.HostConfig, sess *fsconnect.Session) (connect func(context.Context) error, cleanup func() error, err error) {
	r := hc.Remote
	if !r.Enabled() {
		return sess.Connect, func() error { return nil }, nil
	}

	proto, err := fsconnect.ParseProtocol(r.Protocol)
	if err != nil {
		return nil, nil, err
	}
	dir, err := fsconnect.ConfigFileDir(fsconnect.FileLocation(r.CfgLocation))
	if err != nil {
		return nil, nil, err
	}
	target := fsconnect.RemoteTarget{Protocol: proto, Address: r.Address, Port: r.Port}

	connect = func(ctx context.Context) error {
		return sess.ConnectRemote(ctx, target, dir)
	}
	cleanup = func() error {
		return fsconnect.RemoveConfigFile(dir)
	}
	return connect, cleanup, nil
}
