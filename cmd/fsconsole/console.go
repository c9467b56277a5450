// cmd/fsconsole/console.go
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/tamzrod/fsbridge/internal/fsconnect"
	"github.com/tamzrod/fsbridge/internal/radio"
)

var (
	errUsage            = errors.New("usage")
	errAlreadyConnected = errors.New("already connected")
)

// console is the command layer behind the shell. Every command returns the
// text to print so it can run without a terminal.
type console struct {
	sess      *fsconnect.Session
	connect   func(ctx context.Context) error
	radioOpts []radio.Option
	log       *slog.Logger
	timeout   time.Duration

	mu    sync.Mutex
	radio *radio.Manager
}

func (c *console) manager() (*radio.Manager, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.radio == nil {
		return nil, fsconnect.ErrNotConnected
	}
	return c.radio, nil
}

// Connect opens the host and registers the radio definitions. lost runs
// once when the connection ends.
func (c *console) Connect(lost func()) (string, error) {
	if c.sess.Connected() {
		return "", errAlreadyConnected
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	if err := c.connect(ctx); err != nil {
		return "", err
	}
	if err := c.sess.WaitConnected(ctx); err != nil {
		c.shutdown()
		return "", err
	}
	m, err := radio.New(c.sess, c.radioOpts...)
	if err != nil {
		c.shutdown()
		return "", err
	}

	c.mu.Lock()
	c.radio = m
	c.mu.Unlock()

	go func(done <-chan struct{}) {
		<-done
		c.mu.Lock()
		if c.radio == m {
			c.radio = nil
		}
		c.mu.Unlock()
		if lost != nil {
			lost()
		}
	}(c.sess.Done())

	info := c.sess.Info()
	return fmt.Sprintf("connected to %s %s", info.ApplicationName, info.ApplicationVersion), nil
}

func (c *console) Disconnect() (string, error) {
	if c.sess.State() == fsconnect.StateDisconnected {
		return "not connected", nil
	}
	c.shutdown()
	return "disconnected", nil
}

func (c *console) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := c.sess.Shutdown(ctx); err != nil {
		c.log.Warn("host shutdown incomplete", "err", err)
	}
	c.mu.Lock()
	c.radio = nil
	c.mu.Unlock()
}

func (c *console) Status() string {
	var b strings.Builder
	fmt.Fprintf(&b, "state:  %s\n", c.sess.State())
	if !c.sess.Connected() {
		return strings.TrimRight(b.String(), "\n")
	}
	info := c.sess.Info()
	fmt.Fprintf(&b, "host:   %s %s (build %s)\n", info.ApplicationName, info.ApplicationVersion, info.ApplicationBuild)
	fmt.Fprintf(&b, "link:   %s (build %s)\n", info.SimConnectVersion, info.SimConnectBuild)
	fmt.Fprintf(&b, "paused: %t", c.sess.Paused())
	if m, err := c.manager(); err == nil && !m.Updated().IsZero() {
		b.WriteString("\n")
		b.WriteString(formatFrequencies(m.Frequencies()))
	}
	return b.String()
}

func (c *console) Refresh() (string, error) {
	m, err := c.manager()
	if err != nil {
		return "", err
	}
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()
	f, err := m.Refresh(ctx)
	if err != nil {
		return "", err
	}
	return formatFrequencies(f), nil
}

// Tune handles "stby" and "active": <1|2> <mhz>.
func (c *console) Tune(active bool, args []string) (string, error) {
	if len(args) != 2 {
		return "", errUsage
	}
	r, err := radio.ParseRadio(args[0])
	if err != nil {
		return "", err
	}
	mhz, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return "", fmt.Errorf("frequency %q: %w", args[1], err)
	}
	m, err := c.manager()
	if err != nil {
		return "", err
	}

	which := "standby"
	if active {
		which = "active"
		err = m.SetActive(r, mhz)
	} else {
		err = m.SetStandby(r, mhz)
	}
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s %s set to %.3f", r, which, mhz), nil
}

func (c *console) Swap(args []string) (string, error) {
	if len(args) != 1 {
		return "", errUsage
	}
	r, err := radio.ParseRadio(args[0])
	if err != nil {
		return "", err
	}
	m, err := c.manager()
	if err != nil {
		return "", err
	}
	if err := m.Swap(r); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s swapped", r), nil
}

// Pause toggles without an argument.
func (c *console) Pause(args []string) (string, error) {
	var pause bool
	switch {
	case len(args) == 0:
		pause = !c.sess.Paused()
	case len(args) == 1 && strings.EqualFold(args[0], "on"):
		pause = true
	case len(args) == 1 && strings.EqualFold(args[0], "off"):
		pause = false
	default:
		return "", errUsage
	}
	if err := c.sess.SetPaused(pause); err != nil {
		return "", err
	}
	return fmt.Sprintf("paused: %t", pause), nil
}

func (c *console) Text(args []string) (string, error) {
	if len(args) == 0 {
		return "", errUsage
	}
	if err := c.sess.SetText(strings.Join(args, " "), 5*time.Second); err != nil {
		return "", err
	}
	return "sent", nil
}

func formatFrequencies(f radio.Frequencies) string {
	return fmt.Sprintf("COM1:   %.3f / %.3f\nCOM2:   %.3f / %.3f",
		f.Com1Active, f.Com1Standby, f.Com2Active, f.Com2Standby)
}
