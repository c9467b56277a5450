// cmd/fsbridge/link.go
package main

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/tamzrod/fsbridge/internal/fsconnect"
	"github.com/tamzrod/fsbridge/internal/radio"
)

var errHostLost = errors.New("fsbridge: host connection lost")

// link owns the host session across reconnects and fronts the radio
// manager of the current connection. Registrations die with a connection,
// so each connection gets a fresh manager.
type link struct {
	sess        *fsconnect.Session
	connect     func(ctx context.Context) error
	radioOpts   []radio.Option
	log         *slog.Logger
	retry       time.Duration
	openTimeout time.Duration

	mu      sync.RWMutex
	radio   *radio.Manager
	freqs   radio.Frequencies // survives reconnects
	updated time.Time
}

// Run keeps the session connected until ctx is done.
func (l *link) Run(ctx context.Context) error {
	for {
		err := l.serve(ctx)
		if ctx.Err() != nil {
			return nil
		}
		l.log.Warn("host link down", "err", err, "retry_in", l.retry)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(l.retry):
		}
	}
}

// serve runs one connection from dial to loss.
func (l *link) serve(ctx context.Context) error {
	if err := l.connect(ctx); err != nil {
		return err
	}

	wctx, cancel := context.WithTimeout(ctx, l.openTimeout)
	err := l.sess.WaitConnected(wctx)
	cancel()
	if err != nil {
		l.drop()
		return err
	}

	m, err := radio.New(l.sess, l.radioOpts...)
	if err != nil {
		l.drop()
		return err
	}
	l.setRadio(m)
	defer l.setRadio(nil)

	info := l.sess.Info()
	l.log.Info("host link up", "application", info.ApplicationName, "version", info.ApplicationVersion)

	select {
	case <-l.sess.Done():
		return errHostLost
	case <-ctx.Done():
		l.drop()
		return nil
	}
}

// drop disconnects and waits briefly for the receiver to let go.
func (l *link) drop() {
	sctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := l.sess.Shutdown(sctx); err != nil {
		l.log.Warn("host shutdown incomplete", "err", err)
	}
}

func (l *link) setRadio(m *radio.Manager) {
	l.mu.Lock()
	l.radio = m
	l.mu.Unlock()
}

func (l *link) current() (*radio.Manager, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.radio == nil {
		return nil, fsconnect.ErrNotConnected
	}
	return l.radio, nil
}

// ---- host view ----

func (l *link) State() fsconnect.State         { return l.sess.State() }
func (l *link) Info() fsconnect.ConnectionInfo { return l.sess.Info() }
func (l *link) Paused() bool                   { return l.sess.Paused() }

// Connected is true once the radio manager is ready, not merely when the
// host has answered.
func (l *link) Connected() bool {
	_, err := l.current()
	return err == nil && l.sess.Connected()
}

// ---- radio control ----

func (l *link) Refresh(ctx context.Context) (radio.Frequencies, error) {
	m, err := l.current()
	if err != nil {
		return l.Frequencies(), err
	}
	f, err := m.Refresh(ctx)
	if err != nil {
		return l.Frequencies(), err
	}
	l.mu.Lock()
	l.freqs, l.updated = f, m.Updated()
	l.mu.Unlock()
	return f, nil
}

func (l *link) Frequencies() radio.Frequencies {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.freqs
}

func (l *link) Updated() time.Time {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.updated
}

func (l *link) SetStandby(r radio.Radio, mhz float64) error {
	m, err := l.current()
	if err != nil {
		return err
	}
	return m.SetStandby(r, mhz)
}

func (l *link) SetActive(r radio.Radio, mhz float64) error {
	m, err := l.current()
	if err != nil {
		return err
	}
	return m.SetActive(r, mhz)
}

func (l *link) Swap(r radio.Radio) error {
	m, err := l.current()
	if err != nil {
		return err
	}
	return m.Swap(r)
}
