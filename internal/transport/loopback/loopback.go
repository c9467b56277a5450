// internal/transport/loopback/loopback.go
//
// In-memory host transport.
// Every request is recorded; inbound messages are queued with Inject or
// produced by a Responder reacting to requests.
package loopback

import (
	"context"
	"errors"
	"sync"

	"github.com/tamzrod/fsbridge/internal/fsconnect"
)

// Responder reacts to one request. It runs on the sending goroutine,
// after the request has been recorded, and may call h.Inject.
type Responder func(h *Host, sendID uint32, req fsconnect.Request)

var ErrClosed = errors.New("loopback: transport closed")

// Host is an in-memory Transport. The zero value is not usable; call New.
type Host struct {
	mu       sync.Mutex
	sent     []fsconnect.Request
	ids      []uint32
	queue    []fsconnect.Message
	nextSend uint32
	closed   bool
	closes   int
	dials    int

	ready chan struct{}

	respond   Responder
	openApp   string
	autoOpen  bool
	dialErr   error
	sendErr   error
	recvErrs  []error
	closeHook func()
}

// Option configures a Host.
type Option func(*Host)

// WithResponder installs r.
func WithResponder(r Responder) Option {
	return func(h *Host) { h.respond = r }
}

// WithAutoOpen queues the host's open message on every Dial.
func WithAutoOpen(appName string) Option {
	return func(h *Host) {
		h.autoOpen = true
		h.openApp = appName
	}
}

// WithDialError makes Dial fail with err.
func WithDialError(err error) Option {
	return func(h *Host) { h.dialErr = err }
}

func New(opts ...Option) *Host {
	h := &Host{ready: make(chan struct{}, 1)}
	for _, o := range opts {
		o(h)
	}
	return h
}

// Dial implements fsconnect.DialFunc. Each dial reopens the same host and
// clears the inbound queue; the sent log is kept.
func (h *Host) Dial(ctx context.Context, _ fsconnect.DialOptions) (fsconnect.Transport, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	h.mu.Lock()
	if h.dialErr != nil {
		err := h.dialErr
		h.mu.Unlock()
		return nil, err
	}
	h.dials++
	h.closed = false
	h.queue = nil
	h.mu.Unlock()

	if h.autoOpen {
		h.Open()
	}
	return h, nil
}

// ---------------- fsconnect.Transport ----------------

func (h *Host) Send(req fsconnect.Request) (uint32, error) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return 0, ErrClosed
	}
	if h.sendErr != nil {
		err := h.sendErr
		h.mu.Unlock()
		return 0, err
	}
	h.nextSend++
	id := h.nextSend
	h.sent = append(h.sent, req)
	h.ids = append(h.ids, id)
	r := h.respond
	h.mu.Unlock()

	if r != nil {
		r(h, id, req)
	}
	return id, nil
}

func (h *Host) Ready() <-chan struct{} {
	return h.ready
}

func (h *Host) Receive() (fsconnect.Message, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.recvErrs) > 0 {
		err := h.recvErrs[0]
		h.recvErrs = h.recvErrs[1:]
		return nil, err
	}
	if len(h.queue) == 0 {
		return nil, fsconnect.ErrNoMessage
	}
	m := h.queue[0]
	h.queue = h.queue[1:]
	return m, nil
}

func (h *Host) Close() error {
	h.mu.Lock()
	h.closed = true
	h.closes++
	hook := h.closeHook
	h.mu.Unlock()

	if hook != nil {
		hook()
	}
	return nil
}

// ---------------- test controls ----------------

// Inject queues msg and signals readiness.
func (h *Host) Inject(msgs ...fsconnect.Message) {
	h.mu.Lock()
	h.queue = append(h.queue, msgs...)
	h.mu.Unlock()
	h.signal()
}

// Open queues the host's open message.
func (h *Host) Open() {
	h.Inject(fsconnect.OpenMessage{
		ApplicationName:    h.appName(),
		ApplicationVersion: [2]uint32{11, 0},
		ApplicationBuild:   [2]uint32{282174, 999},
		SimConnectVersion:  [2]uint32{11, 0},
		SimConnectBuild:    [2]uint32{62651, 3},
	})
}

// Quit queues the host's quit message.
func (h *Host) Quit() {
	h.Inject(fsconnect.QuitMessage{})
}

// FailReceive makes the next Receive calls return errs in order.
func (h *Host) FailReceive(errs ...error) {
	h.mu.Lock()
	h.recvErrs = append(h.recvErrs, errs...)
	h.mu.Unlock()
	h.signal()
}

// FailSend makes every Send fail with err until called with nil.
func (h *Host) FailSend(err error) {
	h.mu.Lock()
	h.sendErr = err
	h.mu.Unlock()
}

// OnClose runs fn whenever the transport is closed.
func (h *Host) OnClose(fn func()) {
	h.mu.Lock()
	h.closeHook = fn
	h.mu.Unlock()
}

func (h *Host) signal() {
	select {
	case h.ready <- struct{}{}:
	default:
	}
}

func (h *Host) appName() string {
	if h.openApp == "" {
		return "Loopback"
	}
	return h.openApp
}

// ---------------- inspection ----------------

// Sent returns a copy of every request sent so far.
func (h *Host) Sent() []fsconnect.Request {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]fsconnect.Request, len(h.sent))
	copy(out, h.sent)
	return out
}

// SendID returns the send id of the i-th recorded request.
func (h *Host) SendID(i int) uint32 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.ids[i]
}

// Reset clears the sent log.
func (h *Host) Reset() {
	h.mu.Lock()
	h.sent = nil
	h.ids = nil
	h.mu.Unlock()
}

// Closed reports whether the transport has been closed since the last Dial.
func (h *Host) Closed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closed
}

// Closes counts Close calls.
func (h *Host) Closes() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closes
}

// Dials counts successful Dial calls.
func (h *Host) Dials() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.dials
}

// SentOf returns the recorded requests of type T, in order.
func SentOf[T fsconnect.Request](h *Host) []T {
	var out []T
	for _, r := range h.Sent() {
		if v, ok := r.(T); ok {
			out = append(out, v)
		}
	}
	return out
}

// Sends pairs each recorded request of type T with its send id.
func Sends[T fsconnect.Request](h *Host) map[uint32]T {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make(map[uint32]T)
	for i, r := range h.sent {
		if v, ok := r.(T); ok {
			out[h.ids[i]] = v
		}
	}
	return out
}
