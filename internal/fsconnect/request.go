// internal/fsconnect/request.go
package fsconnect

import (
	"context"
	"fmt"
	"time"
)

type result struct {
	rec Record
	err error
}

// waiter is one blocked RequestAndWait call. Whoever removes it from the
// pending table delivers exactly one result; ch is buffered so that never
// blocks.
type waiter struct {
	defineID ID
	sendID   uint32
	ch       chan result
}

func (w *waiter) resolve(r result) {
	w.ch <- r
}

// RequestAndWait asks the host once for defineID on the user aircraft and
// blocks until the matching record arrives, timeout elapses (ErrNoResponse),
// ctx ends, or the session disconnects (ErrDisconnected). A timeout of zero
// uses the session default.
//
// Only one caller may wait on a request id at a time. Must not be called
// from a handler.
func (s *Session) RequestAndWait(ctx context.Context, requestID, defineID ID, timeout time.Duration) (Record, error) {
	if timeout <= 0 {
		timeout = s.timeout
	}
	w := &waiter{defineID: defineID, ch: make(chan result, 1)}

	s.mu.Lock()
	if !s.activeLocked() {
		s.mu.Unlock()
		return Record{}, ErrNotConnected
	}
	if err := s.definitionErrLocked(defineID); err != nil {
		s.mu.Unlock()
		return Record{}, err
	}
	if _, busy := s.pending[requestID]; busy {
		s.mu.Unlock()
		return Record{}, fmt.Errorf("%w: request %d", ErrRequestPending, requestID)
	}
	s.pending[requestID] = w
	s.mu.Unlock()

	started := time.Now()
	_, err := s.sendTracked(RequestDataOnSimObjectType{
		RequestID: requestID,
		DefineID:  defineID,
		Type:      ObjectTypeUser,
	}, func(sendID uint32) {
		if s.pending[requestID] == w {
			w.sendID = sendID
			s.sends[sendID] = sendRef{request: requestID, isRequest: true}
		}
	})
	if err != nil {
		if r, taken := s.abandon(requestID, w); taken {
			return r.rec, r.err
		}
		s.metrics.waitOutcome("error")
		return Record{}, err
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case r := <-w.ch:
		s.observe(r, started)
		return r.rec, r.err

	case <-timer.C:
		if r, taken := s.abandon(requestID, w); taken {
			return r.rec, r.err
		}
		s.metrics.waitOutcome("timeout")
		s.log.Warn("request timed out", "request_id", requestID, "define_id", defineID, "timeout", timeout)
		return Record{}, fmt.Errorf("%w: request %d after %s", ErrNoResponse, requestID, timeout)

	case <-ctx.Done():
		if r, taken := s.abandon(requestID, w); taken {
			return r.rec, r.err
		}
		s.metrics.waitOutcome("canceled")
		return Record{}, ctx.Err()
	}
}

// abandon removes w from the pending table. If someone else already took it,
// their result is returned with taken set.
func (s *Session) abandon(requestID ID, w *waiter) (result, bool) {
	s.mu.Lock()
	if s.pending[requestID] == w {
		delete(s.pending, requestID)
		s.forgetSendLocked(w)
		s.mu.Unlock()
		return result{}, false
	}
	s.mu.Unlock()

	return <-w.ch, true
}

func (s *Session) forgetSendLocked(w *waiter) {
	if ref, ok := s.sends[w.sendID]; ok && ref.isRequest {
		delete(s.sends, w.sendID)
	}
}

func (s *Session) observe(r result, started time.Time) {
	if r.err != nil {
		return
	}
	s.metrics.waitOutcome("ok")
	s.metrics.roundTrip(time.Since(started))
}
