// internal/fsconnect/session_test.go
package fsconnect_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tamzrod/fsbridge/internal/fsconnect"
	"github.com/tamzrod/fsbridge/internal/transport/loopback"
)

// ------------------------------------------------------------
// helpers
// ------------------------------------------------------------

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func connect(t *testing.T, opts ...loopback.Option) (*fsconnect.Session, *loopback.Host) {
	t.Helper()

	h := loopback.New(append([]loopback.Option{loopback.WithAutoOpen("Test Host")}, opts...)...)
	s := fsconnect.New(h.Dial, fsconnect.WithLogger(quietLogger()), fsconnect.WithAppName("test"))

	require.NoError(t, s.Connect(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.WaitConnected(ctx))

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = s.Shutdown(ctx)
	})
	return s, h
}

// captureRequests forwards every data request to a channel so the test
// decides when and how the host answers.
func captureRequests() (loopback.Option, <-chan fsconnect.RequestDataOnSimObjectType) {
	ch := make(chan fsconnect.RequestDataOnSimObjectType, 16)
	return loopback.WithResponder(func(_ *loopback.Host, _ uint32, req fsconnect.Request) {
		if r, ok := req.(fsconnect.RequestDataOnSimObjectType); ok {
			ch <- r
		}
	}), ch
}

func systemEventID(t *testing.T, h *loopback.Host, name string) fsconnect.ID {
	t.Helper()
	for _, r := range loopback.SentOf[fsconnect.SubscribeToSystemEvent](h) {
		if r.SystemEventName == name {
			return r.EventID
		}
	}
	t.Fatalf("no subscription for system event %q", name)
	return 0
}

var twoInts = fsconnect.Definition{
	Name: "pair",
	Fields: []fsconnect.Field{
		{Name: "A", Unit: "number", Type: fsconnect.DataTypeInt32},
		{Name: "B", Unit: "number", Type: fsconnect.DataTypeInt32, Instance: 2},
	},
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, cond, time.Second, 5*time.Millisecond)
}

// ------------------------------------------------------------
// lifecycle
// ------------------------------------------------------------

func TestConnectSubscribesSystemEventsAndReportsInfo(t *testing.T) {
	s, h := connect(t)

	assert.Equal(t, fsconnect.StateConnected, s.State())
	assert.Equal(t, "Test Host", s.Info().ApplicationName)

	names := map[string]bool{}
	for _, r := range loopback.SentOf[fsconnect.SubscribeToSystemEvent](h) {
		names[r.SystemEventName] = true
		assert.Less(t, uint32(r.EventID), uint32(fsconnect.FirstID))
	}
	for _, n := range []string{"AircraftLoaded", "FlightLoaded", "Paused", "Pause", "Sim", "Crashed", "ObjectAdded", "ObjectRemoved"} {
		assert.True(t, names[n], "missing subscription %s", n)
	}

	maps := loopback.SentOf[fsconnect.MapClientEventToSimEvent](h)
	require.Len(t, maps, 1)
	assert.Equal(t, "PAUSE_SET", maps[0].EventName)
}

func TestConnectFailureLeavesSessionDisconnected(t *testing.T) {
	boom := errors.New("no host")
	h := loopback.New(loopback.WithDialError(boom))
	s := fsconnect.New(h.Dial, fsconnect.WithLogger(quietLogger()))

	err := s.Connect(context.Background())
	require.ErrorIs(t, err, fsconnect.ErrConnectFailed)
	require.ErrorIs(t, err, boom)
	assert.Equal(t, fsconnect.StateDisconnected, s.State())
	assert.ErrorIs(t, s.WaitConnected(context.Background()), fsconnect.ErrNotConnected)
}

func TestConnectTwiceFails(t *testing.T) {
	s, _ := connect(t)
	assert.ErrorIs(t, s.Connect(context.Background()), fsconnect.ErrAlreadyConnected)
}

func TestDisconnectIsIdempotentAndReleasesTransport(t *testing.T) {
	s, h := connect(t)

	var downs atomic.Int32
	s.OnConnectionChanged(func(up bool) {
		if !up {
			downs.Add(1)
		}
	})

	require.NoError(t, s.Disconnect())
	require.NoError(t, s.Disconnect())

	select {
	case <-s.Done():
	case <-time.After(time.Second):
		t.Fatal("receiver did not stop")
	}

	assert.True(t, h.Closed())
	assert.Equal(t, 1, h.Closes())
	assert.Equal(t, int32(1), downs.Load())
	assert.Equal(t, fsconnect.StateDisconnected, s.State())
	assert.Len(t, loopback.SentOf[fsconnect.UnsubscribeFromSystemEvent](h), 8)

	removed := loopback.SentOf[fsconnect.RemoveClientEvent](h)
	require.NotEmpty(t, removed)

	assert.ErrorIs(t, s.SetPaused(true), fsconnect.ErrNotConnected)
}

func TestConcurrentDisconnectAndQuitTearDownOnce(t *testing.T) {
	opt, reqs := captureRequests()
	s, h := connect(t, opt)

	id, err := s.RegisterDataDefinition(twoInts)
	require.NoError(t, err)

	var downs atomic.Int32
	s.OnConnectionChanged(func(up bool) {
		if !up {
			downs.Add(1)
		}
	})

	waiter := make(chan error, 1)
	go func() {
		_, err := s.RequestAndWait(context.Background(), s.NextID(), id, 10*time.Second)
		waiter <- err
	}()
	<-reqs

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.Disconnect()
		}()
	}
	h.Quit()
	wg.Wait()

	select {
	case err := <-waiter:
		assert.ErrorIs(t, err, fsconnect.ErrDisconnected)
	case <-time.After(time.Second):
		t.Fatal("waiter still blocked")
	}
	select {
	case <-s.Done():
	case <-time.After(time.Second):
		t.Fatal("receiver did not stop")
	}

	assert.Equal(t, 1, h.Closes())
	assert.Equal(t, int32(1), downs.Load())
	assert.Len(t, loopback.SentOf[fsconnect.UnsubscribeFromSystemEvent](h), 8)
}

func TestHostQuitDisconnects(t *testing.T) {
	s, h := connect(t)

	changed := make(chan bool, 2)
	s.OnConnectionChanged(func(up bool) { changed <- up })

	h.Quit()

	select {
	case up := <-changed:
		assert.False(t, up)
	case <-time.After(time.Second):
		t.Fatal("no connection change after quit")
	}
	<-s.Done()
	assert.Equal(t, fsconnect.StateDisconnected, s.State())
	assert.True(t, h.Closed())
}

func TestReconnectAfterDisconnect(t *testing.T) {
	s, h := connect(t)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Shutdown(ctx))

	require.NoError(t, s.Connect(ctx))
	require.NoError(t, s.WaitConnected(ctx))
	assert.Equal(t, 2, h.Dials())
	assert.True(t, s.Connected())
}

func TestDisconnectFromHandlerDoesNotDeadlock(t *testing.T) {
	s, h := connect(t)

	aircraft := systemEventID(t, h, "AircraftLoaded")
	s.OnAircraftLoaded(func() { _ = s.Disconnect() })

	h.Inject(fsconnect.EventMessage{GroupID: fsconnect.Unused, EventID: aircraft})

	select {
	case <-s.Done():
	case <-time.After(time.Second):
		t.Fatal("disconnect from handler did not complete")
	}
}

// ------------------------------------------------------------
// registration
// ------------------------------------------------------------

func TestRegisterDataDefinitionSendsFieldsInOrder(t *testing.T) {
	s, h := connect(t)
	h.Reset()

	id, err := s.RegisterDataDefinition(twoInts)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, uint32(id), uint32(fsconnect.FirstID))

	adds := loopback.SentOf[fsconnect.AddToDataDefinition](h)
	require.Len(t, adds, 2)
	assert.Equal(t, "A", adds[0].DatumName)
	assert.Equal(t, "B:2", adds[1].DatumName)
	for _, a := range adds {
		assert.Equal(t, id, a.DefineID)
		assert.Equal(t, fsconnect.DataTypeInt32, a.DataType)
		assert.Equal(t, fsconnect.Unused, a.DatumID)
	}

	def, ok := s.Definition(id)
	require.True(t, ok)
	assert.Equal(t, "pair", def.Name)
}

func TestRegisterDataDefinitionRejectsEmptyAndDuplicate(t *testing.T) {
	s, h := connect(t)

	_, err := s.RegisterDataDefinition(fsconnect.Definition{Name: "empty"})
	require.ErrorIs(t, err, fsconnect.ErrEmptyDefinition)

	id := s.NextID()
	require.NoError(t, s.RegisterDataDefinitionID(id, twoInts))

	h.Reset()
	err = s.RegisterDataDefinitionID(id, twoInts)
	require.ErrorIs(t, err, fsconnect.ErrAlreadyRegistered)
	assert.Empty(t, h.Sent())
}

func TestRegisterRequiresConnection(t *testing.T) {
	s := fsconnect.New(loopback.New().Dial, fsconnect.WithLogger(quietLogger()))
	_, err := s.RegisterDataDefinition(twoInts)
	assert.ErrorIs(t, err, fsconnect.ErrNotConnected)
}

func TestRejectedFieldPoisonsDefinition(t *testing.T) {
	sim := loopback.NewSimulator(quietLogger())
	s, _ := connect(t, loopback.WithResponder(sim.Respond))

	errs := make(chan *fsconnect.HostException, 1)
	s.OnError(func(ex *fsconnect.HostException) { errs <- ex })

	id, err := s.RegisterDataDefinition(fsconnect.Definition{
		Name: "bad",
		Fields: []fsconnect.Field{
			{Name: "COM ACTIVE FREQUENCY", Unit: "Frequency BCD32", Type: fsconnect.DataTypeInt32, Instance: 1},
			{Name: "NOT A VARIABLE", Unit: "number"},
		},
	})
	require.NoError(t, err)

	var ex *fsconnect.HostException
	select {
	case ex = <-errs:
	case <-time.After(time.Second):
		t.Fatal("no host exception")
	}
	assert.Equal(t, fsconnect.ExceptionNameUnrecognized, ex.Exception)
	assert.Equal(t, id, ex.Definition)
	assert.Equal(t, "NOT A VARIABLE", ex.Field)

	_, err = s.RequestAndWait(context.Background(), s.NextID(), id, 100*time.Millisecond)
	require.ErrorIs(t, err, fsconnect.ErrDefinitionRejected)
	assert.Contains(t, err.Error(), "NOT A VARIABLE")
}

func TestConfirmDefinitionReportsRejectedField(t *testing.T) {
	sim := loopback.NewSimulator(quietLogger())
	s, _ := connect(t, loopback.WithResponder(sim.Respond))

	bad, err := s.RegisterDataDefinition(fsconnect.Definition{
		Name:   "bad",
		Fields: []fsconnect.Field{{Name: "NOT A VARIABLE", Unit: "number"}},
	})
	require.NoError(t, err)

	err = s.ConfirmDefinition(context.Background(), bad)
	require.ErrorIs(t, err, fsconnect.ErrDefinitionRejected)
	assert.Contains(t, err.Error(), "NOT A VARIABLE")

	good, err := s.RegisterDataDefinition(fsconnect.Definition{
		Name:   "good",
		Fields: []fsconnect.Field{{Name: "COM ACTIVE FREQUENCY", Unit: "Frequency BCD32", Type: fsconnect.DataTypeInt32, Instance: 1}},
	})
	require.NoError(t, err)
	require.NoError(t, s.ConfirmDefinition(context.Background(), good))

	assert.ErrorIs(t, s.ConfirmDefinition(context.Background(), fsconnect.ID(9999)), fsconnect.ErrUnknownDefinition)
}

func TestConfirmDefinitionWithoutAnswerTimesOut(t *testing.T) {
	h := loopback.New(loopback.WithAutoOpen("Mute Host"))
	s := fsconnect.New(h.Dial, fsconnect.WithLogger(quietLogger()), fsconnect.WithRequestTimeout(40*time.Millisecond))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Connect(ctx))
	require.NoError(t, s.WaitConnected(ctx))
	t.Cleanup(func() { _ = s.Shutdown(context.Background()) })

	id, err := s.RegisterDataDefinition(twoInts)
	require.NoError(t, err)

	err = s.ConfirmDefinition(context.Background(), id)
	require.ErrorIs(t, err, fsconnect.ErrNoResponse)
	assert.True(t, s.Connected())
}

func TestDuplicateClientEventMappingIsSoftError(t *testing.T) {
	s, h := connect(t)

	group, event := s.NextID(), s.NextID()
	require.NoError(t, s.MapWellKnownEvent(group, event, fsconnect.EventComStbyRadioSetHz))

	maps := loopback.SentOf[fsconnect.MapClientEventToSimEvent](h)
	assert.Equal(t, "COM_STBY_RADIO_SET_HZ", maps[len(maps)-1].EventName)

	h.Reset()
	err := s.MapClientEventToSimEvent(group, event, "COM_STBY_RADIO_SET_HZ")
	require.ErrorIs(t, err, fsconnect.ErrAlreadyRegistered)
	assert.Empty(t, h.Sent())

	// still usable
	require.NoError(t, s.TransmitClientEvent(event, 1, group))
}

func TestDuplicateInputBindingSendsNothing(t *testing.T) {
	s, h := connect(t)

	ie := fsconnect.InputEvent{
		NotificationGroup: s.NextID(),
		ClientEvent:       s.NextID(),
		ClientEventName:   "#0x11000",
		InputGroup:        s.NextID(),
		InputDefinition:   "joystick:0:button:3",
	}
	require.NoError(t, s.RegisterInputEvent(ie))

	maps := loopback.SentOf[fsconnect.MapInputEventToClientEvent](h)
	require.Len(t, maps, 1)
	assert.Equal(t, "joystick:0:button:3", maps[0].InputDefinition)
	assert.Equal(t, ie.ClientEvent, maps[0].DownEventID)
	assert.Len(t, loopback.SentOf[fsconnect.SetInputGroupPriority](h), 1)

	h.Reset()
	require.ErrorIs(t, s.RegisterInputEvent(ie), fsconnect.ErrAlreadyRegistered)
	assert.Empty(t, h.Sent())

	require.NoError(t, s.Disconnect())
	<-s.Done()
	removed := loopback.SentOf[fsconnect.RemoveInputEvent](h)
	require.Len(t, removed, 1)
	assert.Equal(t, ie.InputGroup, removed[0].GroupID)
}

func TestInputEventHandlerRuns(t *testing.T) {
	s, h := connect(t)

	got := make(chan uint32, 1)
	ie := fsconnect.InputEvent{
		NotificationGroup: s.NextID(),
		ClientEvent:       s.NextID(),
		ClientEventName:   "#0x11001",
		InputGroup:        s.NextID(),
		InputDefinition:   "VK_F5",
		Handler:           func(data uint32) { got <- data },
	}
	require.NoError(t, s.RegisterInputEvent(ie))

	h.Inject(fsconnect.EventMessage{GroupID: ie.NotificationGroup, EventID: ie.ClientEvent, Data: 1})

	select {
	case d := <-got:
		assert.Equal(t, uint32(1), d)
	case <-time.After(time.Second):
		t.Fatal("handler not called")
	}
}

// ------------------------------------------------------------
// request / response
// ------------------------------------------------------------

func TestRequestAndWaitMatchesRequestID(t *testing.T) {
	opt, reqs := captureRequests()
	s, h := connect(t, opt)

	id, err := s.RegisterDataDefinition(twoInts)
	require.NoError(t, err)

	go func() {
		r := <-reqs
		other, _ := twoInts.Encode(uint32(9), uint32(9))
		mine, _ := twoInts.Encode(uint32(1), uint32(2))
		h.Inject(
			fsconnect.SimObjectDataMessage{RequestID: r.RequestID + 1000, DefineID: id, Data: other},
			fsconnect.SimObjectDataMessage{RequestID: r.RequestID, DefineID: id, Data: mine},
		)
	}()

	rec, err := s.RequestAndWait(context.Background(), s.NextID(), id, time.Second)
	require.NoError(t, err)

	a, err := rec.Uint32(0)
	require.NoError(t, err)
	b, err := rec.Uint32(1)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), a)
	assert.Equal(t, uint32(2), b)
}

func TestRequestAndWaitTimeoutIsRecoverable(t *testing.T) {
	opt, reqs := captureRequests()
	s, h := connect(t, opt)

	id, err := s.RegisterDataDefinition(twoInts)
	require.NoError(t, err)

	reqID := s.NextID()
	const deadline = 50 * time.Millisecond
	start := time.Now()
	_, err = s.RequestAndWait(context.Background(), reqID, id, deadline)
	elapsed := time.Since(start)
	require.ErrorIs(t, err, fsconnect.ErrNoResponse)
	assert.GreaterOrEqual(t, elapsed, deadline)
	assert.Less(t, elapsed, deadline+250*time.Millisecond)
	<-reqs
	assert.True(t, s.Connected())

	// the same request id can be waited on again
	go func() {
		r := <-reqs
		raw, _ := twoInts.Encode(uint32(5), uint32(6))
		h.Inject(fsconnect.SimObjectDataMessage{RequestID: r.RequestID, DefineID: id, Data: raw})
	}()
	rec, err := s.RequestAndWait(context.Background(), reqID, id, time.Second)
	require.NoError(t, err)
	v, _ := rec.Uint32(1)
	assert.Equal(t, uint32(6), v)
}

func TestRequestAndWaitOneWaiterPerRequestID(t *testing.T) {
	opt, reqs := captureRequests()
	s, _ := connect(t, opt)

	id, err := s.RegisterDataDefinition(twoInts)
	require.NoError(t, err)
	reqID := s.NextID()

	first := make(chan error, 1)
	go func() {
		_, err := s.RequestAndWait(context.Background(), reqID, id, 200*time.Millisecond)
		first <- err
	}()
	<-reqs

	_, err = s.RequestAndWait(context.Background(), reqID, id, time.Second)
	require.ErrorIs(t, err, fsconnect.ErrRequestPending)
	require.ErrorIs(t, <-first, fsconnect.ErrNoResponse)
}

func TestDisconnectUnblocksWaiter(t *testing.T) {
	opt, reqs := captureRequests()
	s, _ := connect(t, opt)

	id, err := s.RegisterDataDefinition(twoInts)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := s.RequestAndWait(context.Background(), s.NextID(), id, 10*time.Second)
		done <- err
	}()
	<-reqs

	require.NoError(t, s.Disconnect())

	select {
	case err := <-done:
		assert.ErrorIs(t, err, fsconnect.ErrDisconnected)
	case <-time.After(time.Second):
		t.Fatal("waiter still blocked after disconnect")
	}
}

func TestRequestAndWaitHonoursContext(t *testing.T) {
	opt, _ := captureRequests()
	s, _ := connect(t, opt)

	id, err := s.RegisterDataDefinition(twoInts)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = s.RequestAndWait(ctx, s.NextID(), id, 10*time.Second)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRequestExceptionFailsWaiter(t *testing.T) {
	s, h := connect(t, loopback.WithResponder(func(h *loopback.Host, sendID uint32, req fsconnect.Request) {
		if _, ok := req.(fsconnect.RequestDataOnSimObjectType); ok {
			h.Inject(fsconnect.ExceptionMessage{Exception: fsconnect.ExceptionUnrecognizedID, SendID: sendID})
		}
	}))
	_ = h

	id, err := s.RegisterDataDefinition(twoInts)
	require.NoError(t, err)

	_, err = s.RequestAndWait(context.Background(), s.NextID(), id, time.Second)
	var ex *fsconnect.HostException
	require.ErrorAs(t, err, &ex)
	assert.Equal(t, fsconnect.ExceptionUnrecognizedID, ex.Exception)
}

func TestRequestAndWaitUnknownDefinition(t *testing.T) {
	s, _ := connect(t)
	_, err := s.RequestAndWait(context.Background(), s.NextID(), s.NextID(), time.Second)
	assert.ErrorIs(t, err, fsconnect.ErrUnknownDefinition)
}

// ------------------------------------------------------------
// bridge
// ------------------------------------------------------------

func TestBridgeUsesFreshRequestIDPerRound(t *testing.T) {
	opt, reqs := captureRequests()
	s, h := connect(t, opt)

	id, err := s.RegisterDataDefinition(twoInts)
	require.NoError(t, err)
	b := fsconnect.NewBridge(s, id, 30*time.Millisecond)

	_, err = b.Fetch(context.Background())
	require.ErrorIs(t, err, fsconnect.ErrNoResponse)
	stale := <-reqs
	assert.Equal(t, stale.RequestID, b.LastRequestID())

	go func() {
		r := <-reqs
		late, _ := twoInts.Encode(uint32(111), uint32(111))
		fresh, _ := twoInts.Encode(uint32(7), uint32(8))
		h.Inject(
			fsconnect.SimObjectDataMessage{RequestID: stale.RequestID, DefineID: id, Data: late},
			fsconnect.SimObjectDataMessage{RequestID: r.RequestID, DefineID: id, Data: fresh},
		)
	}()

	b = fsconnect.NewBridge(s, id, time.Second)
	rec, err := b.Fetch(context.Background())
	require.NoError(t, err)
	assert.NotEqual(t, stale.RequestID, b.LastRequestID())

	v, _ := rec.Uint32(0)
	assert.Equal(t, uint32(7), v)
}

func TestBridgeSerializesCallers(t *testing.T) {
	var inFlight, maxInFlight atomic.Int32
	var h *loopback.Host
	var defineID fsconnect.ID

	h = loopback.New(loopback.WithAutoOpen("Test Host"), loopback.WithResponder(func(host *loopback.Host, _ uint32, req fsconnect.Request) {
		r, ok := req.(fsconnect.RequestDataOnSimObjectType)
		if !ok {
			return
		}
		n := inFlight.Add(1)
		for {
			m := maxInFlight.Load()
			if n <= m || maxInFlight.CompareAndSwap(m, n) {
				break
			}
		}
		go func() {
			time.Sleep(5 * time.Millisecond)
			inFlight.Add(-1)
			raw, _ := twoInts.Encode(uint32(r.RequestID), uint32(0))
			host.Inject(fsconnect.SimObjectDataMessage{RequestID: r.RequestID, DefineID: defineID, Data: raw})
		}()
	}))
	s := fsconnect.New(h.Dial, fsconnect.WithLogger(quietLogger()))
	require.NoError(t, s.Connect(context.Background()))
	require.NoError(t, s.WaitConnected(context.Background()))
	defer s.Shutdown(context.Background())

	var err error
	defineID, err = s.RegisterDataDefinition(twoInts)
	require.NoError(t, err)
	b := fsconnect.NewBridge(s, defineID, time.Second)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := b.Fetch(context.Background())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), maxInFlight.Load())
}

// ------------------------------------------------------------
// events and dispatch
// ------------------------------------------------------------

func TestPauseStateFollowsRequestAndHost(t *testing.T) {
	s, h := connect(t)

	require.NoError(t, s.SetPaused(true))
	assert.True(t, s.Paused())
	require.NoError(t, s.SetPaused(false))
	assert.False(t, s.Paused())
	require.NoError(t, s.TogglePause())
	assert.True(t, s.Paused())

	tx := loopback.SentOf[fsconnect.TransmitClientEvent](h)
	require.Len(t, tx, 3)
	assert.Equal(t, []uint32{1, 0, 1}, []uint32{tx[0].Data, tx[1].Data, tx[2].Data})
	assert.Equal(t, fsconnect.EventFlagGroupIDIsPriority, tx[0].Flags)
	assert.Equal(t, fsconnect.ObjectIDUser, tx[0].ObjectID)

	changes := make(chan bool, 1)
	s.OnPauseStateChanged(func(p bool) { changes <- p })
	h.Inject(fsconnect.EventMessage{GroupID: fsconnect.Unused, EventID: systemEventID(t, h, "Pause"), Data: 0})
	assert.False(t, <-changes)
	assert.False(t, s.Paused())
}

func TestPanickingHandlerDoesNotStopDispatch(t *testing.T) {
	s, h := connect(t)

	var calls atomic.Int32
	s.OnCrashed(func() { panic("handler bug") })
	s.OnCrashed(func() { calls.Add(1) })

	crashed := systemEventID(t, h, "Crashed")
	h.Inject(
		fsconnect.EventMessage{GroupID: fsconnect.Unused, EventID: crashed},
		fsconnect.EventMessage{GroupID: fsconnect.Unused, EventID: crashed},
	)

	waitFor(t, func() bool { return calls.Load() == 2 })
	assert.True(t, s.Connected())
}

func TestCancelRemovesHandler(t *testing.T) {
	s, h := connect(t)

	var calls atomic.Int32
	cancel := s.OnSimStateChanged(func(bool) { calls.Add(1) })
	marker := make(chan struct{}, 2)
	s.OnSimStateChanged(func(bool) { marker <- struct{}{} })

	sim := systemEventID(t, h, "Sim")
	h.Inject(fsconnect.EventMessage{GroupID: fsconnect.Unused, EventID: sim, Data: 1})
	<-marker
	cancel()
	cancel()
	h.Inject(fsconnect.EventMessage{GroupID: fsconnect.Unused, EventID: sim, Data: 0})
	<-marker

	assert.Equal(t, int32(1), calls.Load())
}

func TestObjectAddRemoveAndSystemState(t *testing.T) {
	s, h := connect(t)

	objs := make(chan fsconnect.ObjectAddRemove, 2)
	s.OnObjectAddRemove(func(o fsconnect.ObjectAddRemove) { objs <- o })
	states := make(chan fsconnect.SystemState, 1)
	s.OnSystemState(func(st fsconnect.SystemState) { states <- st })

	h.Inject(
		fsconnect.ObjectAddRemoveMessage{EventID: systemEventID(t, h, "ObjectAdded"), ObjectType: fsconnect.ObjectTypeAircraft, ObjectID: 42},
		fsconnect.ObjectAddRemoveMessage{EventID: systemEventID(t, h, "ObjectRemoved"), ObjectType: fsconnect.ObjectTypeAircraft, ObjectID: 42},
	)
	added, removed := <-objs, <-objs
	assert.True(t, added.Added)
	assert.False(t, removed.Added)
	assert.Equal(t, uint32(42), removed.ObjectID)

	reqID := s.NextID()
	require.NoError(t, s.RequestSystemState(reqID, "AircraftLoaded"))
	h.Inject(fsconnect.SystemStateMessage{RequestID: reqID, String: `SimObjects\Airplanes\C172\aircraft.cfg`})
	st := <-states
	assert.Equal(t, reqID, st.RequestID)
	assert.Contains(t, st.String, "C172")
}

func TestReceiveErrorsAreSwallowed(t *testing.T) {
	s, h := connect(t)

	got := make(chan struct{}, 1)
	s.OnFlightLoaded(func() { got <- struct{}{} })

	h.FailReceive(errors.New("corrupt packet"))
	h.Inject(fsconnect.EventMessage{GroupID: fsconnect.Unused, EventID: systemEventID(t, h, "FlightLoaded")})

	select {
	case <-got:
	case <-time.After(time.Second):
		t.Fatal("dispatch stopped after a receive error")
	}
	assert.True(t, s.Connected())
}

func TestLoadEventsWithFileNameFire(t *testing.T) {
	s, h := connect(t)

	got := make(chan string, 2)
	s.OnAircraftLoaded(func() { got <- "aircraft" })
	s.OnFlightLoaded(func() { got <- "flight" })

	h.Inject(
		fsconnect.EventMessage{GroupID: fsconnect.Unused, EventID: systemEventID(t, h, "AircraftLoaded"), FileName: `SimObjects\Airplanes\C172\aircraft.cfg`},
		fsconnect.EventMessage{GroupID: fsconnect.Unused, EventID: systemEventID(t, h, "FlightLoaded"), FileName: `C:\flights\KSEA.flt`},
	)

	for _, want := range []string{"aircraft", "flight"} {
		select {
		case name := <-got:
			assert.Equal(t, want, name)
		case <-time.After(time.Second):
			t.Fatalf("no %s loaded notification", want)
		}
	}
}

func TestReceiveErrorCountResetsOnGoodMessage(t *testing.T) {
	s, h := connect(t)

	got := make(chan struct{}, 2)
	s.OnFlightLoaded(func() { got <- struct{}{} })
	flight := systemEventID(t, h, "FlightLoaded")

	for round := 0; round < 2; round++ {
		errs := make([]error, 15)
		for i := range errs {
			errs[i] = errors.New("corrupt packet")
		}
		h.FailReceive(errs...)
		h.Inject(fsconnect.EventMessage{GroupID: fsconnect.Unused, EventID: flight})

		select {
		case <-got:
		case <-time.After(time.Second):
			t.Fatalf("round %d: dispatch stopped", round)
		}
	}
	assert.True(t, s.Connected())
}

func TestConsecutiveReceiveErrorsDisconnect(t *testing.T) {
	s, h := connect(t)

	errs := make([]error, 128)
	for i := range errs {
		errs[i] = errors.New("pipe broken")
	}
	h.FailReceive(errs...)

	select {
	case <-s.Done():
	case <-time.After(time.Second):
		t.Fatalf("still %s after repeated read errors", s.State())
	}
	assert.Equal(t, fsconnect.StateDisconnected, s.State())
	assert.True(t, h.Closed())
}

func TestClosedTransportDisconnects(t *testing.T) {
	s, h := connect(t)

	changed := make(chan bool, 1)
	s.OnConnectionChanged(func(up bool) { changed <- up })

	h.FailReceive(fsconnect.ErrTransportClosed)

	select {
	case <-s.Done():
	case <-time.After(time.Second):
		t.Fatal("dead transport did not end the session")
	}
	assert.False(t, <-changed)
	assert.Equal(t, 1, h.Closes())
}

func TestUpdateDataChecksRecordSize(t *testing.T) {
	s, h := connect(t)

	id, err := s.RegisterDataDefinition(twoInts)
	require.NoError(t, err)

	require.Error(t, s.UpdateData(id, []byte{1, 2, 3}, fsconnect.ObjectIDUser))

	raw, err := twoInts.Encode(uint32(3), uint32(4))
	require.NoError(t, err)
	require.NoError(t, s.UpdateData(id, raw, fsconnect.ObjectIDUser))

	sets := loopback.SentOf[fsconnect.SetDataOnSimObject](h)
	require.Len(t, sets, 1)
	assert.Equal(t, raw, sets[0].Data)
}

func TestSubscribeDataUsesPeriod(t *testing.T) {
	s, h := connect(t)

	id, err := s.RegisterDataDefinition(twoInts)
	require.NoError(t, err)
	req := s.NextID()

	require.NoError(t, s.SubscribeData(req, id, fsconnect.PeriodSecond, fsconnect.RequestFlagChanged))
	require.NoError(t, s.UnsubscribeData(req, id))

	rs := loopback.SentOf[fsconnect.RequestDataOnSimObject](h)
	require.Len(t, rs, 2)
	assert.Equal(t, fsconnect.PeriodSecond, rs[0].Period)
	assert.Equal(t, fsconnect.PeriodNever, rs[1].Period)
}
