// internal/radio/radio_test.go
package radio_test

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tamzrod/fsbridge/internal/bcd"
	"github.com/tamzrod/fsbridge/internal/fsconnect"
	"github.com/tamzrod/fsbridge/internal/radio"
	"github.com/tamzrod/fsbridge/internal/transport/loopback"
)

type rig struct {
	sim   *loopback.Simulator
	host  *loopback.Host
	sess  *fsconnect.Session
	radio *radio.Manager
	mute  atomic.Bool
}

// newRig connects a session to a simulated host and builds a manager.
// While mute is set the host ignores data requests.
func newRig(t *testing.T) *rig {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	r := &rig{sim: loopback.NewSimulator(log)}
	r.host = loopback.New(
		loopback.WithAutoOpen("Sim"),
		loopback.WithResponder(func(h *loopback.Host, sendID uint32, req fsconnect.Request) {
			if _, ok := req.(fsconnect.RequestDataOnSimObjectType); ok && r.mute.Load() {
				return
			}
			r.sim.Respond(h, sendID, req)
		}),
	)
	r.sess = fsconnect.New(r.host.Dial, fsconnect.WithLogger(log))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, r.sess.Connect(ctx))
	require.NoError(t, r.sess.WaitConnected(ctx))
	t.Cleanup(func() { _ = r.sess.Shutdown(context.Background()) })

	m, err := radio.New(r.sess, radio.WithLogger(log), radio.WithTimeout(50*time.Millisecond))
	require.NoError(t, err)
	r.radio = m
	return r
}

func eventNames(h *loopback.Host) map[fsconnect.ID]string {
	out := map[fsconnect.ID]string{}
	for _, m := range loopback.SentOf[fsconnect.MapClientEventToSimEvent](h) {
		out[m.EventID] = m.EventName
	}
	return out
}

func TestNewRegistersSixEventsAndFourFields(t *testing.T) {
	r := newRig(t)

	mapped := map[string]bool{}
	for _, name := range eventNames(r.host) {
		mapped[name] = true
	}
	for _, want := range []string{
		"COM_STBY_RADIO_SET_HZ", "COM_RADIO_SET_HZ", "COM_STBY_RADIO_SWAP",
		"COM2_STBY_RADIO_SET_HZ", "COM2_RADIO_SET_HZ", "COM2_RADIO_SWAP",
	} {
		assert.True(t, mapped[want], want)
	}

	adds := loopback.SentOf[fsconnect.AddToDataDefinition](r.host)
	require.Len(t, adds, 4)
	assert.Equal(t, "COM ACTIVE FREQUENCY:1", adds[0].DatumName)
	assert.Equal(t, "COM STANDBY FREQUENCY:1", adds[1].DatumName)
	assert.Equal(t, "COM ACTIVE FREQUENCY:2", adds[2].DatumName)
	assert.Equal(t, "COM STANDBY FREQUENCY:2", adds[3].DatumName)
	for _, a := range adds {
		assert.Equal(t, r.radio.DefineID(), a.DefineID)
		assert.Equal(t, "Frequency BCD32", a.UnitsName)
	}

	prio := loopback.SentOf[fsconnect.SetNotificationGroupPriority](r.host)
	require.Len(t, prio, 1)
	assert.Equal(t, fsconnect.PriorityHighest, prio[0].Priority)
}

func TestSetStandbyThenRefresh(t *testing.T) {
	r := newRig(t)
	names := eventNames(r.host)
	r.host.Reset()

	require.NoError(t, r.radio.SetStandby(radio.COM1, 124.10))

	tx := loopback.SentOf[fsconnect.TransmitClientEvent](r.host)
	require.Len(t, tx, 1)
	want, err := bcd.EncodeFrequency(124.10)
	require.NoError(t, err)
	assert.Equal(t, want, tx[0].Data)
	assert.Equal(t, uint32(0x01241000), tx[0].Data)
	assert.Equal(t, "COM_STBY_RADIO_SET_HZ", names[tx[0].EventID])

	// the simulated host applied the event; one round trip reads it back
	f, err := r.radio.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, radio.Frequencies{
		Com1Active:  122.80,
		Com1Standby: 124.10,
		Com2Active:  124.35,
		Com2Standby: 118.00,
	}, f)
	assert.Equal(t, f, r.radio.Frequencies())
	assert.False(t, r.radio.Updated().IsZero())
}

func TestSwapAndSetActive(t *testing.T) {
	r := newRig(t)

	require.NoError(t, r.radio.SetActive(radio.COM2, 121.90))
	require.NoError(t, r.radio.Swap(radio.COM2))

	f, err := r.radio.Refresh(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 118.00, f.Com2Active, 1e-9)
	assert.InDelta(t, 121.90, f.Com2Standby, 1e-9)

	active, standby, err := f.Get(radio.COM2)
	require.NoError(t, err)
	assert.Equal(t, f.Com2Active, active)
	assert.Equal(t, f.Com2Standby, standby)
}

func TestRefreshTimeoutKeepsPreviousValues(t *testing.T) {
	r := newRig(t)

	before, err := r.radio.Refresh(context.Background())
	require.NoError(t, err)

	r.sim.Set("COM ACTIVE FREQUENCY:1", float64(0x01300000))
	r.mute.Store(true)

	_, err = r.radio.Refresh(context.Background())
	require.ErrorIs(t, err, fsconnect.ErrNoResponse)
	assert.Equal(t, before, r.radio.Frequencies())

	// the session survives and the next round succeeds
	r.mute.Store(false)
	after, err := r.radio.Refresh(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 130.00, after.Com1Active, 1e-9)
}

func TestRefreshRejectsCorruptRecord(t *testing.T) {
	r := newRig(t)

	before, err := r.radio.Refresh(context.Background())
	require.NoError(t, err)

	r.sim.Set("COM STANDBY FREQUENCY:2", float64(0x0124A000))
	_, err = r.radio.Refresh(context.Background())
	require.ErrorIs(t, err, bcd.ErrNibble)
	assert.Equal(t, before, r.radio.Frequencies())
}

func TestTuneValidation(t *testing.T) {
	r := newRig(t)
	r.host.Reset()

	assert.ErrorIs(t, r.radio.SetStandby(radio.COM1, 117.99), radio.ErrOutOfRange)
	assert.ErrorIs(t, r.radio.SetStandby(radio.COM1, 136.00), radio.ErrOutOfRange)
	assert.ErrorIs(t, r.radio.SetActive(radio.COM1, 124.125), bcd.ErrPrecision)
	assert.ErrorIs(t, r.radio.SetStandby(radio.Radio(3), 124.10), radio.ErrUnknownRadio)
	assert.ErrorIs(t, r.radio.Swap(radio.Radio(0)), radio.ErrUnknownRadio)
	assert.Empty(t, r.host.Sent())

	require.NoError(t, r.radio.SetStandby(radio.COM1, 118.00))
	require.NoError(t, r.radio.SetStandby(radio.COM1, 135.97))
}

func TestParseRadio(t *testing.T) {
	for in, want := range map[string]radio.Radio{"1": radio.COM1, "COM2": radio.COM2, " com1 ": radio.COM1} {
		got, err := radio.ParseRadio(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := radio.ParseRadio("nav1")
	assert.ErrorIs(t, err, radio.ErrUnknownRadio)
}
