//go:build windows

// internal/transport/dll/dll_windows.go
package dll

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"runtime"
	"sync"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/windows"

	"github.com/tamzrod/fsbridge/internal/fsconnect"
	"github.com/tamzrod/fsbridge/internal/fsconnect/wire"
)

// procs is the subset of the library this transport calls.
type procs struct {
	open               *windows.LazyProc
	close              *windows.LazyProc
	getNextDispatch    *windows.LazyProc
	lastSentPacketID   *windows.LazyProc
	addToDefinition    *windows.LazyProc
	requestOnObject    *windows.LazyProc
	requestOnType      *windows.LazyProc
	setDataOnObject    *windows.LazyProc
	mapClientEvent     *windows.LazyProc
	addToGroup         *windows.LazyProc
	setGroupPriority   *windows.LazyProc
	removeClientEvent  *windows.LazyProc
	transmitEvent      *windows.LazyProc
	mapInputEvent      *windows.LazyProc
	setInputPriority   *windows.LazyProc
	removeInputEvent   *windows.LazyProc
	subscribeSystem    *windows.LazyProc
	unsubscribeSystem  *windows.LazyProc
	requestSystemState *windows.LazyProc
	text               *windows.LazyProc
}

func loadProcs(lib *windows.LazyDLL) (*procs, error) {
	p := &procs{
		open:               lib.NewProc("SimConnect_Open"),
		close:              lib.NewProc("SimConnect_Close"),
		getNextDispatch:    lib.NewProc("SimConnect_GetNextDispatch"),
		lastSentPacketID:   lib.NewProc("SimConnect_GetLastSentPacketID"),
		addToDefinition:    lib.NewProc("SimConnect_AddToDataDefinition"),
		requestOnObject:    lib.NewProc("SimConnect_RequestDataOnSimObject"),
		requestOnType:      lib.NewProc("SimConnect_RequestDataOnSimObjectType"),
		setDataOnObject:    lib.NewProc("SimConnect_SetDataOnSimObject"),
		mapClientEvent:     lib.NewProc("SimConnect_MapClientEventToSimEvent"),
		addToGroup:         lib.NewProc("SimConnect_AddClientEventToNotificationGroup"),
		setGroupPriority:   lib.NewProc("SimConnect_SetNotificationGroupPriority"),
		removeClientEvent:  lib.NewProc("SimConnect_RemoveClientEvent"),
		transmitEvent:      lib.NewProc("SimConnect_TransmitClientEvent"),
		mapInputEvent:      lib.NewProc("SimConnect_MapInputEventToClientEvent"),
		setInputPriority:   lib.NewProc("SimConnect_SetInputGroupPriority"),
		removeInputEvent:   lib.NewProc("SimConnect_RemoveInputEvent"),
		subscribeSystem:    lib.NewProc("SimConnect_SubscribeToSystemEvent"),
		unsubscribeSystem:  lib.NewProc("SimConnect_UnsubscribeFromSystemEvent"),
		requestSystemState: lib.NewProc("SimConnect_RequestSystemState"),
		text:               lib.NewProc("SimConnect_Text"),
	}

	if err := lib.Load(); err != nil {
		return nil, fmt.Errorf("dll: load %s: %w", lib.Name, err)
	}
	for _, lp := range []*windows.LazyProc{
		p.open, p.close, p.getNextDispatch, p.lastSentPacketID,
		p.addToDefinition, p.requestOnObject, p.requestOnType, p.setDataOnObject,
		p.mapClientEvent, p.addToGroup, p.setGroupPriority, p.removeClientEvent,
		p.transmitEvent, p.mapInputEvent, p.setInputPriority, p.removeInputEvent,
		p.subscribeSystem, p.unsubscribeSystem, p.requestSystemState, p.text,
	} {
		if err := lp.Find(); err != nil {
			return nil, fmt.Errorf("dll: %s: %w", lp.Name, err)
		}
	}
	return p, nil
}

// Transport is an open library handle.
type Transport struct {
	p      *procs
	handle uintptr
	event  windows.Handle
	log    *slog.Logger

	// mu serializes library calls; a send and its packet id query
	// must not interleave with another send.
	mu sync.Mutex

	ready chan struct{}
	stop  chan struct{}
	wg    sync.WaitGroup
	once  sync.Once

	// dead is set when the event handle can no longer be waited on.
	dead atomic.Bool
}

func (d Dialer) dial(ctx context.Context, opts fsconnect.DialOptions) (fsconnect.Transport, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p, err := loadProcs(windows.NewLazyDLL(d.library()))
	if err != nil {
		return nil, err
	}

	event, err := windows.CreateEvent(nil, 0, 0, nil)
	if err != nil {
		return nil, fmt.Errorf("dll: create event: %w", err)
	}

	name, err := windows.BytePtrFromString(opts.AppName)
	if err != nil {
		windows.CloseHandle(event)
		return nil, fmt.Errorf("dll: app name: %w", err)
	}

	var handle uintptr
	hr, _, _ := p.open.Call(
		uintptr(unsafe.Pointer(&handle)),
		uintptr(unsafe.Pointer(name)),
		0, // no window
		0, // no user message
		uintptr(event),
		uintptr(opts.ConfigIndex),
	)
	if failed(hr) {
		windows.CloseHandle(event)
		return nil, fmt.Errorf("dll: SimConnect_Open: HRESULT 0x%08X", uint32(hr))
	}

	t := &Transport{
		p:      p,
		handle: handle,
		event:  event,
		log:    d.logger(),
		ready:  make(chan struct{}, 1),
		stop:   make(chan struct{}),
	}
	t.wg.Add(1)
	go t.watch()

	t.log.Debug("host library opened", "library", d.library(), "config_index", opts.ConfigIndex)
	return t, nil
}

// watch turns the library's event handle into Ready signals.
func (t *Transport) watch() {
	defer t.wg.Done()

	ms := uint32(pollInterval.Milliseconds())
	for {
		select {
		case <-t.stop:
			return
		default:
		}

		r, err := windows.WaitForSingleObject(t.event, ms)
		if err != nil {
			t.log.Warn("wait on host event failed", "error", err)
			t.dead.Store(true)
			t.signal()
			return
		}
		if r == windows.WAIT_OBJECT_0 {
			t.signal()
		}
	}
}

func (t *Transport) signal() {
	select {
	case t.ready <- struct{}{}:
	default:
	}
}

func (t *Transport) Ready() <-chan struct{} {
	return t.ready
}

func (t *Transport) Receive() (fsconnect.Message, error) {
	if t.dead.Load() {
		return nil, fsconnect.ErrTransportClosed
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	var data *byte
	var size uint32
	hr, _, _ := t.p.getNextDispatch.Call(
		t.handle,
		uintptr(unsafe.Pointer(&data)),
		uintptr(unsafe.Pointer(&size)),
	)
	if failed(hr) || data == nil || size == 0 {
		return nil, fsconnect.ErrNoMessage
	}

	// The buffer belongs to the library until the next dispatch call;
	// Decode copies what it keeps.
	return wire.Decode(unsafe.Slice(data, size))
}

func (t *Transport) Close() error {
	var err error
	t.once.Do(func() {
		close(t.stop)
		t.wg.Wait()

		t.mu.Lock()
		hr, _, _ := t.p.close.Call(t.handle)
		t.mu.Unlock()

		if failed(hr) {
			err = fmt.Errorf("dll: SimConnect_Close: HRESULT 0x%08X", uint32(hr))
		}
		if cerr := windows.CloseHandle(t.event); cerr != nil && err == nil {
			err = cerr
		}
	})
	return err
}

// ------------------------------------------------------------
// SEND
// ------------------------------------------------------------

func (t *Transport) Send(req fsconnect.Request) (uint32, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	proc, args, keep, err := t.call(req)
	if err != nil {
		return 0, err
	}

	hr, _, _ := proc.Call(args...)
	runtime.KeepAlive(keep)
	if failed(hr) {
		return 0, fmt.Errorf("dll: %s: HRESULT 0x%08X", proc.Name, uint32(hr))
	}

	var sendID uint32
	hr, _, _ = t.p.lastSentPacketID.Call(t.handle, uintptr(unsafe.Pointer(&sendID)))
	if failed(hr) {
		return 0, fmt.Errorf("dll: SimConnect_GetLastSentPacketID: HRESULT 0x%08X", uint32(hr))
	}
	return sendID, nil
}

// call maps one request onto its library procedure and arguments.
func (t *Transport) call(req fsconnect.Request) (*windows.LazyProc, []uintptr, []any, error) {
	h := t.handle

	switch r := req.(type) {
	case fsconnect.AddToDataDefinition:
		datum, err := windows.BytePtrFromString(r.DatumName)
		if err != nil {
			return nil, nil, nil, err
		}
		units, err := unitsPtr(r.UnitsName)
		if err != nil {
			return nil, nil, nil, err
		}
		return t.p.addToDefinition, []uintptr{
			h, uintptr(r.DefineID), uintptr(unsafe.Pointer(datum)), uintptr(unsafe.Pointer(units)),
			uintptr(r.DataType), uintptr(math.Float32bits(r.Epsilon)), uintptr(r.DatumID),
		}, []any{datum, units}, nil

	case fsconnect.RequestDataOnSimObject:
		return t.p.requestOnObject, []uintptr{
			h, uintptr(r.RequestID), uintptr(r.DefineID), uintptr(r.ObjectID), uintptr(r.Period),
			uintptr(r.Flags), uintptr(r.Origin), uintptr(r.Interval), uintptr(r.Limit),
		}, nil, nil

	case fsconnect.RequestDataOnSimObjectType:
		return t.p.requestOnType, []uintptr{
			h, uintptr(r.RequestID), uintptr(r.DefineID), uintptr(r.RadiusMeters), uintptr(r.Type),
		}, nil, nil

	case fsconnect.SetDataOnSimObject:
		if len(r.Data) == 0 {
			return nil, nil, nil, fmt.Errorf("dll: empty data block")
		}
		return t.p.setDataOnObject, []uintptr{
			h, uintptr(r.DefineID), uintptr(r.ObjectID), uintptr(r.Flags),
			0, uintptr(len(r.Data)), uintptr(unsafe.Pointer(&r.Data[0])),
		}, []any{r.Data}, nil

	case fsconnect.MapClientEventToSimEvent:
		name, err := windows.BytePtrFromString(r.EventName)
		if err != nil {
			return nil, nil, nil, err
		}
		return t.p.mapClientEvent, []uintptr{h, uintptr(r.EventID), uintptr(unsafe.Pointer(name))}, []any{name}, nil

	case fsconnect.AddClientEventToNotificationGroup:
		return t.p.addToGroup, []uintptr{h, uintptr(r.GroupID), uintptr(r.EventID), boolArg(r.Maskable)}, nil, nil

	case fsconnect.SetNotificationGroupPriority:
		return t.p.setGroupPriority, []uintptr{h, uintptr(r.GroupID), uintptr(r.Priority)}, nil, nil

	case fsconnect.RemoveClientEvent:
		return t.p.removeClientEvent, []uintptr{h, uintptr(r.GroupID), uintptr(r.EventID)}, nil, nil

	case fsconnect.TransmitClientEvent:
		return t.p.transmitEvent, []uintptr{
			h, uintptr(r.ObjectID), uintptr(r.EventID), uintptr(r.Data), uintptr(r.GroupID), uintptr(r.Flags),
		}, nil, nil

	case fsconnect.MapInputEventToClientEvent:
		def, err := windows.BytePtrFromString(r.InputDefinition)
		if err != nil {
			return nil, nil, nil, err
		}
		return t.p.mapInputEvent, []uintptr{
			h, uintptr(r.GroupID), uintptr(unsafe.Pointer(def)), uintptr(r.DownEventID), uintptr(r.DownValue),
			uintptr(r.UpEventID), uintptr(r.UpValue), boolArg(r.Maskable),
		}, []any{def}, nil

	case fsconnect.SetInputGroupPriority:
		return t.p.setInputPriority, []uintptr{h, uintptr(r.GroupID), uintptr(r.Priority)}, nil, nil

	case fsconnect.RemoveInputEvent:
		def, err := windows.BytePtrFromString(r.InputDefinition)
		if err != nil {
			return nil, nil, nil, err
		}
		return t.p.removeInputEvent, []uintptr{h, uintptr(r.GroupID), uintptr(unsafe.Pointer(def))}, []any{def}, nil

	case fsconnect.SubscribeToSystemEvent:
		name, err := windows.BytePtrFromString(r.SystemEventName)
		if err != nil {
			return nil, nil, nil, err
		}
		return t.p.subscribeSystem, []uintptr{h, uintptr(r.EventID), uintptr(unsafe.Pointer(name))}, []any{name}, nil

	case fsconnect.UnsubscribeFromSystemEvent:
		return t.p.unsubscribeSystem, []uintptr{h, uintptr(r.EventID)}, nil, nil

	case fsconnect.RequestSystemState:
		state, err := windows.BytePtrFromString(r.State)
		if err != nil {
			return nil, nil, nil, err
		}
		return t.p.requestSystemState, []uintptr{h, uintptr(r.RequestID), uintptr(unsafe.Pointer(state))}, []any{state}, nil

	case fsconnect.Text:
		msg := append([]byte(r.Message), 0)
		// The float argument travels in the low bits of its slot; the
		// runtime mirrors the first four arguments into XMM registers.
		return t.p.text, []uintptr{
			h, uintptr(r.Type), uintptr(math.Float32bits(r.Seconds)), uintptr(r.EventID),
			uintptr(len(msg)), uintptr(unsafe.Pointer(&msg[0])),
		}, []any{msg}, nil
	}

	return nil, nil, nil, fmt.Errorf("dll: unsupported request %s", fsconnect.RequestName(req))
}

func unitsPtr(units string) (*byte, error) {
	if units == "" {
		return nil, nil
	}
	return windows.BytePtrFromString(units)
}

func boolArg(b bool) uintptr {
	if b {
		return 1
	}
	return 0
}

func failed(hr uintptr) bool {
	return int32(uint32(hr)) < 0
}
