// Package sensortest provides a scriptable sensor driver for tests.
package sensortest

import (
	"errors"
	"sync"
	"time"

	"kusensors/internal/sensor"
)

// ErrFake is returned by every scripted failure.
var ErrFake = errors.New("fake sensor failure")

// Driver is a sensor.Driver whose channels are configured per test.
type Driver struct {
	mu       sync.Mutex
	Handles  map[sensor.ChannelType]*Handle
	Missing  map[sensor.ChannelType]bool // DefaultSensor fails
	QueryErr bool                        // IsSupported fails for every channel
}

// NewDriver returns a driver with a working handle for every channel.
func NewDriver() *Driver {
	d := &Driver{
		Handles: map[sensor.ChannelType]*Handle{},
		Missing: map[sensor.ChannelType]bool{},
	}
	for _, t := range sensor.Types() {
		d.Handles[t] = &Handle{
			Min:      -10,
			Max:      10,
			Res:      0.5,
			VendorID: "Fake Inc.",
			listener: &Listener{},
		}
	}
	return d
}

func (d *Driver) IsSupported(t sensor.ChannelType) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.QueryErr {
		return false, ErrFake
	}
	return !d.Missing[t], nil
}

func (d *Driver) DefaultSensor(t sensor.ChannelType) (sensor.Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.Missing[t] {
		return nil, ErrFake
	}
	return d.Handles[t], nil
}

// Listener returns the listener of t.
func (d *Driver) Listener(t sensor.ChannelType) *Listener {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.Handles[t].listener
}

// ActiveListeners counts started listeners across all channels.
func (d *Driver) ActiveListeners() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, h := range d.Handles {
		if h.listener.Started() {
			n++
		}
	}
	return n
}

// Handle is a fake sensor.Handle. Set the Err fields to script failures.
type Handle struct {
	Min, Max, Res float64
	VendorID      string
	RangeErr      bool
	ResErr        bool
	VendorErr     bool
	ListenerErr   bool

	listener *Listener
}

func (h *Handle) MinRange() (float64, error) {
	if h.RangeErr {
		return 0, ErrFake
	}
	return h.Min, nil
}

func (h *Handle) MaxRange() (float64, error) {
	if h.RangeErr {
		return 0, ErrFake
	}
	return h.Max, nil
}

func (h *Handle) Resolution() (float64, error) {
	if h.ResErr {
		return 0, ErrFake
	}
	return h.Res, nil
}

func (h *Handle) Vendor() (string, error) {
	if h.VendorErr {
		return "", ErrFake
	}
	return h.VendorID, nil
}

func (h *Handle) NewListener() (sensor.Listener, error) {
	if h.ListenerErr {
		return nil, ErrFake
	}
	return h.listener, nil
}

// Listener is a fake sensor.Listener. Emit delivers an event the way hardware would.
type Listener struct {
	mu       sync.Mutex
	cb       func(sensor.Event)
	interval time.Duration
	started  bool
	closed   bool
	last     sensor.Event
	starts   int

	StartErr bool
	StopErr  bool
	ReadErr  bool
	CloseErr bool
}

func (l *Listener) SetCallback(interval time.Duration, cb func(sensor.Event)) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.interval = interval
	l.cb = cb
	return nil
}

func (l *Listener) Start() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.StartErr {
		return ErrFake
	}
	l.started = true
	l.starts++
	return nil
}

func (l *Listener) Stop() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.StopErr {
		return ErrFake
	}
	l.started = false
	return nil
}

func (l *Listener) Read() (sensor.Event, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ReadErr {
		return sensor.Event{}, ErrFake
	}
	return l.last, nil
}

func (l *Listener) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.CloseErr {
		return ErrFake
	}
	l.closed = true
	l.started = false
	return nil
}

// SetLast sets the event returned by Read.
func (l *Listener) SetLast(ev sensor.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.last = ev
}

// Emit records ev as the latest event and, when started, invokes the callback.
// It reports whether the callback ran.
func (l *Listener) Emit(ev sensor.Event) bool {
	l.mu.Lock()
	l.last = ev
	cb, started := l.cb, l.started
	l.mu.Unlock()
	if !started || cb == nil {
		return false
	}
	cb(ev)
	return true
}

// EmitValues is Emit with the given values.
func (l *Listener) EmitValues(values ...float64) bool {
	return l.Emit(Event(values...))
}

func (l *Listener) Started() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.started
}

func (l *Listener) Closed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closed
}

func (l *Listener) Interval() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.interval
}

// Starts counts successful Start calls.
func (l *Listener) Starts() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.starts
}

// Event builds an event carrying values.
func Event(values ...float64) sensor.Event {
	ev := sensor.Event{ValueCount: len(values)}
	copy(ev.Values[:], values)
	return ev
}
