// Package simulated is a sensor driver producing clock-driven waveforms. It stands in for the
// device hardware on hosts without sensors.
package simulated

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"kusensors/internal/sensor"
)

// ErrUnsupported is returned for channels the simulated device lacks.
var ErrUnsupported = errors.New("sensor not present")

const (
	vendor      = "kusensors simulator"
	minInterval = 100 * time.Millisecond
	// proximityPeriod is how long the simulated object stays near or far.
	proximityPeriod = 5 * time.Second
)

type profile struct {
	min, max   float64
	resolution float64
	values     int
	period     time.Duration
}

var profiles = [sensor.ChannelCount]profile{
	sensor.Accelerometer:      {-19.6, 19.6, 0.01, 3, 4 * time.Second},
	sensor.Gravity:            {-9.8, 9.8, 0.01, 3, 20 * time.Second},
	sensor.LinearAcceleration: {-19.6, 19.6, 0.01, 3, 3 * time.Second},
	sensor.Magnetic:           {-2000, 2000, 0.1, 3, 30 * time.Second},
	sensor.RotationVector:     {-1, 1, 0.001, 4, 12 * time.Second},
	sensor.Orientation:        {0, 360, 0.1, 3, 30 * time.Second},
	sensor.Gyroscope:          {-573, 573, 0.01, 3, 5 * time.Second},
	sensor.Light:              {0, 1000, 1, 1, 60 * time.Second},
	sensor.Proximity:          {0, 5, 5, 1, 2 * proximityPeriod},
	sensor.Pressure:           {950, 1050, 0.01, 1, 120 * time.Second},
	sensor.Ultraviolet:        {0, 15, 0.01, 1, 90 * time.Second},
	sensor.Temperature:        {-20, 60, 0.1, 1, 300 * time.Second},
	sensor.HeartRate:          {0, 240, 1, 3, 60 * time.Second},
}

// Driver is a sensor.Driver whose readings are functions of the clock.
type Driver struct {
	clock   clock.Clock
	missing map[sensor.ChannelType]bool
}

// New конструктор. Humidity is absent, like on the watch.
func New(clk clock.Clock) *Driver {
	return &Driver{
		clock:   clk,
		missing: map[sensor.ChannelType]bool{sensor.Humidity: true},
	}
}

func (d *Driver) IsSupported(t sensor.ChannelType) (bool, error) {
	if !t.Valid() {
		return false, fmt.Errorf("channel %d: %w", t, ErrUnsupported)
	}
	return !d.missing[t], nil
}

func (d *Driver) DefaultSensor(t sensor.ChannelType) (sensor.Handle, error) {
	if supported, _ := d.IsSupported(t); !supported {
		return nil, fmt.Errorf("%s: %w", t, ErrUnsupported)
	}
	return &handle{driver: d, channel: t, profile: profiles[t]}, nil
}

// Value returns the reading of t at now.
func Value(t sensor.ChannelType, now time.Time) sensor.Event {
	if !t.Valid() || profiles[t].period == 0 {
		return sensor.Event{ValueCount: 1, Timestamp: now}
	}
	p := profiles[t]
	ev := sensor.Event{ValueCount: p.values, Timestamp: now}
	phase := 2 * math.Pi * float64(now.UnixNano()%int64(p.period)) / float64(p.period)
	mid, amp := (p.max+p.min)/2, (p.max-p.min)/2*0.8

	switch t {
	case sensor.Proximity:
		if (now.UnixNano()/int64(proximityPeriod))%2 == 1 {
			ev.Values[0] = 0 // near
		} else {
			ev.Values[0] = p.max
		}
	case sensor.HeartRate:
		bpm := 72 + 8*math.Sin(phase)
		ev.Values[0] = math.Round(bpm)
		ev.Values[2] = math.Round(60000 / bpm)
	default:
		for i := 0; i < p.values; i++ {
			ev.Values[i] = mid + amp*math.Sin(phase+float64(i)*2*math.Pi/3)
		}
	}
	return ev
}

type handle struct {
	driver  *Driver
	channel sensor.ChannelType
	profile profile
}

func (h *handle) MinRange() (float64, error)   { return h.profile.min, nil }
func (h *handle) MaxRange() (float64, error)   { return h.profile.max, nil }
func (h *handle) Resolution() (float64, error) { return h.profile.resolution, nil }
func (h *handle) Vendor() (string, error)      { return vendor, nil }

func (h *handle) NewListener() (sensor.Listener, error) {
	return &listener{clock: h.driver.clock, channel: h.channel}, nil
}

type listener struct {
	clock   clock.Clock
	channel sensor.ChannelType

	mu       sync.Mutex
	interval time.Duration
	cb       func(sensor.Event)
	stop     chan struct{}
	closed   bool
}

func (l *listener) SetCallback(interval time.Duration, cb func(sensor.Event)) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if interval < minInterval {
		interval = minInterval
	}
	l.interval, l.cb = interval, cb
	return nil
}

func (l *listener) Start() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return errors.New("listener closed")
	}
	if l.stop != nil {
		return nil
	}
	interval := l.interval
	if interval < minInterval {
		interval = minInterval
	}
	l.stop = make(chan struct{})
	go l.run(l.clock.Ticker(interval), l.cb, l.stop, Value(l.channel, l.clock.Now()))
	return nil
}

func (l *listener) run(ticker *clock.Ticker, cb func(sensor.Event), stop chan struct{}, last sensor.Event) {
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case now := <-ticker.C:
			select {
			case <-stop:
				return
			default:
			}
			ev := Value(l.channel, now)
			// proximity hardware reports transitions only
			if l.channel == sensor.Proximity && ev.Values == last.Values {
				continue
			}
			last = ev
			if cb != nil {
				cb(ev)
			}
		}
	}
}

// Stop does not wait for a callback already in flight; the consumer drops late events.
func (l *listener) Stop() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stop != nil {
		close(l.stop)
		l.stop = nil
	}
	return nil
}

func (l *listener) Read() (sensor.Event, error) {
	return Value(l.channel, l.clock.Now()), nil
}

func (l *listener) Close() error {
	if err := l.Stop(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	return nil
}
