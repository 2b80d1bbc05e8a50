package sensor

import (
	"fmt"

	"go.uber.org/multierr"

	"kusensors/internal/config"
	"kusensors/internal/logger"
)

const (
	// maxGyroValue replaces the gyroscope range reported by the hardware, which is unreliable.
	maxGyroValue = 571.0
	// maxHeartRateValue replaces the heart rate range reported by the hardware.
	maxHeartRateValue = 220.0
)

// EventHandler receives raw events of every started listener.
type EventHandler func(t ChannelType, ev Event)

type channelState struct {
	handle   Handle
	listener Listener
}

// Registry holds the handle and listener of every channel. It is filled once by Initialize
// and only read afterwards.
type Registry struct {
	log      logger.Logger
	driver   Driver
	table    *config.ChannelTable
	channels [ChannelCount]channelState
}

// NewRegistry конструктор.
func NewRegistry(log logger.Logger, driver Driver, table *config.ChannelTable) *Registry {
	return &Registry{
		log:    log,
		driver: driver,
		table:  table,
	}
}

// Initialize acquires a handle and a listener for every channel. Failures are logged and the
// channel is left unavailable; partially available hardware is expected.
func (r *Registry) Initialize(handler EventHandler) {
	for _, t := range Types() {
		t := t
		l := r.log.With(logger.Fields{"module": "sensor", "channel": t.String()})

		handle, err := r.driver.DefaultSensor(t)
		if err != nil {
			l.Errorf("default sensor: %v", fmt.Errorf("%w: %v", ErrChannelUnavailable, err))
			continue
		}
		r.channels[t].handle = handle

		listener, err := handle.NewListener()
		if err != nil {
			l.Errorf("create listener: %v", fmt.Errorf("%w: %v", ErrListener, err))
			continue
		}

		interval := r.table.Spec(int(t)).Interval
		err = listener.SetCallback(interval, func(ev Event) {
			if handler != nil {
				handler(t, ev)
			}
		})
		if err != nil {
			l.Errorf("set event callback: %v", fmt.Errorf("%w: %v", ErrListener, err))
			_ = listener.Close()
			continue
		}
		r.channels[t].listener = listener
		l.Debug("channel initialized")
	}
}

// IsSupported reports false on any query error.
func (r *Registry) IsSupported(t ChannelType) bool {
	if !t.Valid() {
		return false
	}
	supported, err := r.driver.IsSupported(t)
	if err != nil {
		r.log.With(logger.Fields{"module": "sensor", "channel": t.String()}).Errorf("is supported: %v", err)
		return false
	}
	return supported
}

// GetRange returns the value range of t, (0, 0) on error.
func (r *Registry) GetRange(t ChannelType) (lo, hi float64) {
	switch t {
	case Gyroscope:
		return -maxGyroValue, maxGyroValue
	case HeartRate:
		return 0, maxHeartRateValue
	}

	h, l := r.handle(t)
	if h == nil {
		return 0, 0
	}
	lo, err := h.MinRange()
	if err != nil {
		l.Errorf("min range: %v", err)
		return 0, 0
	}
	hi, err = h.MaxRange()
	if err != nil {
		l.Errorf("max range: %v", err)
		return 0, 0
	}
	return lo, hi
}

// GetResolution returns 0 on error.
func (r *Registry) GetResolution(t ChannelType) float64 {
	h, l := r.handle(t)
	if h == nil {
		return 0
	}
	res, err := h.Resolution()
	if err != nil {
		l.Errorf("resolution: %v", err)
		return 0
	}
	return res
}

// GetVendor returns "" on error.
func (r *Registry) GetVendor(t ChannelType) string {
	h, l := r.handle(t)
	if h == nil {
		return ""
	}
	vendor, err := h.Vendor()
	if err != nil {
		l.Errorf("vendor: %v", err)
		return ""
	}
	return vendor
}

// Describe collects the capability record of t.
func (r *Registry) Describe(t ChannelType) Channel {
	lo, hi := r.GetRange(t)
	return Channel{
		ID:         t,
		Supported:  r.IsSupported(t),
		Min:        lo,
		Max:        hi,
		Resolution: r.GetResolution(t),
		Vendor:     r.GetVendor(t),
	}
}

// StartListener starts delivering events of t to the Initialize handler.
func (r *Registry) StartListener(t ChannelType) error {
	listener, err := r.listener(t)
	if err != nil {
		return err
	}
	if err := listener.Start(); err != nil {
		return fmt.Errorf("%w: start %s: %v", ErrListener, t, err)
	}
	return nil
}

// StopListener stops the listener of t.
func (r *Registry) StopListener(t ChannelType) error {
	listener, err := r.listener(t)
	if err != nil {
		return err
	}
	if err := listener.Stop(); err != nil {
		return fmt.Errorf("%w: stop %s: %v", ErrListener, t, err)
	}
	return nil
}

// Read returns the latest event of t without waiting for the callback.
func (r *Registry) Read(t ChannelType) (Event, error) {
	listener, err := r.listener(t)
	if err != nil {
		return Event{}, err
	}
	ev, err := listener.Read()
	if err != nil {
		return Event{}, fmt.Errorf("%w: read %s: %v", ErrListener, t, err)
	}
	return ev, nil
}

// Finalize closes every listener. It continues past failures and returns all of them.
func (r *Registry) Finalize() error {
	var errs error
	for _, t := range Types() {
		listener := r.channels[t].listener
		if listener == nil {
			continue
		}
		if err := listener.Close(); err != nil {
			r.log.With(logger.Fields{"module": "sensor", "channel": t.String()}).Errorf("destroy listener: %v", err)
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", t, err))
			continue
		}
		r.channels[t].listener = nil
	}
	return errs
}

func (r *Registry) handle(t ChannelType) (Handle, *logger.Log) {
	l := r.log.With(logger.Fields{"module": "sensor", "channel": t.String()})
	if !t.Valid() || r.channels[t].handle == nil {
		return nil, l
	}
	return r.channels[t].handle, l
}

func (r *Registry) listener(t ChannelType) (Listener, error) {
	if !t.Valid() || r.channels[t].listener == nil {
		return nil, fmt.Errorf("%w: no listener for %s", ErrChannelUnavailable, t)
	}
	return r.channels[t].listener, nil
}
