package sensor

import "time"

// Driver is the hardware collaborator enumerating the device sensors.
type Driver interface {
	IsSupported(t ChannelType) (bool, error)
	DefaultSensor(t ChannelType) (Handle, error)
}

// Handle is one hardware sensor.
type Handle interface {
	MinRange() (float64, error)
	MaxRange() (float64, error)
	Resolution() (float64, error)
	Vendor() (string, error)
	NewListener() (Listener, error)
}

// Listener delivers events of one sensor. The callback may be invoked from any goroutine,
// but only while the listener is started.
type Listener interface {
	SetCallback(interval time.Duration, cb func(Event)) error
	Start() error
	Stop() error
	Read() (Event, error)
	Close() error
}
