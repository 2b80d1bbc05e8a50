package sensor

import (
	"errors"
	"time"

	"kusensors/internal/config"
)

// MaxValues is the size of every sample value vector.
const MaxValues = config.MaxValues

// ChannelType identifies one fixed sensor channel. The numeric value is also the wire sensor_type.
type ChannelType int

const (
	Accelerometer ChannelType = iota
	Gravity
	LinearAcceleration
	Magnetic
	RotationVector
	Orientation
	Gyroscope
	Light
	Proximity
	Pressure
	Ultraviolet
	Temperature
	Humidity
	HeartRate
)

// ChannelCount is the number of channel types.
const ChannelCount = config.ChannelCount

var channelNames = [ChannelCount]string{
	"accelerometer", "gravity", "linear_acceleration", "magnetic", "rotation_vector",
	"orientation", "gyroscope", "light", "proximity", "pressure", "ultraviolet",
	"temperature", "humidity", "heart_rate",
}

// Types returns every channel type in enumeration order.
func Types() []ChannelType {
	out := make([]ChannelType, ChannelCount)
	for i := range out {
		out[i] = ChannelType(i)
	}
	return out
}

// Valid reports whether t is one of the enumerated channels.
func (t ChannelType) Valid() bool {
	return t >= 0 && int(t) < ChannelCount
}

func (t ChannelType) String() string {
	if !t.Valid() {
		return "unknown"
	}
	return channelNames[t]
}

// Channel is the capability record of one channel.
type Channel struct {
	ID         ChannelType
	Supported  bool
	Min        float64
	Max        float64
	Resolution float64
	Vendor     string
}

// Event is a raw reading delivered by the hardware.
type Event struct {
	ValueCount int
	Values     [MaxValues]float64
	Timestamp  time.Time
}

// Sample is a normalized reading ready for the chart and publish paths.
type Sample struct {
	Channel    ChannelType
	ValueCount int
	Values     [MaxValues]float64
}

// Active returns the first ValueCount values.
func (s Sample) Active() []float64 {
	n := s.ValueCount
	if n < 0 {
		n = 0
	}
	if n > MaxValues {
		n = MaxValues
	}
	return s.Values[:n]
}

var (
	// ErrChannelUnavailable means the hardware or driver for a channel is absent.
	ErrChannelUnavailable = errors.New("channel unavailable")
	// ErrListener covers listener start, stop and read failures.
	ErrListener = errors.New("listener error")
)
