// Package shaper owns the current channel selection and turns raw hardware events into
// normalized samples.
package shaper

import (
	"time"

	"go.uber.org/atomic"

	"kusensors/internal/config"
	"kusensors/internal/logger"
	"kusensors/internal/loop"
	"kusensors/internal/metrics"
	"kusensors/internal/sensor"
)

const (
	// defaultInterval is the throttle interval when none is configured.
	defaultInterval = time.Second
	// intervalFloor replaces a configured interval of zero.
	intervalFloor = 100 * time.Millisecond
)

// Sink receives every normalized sample. It is called on the main loop.
type Sink interface {
	SampleReady(s sensor.Sample)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(s sensor.Sample)

func (f SinkFunc) SampleReady(s sensor.Sample) { f(s) }

// Fanout delivers a sample to several sinks in order.
type Fanout []Sink

func (f Fanout) SampleReady(s sensor.Sample) {
	for _, sink := range f {
		sink.SampleReady(s)
	}
}

// State of the shaper.
type State int

const (
	Idle State = iota
	Listening
)

func (s State) String() string {
	if s == Listening {
		return "listening"
	}
	return "idle"
}

// Source is the part of the channel registry the shaper needs.
type Source interface {
	StartListener(t sensor.ChannelType) error
	StopListener(t sensor.ChannelType) error
	Read(t sensor.ChannelType) (sensor.Event, error)
	GetRange(t sensor.ChannelType) (float64, float64)
}

type heartRate struct {
	accumulator time.Duration
	phase       int
}

// Shaper is the sample shaping state machine. Every method must run on the main loop.
type Shaper struct {
	log     logger.Logger
	loop    *loop.Loop
	source  Source
	table   *config.ChannelTable
	sink    Sink
	metrics *metrics.Metrics

	state      State
	current    sensor.ChannelType
	generation *atomic.Uint64
	cooldown   *loop.Task
	hrm        heartRate
}

// New конструктор. metrics may be nil.
func New(log logger.Logger, l *loop.Loop, source Source, table *config.ChannelTable, sink Sink, m *metrics.Metrics) *Shaper {
	return &Shaper{
		log:     log,
		loop:    l,
		source:  source,
		table:   table,
		sink:    sink,
		metrics: m,

		generation: atomic.NewUint64(0),
	}
}

// HandleEvent is the registry callback. It may be called from any goroutine; the event is
// shaped on the main loop.
func (s *Shaper) HandleEvent(t sensor.ChannelType, ev sensor.Event) {
	generation := s.generation.Load()
	s.loop.Post(func() {
		s.onEvent(t, ev, generation)
	})
}

// State returns the current state and, when listening, the channel.
func (s *Shaper) State() (State, sensor.ChannelType) {
	return s.state, s.current
}

// CooldownArmed reports whether a proximity repeat task is live.
func (s *Shaper) CooldownArmed() bool {
	return s.cooldown != nil
}

// SelectChannel stops whatever is active and starts listening on t.
func (s *Shaper) SelectChannel(t sensor.ChannelType) error {
	s.Stop()

	l := s.log.With(logger.Fields{"module": "shaper", "channel": t.String()})
	s.generation.Inc()
	if err := s.source.StartListener(t); err != nil {
		l.Errorf("listener start: %v", err)
		return err
	}
	s.state = Listening
	s.current = t
	s.hrm = heartRate{}
	l.Debug("listening")
	return nil
}

// Stop cancels the cooldown task and stops the active listener. It is idempotent.
func (s *Shaper) Stop() {
	s.cancelCooldown()
	if s.state != Listening {
		return
	}
	if err := s.source.StopListener(s.current); err != nil {
		s.log.With(logger.Fields{"module": "shaper", "channel": s.current.String()}).Errorf("listener stop: %v", err)
	}
	s.state = Idle
	s.generation.Inc()
}

// ReadCurrent reads the current channel synchronously and emits the shaped sample.
func (s *Shaper) ReadCurrent() (sensor.Sample, bool) {
	if s.state != Listening {
		return sensor.Sample{}, false
	}
	ev, err := s.source.Read(s.current)
	if err != nil {
		s.log.With(logger.Fields{"module": "shaper", "channel": s.current.String()}).Errorf("read: %v", err)
		return sensor.Sample{}, false
	}
	return s.shapeAndEmit(s.current, ev), true
}

func (s *Shaper) onEvent(t sensor.ChannelType, ev sensor.Event, generation uint64) {
	// events queued before a Stop or a new selection are stale
	if s.state != Listening || t != s.current || generation != s.generation.Load() {
		return
	}
	s.shapeAndEmit(t, ev)
}

func (s *Shaper) shapeAndEmit(t sensor.ChannelType, ev sensor.Event) sensor.Sample {
	s.cancelCooldown()

	sample := sensor.Sample{Channel: t, ValueCount: clampCount(ev.ValueCount), Values: ev.Values}
	switch t {
	case sensor.HeartRate:
		s.shapeHeartRate(&sample)
	case sensor.Pressure:
		sample.ValueCount = 1
	case sensor.Proximity:
		s.armCooldown(sample)
	}
	s.emit(sample)
	return sample
}

// shapeHeartRate draws a synthetic beat between the sparse hardware updates. values[2] carries
// the hardware interval in milliseconds.
func (s *Shaper) shapeHeartRate(sample *sensor.Sample) {
	lo, hi := s.source.GetRange(sensor.HeartRate)
	sample.ValueCount = 2

	interval := time.Duration(sample.Values[2]) * time.Millisecond
	if s.hrm.accumulator >= interval {
		s.hrm.accumulator = 0
		s.hrm.phase = 2
	} else {
		s.hrm.accumulator += s.interval(sensor.HeartRate)
	}

	switch s.hrm.phase {
	case 2:
		sample.Values[1] = hi
		s.hrm.phase--
	case 1:
		sample.Values[1] = (hi + lo) / 4
		s.hrm.phase--
	default:
		sample.Values[1] = (hi + lo) / 2
	}
}

// HeartRatePhase exposes the draw phase for diagnostics.
func (s *Shaper) HeartRatePhase() int {
	return s.hrm.phase
}

// armCooldown repeats the last proximity value, since the hardware only reports transitions.
func (s *Shaper) armCooldown(sample sensor.Sample) {
	generation := s.generation.Load()
	s.cooldown = s.loop.Every(s.interval(sensor.Proximity), func() {
		if s.state != Listening || s.current != sensor.Proximity || s.generation.Load() != generation {
			return
		}
		s.emit(sample)
	})
}

func (s *Shaper) cancelCooldown() {
	if s.cooldown == nil {
		return
	}
	s.cooldown.Cancel()
	s.cooldown = nil
}

func (s *Shaper) emit(sample sensor.Sample) {
	s.metrics.SampleEmitted(sample.Channel.String())
	if s.sink != nil {
		s.sink.SampleReady(sample)
	}
}

// interval returns the throttle interval of t: the configured value, 1s when unset and the
// 100ms floor when configured as zero.
func (s *Shaper) interval(t sensor.ChannelType) time.Duration {
	if s.table == nil {
		return defaultInterval
	}
	d := s.table.Spec(int(t)).Interval
	if d <= 0 {
		return intervalFloor
	}
	return d
}

func clampCount(n int) int {
	if n < 1 {
		return 1
	}
	if n > sensor.MaxValues {
		return sensor.MaxValues
	}
	return n
}
