package pipeline

import (
	"context"
	"image"
	"sync"
	"testing"

	"github.com/benbjohnson/clock"
	"go.viam.com/test"

	"kusensors/internal/chart"
	"kusensors/internal/config"
	"kusensors/internal/logger"
	"kusensors/internal/loop"
	"kusensors/internal/metrics"
	"kusensors/internal/sensor"
	"kusensors/internal/sensor/sensortest"
)

type publishCall struct {
	channel int
	values  [config.MaxValues]float64
}

type fakePublisher struct {
	mu    sync.Mutex
	calls []publishCall
}

func (f *fakePublisher) Publish(channel int, values [config.MaxValues]float64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, publishCall{channel: channel, values: values})
	return true
}

func (f *fakePublisher) got() []publishCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]publishCall(nil), f.calls...)
}

type harness struct {
	t         *testing.T
	loop      *loop.Loop
	driver    *sensortest.Driver
	publisher *fakePublisher
	pipeline  *Pipeline
	frames    int
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{t: t, driver: sensortest.NewDriver(), publisher: &fakePublisher{}}
	h.driver.Missing[sensor.Humidity] = true
	h.loop = loop.New(clock.NewMock(), 16)

	table := config.Default().ChannelTable()
	c := chart.New(chart.DisplayFunc(func(*image.RGBA, image.Rectangle) error {
		h.frames++
		return nil
	}))
	h.pipeline = New(logger.NewDiscard(), h.loop, h.driver, &table, c, h.publisher, metrics.New(nil))

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		_ = h.loop.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-stopped
	})
	return h
}

func (h *harness) do(fn func()) {
	h.t.Helper()
	test.That(h.t, h.loop.Do(context.Background(), fn), test.ShouldBeNil)
}

func (h *harness) selectChannel(t sensor.ChannelType) error {
	var err error
	h.do(func() { err = h.pipeline.SelectChannel(t) })
	return err
}

func TestSelectReadsAndPublishes(t *testing.T) {
	h := newHarness(t)
	h.driver.Listener(sensor.Light).SetLast(sensortest.Event(300))

	test.That(t, h.selectChannel(sensor.Light), test.ShouldBeNil)
	calls := h.publisher.got()
	test.That(t, len(calls), test.ShouldEqual, 1)
	test.That(t, calls[0].channel, test.ShouldEqual, 7)
	test.That(t, calls[0].values[0], test.ShouldEqual, 300.0)

	h.do(func() {
		test.That(t, h.pipeline.chart.ValueCount(), test.ShouldEqual, 1)
		// prepare plus one sample
		test.That(t, h.frames, test.ShouldEqual, 2)

		fields, ok := h.pipeline.LastFields()
		test.That(t, ok, test.ShouldBeTrue)
		test.That(t, fields[0], test.ShouldResemble, FieldText{Name: "lux=", Value: " 300Lux"})
		test.That(t, fields[1], test.ShouldResemble, FieldText{})

		current, active := h.pipeline.Current()
		test.That(t, active, test.ShouldBeTrue)
		test.That(t, current, test.ShouldEqual, sensor.Light)
	})

	test.That(t, h.driver.Listener(sensor.Light).EmitValues(310), test.ShouldBeTrue)
	h.do(func() {})
	test.That(t, len(h.publisher.got()), test.ShouldEqual, 2)
}

func TestSelectWithoutInitialRead(t *testing.T) {
	h := newHarness(t)
	h.driver.Listener(sensor.Accelerometer).ReadErr = true

	test.That(t, h.selectChannel(sensor.Accelerometer), test.ShouldBeNil)
	test.That(t, len(h.publisher.got()), test.ShouldEqual, 0)
	h.do(func() {
		test.That(t, h.pipeline.chart.ValueCount(), test.ShouldEqual, 3)
		_, ok := h.pipeline.LastFields()
		test.That(t, ok, test.ShouldBeFalse)
	})
}

func TestValueCountChangeReprepares(t *testing.T) {
	h := newHarness(t)
	h.driver.Listener(sensor.Accelerometer).SetLast(sensortest.Event(1, 2, 3))
	test.That(t, h.selectChannel(sensor.Accelerometer), test.ShouldBeNil)
	h.do(func() { test.That(t, h.pipeline.chart.ValueCount(), test.ShouldEqual, 3) })

	test.That(t, h.driver.Listener(sensor.Accelerometer).EmitValues(1, 2), test.ShouldBeTrue)
	h.do(func() { test.That(t, h.pipeline.chart.ValueCount(), test.ShouldEqual, 2) })
}

func TestHeartRatePublishesInterval(t *testing.T) {
	h := newHarness(t)
	h.driver.Listener(sensor.HeartRate).SetLast(sensortest.Event(72, 0, 850))

	test.That(t, h.selectChannel(sensor.HeartRate), test.ShouldBeNil)
	calls := h.publisher.got()
	test.That(t, len(calls), test.ShouldEqual, 1)
	test.That(t, calls[0].channel, test.ShouldEqual, 13)
	test.That(t, calls[0].values, test.ShouldResemble, [config.MaxValues]float64{72, 850, 850, 0})

	h.do(func() {
		test.That(t, h.pipeline.chart.ValueCount(), test.ShouldEqual, 2)
		fields, ok := h.pipeline.LastFields()
		test.That(t, ok, test.ShouldBeTrue)
		test.That(t, fields[0], test.ShouldResemble, FieldText{Name: "HeartRate=", Value: " 72.00"})
		test.That(t, fields[1], test.ShouldResemble, FieldText{Name: "P2P=", Value: " 850ms"})
	})
}

func TestStopSilencesChannel(t *testing.T) {
	h := newHarness(t)
	test.That(t, h.selectChannel(sensor.Gyroscope), test.ShouldBeNil)
	before := len(h.publisher.got())

	h.do(h.pipeline.Stop)
	test.That(t, h.driver.Listener(sensor.Gyroscope).EmitValues(1, 1, 1), test.ShouldBeFalse)
	h.do(func() {
		_, active := h.pipeline.Current()
		test.That(t, active, test.ShouldBeFalse)
		h.pipeline.Redraw()
	})
	test.That(t, len(h.publisher.got()), test.ShouldEqual, before)
}

func TestSelectFailure(t *testing.T) {
	h := newHarness(t)
	err := h.selectChannel(sensor.Humidity)
	test.That(t, err, test.ShouldNotBeNil)
	h.do(func() {
		_, active := h.pipeline.Current()
		test.That(t, active, test.ShouldBeFalse)
	})
}

func TestInfo(t *testing.T) {
	h := newHarness(t)
	h.do(func() {
		info := h.pipeline.Info(sensor.Light)
		test.That(t, info.Lines(), test.ShouldResemble, []string{
			"supported: YES",
			"range: -10.00 - 10.00",
			"resolution: 0.50",
			"vendor: Fake Inc.",
		})

		info = h.pipeline.Info(sensor.Humidity)
		test.That(t, info.Lines(), test.ShouldResemble, []string{
			"supported: NO",
			"range: 0.00 - 0.00",
			"resolution: 0.00",
			"vendor: ",
		})

		test.That(t, h.pipeline.Info(sensor.HeartRate).Range, test.ShouldEqual, "range: 0.00 - 220.00")
	})
}

func TestFieldsFormatting(t *testing.T) {
	h := newHarness(t)
	h.do(func() {
		fields := h.pipeline.Fields(sensor.Sample{Channel: sensor.Humidity, ValueCount: 1, Values: [4]float64{40}})
		test.That(t, fields[0], test.ShouldResemble, FieldText{Name: "humidity="})

		fields = h.pipeline.Fields(sensor.Sample{Channel: sensor.Accelerometer, ValueCount: 3, Values: [4]float64{1, -2.5, 9.81}})
		test.That(t, fields[0].Value, test.ShouldEqual, " 1.00m/s²")
		test.That(t, fields[1].Value, test.ShouldEqual, "-2.50m/s²")
		test.That(t, fields[2], test.ShouldResemble, FieldText{Name: "z=", Value: " 9.81m/s²"})
	})
}

func TestClose(t *testing.T) {
	h := newHarness(t)
	test.That(t, h.selectChannel(sensor.Pressure), test.ShouldBeNil)
	var err error
	h.do(func() { err = h.pipeline.Close() })
	test.That(t, err, test.ShouldBeNil)
	test.That(t, h.driver.Listener(sensor.Pressure).Closed(), test.ShouldBeTrue)
	test.That(t, h.driver.ActiveListeners(), test.ShouldEqual, 0)
}
