package sensor_test

import (
	"errors"
	"testing"
	"time"

	"go.uber.org/multierr"
	"go.viam.com/test"

	"kusensors/internal/config"
	"kusensors/internal/logger"
	"kusensors/internal/sensor"
	"kusensors/internal/sensor/sensortest"
)

func newRegistry(t *testing.T, driver *sensortest.Driver) *sensor.Registry {
	t.Helper()
	table := config.Default().ChannelTable()
	table[sensor.Light].Interval = 250 * time.Millisecond
	return sensor.NewRegistry(logger.NewDiscard(), driver, &table)
}

func TestInitializeToleratesMissingHardware(t *testing.T) {
	driver := sensortest.NewDriver()
	driver.Missing[sensor.Humidity] = true
	driver.Handles[sensor.Pressure].ListenerErr = true

	var got []sensor.ChannelType
	reg := newRegistry(t, driver)
	reg.Initialize(func(ch sensor.ChannelType, ev sensor.Event) { got = append(got, ch) })

	test.That(t, reg.IsSupported(sensor.Humidity), test.ShouldBeFalse)
	test.That(t, reg.IsSupported(sensor.Light), test.ShouldBeTrue)

	err := reg.StartListener(sensor.Humidity)
	test.That(t, errors.Is(err, sensor.ErrChannelUnavailable), test.ShouldBeTrue)
	err = reg.StartListener(sensor.Pressure)
	test.That(t, errors.Is(err, sensor.ErrChannelUnavailable), test.ShouldBeTrue)

	test.That(t, reg.StartListener(sensor.Light), test.ShouldBeNil)
	test.That(t, driver.Listener(sensor.Light).Interval(), test.ShouldEqual, 250*time.Millisecond)
	test.That(t, driver.Listener(sensor.Light).EmitValues(300), test.ShouldBeTrue)
	test.That(t, got, test.ShouldResemble, []sensor.ChannelType{sensor.Light})

	test.That(t, reg.StopListener(sensor.Light), test.ShouldBeNil)
	test.That(t, driver.Listener(sensor.Light).EmitValues(300), test.ShouldBeFalse)
}

func TestGetRangeOverrides(t *testing.T) {
	driver := sensortest.NewDriver()
	driver.Handles[sensor.Gyroscope].RangeErr = true
	reg := newRegistry(t, driver)
	reg.Initialize(nil)

	lo, hi := reg.GetRange(sensor.Gyroscope)
	test.That(t, lo, test.ShouldEqual, -571.0)
	test.That(t, hi, test.ShouldEqual, 571.0)

	lo, hi = reg.GetRange(sensor.HeartRate)
	test.That(t, lo, test.ShouldEqual, 0.0)
	test.That(t, hi, test.ShouldEqual, 220.0)

	lo, hi = reg.GetRange(sensor.Accelerometer)
	test.That(t, lo, test.ShouldEqual, -10.0)
	test.That(t, hi, test.ShouldEqual, 10.0)
}

func TestQueryDefaultsOnError(t *testing.T) {
	driver := sensortest.NewDriver()
	driver.Handles[sensor.Magnetic].RangeErr = true
	driver.Handles[sensor.Magnetic].ResErr = true
	driver.Handles[sensor.Magnetic].VendorErr = true
	driver.Missing[sensor.Humidity] = true
	reg := newRegistry(t, driver)
	reg.Initialize(nil)

	ch := reg.Describe(sensor.Magnetic)
	test.That(t, ch, test.ShouldResemble, sensor.Channel{ID: sensor.Magnetic, Supported: true})

	ch = reg.Describe(sensor.Humidity)
	test.That(t, ch, test.ShouldResemble, sensor.Channel{ID: sensor.Humidity})

	ch = reg.Describe(sensor.Light)
	test.That(t, ch.Resolution, test.ShouldEqual, 0.5)
	test.That(t, ch.Vendor, test.ShouldEqual, "Fake Inc.")

	driver.QueryErr = true
	test.That(t, reg.IsSupported(sensor.Light), test.ShouldBeFalse)
	test.That(t, reg.IsSupported(sensor.ChannelType(99)), test.ShouldBeFalse)
	test.That(t, reg.GetVendor(sensor.ChannelType(-1)), test.ShouldEqual, "")
}

func TestReadCurrentEvent(t *testing.T) {
	driver := sensortest.NewDriver()
	reg := newRegistry(t, driver)
	reg.Initialize(nil)

	driver.Listener(sensor.Pressure).SetLast(sensortest.Event(1013.2, 1, 2))
	ev, err := reg.Read(sensor.Pressure)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, ev.Values[0], test.ShouldEqual, 1013.2)

	driver.Listener(sensor.Pressure).ReadErr = true
	_, err = reg.Read(sensor.Pressure)
	test.That(t, errors.Is(err, sensor.ErrListener), test.ShouldBeTrue)
}

func TestFinalizeContinuesPastFailures(t *testing.T) {
	driver := sensortest.NewDriver()
	reg := newRegistry(t, driver)
	reg.Initialize(nil)

	driver.Listener(sensor.Gravity).CloseErr = true
	driver.Listener(sensor.Light).CloseErr = true

	err := reg.Finalize()
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, len(multierr.Errors(err)), test.ShouldEqual, 2)
	test.That(t, driver.Listener(sensor.HeartRate).Closed(), test.ShouldBeTrue)
	test.That(t, driver.Listener(sensor.Accelerometer).Closed(), test.ShouldBeTrue)
	test.That(t, driver.Listener(sensor.Gravity).Closed(), test.ShouldBeFalse)
}

func TestChannelTypeString(t *testing.T) {
	test.That(t, sensor.HeartRate.String(), test.ShouldEqual, "heart_rate")
	test.That(t, sensor.ChannelType(42).String(), test.ShouldEqual, "unknown")
	test.That(t, len(sensor.Types()), test.ShouldEqual, 14)

	s := sensor.Sample{ValueCount: 2, Values: [4]float64{1, 2, 3, 4}}
	test.That(t, s.Active(), test.ShouldResemble, []float64{1, 2})
}
