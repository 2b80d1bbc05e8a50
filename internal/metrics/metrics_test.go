package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.viam.com/test"
)

func TestCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.SampleEmitted("light")
	m.SampleEmitted("light")
	m.SampleEmitted("proximity")
	test.That(t, testutil.ToFloat64(m.samples.WithLabelValues("light")), test.ShouldEqual, 2.0)
	test.That(t, testutil.ToFloat64(m.samples.WithLabelValues("proximity")), test.ShouldEqual, 1.0)

	m.PublishEnqueued()
	m.PublishEnqueued()
	m.PublishDequeued()
	test.That(t, testutil.ToFloat64(m.enqueued), test.ShouldEqual, 2.0)
	test.That(t, testutil.ToFloat64(m.queue), test.ShouldEqual, 1.0)

	m.PublishSucceeded(0.02)
	m.PublishFailed()
	m.PublishDropped()
	test.That(t, testutil.ToFloat64(m.published), test.ShouldEqual, 1.0)
	test.That(t, testutil.ToFloat64(m.failed), test.ShouldEqual, 1.0)
	test.That(t, testutil.ToFloat64(m.dropped), test.ShouldEqual, 1.0)
	test.That(t, testutil.CollectAndCount(m.latency), test.ShouldEqual, 1)

	m.BridgeRecord("ok")
	test.That(t, testutil.ToFloat64(m.bridged.WithLabelValues("ok")), test.ShouldEqual, 1.0)
}

func TestHandlerFor(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.SampleEmitted("gyroscope")

	srv := httptest.NewServer(HandlerFor(reg))
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	test.That(t, err, test.ShouldBeNil)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, string(body), test.ShouldContainSubstring, `kusensors_samples_emitted_total{channel="gyroscope"} 1`)
}

func TestNilRegistererIsPrivate(t *testing.T) {
	// two instances must not collide on the default registry
	New(nil)
	New(nil)
}
