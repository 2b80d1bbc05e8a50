package discovery

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.viam.com/test"

	"kusensors/internal/logger"
)

func TestLookup(t *testing.T) {
	srv := httptest.NewServer(NewHandler(logger.NewDiscard(), Advertise("10.1.2.3", "1883")).Mux())
	defer srv.Close()

	info, err := NewClient(srv.URL+Path, time.Second).Lookup(context.Background())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, info, test.ShouldResemble, Info{
		MQTTURI:     "tcp://10.1.2.3",
		MQTTPort:    "1883",
		URIWithPort: "tcp://10.1.2.3:1883",
	})

	schema, host, port, err := info.Endpoint()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, schema, test.ShouldEqual, "tcp")
	test.That(t, host, test.ShouldEqual, "10.1.2.3")
	test.That(t, port, test.ShouldEqual, "1883")
}

func TestLookupFailures(t *testing.T) {
	for _, tc := range []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"status", func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		}},
		{"json", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("not json"))
		}},
		{"field", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"mqtt_uri":"tcp://x"}`))
		}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(tc.handler)
			defer srv.Close()

			_, err := NewClient(srv.URL, time.Second).Lookup(context.Background())
			test.That(t, errors.Is(err, ErrDiscovery), test.ShouldBeTrue)
		})
	}

	_, err := NewClient("http://127.0.0.1:1/", 100*time.Millisecond).Lookup(context.Background())
	test.That(t, errors.Is(err, ErrDiscovery), test.ShouldBeTrue)
}

func TestHandlerRejectsPost(t *testing.T) {
	srv := httptest.NewServer(NewHandler(logger.NewDiscard(), Advertise("h", "1")).Mux())
	defer srv.Close()

	resp, err := srv.Client().Post(srv.URL+Path, "application/json", nil)
	test.That(t, err, test.ShouldBeNil)
	resp.Body.Close()
	test.That(t, resp.StatusCode, test.ShouldEqual, http.StatusMethodNotAllowed)
}

func TestEndpoint(t *testing.T) {
	schema, host, port, err := Info{URIWithPort: "broker.local:1884"}.Endpoint()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, schema, test.ShouldEqual, "tcp")
	test.That(t, host, test.ShouldEqual, "broker.local")
	test.That(t, port, test.ShouldEqual, "1884")

	schema, _, _, err = Info{URIWithPort: "ssl://broker.local:8883"}.Endpoint()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, schema, test.ShouldEqual, "ssl")

	_, _, _, err = Info{URIWithPort: "tcp://broker.local"}.Endpoint()
	test.That(t, errors.Is(err, ErrDiscovery), test.ShouldBeTrue)
}

func TestMatchIP(t *testing.T) {
	addrs := []net.Addr{
		&net.IPNet{IP: net.ParseIP("::1"), Mask: net.CIDRMask(128, 128)},
		&net.IPNet{IP: net.ParseIP("127.0.0.1"), Mask: net.CIDRMask(8, 32)},
		&net.IPNet{IP: net.ParseIP("192.168.6.20"), Mask: net.CIDRMask(24, 32)},
	}
	ip, err := matchIP("192.168.0.0/16", addrs)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, ip.String(), test.ShouldEqual, "192.168.6.20")

	_, err = matchIP("10.0.0.0/8", addrs)
	test.That(t, errors.Is(err, ErrNoAddress), test.ShouldBeTrue)

	_, err = matchIP("bogus", addrs)
	test.That(t, err, test.ShouldNotBeNil)

	host, err := ResolveHost("broker.example", "bogus")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, host, test.ShouldEqual, "broker.example")
}
