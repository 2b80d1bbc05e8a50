// Package discovery resolves the MQTT broker address over REST, and serves that address.
package discovery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"kusensors/internal/logger"
)

// Path is where the broker description is served.
const Path = "/KUHealth/GetMqttInfo"

// ErrDiscovery wraps every lookup failure.
var ErrDiscovery = errors.New("broker discovery failed")

// Info is the broker description returned by the discovery service.
type Info struct {
	MQTTURI     string `json:"mqtt_uri"`
	MQTTPort    string `json:"mqtt_port"`
	URIWithPort string `json:"uri_with_port"`
}

// Endpoint splits URIWithPort into scheme, host and port. A missing scheme means tcp.
func (i Info) Endpoint() (schema, host, port string, err error) {
	raw := i.URIWithPort
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		u, err = url.Parse("tcp://" + raw)
		if err != nil {
			return "", "", "", fmt.Errorf("%w: broker address %q: %v", ErrDiscovery, raw, err)
		}
	}
	host, port = u.Hostname(), u.Port()
	if host == "" || port == "" {
		return "", "", "", fmt.Errorf("%w: broker address %q has no host or port", ErrDiscovery, raw)
	}
	return u.Scheme, host, port, nil
}

// Client queries the discovery service.
type Client struct {
	url  string
	http *http.Client
}

// NewClient конструктор.
func NewClient(rawURL string, timeout time.Duration) *Client {
	return &Client{url: rawURL, http: &http.Client{Timeout: timeout}}
}

// Lookup fetches the broker description. Anything other than HTTP 200 with a uri_with_port
// field is an ErrDiscovery.
func (c *Client) Lookup(ctx context.Context) (Info, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return Info{}, fmt.Errorf("%w: %v", ErrDiscovery, err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return Info{}, fmt.Errorf("%w: %v", ErrDiscovery, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return Info{}, fmt.Errorf("%w: status %d", ErrDiscovery, resp.StatusCode)
	}

	var info Info
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return Info{}, fmt.Errorf("%w: decode: %v", ErrDiscovery, err)
	}
	if info.URIWithPort == "" {
		return Info{}, fmt.Errorf("%w: uri_with_port missing", ErrDiscovery)
	}
	return info, nil
}

// Advertise builds the description served for a broker at host:port.
func Advertise(host, port string) Info {
	uri := "tcp://" + host
	return Info{
		MQTTURI:     uri,
		MQTTPort:    port,
		URIWithPort: uri + ":" + port,
	}
}

// Handler serves Info at Path.
type Handler struct {
	log  logger.Logger
	info Info
}

// NewHandler конструктор.
func NewHandler(log logger.Logger, info Info) *Handler {
	return &Handler{log: log, info: info}
}

// Mux routes Path to h.
func (h *Handler) Mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle(Path, h)
	return mux
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	l := h.log.With(logger.Fields{"module": "discovery"})
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}
	l.Debugf("broker requested by %s", r.RemoteAddr)

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(h.info); err != nil {
		l.Errorf("write response: %v", err)
	}
}

// ResolveHost returns host when set, otherwise the first local IPv4 inside cidr.
func ResolveHost(host, cidr string) (string, error) {
	if host != "" {
		return host, nil
	}
	ip, err := FindBrokerIP(cidr)
	if err != nil {
		return "", err
	}
	return ip.String(), nil
}
