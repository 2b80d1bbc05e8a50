// Package telemetry publishes normalized samples to the MQTT broker.
package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/atomic"
	"go.uber.org/multierr"

	"kusensors/internal/clientmqtt"
	"kusensors/internal/config"
	"kusensors/internal/discovery"
	"kusensors/internal/logger"
	"kusensors/internal/metrics"
)

var (
	ErrDiscovery  = discovery.ErrDiscovery
	ErrConnect    = errors.New("broker connect failed")
	ErrPublish    = errors.New("publish failed")
	ErrNoDeviceID = errors.New("no platform device id")
	ErrStarted    = errors.New("publisher already started")
)

// Transport is the persistent broker connection.
type Transport interface {
	Start(ctx context.Context) error
	Publish(topic string, qos byte, payload []byte, timeout time.Duration) error
	Stop() error
}

// Dialer builds the transport for the resolved endpoint.
type Dialer func(conf clientmqtt.MQTTConf) Transport

// Resolver looks up the broker. discovery.Client is the production resolver.
type Resolver interface {
	Lookup(ctx context.Context) (discovery.Info, error)
}

// Endpoint is the broker chosen at Init.
type Endpoint struct {
	Schema   string
	Host     string
	Port     string
	ClientID string
}

type job struct {
	msg      Message
	enqueued time.Time
}

// Option configures a Publisher.
type Option func(p *Publisher)

func WithClock(clk clock.Clock) Option {
	return func(p *Publisher) { p.clock = clk }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Publisher) { p.metrics = m }
}

func WithDialer(dial Dialer) Option {
	return func(p *Publisher) { p.dial = dial }
}

// WithResolver replaces the discovery client built from the configuration. A nil resolver
// always uses the static broker.
func WithResolver(r Resolver) Option {
	return func(p *Publisher) { p.resolver = r }
}

// Publisher formats samples and hands them to a fixed pool of publish workers.
type Publisher struct {
	log      logger.Logger
	cfg      config.MQTTConf
	device   config.DeviceConf
	table    *config.ChannelTable
	clock    clock.Clock
	metrics  *metrics.Metrics
	dial     Dialer
	resolver Resolver

	counter   *atomic.Int64
	identity  string
	endpoint  Endpoint
	transport Transport

	initMu  sync.Mutex
	mu      sync.RWMutex
	started bool
	closed  bool
	jobs    chan job
	wg      sync.WaitGroup
}

// New конструктор.
func New(log logger.Logger, cfg *config.Config, table *config.ChannelTable, opts ...Option) *Publisher {
	p := &Publisher{
		log:     log,
		cfg:     cfg.MQTT,
		device:  cfg.Device,
		table:   table,
		clock:   clock.New(),
		counter: atomic.NewInt64(0),
		dial: func(conf clientmqtt.MQTTConf) Transport {
			return clientmqtt.NewClient(log, conf)
		},
	}
	if cfg.Discovery.URL != "" {
		p.resolver = discovery.NewClient(cfg.Discovery.URL, cfg.Discovery.Timeout.D())
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Init resolves the broker, connects, derives the device identity and starts the workers.
// Discovery and connect failures are logged and tolerated; only a missing device id fails.
func (p *Publisher) Init(ctx context.Context) error {
	l := p.log.With(logger.Fields{"module": "telemetry"})

	p.initMu.Lock()
	defer p.initMu.Unlock()
	p.mu.RLock()
	started, identity := p.started, p.identity
	p.mu.RUnlock()
	if started {
		return ErrStarted
	}

	platform, err := PlatformID(p.device)
	if err != nil {
		return err
	}
	if identity == "" {
		identity = Identity(platform)
	}

	endpoint := p.resolve(ctx)
	l.Infof("broker %s://%s:%s, client id %s", endpoint.Schema, endpoint.Host, endpoint.Port, endpoint.ClientID)

	transport := p.dial(clientmqtt.MQTTConf{
		ClientID:       endpoint.ClientID,
		Schema:         endpoint.Schema,
		Host:           endpoint.Host,
		Port:           endpoint.Port,
		User:           p.cfg.User,
		Password:       p.cfg.Password,
		KeepAlive:      p.cfg.KeepAlive.D(),
		ConnectTimeout: p.cfg.ConnectTimeout.D(),
		CleanSession:   true,
	})
	if err := transport.Start(ctx); err != nil {
		l.Errorf("%v", fmt.Errorf("%w: %v", ErrConnect, err))
	}

	workers, queue := p.cfg.Workers, p.cfg.Queue
	if workers <= 0 {
		workers = 1
	}
	if queue <= 0 {
		queue = 1
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	// workers only read what is set here
	p.identity, p.endpoint, p.transport = identity, endpoint, transport
	p.jobs = make(chan job, queue)
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker(p.jobs)
	}
	p.started = true
	l.Debugf("%d publish workers started", workers)
	return nil
}

func (p *Publisher) resolve(ctx context.Context) Endpoint {
	ep := Endpoint{
		Schema:   "tcp",
		Host:     p.cfg.Host,
		Port:     p.cfg.Port,
		ClientID: fmt.Sprintf("%s%d", p.cfg.ClientID, p.clock.Now().Unix()),
	}
	if p.resolver == nil {
		return ep
	}

	l := p.log.With(logger.Fields{"module": "telemetry"})
	info, err := p.resolver.Lookup(ctx)
	if err == nil {
		var schema, host, port string
		schema, host, port, err = info.Endpoint()
		if err == nil {
			ep.Schema, ep.Host, ep.Port = schema, host, port
			return ep
		}
	}
	l.Warnf("static broker %s:%s used: %v", ep.Host, ep.Port, err)
	return ep
}

// Identity returns the topic derived at Init.
func (p *Publisher) Identity() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.identity
}

// Endpoint returns the broker chosen at Init.
func (p *Publisher) Endpoint() Endpoint {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.endpoint
}

// Publish queues a message for channel with a sensor_data entry for every named field. It never
// blocks: when the queue is full the message is dropped. It reports whether the message was
// queued.
func (p *Publisher) Publish(channel int, values [config.MaxValues]float64) bool {
	msg := Message{
		TransactionID: p.counter.Inc() - 1,
		Timestamp:     p.clock.Now().Unix(),
		SensorType:    channel,
		SensorData:    p.fields(channel, values),
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if !p.started || p.closed {
		return false
	}
	select {
	case p.jobs <- job{msg: msg, enqueued: p.clock.Now()}:
		p.metrics.PublishEnqueued()
		return true
	default:
		p.metrics.PublishDropped()
		p.log.With(logger.Fields{"module": "telemetry"}).Warnf("publish queue full, transaction %d dropped", msg.TransactionID)
		return false
	}
}

func (p *Publisher) fields(channel int, values [config.MaxValues]float64) Fields {
	if p.table == nil {
		return Fields{}
	}
	spec := p.table.Spec(channel)
	fields := make(Fields, 0, config.MaxValues)
	for i, name := range spec.Names {
		if name == "" {
			continue
		}
		fields = append(fields, Field{Name: name, Value: values[i]})
	}
	return fields
}

func (p *Publisher) worker(jobs <-chan job) {
	defer p.wg.Done()
	l := p.log.With(logger.Fields{"module": "telemetry"})
	for j := range jobs {
		p.metrics.PublishDequeued()
		if err := p.send(j.msg); err != nil {
			p.metrics.PublishFailed()
			l.Errorf("transaction %d: %v", j.msg.TransactionID, err)
			continue
		}
		p.metrics.PublishSucceeded(p.clock.Since(j.enqueued).Seconds())
	}
}

func (p *Publisher) send(msg Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("%w: encode: %v", ErrPublish, err)
	}
	if err := p.transport.Publish(p.identity, p.cfg.Qos, payload, p.cfg.PublishTimeout.D()); err != nil {
		return fmt.Errorf("%w: %v", ErrPublish, err)
	}
	return nil
}

// Shutdown stops accepting messages, lets the workers drain the queue until ctx is done and
// disconnects.
func (p *Publisher) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if !p.started || p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.jobs)
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	var errs error
	select {
	case <-done:
	case <-ctx.Done():
		p.log.With(logger.Fields{"module": "telemetry"}).Warn("shutdown before the publish queue drained")
		errs = multierr.Append(errs, ctx.Err())
	}
	return multierr.Append(errs, p.transport.Stop())
}
