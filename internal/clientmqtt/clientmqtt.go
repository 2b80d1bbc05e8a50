package clientmqtt

import (
	"context"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"

	"kusensors/internal/logger"
)

const (
	defaultConnectTimeout = 5 * time.Second
	disconnectQuiesce     = 500 // ms
)

var pahoOnce sync.Once

// ClientMQTT структура клиента MQTT.
type ClientMQTT struct {
	log       logger.Logger
	cfgClient MQTTConf
	client    mqtt.Client
	opts      *mqtt.ClientOptions

	mu   sync.Mutex
	subs map[string]subscription
}

// NewClient конструктор.
func NewClient(log logger.Logger, cfgClient MQTTConf) *ClientMQTT {
	if cfgClient.Schema == "" {
		cfgClient.Schema = "tcp"
	}
	return &ClientMQTT{
		log:       log,
		cfgClient: cfgClient,
		subs:      map[string]subscription{},
	}
}

// Broker returns the broker URL the client connects to.
func (c *ClientMQTT) Broker() string {
	return fmt.Sprintf("%s://%s:%s", c.cfgClient.Schema, c.cfgClient.Host, c.cfgClient.Port)
}

func (c *ClientMQTT) options() *mqtt.ClientOptions {
	return mqtt.NewClientOptions().
		AddBroker(c.Broker()).
		SetUsername(c.cfgClient.User).
		SetPassword(c.cfgClient.Password).
		SetDefaultPublishHandler(c.messageHandler).
		SetOnConnectHandler(c.connectHandler).
		SetConnectionLostHandler(c.connectLostHandler).
		SetClientID(c.cfgClient.ClientID).
		SetOrderMatters(false).
		SetCleanSession(c.cfgClient.CleanSession).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetMaxReconnectInterval(5 * time.Second).
		SetKeepAlive(c.cfgClient.KeepAlive)
}

// Start connects to the broker. It waits for the first connection at most ConnectTimeout; on
// timeout an error is returned but the client keeps retrying in the background.
func (c *ClientMQTT) Start(ctx context.Context) error {
	pahoOnce.Do(func() {
		if l, ok := c.log.(*logger.Log); ok {
			mqtt.ERROR = logger.NewPahoLogger(l, logrus.ErrorLevel)
			mqtt.CRITICAL = logger.NewPahoLogger(l, logrus.ErrorLevel)
			mqtt.WARN = logger.NewPahoLogger(l, logrus.WarnLevel)
			if c.log.GetLevel() == "debug" {
				mqtt.DEBUG = logger.NewPahoLogger(l, logrus.DebugLevel)
			}
		}
	})

	c.opts = c.options()
	c.client = mqtt.NewClient(c.opts)

	timeout := c.cfgClient.ConnectTimeout
	if timeout <= 0 {
		timeout = defaultConnectTimeout
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	token := c.client.Connect()
	select {
	case <-token.Done():
		if token.Error() != nil {
			return fmt.Errorf("connect %s: %w", c.Broker(), token.Error())
		}
	case <-timer.C:
		return fmt.Errorf("connect %s: %w", c.Broker(), ErrTimeout)
	case <-ctx.Done():
		return fmt.Errorf("connect %s: %w", c.Broker(), ctx.Err())
	}

	c.log.With(logger.Fields{"module": "mqtt"}).Infof("Status: %v", c.client.IsConnected())
	return nil
}

func (c *ClientMQTT) Stop() error {
	if c.client != nil && c.client.IsConnectionOpen() {
		c.client.Disconnect(disconnectQuiesce)
	}
	return nil
}

func (c *ClientMQTT) IsConnected() bool {
	return c.client != nil && c.client.IsConnected()
}

// Publish sends payload and waits for the broker acknowledgment up to timeout.
func (c *ClientMQTT) Publish(topic string, qos byte, payload []byte, timeout time.Duration) error {
	if c.client == nil {
		return ErrNotStarted
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	token := c.client.Publish(topic, qos, false, payload)
	select {
	case <-token.Done():
		if token.Error() != nil {
			return fmt.Errorf("publish topic %s: %w", topic, token.Error())
		}
		return nil
	case <-timer.C:
		return fmt.Errorf("publish topic %s: %w", topic, ErrTimeout)
	}
}

// Subscribe registers handler for topic. The subscription is renewed on every reconnect.
func (c *ClientMQTT) Subscribe(ctx context.Context, topic string, qos byte, handler MessageHandler) error {
	if c.client == nil {
		return ErrNotStarted
	}
	c.mu.Lock()
	c.subs[topic] = subscription{qos: qos, handler: handler}
	c.mu.Unlock()

	token := c.client.Subscribe(topic, qos, wrap(handler))
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-token.Done():
		if token.Error() != nil {
			return fmt.Errorf("topic %s subscription: %w", topic, token.Error())
		}
	}
	c.log.With(logger.Fields{"module": "mqtt"}).Debugf("topic %s subscribed", topic)
	return nil
}

func (c *ClientMQTT) connectHandler(client mqtt.Client) {
	c.log.With(logger.Fields{"module": "mqtt"}).Info("client connected to server")

	c.mu.Lock()
	defer c.mu.Unlock()
	for topic, sub := range c.subs {
		topic := topic
		token := client.Subscribe(topic, sub.qos, wrap(sub.handler))
		go func() {
			<-token.Done()
			if token.Error() != nil {
				c.log.With(logger.Fields{"module": "mqtt"}).Errorf("topic %s resubscription error. %v", topic, token.Error())
			}
		}()
	}
}

func (c *ClientMQTT) connectLostHandler(_ mqtt.Client, err error) {
	c.log.With(logger.Fields{"module": "mqtt"}).Errorf("server connect lost: %v", err)
}

func (c *ClientMQTT) messageHandler(_ mqtt.Client, msg mqtt.Message) {
	c.log.With(logger.Fields{"module": "mqtt"}).Debugf("unexpected message from topic: %s", msg.Topic())
}

func wrap(handler MessageHandler) mqtt.MessageHandler {
	return func(_ mqtt.Client, msg mqtt.Message) {
		if handler != nil {
			handler(msg.Topic(), msg.Payload())
		}
	}
}
