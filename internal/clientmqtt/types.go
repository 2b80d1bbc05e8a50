package clientmqtt

import (
	"errors"
	"time"
)

var (
	// ErrNotStarted is returned by calls made before Start.
	ErrNotStarted = errors.New("mqtt client not started")
	// ErrTimeout is returned when the broker does not acknowledge in time.
	ErrTimeout = errors.New("mqtt acknowledgment timeout")
)

type MQTTConf struct {
	ClientID       string        // ClientID - уникальное имя клиента для брокеров.
	Schema         string        // Schema - тип подключения.
	Host           string        // Host - адрес MQTT сервера.
	Port           string        // Port - порт MQTT сервера.
	User           string        // User - логин для подключения к MQTT серверу.
	Password       string        // Password - пароль для подключения к MQTT серверу.
	KeepAlive      time.Duration // KeepAlive - интервал keep-alive.
	ConnectTimeout time.Duration // ConnectTimeout - сколько ждать первого подключения в Start.
	CleanSession   bool
}

// MessageHandler receives messages of a subscription.
type MessageHandler func(topic string, payload []byte)

type subscription struct {
	qos     byte
	handler MessageHandler
}
