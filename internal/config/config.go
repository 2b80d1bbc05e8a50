package config

import (
	"fmt"
	"time"

	"github.com/BurntSushi/toml"
)

// Config структура конфигурации.
type Config struct {
	Logger    LogConf       `toml:"logger"`    // Logger - конфигурация регистратора.
	MQTT      MQTTConf      `toml:"mqtt"`      // MQTT - конфигурация MQTT клиента.
	Discovery DiscoveryConf `toml:"discovery"` // Discovery - поиск брокера через REST.
	Device    DeviceConf    `toml:"device"`
	Sensor    SensorConf    `toml:"sensor"`
	Chart     ChartConf     `toml:"chart"`
	Metrics   MetricsConf   `toml:"metrics"`
	Bridge    BridgeConf    `toml:"bridge"`
	Channels  []ChannelConf `toml:"channel"` // Channels - переопределения таблицы каналов.
}

// LogConf структура конфигурации.
type LogConf struct {
	Level      string `toml:"log-level"`   // Level - уровень логирования.
	File       string `toml:"file"`        // File - файл журнала, пусто - stdout.
	MaxSize    int    `toml:"max-size"`    // MaxSize - размер файла в мегабайтах до ротации.
	MaxBackups int    `toml:"max-backups"` // MaxBackups - количество старых файлов.
}

// MQTTConf структура конфигурации.
type MQTTConf struct {
	ClientID       string   `toml:"clientID"`        // ClientID - префикс имени клиента.
	Host           string   `toml:"server"`          // Host - адрес MQTT сервера (резервный).
	Port           string   `toml:"port"`            // Port - порт MQTT сервера.
	User           string   `toml:"user"`            // User - логин для подключения к MQTT серверу.
	Password       string   `toml:"password"`        // Password - пароль для подключения к MQTT серверу.
	Qos            byte     `toml:"qos"`             // Qos - качество обслуживания.
	KeepAlive      Duration `toml:"keepalive"`       // KeepAlive - интервал keep-alive.
	ConnectTimeout Duration `toml:"connect-timeout"` // ConnectTimeout - ожидание первого подключения.
	PublishTimeout Duration `toml:"publish-timeout"` // PublishTimeout - ожидание подтверждения публикации.
	Workers        int      `toml:"workers"`         // Workers - размер пула публикации.
	Queue          int      `toml:"queue"`           // Queue - размер очереди публикации.
}

// DiscoveryConf describes both sides of broker discovery.
type DiscoveryConf struct {
	URL           string   `toml:"url"`
	Timeout       Duration `toml:"timeout"`
	Listen        string   `toml:"listen"`
	AdvertiseHost string   `toml:"advertise-host"`
	AdvertiseCIDR string   `toml:"advertise-cidr"`
	AdvertisePort string   `toml:"advertise-port"`
}

// DeviceConf points at the platform device identifier.
type DeviceConf struct {
	ID            string `toml:"id"`
	MachineIDPath string `toml:"machine-id-path"`
}

// SensorConf структура конфигурации.
type SensorConf struct {
	Interval Duration `toml:"interval"` // Interval - интервал опроса по умолчанию.
	Initial  int      `toml:"initial"`  // Initial - канал, выбранный при старте.
}

type ChartConf struct {
	Snapshot string `toml:"snapshot"`
}

type MetricsConf struct {
	Listen string `toml:"listen"`
}

// BridgeConf структура конфигурации транслятора MQTT -> REST.
type BridgeConf struct {
	Topic      string   `toml:"topic"`
	URL        string   `toml:"url"`
	AssetClass string   `toml:"asset-class"`
	Salt       string   `toml:"salt"`
	Timeout    Duration `toml:"timeout"`
}

// NewConfig конструктор.
func NewConfig(path string) (*Config, error) {
	cfg := Default()
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return cfg, err
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return cfg, fmt.Errorf("unknown configuration keys: %v", undecoded)
	}
	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Default returns the configuration used when a key is absent from the file.
func Default() *Config {
	return &Config{
		Logger: LogConf{
			Level:      "info",
			MaxSize:    10,
			MaxBackups: 3,
		},
		MQTT: MQTTConf{
			ClientID:       "GalaxyWatch3-1910",
			Host:           "192.168.1.12",
			Port:           "1883",
			Qos:            1,
			KeepAlive:      Duration(time.Hour),
			ConnectTimeout: Duration(5 * time.Second),
			PublishTimeout: Duration(10 * time.Second),
			Workers:        4,
			Queue:          256,
		},
		Discovery: DiscoveryConf{
			URL:           "http://localhost:8080/KUHealth/GetMqttInfo",
			Timeout:       Duration(5 * time.Second),
			Listen:        ":8080",
			AdvertiseCIDR: "192.168.0.0/16",
			AdvertisePort: "1883",
		},
		Device: DeviceConf{
			MachineIDPath: "/etc/machine-id",
		},
		Sensor: SensorConf{
			Interval: Duration(time.Second),
		},
		Bridge: BridgeConf{
			Topic:      "#",
			URL:        "http://localhost:5000/api/org.oslab.ac.kr.COVIDAsset",
			AssetClass: "org.oslab.ac.kr.COVIDAsset",
			Timeout:    Duration(5 * time.Second),
		},
	}
}

func (c *Config) validate() error {
	if c.MQTT.Qos > 2 {
		return fmt.Errorf("mqtt.qos must be 0, 1 or 2, got %d", c.MQTT.Qos)
	}
	if c.MQTT.Workers <= 0 {
		return fmt.Errorf("mqtt.workers must be positive, got %d", c.MQTT.Workers)
	}
	if c.MQTT.Queue <= 0 {
		return fmt.Errorf("mqtt.queue must be positive, got %d", c.MQTT.Queue)
	}
	if c.Sensor.Interval < 0 {
		return fmt.Errorf("sensor.interval must not be negative")
	}
	for _, ch := range c.Channels {
		if ch.ID < 0 || ch.ID >= ChannelCount {
			return fmt.Errorf("channel id %d out of range [0,%d)", ch.ID, ChannelCount)
		}
		if len(ch.Names) > MaxValues || len(ch.Formats) > MaxValues {
			return fmt.Errorf("channel %d: at most %d names and formats", ch.ID, MaxValues)
		}
	}
	return nil
}

// Duration is a time.Duration read from a TOML string such as "1s" or "250ms".
type Duration time.Duration

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// D returns the value as a time.Duration.
func (d Duration) D() time.Duration {
	return time.Duration(d)
}
