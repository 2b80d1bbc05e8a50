package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"

	"kusensors/internal/bridge"
	"kusensors/internal/clientmqtt"
	"kusensors/internal/config"
	"kusensors/internal/logger"
	"kusensors/internal/metrics"
)

var configFile string

func init() {
	flag.StringVar(&configFile, "config", "configs/bridge.toml", "Path to configuration file")
}

func main() {
	flag.Parse()
	cfg, err := config.NewConfig(configFile)
	if err != nil {
		fmt.Printf("configuration file read error: %v", err)
		os.Exit(1)
	}

	log, err := logger.NewLogger(cfg.Logger)
	if err != nil {
		fmt.Printf("failed to create a logger: %v", err)
		os.Exit(1)
	}
	defer log.Close()

	clk := clock.New()
	client := clientmqtt.NewClient(log, ConvertConfigClientMQTT(cfg.MQTT, clk))
	log.With(logger.Fields{"module": "mqtt"}).Debug("NewClient created ok")

	b := bridge.New(log, cfg.Bridge, clk, metrics.New(prometheus.DefaultRegisterer))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer cancel()

	// Клиент продолжает переподключаться сам, подписка восстановится после подключения.
	if err = client.Start(ctx); err != nil {
		log.Warn("MQTT broker not reachable yet:", err.Error())
	}
	if err = b.Start(ctx, client); err != nil {
		log.Warn("subscription pending until connect:", err.Error())
	}

	<-ctx.Done()

	if err := client.Stop(); err != nil {
		log.Error("failed to stop MQTT service:", err.Error())
	}

	log.Info("shutdown complete")
}

// ConvertConfigClientMQTT преобразует структуры.
func ConvertConfigClientMQTT(cfg config.MQTTConf, clk clock.Clock) clientmqtt.MQTTConf {
	return clientmqtt.MQTTConf{
		ClientID:       fmt.Sprintf("%s-bridge-%d", cfg.ClientID, clk.Now().Unix()),
		Schema:         "tcp",
		Host:           cfg.Host,
		Port:           cfg.Port,
		User:           cfg.User,
		Password:       cfg.Password,
		KeepAlive:      cfg.KeepAlive.D(),
		ConnectTimeout: cfg.ConnectTimeout.D(),
		CleanSession:   true,
	}
}
