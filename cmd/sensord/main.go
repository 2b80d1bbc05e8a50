package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"

	"kusensors/internal/chart"
	"kusensors/internal/config"
	"kusensors/internal/logger"
	"kusensors/internal/loop"
	"kusensors/internal/metrics"
	"kusensors/internal/pipeline"
	"kusensors/internal/sensor"
	"kusensors/internal/sensor/simulated"
	"kusensors/internal/telemetry"
)

const shutdownTimeout = 5 * time.Second

var configFile string

func init() {
	flag.StringVar(&configFile, "config", "configs/sensord.toml", "Path to configuration file")
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
	log.With(logger.Fields{"module": "logger"}).Debug("newLogger created ok")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer cancel()

	m := metrics.New(prometheus.DefaultRegisterer)
	if cfg.Metrics.Listen != "" {
		go serveMetrics(log, cfg.Metrics.Listen)
	}

	clk := clock.New()
	table := cfg.ChannelTable()

	// Телеметрия не обязательна: без идентификатора устройства работаем без публикации.
	var pub pipeline.Publisher
	publisher := telemetry.New(log, cfg, &table, telemetry.WithClock(clk), telemetry.WithMetrics(m))
	if err := publisher.Init(ctx); err != nil {
		log.With(logger.Fields{"module": "telemetry"}).Errorf("telemetry disabled: %v", err)
	} else {
		pub = publisher
	}

	var display chart.Display
	if cfg.Chart.Snapshot != "" {
		display = chart.PNGDisplay{Path: cfg.Chart.Snapshot}
	}

	mainLoop := loop.New(clk, 64)
	loopCtx, stopLoop := context.WithCancel(context.Background())
	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		_ = mainLoop.Run(loopCtx)
	}()

	p := pipeline.New(log, mainLoop, simulated.New(clk), &table, chart.New(display), pub, m)
	log.With(logger.Fields{"module": "pipeline"}).Debug("pipeline created ok")

	current := sensor.ChannelType(cfg.Sensor.Initial)
	selectChannel(ctx, log, mainLoop, p, current)

	// SIGUSR1/SIGUSR2 заменяют поворот безеля: следующий/предыдущий канал.
	rotary := make(chan os.Signal, 1)
	signal.Notify(rotary, syscall.SIGUSR1, syscall.SIGUSR2)
	defer signal.Stop(rotary)

	for running := true; running; {
		select {
		case <-ctx.Done():
			running = false
		case sig := <-rotary:
			next := current + 1
			if sig == syscall.SIGUSR2 {
				next = current - 1
			}
			if !next.Valid() {
				continue
			}
			current = next
			selectChannel(ctx, log, mainLoop, p, current)
		}
	}

	if err := mainLoop.Do(context.Background(), func() {
		if err := p.Close(); err != nil {
			log.With(logger.Fields{"module": "sensor"}).Errorf("finalize: %v", err)
		}
	}); err != nil {
		log.Error("failed to stop the pipeline:", err.Error())
	}
	stopLoop()
	<-loopDone

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()
	if err := publisher.Shutdown(shutdownCtx); err != nil {
		log.Error("failed to stop telemetry:", err.Error())
	}

	log.Info("shutdown complete")
}

func selectChannel(ctx context.Context, log *logger.Log, l *loop.Loop, p *pipeline.Pipeline, t sensor.ChannelType) {
	var err error
	if doErr := l.Do(ctx, func() { err = p.SelectChannel(t) }); doErr != nil {
		err = doErr
	}
	if err != nil {
		log.With(logger.Fields{"module": "pipeline", "channel": t.String()}).Errorf("select channel: %v", err)
	}
}

func serveMetrics(log *logger.Log, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	log.With(logger.Fields{"module": "metrics"}).Infof("listening on %s", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.With(logger.Fields{"module": "metrics"}).Errorf("metrics server: %v", err)
	}
}
