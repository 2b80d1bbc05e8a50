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

	"kusensors/internal/config"
	"kusensors/internal/discovery"
	"kusensors/internal/logger"
)

var configFile string

func init() {
	flag.StringVar(&configFile, "config", "configs/discovery.toml", "Path to configuration file")
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

	host, err := discovery.ResolveHost(cfg.Discovery.AdvertiseHost, cfg.Discovery.AdvertiseCIDR)
	if err != nil {
		log.With(logger.Fields{"module": "discovery"}).Errorf("broker address: %v", err)
		os.Exit(1)
	}
	info := discovery.Advertise(host, cfg.Discovery.AdvertisePort)
	log.With(logger.Fields{"module": "discovery"}).Infof("advertising %s", info.URIWithPort)

	srv := &http.Server{
		Addr:              cfg.Discovery.Listen,
		Handler:           discovery.NewHandler(log, info).Mux(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer cancel()

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("failed to start discovery service:", err.Error())
			cancel()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("failed to stop discovery service:", err.Error())
	}

	log.Info("shutdown complete")
}
