// Command virtbenchd is the main entry point for the virtbench daemon.
// It loads configuration, builds and wires the configured rack of
// virtual instruments, and starts a protocol endpoint for every
// instrument marked for autostart. On termination signals, it
// gracefully shuts down the whole rack.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/pfjsystems/virtbench/internal/drivers"

	"github.com/pfjsystems/virtbench/internal/configd"
	"github.com/pfjsystems/virtbench/internal/configloader"
	"github.com/pfjsystems/virtbench/internal/logging"
	"github.com/pfjsystems/virtbench/internal/metrics"
	"github.com/pfjsystems/virtbench/internal/rack"
	"github.com/pfjsystems/virtbench/internal/telemetry"
)

const shutdownGrace = 5 * time.Second

func main() {
	if err := configd.LoadConfig(); err != nil {
		logging.Log.Fatalw("failed to load config", "err", err)
	}
	cfg := configloader.MustGetConfig[*configd.Config]()
	log := logging.Named("virtbenchd")

	log.Infow("configuration loaded", "bench", cfg.Bench, "instruments", len(cfg.Rack))

	var mon *metrics.Monitor
	if cfg.Metrics.Enabled {
		mon = metrics.NewMonitor(logging.Named("metrics"))
		mon.Serve(cfg.Metrics.Listen)
	}

	var pub telemetry.Publisher
	if cfg.Telemetry.Enabled {
		rp, err := telemetry.NewRedisPublisher(
			cfg.Telemetry.Addr,
			cfg.Telemetry.Password,
			cfg.Telemetry.Channel,
			cfg.Telemetry.DB,
			cfg.Telemetry.Backlog,
			logging.Named("telemetry"),
		)
		if err != nil {
			log.Fatalw("telemetry startup failed", "err", err)
		}
		pub = rp
	}

	bench := rack.New(cfg.Bench, pub, logging.Named("rack"))
	if err := bench.Build(cfg.Rack); err != nil {
		log.Fatalw("rack build failed", "err", err)
	}
	if err := bench.StartAutostart(); err != nil {
		log.Fatalw("rack start failed", "err", err)
	}

	log.Info("bench is up, waiting for clients")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Info("termination signal received, stopping bench")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := bench.Shutdown(ctx); err != nil {
		log.Warnw("rack shutdown incomplete", "err", err)
	}

	if pub != nil {
		_ = pub.Close()
	}
	if mon != nil {
		_ = mon.Close()
	}

	log.Info("shutdown complete, exiting")
}
