// Package metrics exposes Prometheus instrumentation for the bench
// daemon: connection and command counters per instrument plus process
// runtime gauges, served over a small scrape endpoint.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

var (
	ConnectionsActive = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "virtbench_active_connections",
		Help: "Open client connections per instrument.",
	}, []string{"instrument"})

	ConnectionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "virtbench_connections_total",
		Help: "Accepted client connections per instrument.",
	}, []string{"instrument"})

	CommandsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "virtbench_commands_total",
		Help: "Commands dispatched per instrument.",
	}, []string{"instrument"})

	CommandErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "virtbench_command_errors_total",
		Help: "Commands answered with an error line per instrument.",
	}, []string{"instrument"})

	BytesRead = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "virtbench_bytes_read_total",
		Help: "Request bytes read per instrument.",
	}, []string{"instrument"})

	BatchDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "virtbench_batch_duration_seconds",
		Help:    "Time spent answering one network read.",
		Buckets: prometheus.DefBuckets,
	})

	Goroutines = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "virtbench_goroutines",
		Help: "Current goroutine count.",
	})

	MemoryBytes = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "virtbench_memory_usage_bytes",
		Help: "Allocated heap bytes.",
	})
)

func init() {
	prometheus.MustRegister(
		ConnectionsActive,
		ConnectionsTotal,
		CommandsTotal,
		CommandErrors,
		BytesRead,
		BatchDuration,
		Goroutines,
		MemoryBytes,
	)
}

// Monitor serves the scrape endpoint and samples runtime stats.
type Monitor struct {
	log  *zap.SugaredLogger
	srv  *http.Server
	stop chan struct{}
}

func NewMonitor(log *zap.SugaredLogger) *Monitor {
	return &Monitor{log: log, stop: make(chan struct{})}
}

// Serve starts the HTTP endpoint on addr with /metrics and /health and
// begins the runtime sampling loop. It returns immediately.
func (m *Monitor) Serve(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	m.srv = &http.Server{Addr: addr, Handler: mux}
	m.log.Infow("metrics endpoint up", "addr", addr)

	go func() {
		if err := m.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.log.Errorw("metrics endpoint failed", "err", err)
		}
	}()
	go m.sampleRuntime()
}

// Close stops the endpoint and the sampling loop.
func (m *Monitor) Close() error {
	close(m.stop)
	if m.srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return m.srv.Shutdown(ctx)
}

func (m *Monitor) sampleRuntime() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			Goroutines.Set(float64(runtime.NumGoroutine()))

			var memStats runtime.MemStats
			runtime.ReadMemStats(&memStats)
			MemoryBytes.Set(float64(memStats.Alloc))
		}
	}
}
