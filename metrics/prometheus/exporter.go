package prometheus

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/leaderwolfpipi/mcp-autogen-sub001/logger"
)

const defaultReadHeaderTimeout = 10 * time.Second

// Exporter serves the metrics registry over HTTP at /metrics.
type Exporter struct {
	addr     string
	server   *http.Server
	registry *prometheus.Registry

	mu      sync.Mutex
	started bool
}

// NewExporter creates an exporter with a fresh registry holding the
// engine metrics plus Go runtime and process collectors.
func NewExporter(addr string) (*Exporter, error) {
	registry := prometheus.NewRegistry()
	for _, metric := range allMetrics {
		if err := registry.Register(metric); err != nil {
			return nil, fmt.Errorf("register metric: %w", err)
		}
	}
	if err := registry.Register(collectors.NewGoCollector()); err != nil {
		return nil, fmt.Errorf("register go collector: %w", err)
	}
	if err := registry.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{})); err != nil {
		return nil, fmt.Errorf("register process collector: %w", err)
	}
	return NewExporterWithRegistry(addr, registry), nil
}

// NewExporterWithRegistry creates an exporter over a caller-owned
// registry. Nothing is registered implicitly.
func NewExporterWithRegistry(addr string, registry *prometheus.Registry) *Exporter {
	return &Exporter{addr: addr, registry: registry}
}

// Registry returns the exporter's registry so callers can add their own
// collectors, for example an AdapterStatsCollector.
func (e *Exporter) Registry() *prometheus.Registry {
	return e.registry
}

// Register adds a collector to the exporter's registry.
func (e *Exporter) Register(c prometheus.Collector) error {
	return e.registry.Register(c)
}

// MustRegister adds collectors and panics on conflict.
func (e *Exporter) MustRegister(cs ...prometheus.Collector) {
	e.registry.MustRegister(cs...)
}

// Handler returns the scrape handler for callers that mount /metrics on
// their own server instead of using Start.
func (e *Exporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
}

// Start begins serving metrics in a background goroutine.
func (e *Exporter) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.started {
		return fmt.Errorf("exporter already started")
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{}))

	e.server = &http.Server{
		Addr:              e.addr,
		Handler:           mux,
		ReadHeaderTimeout: defaultReadHeaderTimeout,
	}
	e.started = true

	go func() {
		if err := e.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics exporter stopped", "error", err)
		}
	}()
	return nil
}

// Stop shuts the exporter down gracefully.
func (e *Exporter) Stop(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.started {
		return nil
	}
	e.started = false
	return e.server.Shutdown(ctx)
}
