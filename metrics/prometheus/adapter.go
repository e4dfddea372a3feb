package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/leaderwolfpipi/mcp-autogen-sub001/adapt"
)

// AdapterStatsCollector exposes output-adapter counters on scrape. The
// adapter keeps its own atomic counters, so this collector reads them
// lazily instead of mirroring every adaptation through the bus.
type AdapterStatsCollector struct {
	adapter *adapt.OutputAdapter

	attempts  *prometheus.Desc
	successes *prometheus.Desc
	failures  *prometheus.Desc
	cacheHits *prometheus.Desc
	images    *prometheus.Desc
}

// NewAdapterStatsCollector creates a collector over one output adapter.
func NewAdapterStatsCollector(adapter *adapt.OutputAdapter) *AdapterStatsCollector {
	return &AdapterStatsCollector{
		adapter: adapter,
		attempts: prometheus.NewDesc(
			namespace+"_adapter_attempts_total",
			"Total number of output adaptation attempts", nil, nil),
		successes: prometheus.NewDesc(
			namespace+"_adapter_successes_total",
			"Total number of successful output adaptations", nil, nil),
		failures: prometheus.NewDesc(
			namespace+"_adapter_failures_total",
			"Total number of unrecoverable output adaptations", nil, nil),
		cacheHits: prometheus.NewDesc(
			namespace+"_adapter_cache_hits_total",
			"Total number of adaptation result cache hits", nil, nil),
		images: prometheus.NewDesc(
			namespace+"_adapter_images_materialized_total",
			"Total number of in-memory images written to disk", nil, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *AdapterStatsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.attempts
	ch <- c.successes
	ch <- c.failures
	ch <- c.cacheHits
	ch <- c.images
}

// Collect implements prometheus.Collector.
func (c *AdapterStatsCollector) Collect(ch chan<- prometheus.Metric) {
	stats := c.adapter.Stats()
	ch <- prometheus.MustNewConstMetric(c.attempts, prometheus.CounterValue, float64(stats.Attempts))
	ch <- prometheus.MustNewConstMetric(c.successes, prometheus.CounterValue, float64(stats.Successes))
	ch <- prometheus.MustNewConstMetric(c.failures, prometheus.CounterValue, float64(stats.Failures))
	ch <- prometheus.MustNewConstMetric(c.cacheHits, prometheus.CounterValue, float64(stats.CacheHits))
	ch <- prometheus.MustNewConstMetric(c.images, prometheus.CounterValue, float64(stats.ImagesMaterialized))
}
