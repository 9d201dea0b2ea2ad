package metric

import "github.com/prometheus/client_golang/prometheus"

// KeyStats exposes the size of a bounded key space.
type KeyStats interface {
	Len() int
	Evictions() uint64
}

// Collector reports rate limiter key-space statistics at scrape time.
type Collector struct {
	stats KeyStats

	trackedKeys *prometheus.Desc
	evictions   *prometheus.Desc
}

// NewCollector creates a collector for stats.
func NewCollector(stats KeyStats) *Collector {
	return &Collector{
		stats: stats,
		trackedKeys: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "ratelimit", "tracked_keys"),
			"Client keys currently tracked by the rate limiter.",
			nil, nil,
		),
		evictions: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "ratelimit", "evictions_total"),
			"Client keys evicted to bound the rate limiter key space.",
			nil, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.trackedKeys
	ch <- c.evictions
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	ch <- prometheus.MustNewConstMetric(c.trackedKeys, prometheus.GaugeValue, float64(c.stats.Len()))
	ch <- prometheus.MustNewConstMetric(c.evictions, prometheus.CounterValue, float64(c.stats.Evictions()))
}
