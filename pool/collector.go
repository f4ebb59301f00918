package pool

import (
	"github.com/prometheus/client_golang/prometheus"
)

// collector exports pool statistics to Prometheus.
type collector[C Conn] struct {
	pool *Pool[C]

	connections     *prometheus.Desc
	maxConnections  *prometheus.Desc
	acquires        *prometheus.Desc
	emptyAcquires   *prometheus.Desc
	canceled        *prometheus.Desc
	acquireDuration *prometheus.Desc
}

// NewCollector returns a Prometheus collector reading p's statistics on
// every scrape. name is exported as the "pool" label.
//
//	prometheus.MustRegister(pool.NewCollector(p, "primary"))
func NewCollector[C Conn](p *Pool[C], name string) prometheus.Collector {
	labels := prometheus.Labels{"pool": name}

	return &collector[C]{
		pool: p,
		connections: prometheus.NewDesc(
			"sentinel_pool_connections",
			"Number of connections in the pool by state.",
			[]string{"state"}, labels,
		),
		maxConnections: prometheus.NewDesc(
			"sentinel_pool_max_connections",
			"Maximum number of connections allowed in the pool.",
			nil, labels,
		),
		acquires: prometheus.NewDesc(
			"sentinel_pool_acquires_total",
			"Total number of successful acquires.",
			nil, labels,
		),
		emptyAcquires: prometheus.NewDesc(
			"sentinel_pool_empty_acquires_total",
			"Total number of acquires that waited for a connection.",
			nil, labels,
		),
		canceled: prometheus.NewDesc(
			"sentinel_pool_canceled_acquires_total",
			"Total number of acquires canceled by their context.",
			nil, labels,
		),
		acquireDuration: prometheus.NewDesc(
			"sentinel_pool_acquire_duration_seconds_total",
			"Total time spent in successful acquires.",
			nil, labels,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *collector[C]) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.connections
	ch <- c.maxConnections
	ch <- c.acquires
	ch <- c.emptyAcquires
	ch <- c.canceled
	ch <- c.acquireDuration
}

// Collect implements prometheus.Collector.
func (c *collector[C]) Collect(ch chan<- prometheus.Metric) {
	stat := c.pool.Stat()

	ch <- prometheus.MustNewConstMetric(c.connections, prometheus.GaugeValue,
		float64(stat.IdleResources()), "idle")
	ch <- prometheus.MustNewConstMetric(c.connections, prometheus.GaugeValue,
		float64(stat.AcquiredResources()), "acquired")
	ch <- prometheus.MustNewConstMetric(c.connections, prometheus.GaugeValue,
		float64(stat.ConstructingResources()), "constructing")
	ch <- prometheus.MustNewConstMetric(c.maxConnections, prometheus.GaugeValue,
		float64(stat.MaxResources()))
	ch <- prometheus.MustNewConstMetric(c.acquires, prometheus.CounterValue,
		float64(stat.AcquireCount()))
	ch <- prometheus.MustNewConstMetric(c.emptyAcquires, prometheus.CounterValue,
		float64(stat.EmptyAcquireCount()))
	ch <- prometheus.MustNewConstMetric(c.canceled, prometheus.CounterValue,
		float64(stat.CanceledAcquireCount()))
	ch <- prometheus.MustNewConstMetric(c.acquireDuration, prometheus.CounterValue,
		stat.AcquireDuration().Seconds())
}
