package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ivlev/compositor/internal/system"
)

// processCollector reports memory via gopsutil and image pool reuse.
type processCollector struct {
	pool *system.ImagePool

	rssDesc        *prometheus.Desc
	hostUsedDesc   *prometheus.Desc
	poolGetsDesc   *prometheus.Desc
	poolAllocsDesc *prometheus.Desc
}

func newProcessCollector(pool *system.ImagePool) *processCollector {
	if pool == nil {
		pool = system.DefaultPool()
	}
	return &processCollector{
		pool: pool,
		rssDesc: prometheus.NewDesc(
			namespace+"_process_resident_bytes",
			"Resident memory of the renderer process",
			nil, nil,
		),
		hostUsedDesc: prometheus.NewDesc(
			namespace+"_host_memory_used_percent",
			"Host memory in use",
			nil, nil,
		),
		poolGetsDesc: prometheus.NewDesc(
			namespace+"_image_pool_gets_total",
			"Buffers taken from the image pool",
			nil, nil,
		),
		poolAllocsDesc: prometheus.NewDesc(
			namespace+"_image_pool_allocs_total",
			"Image pool gets that had to allocate",
			nil, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *processCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.rssDesc
	ch <- c.hostUsedDesc
	ch <- c.poolGetsDesc
	ch <- c.poolAllocsDesc
}

// Collect implements prometheus.Collector.
func (c *processCollector) Collect(ch chan<- prometheus.Metric) {
	if st, err := system.ReadMemory(); err == nil {
		ch <- prometheus.MustNewConstMetric(c.rssDesc, prometheus.GaugeValue, float64(st.RSS))
		ch <- prometheus.MustNewConstMetric(c.hostUsedDesc, prometheus.GaugeValue, st.HostUsed)
	}
	gets, allocs := c.pool.Stats()
	ch <- prometheus.MustNewConstMetric(c.poolGetsDesc, prometheus.CounterValue, float64(gets))
	ch <- prometheus.MustNewConstMetric(c.poolAllocsDesc, prometheus.CounterValue, float64(allocs))
}
