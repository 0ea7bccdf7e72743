package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"sharedref/infra/memory"
)

/*
  Control-block allocation metrics. The collector reads the allocator's
  atomic counters at scrape time, so it can run on any goroutine.
*/

const namespace = "sharedref"

var (
	allocsDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "control_blocks", "allocated_total"),
		"Control blocks allocated.",
		[]string{"allocator"}, nil,
	)
	freesDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "control_blocks", "freed_total"),
		"Control blocks freed.",
		[]string{"allocator"}, nil,
	)
	failuresDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "control_blocks", "allocation_failures_total"),
		"Control block allocations refused by the allocator.",
		[]string{"allocator"}, nil,
	)
	liveBytesDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "control_blocks", "live_bytes"),
		"Bytes held by live control blocks.",
		[]string{"allocator"}, nil,
	)
)

// Collector exports the counters of one allocator.
type Collector struct {
	name  string
	stats memory.StatsSource
}

func NewCollector(name string, stats memory.StatsSource) *Collector {
	return &Collector{name: name, stats: stats}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- allocsDesc
	ch <- freesDesc
	ch <- failuresDesc
	ch <- liveBytesDesc
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.stats.Stats()
	ch <- prometheus.MustNewConstMetric(allocsDesc, prometheus.CounterValue, float64(s.Allocs), c.name)
	ch <- prometheus.MustNewConstMetric(freesDesc, prometheus.CounterValue, float64(s.Frees), c.name)
	ch <- prometheus.MustNewConstMetric(failuresDesc, prometheus.CounterValue, float64(s.Failures), c.name)
	ch <- prometheus.MustNewConstMetric(liveBytesDesc, prometheus.GaugeValue, float64(s.LiveBytes), c.name)
}

// RegisterMetrics registers a collector for the given allocator.
func RegisterMetrics(reg prometheus.Registerer, name string, stats memory.StatsSource) error {
	return reg.Register(NewCollector(name, stats))
}
