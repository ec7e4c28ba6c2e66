package metric

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Collector exports a single gauge whose value is read at scrape time.
type Collector struct {
	desc  *prometheus.Desc
	value func() float64
}

var _ prometheus.Collector = (*Collector)(nil)

// NewCollector creates a collector for unitrack_<subsystem>_<name>.
func NewCollector(subsystem, name, help string, value func() float64) *Collector {
	return &Collector{
		desc:  prometheus.NewDesc(prometheus.BuildFQName(namespace, subsystem, name), help, nil, nil),
		value: value,
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.desc
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	ch <- prometheus.MustNewConstMetric(c.desc, prometheus.GaugeValue, c.value())
}
