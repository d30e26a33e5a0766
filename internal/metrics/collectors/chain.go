package collectors

import (
	"github.com/prometheus/client_golang/prometheus"
)

type ChainCollector struct {
	source      ChainSource
	chainLength *prometheus.Desc
	pending     *prometheus.Desc
}

func NewChainCollector(source ChainSource) *ChainCollector {
	return &ChainCollector{
		source: source,
		chainLength: prometheus.NewDesc(
			prometheus.BuildFQName("powledger", "chain", "length"),
			"Number of blocks in the local chain",
			nil,
			nil,
		),
		pending: prometheus.NewDesc(
			prometheus.BuildFQName("powledger", "mempool", "transactions"),
			"Number of transactions waiting for the next block",
			nil,
			nil,
		),
	}
}

func (c *ChainCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.chainLength
	ch <- c.pending
}

func (c *ChainCollector) Collect(ch chan<- prometheus.Metric) {
	ch <- prometheus.MustNewConstMetric(c.chainLength, prometheus.GaugeValue, float64(c.source.Length()))
	ch <- prometheus.MustNewConstMetric(c.pending, prometheus.GaugeValue, float64(c.source.PendingCount()))
}

func init() {
	RegisterCollectorFactory(func(source ChainSource) (prometheus.Collector, error) {
		return NewChainCollector(source), nil
	})
}
