package collectors

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Resolution outcomes.
const (
	OutcomeReplaced = "replaced"
	OutcomeKept     = "kept"
	OutcomeError    = "error"
)

// NodeCounters counts node activity. The zero value is not usable; use NewNodeCounters.
type NodeCounters struct {
	BlocksMined    prometheus.Counter
	MiningAborted  prometheus.Counter
	PowAttempts    prometheus.Counter
	Resolutions    *prometheus.CounterVec
	PeerFailures   prometheus.Counter
	RejectedChains prometheus.Counter
}

func NewNodeCounters() *NodeCounters {
	return &NodeCounters{
		BlocksMined: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "powledger",
			Subsystem: "mining",
			Name:      "blocks_total",
			Help:      "Blocks mined by this node",
		}),
		MiningAborted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "powledger",
			Subsystem: "mining",
			Name:      "aborted_total",
			Help:      "Mining attempts aborted before sealing a block",
		}),
		PowAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "powledger",
			Subsystem: "mining",
			Name:      "attempts_total",
			Help:      "Proof of work candidates hashed",
		}),
		Resolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "powledger",
			Subsystem: "consensus",
			Name:      "resolutions_total",
			Help:      "Resolution rounds by outcome",
		}, []string{"outcome"}),
		PeerFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "powledger",
			Subsystem: "consensus",
			Name:      "peer_failures_total",
			Help:      "Peers skipped because they could not be queried",
		}),
		RejectedChains: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "powledger",
			Subsystem: "consensus",
			Name:      "rejected_chains_total",
			Help:      "Longer peer chains rejected as invalid",
		}),
	}
}

func (c *NodeCounters) collectors() []prometheus.Collector {
	return []prometheus.Collector{c.BlocksMined, c.MiningAborted, c.PowAttempts, c.Resolutions, c.PeerFailures, c.RejectedChains}
}

func (c *NodeCounters) Describe(ch chan<- *prometheus.Desc) {
	for _, collector := range c.collectors() {
		collector.Describe(ch)
	}
}

func (c *NodeCounters) Collect(ch chan<- prometheus.Metric) {
	for _, collector := range c.collectors() {
		collector.Collect(ch)
	}
}
