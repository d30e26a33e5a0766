package collectors

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// ChainSource is the ledger state exposed to collectors.
type ChainSource interface {
	Length() int
	PendingCount() int
}

// CollectorFactory creates a collector reading from source.
type CollectorFactory func(source ChainSource) (prometheus.Collector, error)

type Registry struct {
	factories []CollectorFactory
}

func NewRegistry() *Registry {
	return &Registry{
		factories: make([]CollectorFactory, 0),
	}
}

func (r *Registry) Register(factory CollectorFactory) {
	r.factories = append(r.factories, factory)
}

// CreateCollectors instantiates all collectors for source
func (r *Registry) CreateCollectors(source ChainSource) ([]prometheus.Collector, error) {
	if source == nil {
		return nil, errors.New("chain source is nil")
	}

	collectors := make([]prometheus.Collector, 0, len(r.factories))
	for _, factory := range r.factories {
		collector, err := factory(source)
		if err != nil {
			return nil, err
		}
		collectors = append(collectors, collector)
	}
	return collectors, nil
}

var DefaultRegistry = NewRegistry()

func RegisterCollectorFactory(factory CollectorFactory) {
	DefaultRegistry.Register(factory)
}
