package collectors_test

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liftedinit/powledger/internal/metrics/collectors"
)

type fakeSource struct {
	length, pending int
}

func (f fakeSource) Length() int       { return f.length }
func (f fakeSource) PendingCount() int { return f.pending }

func TestRegistry(t *testing.T) {
	r := collectors.NewRegistry()
	r.Register(func(source collectors.ChainSource) (prometheus.Collector, error) {
		return collectors.NewChainCollector(source), nil
	})

	created, err := r.CreateCollectors(fakeSource{length: 3, pending: 2})
	require.NoError(t, err)
	require.Len(t, created, 1)

	_, err = r.CreateCollectors(nil)
	require.Error(t, err)

	r.Register(func(collectors.ChainSource) (prometheus.Collector, error) {
		return nil, errors.New("boom")
	})
	_, err = r.CreateCollectors(fakeSource{})
	require.EqualError(t, err, "boom")
}

func TestChainCollector(t *testing.T) {
	c := collectors.NewChainCollector(fakeSource{length: 3, pending: 2})
	assert.Equal(t, 2, testutil.CollectAndCount(c))
}

func TestNodeCounters(t *testing.T) {
	c := collectors.NewNodeCounters()
	c.Resolutions.WithLabelValues(collectors.OutcomeReplaced).Inc()
	c.PowAttempts.Add(10)

	assert.Equal(t, float64(10), testutil.ToFloat64(c.PowAttempts))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.Resolutions.WithLabelValues(collectors.OutcomeReplaced)))
	// counter vec children only appear once used
	assert.Equal(t, 6, testutil.CollectAndCount(c))
}
