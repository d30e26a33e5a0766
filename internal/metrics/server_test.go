package metrics_test

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/liftedinit/powledger/internal/ledger"
	"github.com/liftedinit/powledger/internal/metrics"
	"github.com/liftedinit/powledger/internal/metrics/collectors"
)

func TestCreateMetricsServer(t *testing.T) {
	t.Run("StartServer", func(t *testing.T) {
		l := ledger.New()
		_, err := l.NewTransaction("alice", "bob", 1)
		require.NoError(t, err)
		counters := collectors.NewNodeCounters()
		counters.BlocksMined.Inc()

		server, err := metrics.CreateMetricsServer("127.0.0.1:2112", l, counters)
		require.NoError(t, err)
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			err := server.Shutdown(ctx)
			require.NoError(t, err)
		}()

		resp, err := http.Get("http://127.0.0.1:2112/metrics")
		require.NoError(t, err, "Failed to connect to metrics server")
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		require.Equal(t, 200, resp.StatusCode, "Expected status code 200")
		require.Contains(t, string(body), "powledger_chain_length 1")
		require.Contains(t, string(body), "powledger_mempool_transactions 1")
		require.Contains(t, string(body), "powledger_mining_blocks_total 1")
	})

	t.Run("WhenInvalidAddress", func(t *testing.T) {
		_, err := metrics.CreateMetricsServer("invalid-address😆", ledger.New())
		require.Error(t, err)
	})

	t.Run("WhenInvalidPort", func(t *testing.T) {
		_, err := metrics.CreateMetricsServer("localhost:99999", ledger.New())
		require.Error(t, err)
	})

	t.Run("WhenSourceIsNil", func(t *testing.T) {
		_, err := metrics.CreateMetricsServer("localhost:0", nil)
		require.Error(t, err)
	})
}
