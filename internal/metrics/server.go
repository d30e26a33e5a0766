package metrics

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	chaincollectors "github.com/liftedinit/powledger/internal/metrics/collectors"
)

// CreateMetricsServer serves /metrics on addr with the chain collectors for
// source plus any extra collectors. The listener is bound before returning so
// that address errors are reported to the caller.
func CreateMetricsServer(addr string, source chaincollectors.ChainSource, extra ...prometheus.Collector) (*http.Server, error) {
	chainCollectors, err := chaincollectors.DefaultRegistry.CreateCollectors(source)
	if err != nil {
		return nil, fmt.Errorf("failed to create collectors: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	for _, c := range append(chainCollectors, extra...) {
		if err := registry.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register collector: %w", err)
		}
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	server := &http.Server{Addr: addr, Handler: mux}

	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Failed to start metrics server", "error", err)
		}
	}()

	slog.Info("Metrics server started", "address", listener.Addr().String())
	return server, nil
}
