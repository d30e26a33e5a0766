package powledger

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/liftedinit/powledger/internal/client"
	"github.com/liftedinit/powledger/internal/config"
	"github.com/liftedinit/powledger/internal/consensus"
	"github.com/liftedinit/powledger/internal/ledger"
	"github.com/liftedinit/powledger/internal/metrics"
	"github.com/liftedinit/powledger/internal/metrics/collectors"
	"github.com/liftedinit/powledger/internal/node"
	"github.com/liftedinit/powledger/internal/peers"
	"github.com/liftedinit/powledger/internal/pow"
	"github.com/liftedinit/powledger/internal/server"
)

const shutdownTimeout = 5 * time.Second

var nodeConfig config.NodeConfig

var ServeCmd = &cobra.Command{
	Use:   "serve",
	Args:  cobra.NoArgs,
	Short: "Run a ledger node",
	Long:  `Run a ledger node exposing the mining, transaction and peer API over HTTP.`,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		if err := bindFlags(cmd); err != nil {
			return err
		}

		nodeConfig = config.LoadNodeConfigFromCLI()
		if err := nodeConfig.Validate(); err != nil {
			return fmt.Errorf("invalid Node configuration: %w", err)
		}

		slog.Debug("Command-line arguments", "nodeConfig", nodeConfig)
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()
		handleInterrupt(cancel)

		return serve(ctx, nodeConfig)
	},
}

func init() {
	ServeCmd.Flags().String("listen", "127.0.0.1:5000", "Address and port of the node API")
	ServeCmd.Flags().String("node-id", "", "Node identifier receiving mining rewards (generated when empty)")
	ServeCmd.Flags().IntP("difficulty", "d", pow.DefaultDifficulty, "Number of leading zero hex digits required by the proof of work")
	ServeCmd.Flags().StringSliceP("peers", "p", nil, "Peers to register at startup")
	ServeCmd.Flags().Duration("peer-timeout", consensus.DefaultPeerTimeout, "Timeout of a single peer request")
	ServeCmd.Flags().IntP("max-concurrency", "c", consensus.DefaultMaxConcurrency, "Maximum concurrent peer requests (advanced)")
	ServeCmd.Flags().Duration("resolve-interval", 0, "Interval between background resolution rounds (0 disables)")
	ServeCmd.Flags().Bool("enable-prometheus", false, "Enable Prometheus metrics server")
	ServeCmd.Flags().String("prometheus-addr", "0.0.0.0:2112", "Address and port of the Prometheus metrics server")
}

func serve(ctx context.Context, cfg config.NodeConfig) error {
	counters := collectors.NewNodeCounters()
	p, err := pow.New(cfg.Difficulty, pow.WithAttemptObserver(func(attempts uint64) {
		counters.PowAttempts.Add(float64(attempts))
	}))
	if err != nil {
		return err
	}

	id := cfg.NodeID
	if id == "" {
		if id, err = node.NewID(); err != nil {
			return err
		}
	}

	registry := peers.NewRegistry(cfg.Listen)
	for _, peer := range cfg.Peers {
		if _, err := registry.Register(peer); err != nil {
			return fmt.Errorf("failed to register peer %s: %w", peer, err)
		}
	}

	l := ledger.New()
	n, err := node.New(node.Options{
		ID:     id,
		Ledger: l,
		PoW:    p,
		Peers:  registry,
		Client: client.NewPeerClient(cfg.PeerTimeout, id),
		Consensus: consensus.Config{
			PeerTimeout:    cfg.PeerTimeout,
			MaxConcurrency: cfg.MaxConcurrency,
		},
		Counters: counters,
	})
	if err != nil {
		return fmt.Errorf("failed to create node: %w", err)
	}

	eg, ctx := errgroup.WithContext(ctx)

	if cfg.EnablePrometheus {
		metricsServer, err := metrics.CreateMetricsServer(cfg.PrometheusAddr, l, counters)
		if err != nil {
			return fmt.Errorf("failed to start metrics server: %w", err)
		}
		eg.Go(func() error {
			<-ctx.Done()
			return shutdown(metricsServer.Shutdown)
		})
	}

	srv := server.New(ctx, cfg.Listen, n)
	eg.Go(srv.ListenAndServe)
	eg.Go(func() error {
		<-ctx.Done()
		return shutdown(srv.Shutdown)
	})

	if registry.Len() > 0 {
		eg.Go(func() error {
			if _, err := n.Resolve(ctx); err != nil && ctx.Err() == nil {
				slog.Warn("Initial resolution failed", "error", err)
			}
			return nil
		})
	}

	if cfg.ResolveInterval > 0 {
		eg.Go(func() error {
			return n.RunResolver(ctx, cfg.ResolveInterval)
		})
	}

	return eg.Wait()
}

func shutdown(fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return fn(ctx)
}

// handleInterrupt handles interrupt signals for graceful shutdown.
func handleInterrupt(cancel context.CancelFunc) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-c
		slog.Info("Received interrupt signal, shutting down...")
		cancel()
	}()
}
