package consensus

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/liftedinit/powledger/internal/models"
	"github.com/liftedinit/powledger/internal/validator"
)

const (
	DefaultPeerTimeout    = 10 * time.Second
	DefaultMaxConcurrency = 16
)

// PeerSource lists the peers taking part in a resolution round.
type PeerSource interface {
	List() []string
}

// ChainFetcher retrieves the chain reported by a peer.
type ChainFetcher interface {
	FetchChain(ctx context.Context, peer string) (models.ChainSnapshot, error)
}

// LocalChain is the replica being reconciled.
type LocalChain interface {
	Length() int
	ReplaceIfLonger(chain []models.Block) (bool, error)
}

type Config struct {
	PeerTimeout    time.Duration
	MaxConcurrency int
}

// Result describes one resolution round.
type Result struct {
	Replaced bool
	Winner   string
	Length   int
	Failed   []string
	Rejected []string
}

// Resolver applies the longest valid chain rule across peers.
type Resolver struct {
	peers     PeerSource
	fetcher   ChainFetcher
	validator *validator.ChainValidator
	cfg       Config
}

func NewResolver(peers PeerSource, fetcher ChainFetcher, v *validator.ChainValidator, cfg Config) *Resolver {
	if cfg.PeerTimeout <= 0 {
		cfg.PeerTimeout = DefaultPeerTimeout
	}
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = DefaultMaxConcurrency
	}
	return &Resolver{
		peers:     peers,
		fetcher:   fetcher,
		validator: v,
		cfg:       cfg,
	}
}

type candidate struct {
	peer     string
	snapshot models.ChainSnapshot
}

// ResolveConflicts replaces the local chain with the longest valid peer chain
// strictly longer than it. Peers are queried concurrently, each with its own
// timeout; failing peers are skipped. Among equally long candidates the
// smallest peer identifier wins. An error is returned only when ctx ends.
func (r *Resolver) ResolveConflicts(ctx context.Context, local LocalChain) (Result, error) {
	result := Result{Length: local.Length()}

	candidates, failed := r.fetchAll(ctx)
	result.Failed = failed
	if err := ctx.Err(); err != nil {
		return result, fmt.Errorf("resolution interrupted: %w", err)
	}

	slices.SortFunc(candidates, func(a, b candidate) int {
		if c := cmp.Compare(b.snapshot.Length, a.snapshot.Length); c != 0 {
			return c
		}
		return cmp.Compare(a.peer, b.peer)
	})

	maxLength := result.Length
	var winner *candidate
	for i := range candidates {
		c := &candidates[i]
		if c.snapshot.Length <= maxLength {
			break
		}
		if err := r.validator.Validate(c.snapshot.Chain); err != nil {
			slog.Info("Rejected invalid peer chain", "peer", c.peer, "length", c.snapshot.Length, "error", err)
			result.Rejected = append(result.Rejected, c.peer)
			continue
		}
		winner = c
		break
	}

	if winner == nil {
		slog.Debug("Local chain is authoritative", "length", maxLength, "peers", len(candidates)+len(failed))
		return result, nil
	}

	replaced, err := local.ReplaceIfLonger(winner.snapshot.Chain)
	if err != nil {
		return result, fmt.Errorf("failed to replace chain: %w", err)
	}
	if !replaced {
		slog.Info("Local chain grew during resolution, keeping it", "peer", winner.peer, "length", winner.snapshot.Length)
		return result, nil
	}

	result.Replaced = true
	result.Winner = winner.peer
	result.Length = winner.snapshot.Length
	slog.Info("Chain replaced", "peer", winner.peer, "length", winner.snapshot.Length)
	return result, nil
}

func (r *Resolver) fetchAll(ctx context.Context) ([]candidate, []string) {
	var (
		mu         sync.Mutex
		candidates []candidate
		failed     []string
	)

	var eg errgroup.Group
	eg.SetLimit(r.cfg.MaxConcurrency)
	for _, peer := range r.peers.List() {
		eg.Go(func() error {
			peerCtx, cancel := context.WithTimeout(ctx, r.cfg.PeerTimeout)
			defer cancel()

			snapshot, err := r.fetcher.FetchChain(peerCtx, peer)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				slog.Warn("Skipping peer", "peer", peer, "error", err)
				failed = append(failed, peer)
				return nil
			}
			candidates = append(candidates, candidate{peer: peer, snapshot: snapshot})
			return nil
		})
	}
	_ = eg.Wait()

	slices.Sort(failed)
	return candidates, failed
}
