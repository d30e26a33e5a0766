package node

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	uuid "github.com/nu7hatch/gouuid"
	"golang.org/x/sync/errgroup"

	"github.com/liftedinit/powledger/internal/consensus"
	"github.com/liftedinit/powledger/internal/ledger"
	"github.com/liftedinit/powledger/internal/metrics/collectors"
	"github.com/liftedinit/powledger/internal/models"
	"github.com/liftedinit/powledger/internal/peers"
	"github.com/liftedinit/powledger/internal/validator"
)

const (
	// RewardSender marks the transaction paying the miner of a block.
	RewardSender = "0"
	MiningReward = 1
)

var ErrMiningAborted = errors.New("mining aborted")

// PeerClient is the transport used to reach other nodes.
type PeerClient interface {
	consensus.ChainFetcher
	TriggerResolve(ctx context.Context, peer string) error
}

// ProofOfWork searches and verifies proofs.
type ProofOfWork interface {
	validator.ProofVerifier
	Search(ctx context.Context, lastProof uint64) (uint64, error)
	Difficulty() int
}

type Options struct {
	// ID identifies the node and receives mining rewards. Generated when empty.
	ID        string
	Ledger    *ledger.Ledger
	PoW       ProofOfWork
	Peers     *peers.Registry
	Client    PeerClient
	Consensus consensus.Config
	Counters  *collectors.NodeCounters
}

// Node mines blocks on the local ledger and reconciles it with its peers.
type Node struct {
	id       string
	ledger   *ledger.Ledger
	pow      ProofOfWork
	peers    *peers.Registry
	client   PeerClient
	resolver *consensus.Resolver
	counters *collectors.NodeCounters
	timeout  time.Duration
	maxConc  int

	miningMu sync.Mutex

	mu           sync.Mutex
	cancelMining context.CancelFunc
}

func New(opts Options) (*Node, error) {
	if opts.Ledger == nil || opts.PoW == nil || opts.Peers == nil || opts.Client == nil {
		return nil, errors.New("ledger, proof of work, peers and client are required")
	}
	if opts.ID == "" {
		id, err := NewID()
		if err != nil {
			return nil, err
		}
		opts.ID = id
	}
	if opts.Counters == nil {
		opts.Counters = collectors.NewNodeCounters()
	}

	resolver := consensus.NewResolver(opts.Peers, opts.Client, validator.New(opts.PoW), opts.Consensus)
	timeout := opts.Consensus.PeerTimeout
	if timeout <= 0 {
		timeout = consensus.DefaultPeerTimeout
	}
	maxConc := opts.Consensus.MaxConcurrency
	if maxConc <= 0 {
		maxConc = consensus.DefaultMaxConcurrency
	}

	return &Node{
		id:       opts.ID,
		ledger:   opts.Ledger,
		pow:      opts.PoW,
		peers:    opts.Peers,
		client:   opts.Client,
		resolver: resolver,
		counters: opts.Counters,
		timeout:  timeout,
		maxConc:  maxConc,
	}, nil
}

// NewID returns a random node identifier.
func NewID() (string, error) {
	u, err := uuid.NewV4()
	if err != nil {
		return "", fmt.Errorf("failed to generate node id: %w", err)
	}
	return u.String(), nil
}

func (n *Node) ID() string {
	return n.id
}

func (n *Node) Ledger() *ledger.Ledger {
	return n.ledger
}

func (n *Node) Peers() *peers.Registry {
	return n.peers
}

// Mine searches a proof on top of the last block and seals the pending
// transactions together with the mining reward. The search is aborted when
// ctx ends or when a resolution replaces the chain.
func (n *Node) Mine(ctx context.Context) (models.Block, error) {
	n.miningMu.Lock()
	defer n.miningMu.Unlock()

	last, err := n.ledger.LastBlock()
	if err != nil {
		return models.Block{}, err
	}

	miningCtx, cancel := context.WithCancel(ctx)
	n.mu.Lock()
	n.cancelMining = cancel
	n.mu.Unlock()
	defer func() {
		n.mu.Lock()
		n.cancelMining = nil
		n.mu.Unlock()
		cancel()
	}()

	slog.Debug("Mining started", "parent", last.Index, "difficulty", n.pow.Difficulty())
	proof, err := n.pow.Search(miningCtx, last.Proof)
	if err != nil {
		n.counters.MiningAborted.Inc()
		return models.Block{}, fmt.Errorf("%w: %w", ErrMiningAborted, err)
	}

	block, err := n.ledger.Seal(last, proof, models.Transaction{
		Sender:    RewardSender,
		Recipient: n.id,
		Amount:    MiningReward,
	})
	if err != nil {
		n.counters.MiningAborted.Inc()
		return models.Block{}, fmt.Errorf("%w: %w", ErrMiningAborted, err)
	}

	n.counters.BlocksMined.Inc()
	slog.Info("Block mined", "index", block.Index, "proof", block.Proof, "transactions", len(block.Transactions))
	return block, nil
}

// Resolve runs one resolution round and reports whether the chain was replaced.
// A replacement aborts the mining attempt in progress, if any.
func (n *Node) Resolve(ctx context.Context) (bool, error) {
	result, err := n.resolver.ResolveConflicts(ctx, n.ledger)
	n.counters.PeerFailures.Add(float64(len(result.Failed)))
	n.counters.RejectedChains.Add(float64(len(result.Rejected)))
	if err != nil {
		n.counters.Resolutions.WithLabelValues(collectors.OutcomeError).Inc()
		return false, err
	}

	if !result.Replaced {
		n.counters.Resolutions.WithLabelValues(collectors.OutcomeKept).Inc()
		return false, nil
	}

	n.counters.Resolutions.WithLabelValues(collectors.OutcomeReplaced).Inc()
	n.mu.Lock()
	if n.cancelMining != nil {
		slog.Info("Aborting stale mining attempt", "length", result.Length)
		n.cancelMining()
	}
	n.mu.Unlock()
	return true, nil
}

// Announce asks every peer to run a resolution round. Failures are logged.
func (n *Node) Announce(ctx context.Context) {
	var eg errgroup.Group
	eg.SetLimit(n.maxConc)
	for _, peer := range n.peers.List() {
		eg.Go(func() error {
			peerCtx, cancel := context.WithTimeout(ctx, n.timeout)
			defer cancel()
			if err := n.client.TriggerResolve(peerCtx, peer); err != nil {
				slog.Warn("Failed to announce block", "peer", peer, "error", err)
			}
			return nil
		})
	}
	_ = eg.Wait()
}

// RunResolver resolves conflicts every interval until ctx ends.
func (n *Node) RunResolver(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("invalid resolve interval: %s", interval)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := n.Resolve(ctx); err != nil && ctx.Err() == nil {
				slog.Error("Resolution failed", "error", err)
			}
		}
	}
}
