package ledger

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jinzhu/copier"

	"github.com/liftedinit/powledger/internal/hasher"
	"github.com/liftedinit/powledger/internal/models"
)

const (
	// GenesisPreviousHash is the sentinel previous hash of the genesis block.
	GenesisPreviousHash = "1"
	// GenesisProof is the fixed proof of the genesis block. It is never verified.
	GenesisProof = 100
)

var (
	ErrEmptyLedger = errors.New("empty ledger")
	ErrStaleTip    = errors.New("chain tip changed")

	ErrInvalidTransaction = errors.New("invalid transaction")
)

// Option configures a Ledger.
type Option func(*Ledger)

// WithClock overrides the time source used for block timestamps.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		l.now = now
	}
}

// Ledger holds the chain and the pending transactions. It is safe for concurrent use.
type Ledger struct {
	mu      sync.RWMutex
	chain   []models.Block
	mempool []models.Transaction
	now     func() time.Time
}

// New creates a ledger holding only the genesis block.
func New(opts ...Option) *Ledger {
	l := &Ledger{
		now: time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}

	l.appendLocked(GenesisProof, GenesisPreviousHash)
	return l
}

// NewBlock seals the pending transactions into a new block and appends it.
// When previousHash is empty the hash of the current last block is used.
// No validation is performed.
func (l *Ledger) NewBlock(proof uint64, previousHash string) (models.Block, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if previousHash == "" {
		if len(l.chain) == 0 {
			return models.Block{}, ErrEmptyLedger
		}
		h, err := hasher.Hash(l.chain[len(l.chain)-1])
		if err != nil {
			return models.Block{}, err
		}
		previousHash = h
	}

	return l.sealed(l.appendLocked(proof, previousHash))
}

// Seal appends a block mined on top of parent, including the pending
// transactions followed by extra. It fails with ErrStaleTip when parent is no
// longer the last block, in which case the ledger is left untouched.
func (l *Ledger) Seal(parent models.Block, proof uint64, extra ...models.Transaction) (models.Block, error) {
	parentHash, err := hasher.Hash(parent)
	if err != nil {
		return models.Block{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.chain) == 0 {
		return models.Block{}, ErrEmptyLedger
	}
	tipHash, err := hasher.Hash(l.chain[len(l.chain)-1])
	if err != nil {
		return models.Block{}, err
	}
	if tipHash != parentHash {
		return models.Block{}, fmt.Errorf("%w: block %d is no longer the last block", ErrStaleTip, parent.Index)
	}

	l.mempool = append(l.mempool, extra...)
	return l.sealed(l.appendLocked(proof, parentHash))
}

// NewTransaction stages a transaction and returns the index of the block
// that will include it. Transactions that cannot be hashed are rejected.
func (l *Ledger) NewTransaction(sender, recipient string, amount int64) (int, error) {
	tx := models.Transaction{
		Sender:    sender,
		Recipient: recipient,
		Amount:    amount,
	}
	if err := hasher.ValidateTransaction(tx); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrInvalidTransaction, err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.mempool = append(l.mempool, tx)
	return l.chain[len(l.chain)-1].Index + 1, nil
}

// LastBlock returns a copy of the most recently appended block.
func (l *Ledger) LastBlock() (models.Block, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if len(l.chain) == 0 {
		return models.Block{}, ErrEmptyLedger
	}
	return l.sealed(l.chain[len(l.chain)-1])
}

// Length returns the number of blocks in the chain.
func (l *Ledger) Length() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.chain)
}

// Chain returns a deep copy of the chain.
func (l *Ledger) Chain() ([]models.Block, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return cloneChain(l.chain)
}

// PendingTransactions returns a copy of the mempool.
func (l *Ledger) PendingTransactions() []models.Transaction {
	l.mu.RLock()
	defer l.mu.RUnlock()

	pending := make([]models.Transaction, len(l.mempool))
	copy(pending, l.mempool)
	return pending
}

// PendingCount returns the number of staged transactions.
func (l *Ledger) PendingCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.mempool)
}

// ReplaceIfLonger installs a copy of chain if it is strictly longer than the
// current one. Readers observe either the old or the new chain, never a mix.
// The mempool is kept.
func (l *Ledger) ReplaceIfLonger(chain []models.Block) (bool, error) {
	replacement, err := cloneChain(chain)
	if err != nil {
		return false, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if len(replacement) <= len(l.chain) {
		return false, nil
	}
	l.chain = replacement
	return true, nil
}

func (l *Ledger) appendLocked(proof uint64, previousHash string) models.Block {
	transactions := l.mempool
	if transactions == nil {
		transactions = []models.Transaction{}
	}

	block := models.Block{
		Index:        len(l.chain) + 1,
		Timestamp:    float64(l.now().UnixMicro()) / 1e6,
		Transactions: transactions,
		Proof:        proof,
		PreviousHash: previousHash,
	}

	l.mempool = nil
	l.chain = append(l.chain, block)
	return block
}

func (l *Ledger) sealed(block models.Block) (models.Block, error) {
	copied, err := cloneChain([]models.Block{block})
	if err != nil {
		return models.Block{}, err
	}
	return copied[0], nil
}

func cloneChain(src []models.Block) ([]models.Block, error) {
	if src == nil {
		return nil, nil
	}
	dst := make([]models.Block, 0, len(src))
	if err := copier.CopyWithOption(&dst, &src, copier.Option{DeepCopy: true}); err != nil {
		return nil, fmt.Errorf("failed to copy chain: %w", err)
	}
	for i := range dst {
		if dst[i].Transactions == nil {
			dst[i].Transactions = []models.Transaction{}
		}
	}
	return dst, nil
}
