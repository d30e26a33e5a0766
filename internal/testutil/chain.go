package testutil

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/liftedinit/powledger/internal/ledger"
	"github.com/liftedinit/powledger/internal/models"
	"github.com/liftedinit/powledger/internal/pow"
)

// NewPoW returns a ProofOfWork cheap enough for tests.
func NewPoW(t *testing.T, difficulty int) *pow.ProofOfWork {
	t.Helper()
	p, err := pow.New(difficulty)
	require.NoError(t, err)
	return p
}

// MineLedger returns a ledger holding length valid blocks, one transaction per mined block.
func MineLedger(t *testing.T, p *pow.ProofOfWork, length int) *ledger.Ledger {
	t.Helper()
	return mine(t, p, length, "alice")
}

func mine(t *testing.T, p *pow.ProofOfWork, length int, sender string) *ledger.Ledger {
	t.Helper()
	l := ledger.New()
	for l.Length() < length {
		last, err := l.LastBlock()
		require.NoError(t, err)

		proof, err := p.Search(context.Background(), last.Proof)
		require.NoError(t, err)

		_, err = l.NewTransaction(sender, fmt.Sprintf("bob-%d", last.Index), int64(last.Index))
		require.NoError(t, err)
		_, err = l.NewBlock(proof, "")
		require.NoError(t, err)
	}
	return l
}

// MineChain returns a valid chain of the given length.
func MineChain(t *testing.T, p *pow.ProofOfWork, length int) []models.Block {
	t.Helper()
	chain, err := MineLedger(t, p, length).Chain()
	require.NoError(t, err)
	return chain
}

// MineChainFrom is MineChain with every transaction sent by sender, so that
// chains of equal length can be told apart.
func MineChainFrom(t *testing.T, p *pow.ProofOfWork, length int, sender string) []models.Block {
	t.Helper()
	chain, err := mine(t, p, length, sender).Chain()
	require.NoError(t, err)
	return chain
}
