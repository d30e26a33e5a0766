package validator

import (
	"errors"
	"fmt"

	"github.com/liftedinit/powledger/internal/hasher"
	"github.com/liftedinit/powledger/internal/models"
)

var (
	ErrPreviousHashMismatch = errors.New("previous hash mismatch")
	ErrInvalidProof         = errors.New("invalid proof of work")
	ErrIndexMismatch        = errors.New("unexpected block index")
)

// ProofVerifier is the proof of work predicate.
type ProofVerifier interface {
	Valid(lastProof, proof uint64) bool
}

// ChainValidator checks hash linkage and the proof sequence of a chain.
type ChainValidator struct {
	pow ProofVerifier
}

func New(p ProofVerifier) *ChainValidator {
	return &ChainValidator{pow: p}
}

// Validate walks the chain and returns the first index, linkage or proof
// violation. Indices must run 1, 2, 3 and so on. The genesis proof and
// previous hash are not checked.
func (v *ChainValidator) Validate(chain []models.Block) error {
	if len(chain) > 0 && chain[0].Index != 1 {
		return fmt.Errorf("block %d: %w: genesis must have index 1", chain[0].Index, ErrIndexMismatch)
	}
	for i := 1; i < len(chain); i++ {
		prev, cur := chain[i-1], chain[i]

		if cur.Index != prev.Index+1 {
			return fmt.Errorf("block %d: %w: expected %d", cur.Index, ErrIndexMismatch, prev.Index+1)
		}

		prevHash, err := hasher.Hash(prev)
		if err != nil {
			return fmt.Errorf("block %d: %w", prev.Index, err)
		}
		if cur.PreviousHash != prevHash {
			return fmt.Errorf("block %d: %w: expected %s, got %s", cur.Index, ErrPreviousHashMismatch, prevHash, cur.PreviousHash)
		}

		if !v.pow.Valid(prev.Proof, cur.Proof) {
			return fmt.Errorf("block %d: %w: proof %d does not follow %d", cur.Index, ErrInvalidProof, cur.Proof, prev.Proof)
		}
	}
	return nil
}

// ValidChain reports whether Validate finds no violation.
func (v *ChainValidator) ValidChain(chain []models.Block) bool {
	return v.Validate(chain) == nil
}
