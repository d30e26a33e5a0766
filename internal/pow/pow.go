package pow

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"math"
	"strconv"
)

const (
	// DefaultDifficulty is the number of leading zero hex characters required by default.
	DefaultDifficulty = 4
	// MaxDifficulty is the length of a hex encoded SHA-256 digest.
	MaxDifficulty = sha256.Size * 2

	// checkInterval is how many attempts are made between cancellation checks.
	checkInterval = 1024
)

var (
	ErrSearchAborted     = errors.New("proof search aborted")
	ErrSearchExhausted   = errors.New("proof search exhausted")
	ErrInvalidDifficulty = errors.New("invalid difficulty")
)

// Option configures a ProofOfWork.
type Option func(*ProofOfWork)

// WithAttemptObserver registers a callback receiving the number of attempts
// made by every search, whether it succeeded or not.
func WithAttemptObserver(observe func(attempts uint64)) Option {
	return func(p *ProofOfWork) {
		p.observe = observe
	}
}

// ProofOfWork finds and verifies proofs against a fixed difficulty.
type ProofOfWork struct {
	difficulty int
	observe    func(attempts uint64)
}

// New returns a ProofOfWork requiring difficulty leading zero hex characters.
func New(difficulty int, opts ...Option) (*ProofOfWork, error) {
	if difficulty < 1 || difficulty > MaxDifficulty {
		return nil, fmt.Errorf("%w: %d (must be between 1 and %d)", ErrInvalidDifficulty, difficulty, MaxDifficulty)
	}
	p := &ProofOfWork{difficulty: difficulty}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Difficulty returns the configured number of leading zero hex characters.
func (p *ProofOfWork) Difficulty() int {
	return p.difficulty
}

// Valid reports whether the SHA-256 digest of the decimal forms of lastProof
// and proof, concatenated, starts with the configured run of '0' hex characters.
func (p *ProofOfWork) Valid(lastProof, proof uint64) bool {
	return p.valid(strconv.FormatUint(lastProof, 10), proof)
}

// Search returns the smallest proof satisfying Valid for lastProof.
// The scan stops with ErrSearchAborted once ctx is done.
func (p *ProofOfWork) Search(ctx context.Context, lastProof uint64) (uint64, error) {
	prefix := strconv.FormatUint(lastProof, 10)
	var attempts uint64
	if p.observe != nil {
		defer func() { p.observe(attempts) }()
	}

	for proof := uint64(0); ; proof++ {
		if proof%checkInterval == 0 {
			if err := ctx.Err(); err != nil {
				return 0, fmt.Errorf("%w after %d attempts: %w", ErrSearchAborted, attempts, err)
			}
		}
		attempts++
		if p.valid(prefix, proof) {
			return proof, nil
		}
		if proof == math.MaxUint64 {
			return 0, ErrSearchExhausted
		}
	}
}

func (p *ProofOfWork) valid(prefix string, proof uint64) bool {
	guess := strconv.AppendUint([]byte(prefix), proof, 10)
	return leadingZeroNibbles(sha256.Sum256(guess), p.difficulty)
}

// leadingZeroNibbles reports whether the first n hex characters of sum are '0'.
func leadingZeroNibbles(sum [sha256.Size]byte, n int) bool {
	for i := 0; i < n/2; i++ {
		if sum[i] != 0 {
			return false
		}
	}
	if n%2 == 1 && sum[n/2]>>4 != 0 {
		return false
	}
	return true
}
