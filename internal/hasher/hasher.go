package hasher

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/liftedinit/powledger/internal/models"
)

// ErrInvalidUTF8 is returned for blocks holding strings that are not valid
// UTF-8. JSON encoding would replace the offending bytes, so distinct blocks
// would share an encoding.
var ErrInvalidUTF8 = errors.New("invalid UTF-8")

// Canonical returns the canonical serialization of a block: compact JSON with
// keys in lexicographic order and transactions in insertion order. The same
// encoding is used on the wire.
func Canonical(block models.Block) ([]byte, error) {
	if !utf8.ValidString(block.PreviousHash) {
		return nil, fmt.Errorf("block %d: previous_hash: %w", block.Index, ErrInvalidUTF8)
	}
	for i, tx := range block.Transactions {
		if err := ValidateTransaction(tx); err != nil {
			return nil, fmt.Errorf("block %d: transaction %d: %w", block.Index, i, err)
		}
	}

	data, err := json.Marshal(block)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize block %d: %w", block.Index, err)
	}
	return data, nil
}

// Hash returns the lowercase hex SHA-256 digest of the canonical block encoding.
func Hash(block models.Block) (string, error) {
	data, err := Canonical(block)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// ValidateTransaction reports whether tx can be encoded canonically.
func ValidateTransaction(tx models.Transaction) error {
	if !utf8.ValidString(tx.Sender) {
		return fmt.Errorf("sender: %w", ErrInvalidUTF8)
	}
	if !utf8.ValidString(tx.Recipient) {
		return fmt.Errorf("recipient: %w", ErrInvalidUTF8)
	}
	return nil
}
