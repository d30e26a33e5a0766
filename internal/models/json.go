package models

import "encoding/json"

// MarshalJSON encodes the block in its canonical form. A nil transaction
// list is encoded as an empty array so that hashes do not depend on how the
// block was constructed or decoded.
func (b Block) MarshalJSON() ([]byte, error) {
	type plain Block
	if b.Transactions == nil {
		b.Transactions = []Transaction{}
	}
	return json.Marshal(plain(b))
}
