package models

// Transaction represents an opaque ledger transaction.
type Transaction struct {
	Amount    int64  `json:"amount"`
	Recipient string `json:"recipient"`
	Sender    string `json:"sender"`
}

// Block represents a sealed ledger block.
// Fields are declared in lexicographic key order; the canonical encoding relies on it.
type Block struct {
	Index        int           `json:"index"`
	PreviousHash string        `json:"previous_hash"`
	Proof        uint64        `json:"proof"`
	Timestamp    float64       `json:"timestamp"`
	Transactions []Transaction `json:"transactions"`
}

// ChainSnapshot is the payload a peer returns for its full chain.
type ChainSnapshot struct {
	Chain  []Block `json:"chain"`
	Length int     `json:"length"`
}
