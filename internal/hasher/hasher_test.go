package hasher_test

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liftedinit/powledger/internal/hasher"
	"github.com/liftedinit/powledger/internal/models"
)

func genesis() models.Block {
	return models.Block{
		Index:        1,
		PreviousHash: "1",
		Proof:        100,
		Timestamp:    1700000000.5,
	}
}

func TestCanonical(t *testing.T) {
	data, err := hasher.Canonical(genesis())
	require.NoError(t, err)
	assert.Equal(t, `{"index":1,"previous_hash":"1","proof":100,"timestamp":1700000000.5,"transactions":[]}`, string(data))

	block := genesis()
	block.Transactions = []models.Transaction{
		{Sender: "alice", Recipient: "bob", Amount: 5},
		{Sender: "bob", Recipient: "carol", Amount: 2},
	}
	data, err = hasher.Canonical(block)
	require.NoError(t, err)
	assert.Equal(t,
		`{"index":1,"previous_hash":"1","proof":100,"timestamp":1700000000.5,"transactions":[{"amount":5,"recipient":"bob","sender":"alice"},{"amount":2,"recipient":"carol","sender":"bob"}]}`,
		string(data))
}

func TestHash(t *testing.T) {
	t.Run("KnownDigest", func(t *testing.T) {
		h, err := hasher.Hash(genesis())
		require.NoError(t, err)
		assert.Equal(t, "6ce5f6345a66866646fa9ae15785d9d686e972dbe2a1af3f4a83e5a12109e904", h)
	})

	t.Run("Pure", func(t *testing.T) {
		first, err := hasher.Hash(genesis())
		require.NoError(t, err)
		second, err := hasher.Hash(genesis())
		require.NoError(t, err)
		assert.Equal(t, first, second)
	})

	t.Run("NilAndEmptyTransactionsAgree", func(t *testing.T) {
		withEmpty := genesis()
		withEmpty.Transactions = []models.Transaction{}
		a, err := hasher.Hash(genesis())
		require.NoError(t, err)
		b, err := hasher.Hash(withEmpty)
		require.NoError(t, err)
		assert.Equal(t, a, b)
	})

	t.Run("IndependentOfWireKeyOrder", func(t *testing.T) {
		var decoded models.Block
		err := json.Unmarshal([]byte(`{"transactions":[{"sender":"alice","amount":5,"recipient":"bob"}],"timestamp":1700000000.5,"proof":100,"previous_hash":"1","index":1}`), &decoded)
		require.NoError(t, err)

		block := genesis()
		block.Transactions = []models.Transaction{{Sender: "alice", Recipient: "bob", Amount: 5}}

		a, err := hasher.Hash(decoded)
		require.NoError(t, err)
		b, err := hasher.Hash(block)
		require.NoError(t, err)
		assert.Equal(t, a, b)
	})

	t.Run("TransactionOrderMatters", func(t *testing.T) {
		a := genesis()
		a.Transactions = []models.Transaction{{Sender: "a", Recipient: "b", Amount: 1}, {Sender: "c", Recipient: "d", Amount: 2}}
		b := genesis()
		b.Transactions = []models.Transaction{a.Transactions[1], a.Transactions[0]}

		ha, err := hasher.Hash(a)
		require.NoError(t, err)
		hb, err := hasher.Hash(b)
		require.NoError(t, err)
		assert.NotEqual(t, ha, hb)
	})

	t.Run("WhenTimestampIsNaN", func(t *testing.T) {
		block := genesis()
		block.Timestamp = math.NaN()
		_, err := hasher.Hash(block)
		require.Error(t, err)
	})
}

func TestInvalidUTF8(t *testing.T) {
	withSender := func(sender string) models.Block {
		block := genesis()
		block.Transactions = []models.Transaction{{Sender: sender, Recipient: "bob", Amount: 1}}
		return block
	}

	for _, sender := range []string{"a\xff", "a\xfe"} {
		_, err := hasher.Hash(withSender(sender))
		assert.ErrorIs(t, err, hasher.ErrInvalidUTF8, "%q", sender)
	}

	block := genesis()
	block.Transactions = []models.Transaction{{Sender: "alice", Recipient: "b\xc3", Amount: 1}}
	_, err := hasher.Canonical(block)
	assert.ErrorIs(t, err, hasher.ErrInvalidUTF8)

	block = genesis()
	block.PreviousHash = "\xff"
	_, err = hasher.Canonical(block)
	assert.ErrorIs(t, err, hasher.ErrInvalidUTF8)

	// Multi-byte characters are fine.
	_, err = hasher.Hash(withSender("zoë"))
	assert.NoError(t, err)
}
