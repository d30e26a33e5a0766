package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liftedinit/powledger/internal/client"
	"github.com/liftedinit/powledger/internal/consensus"
	"github.com/liftedinit/powledger/internal/ledger"
	"github.com/liftedinit/powledger/internal/models"
	"github.com/liftedinit/powledger/internal/node"
	"github.com/liftedinit/powledger/internal/peers"
	"github.com/liftedinit/powledger/internal/server"
	"github.com/liftedinit/powledger/internal/testutil"
	"github.com/liftedinit/powledger/internal/validator"
)

type testNode struct {
	node *node.Node
	url  string
	host string
}

func startNode(t *testing.T, id string) testNode {
	t.Helper()
	n, err := node.New(node.Options{
		ID:        id,
		Ledger:    ledger.New(),
		PoW:       testutil.NewPoW(t, 2),
		Peers:     peers.NewRegistry(""),
		Client:    client.NewPeerClient(2*time.Second, id),
		Consensus: consensus.Config{PeerTimeout: 2 * time.Second},
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	srv := httptest.NewServer(server.New(ctx, "", n).Handler())
	t.Cleanup(srv.Close)
	return testNode{node: n, url: srv.URL, host: strings.TrimPrefix(srv.URL, "http://")}
}

func do(t *testing.T, method, url string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp, decoded
}

func TestChain(t *testing.T) {
	a := startNode(t, "node-a")

	resp, err := http.Get(a.url + "/chain")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var snapshot models.ChainSnapshot
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snapshot))
	assert.Equal(t, 1, snapshot.Length)
	require.Len(t, snapshot.Chain, 1)
	assert.Equal(t, ledger.GenesisPreviousHash, snapshot.Chain[0].PreviousHash)
}

func TestNewTransaction(t *testing.T) {
	a := startNode(t, "node-a")

	resp, body := do(t, http.MethodPost, a.url+"/transactions/new", map[string]any{
		"sender": "alice", "recipient": "bob", "amount": 5,
	})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "Transaction will be added to Block 2", body["message"])
	assert.Equal(t, 1, a.node.Ledger().PendingCount())

	t.Run("WhenValuesAreMissing", func(t *testing.T) {
		resp, body := do(t, http.MethodPost, a.url+"/transactions/new", map[string]any{"sender": "alice"})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Contains(t, body["message"], "missing values")
	})

	t.Run("WhenBodyIsMalformed", func(t *testing.T) {
		resp, err := http.Post(a.url+"/transactions/new", "application/json", strings.NewReader("{"))
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("WhenMethodIsWrong", func(t *testing.T) {
		resp, err := http.Get(a.url + "/transactions/new")
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	})
}

func TestMine(t *testing.T) {
	a := startNode(t, "node-a")
	do(t, http.MethodPost, a.url+"/transactions/new", map[string]any{"sender": "alice", "recipient": "bob", "amount": 5})

	resp, body := do(t, http.MethodGet, a.url+"/mine", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "New block forged", body["message"])
	assert.Equal(t, float64(2), body["index"])
	assert.Len(t, body["transactions"], 2)
	assert.Equal(t, 2, a.node.Ledger().Length())
}

func TestRegisterNodes(t *testing.T) {
	a := startNode(t, "node-a")

	resp, body := do(t, http.MethodPost, a.url+"/nodes/register", map[string]any{
		"nodes": []string{"http://10.0.0.2:5000", "10.0.0.1:5000"},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, []any{"10.0.0.1:5000", "10.0.0.2:5000"}, body["total_nodes"])

	resp, body = do(t, http.MethodGet, a.url+"/nodes", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body["total_nodes"], 2)

	t.Run("WhenEmpty", func(t *testing.T) {
		resp, _ := do(t, http.MethodPost, a.url+"/nodes/register", map[string]any{"nodes": []string{}})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("WhenInvalid", func(t *testing.T) {
		resp, _ := do(t, http.MethodPost, a.url+"/nodes/register", map[string]any{"nodes": []string{"http://"}})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

		// One bad address rejects the whole list.
		resp, _ = do(t, http.MethodPost, a.url+"/nodes/register", map[string]any{"nodes": []string{"10.0.0.9:5000", "http://"}})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

		_, body := do(t, http.MethodGet, a.url+"/nodes", nil)
		assert.Equal(t, []any{"10.0.0.1:5000", "10.0.0.2:5000"}, body["total_nodes"])
	})
}

func TestRequestBodyLimit(t *testing.T) {
	n, err := node.New(node.Options{
		ID:     "node-a",
		Ledger: ledger.New(),
		PoW:    testutil.NewPoW(t, 1),
		Peers:  peers.NewRegistry(""),
		Client: client.NewPeerClient(time.Second, "node-a"),
	})
	require.NoError(t, err)
	handler := server.New(context.Background(), "", n).Handler()

	huge := `{"sender":"` + strings.Repeat("a", 2<<20) + `","recipient":"bob","amount":1}`
	for _, path := range []string{"/transactions/new", "/nodes/register"} {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, path, strings.NewReader(huge)))
		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code, path)
	}
	assert.Zero(t, n.Ledger().PendingCount())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/transactions/new",
		strings.NewReader(`{"sender":"alice","recipient":"bob","amount":1}`)))
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestNodeID(t *testing.T) {
	a := startNode(t, "node-a")
	resp, body := do(t, http.MethodGet, a.url+"/node-id", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "node-a", body["node_id"])
}

func TestResolveAcrossNodes(t *testing.T) {
	a := startNode(t, "node-a")
	b := startNode(t, "node-b")

	for i := 0; i < 2; i++ {
		resp, _ := do(t, http.MethodGet, b.url+"/mine", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}
	require.Equal(t, 3, b.node.Ledger().Length())

	resp, _ := do(t, http.MethodPost, a.url+"/nodes/register", map[string]any{"nodes": []string{b.url}})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, body := do(t, http.MethodGet, a.url+"/nodes/resolve", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Our chain was replaced", body["message"])
	assert.Equal(t, true, body["replaced"])

	chainA, err := a.node.Ledger().Chain()
	require.NoError(t, err)
	chainB, err := b.node.Ledger().Chain()
	require.NoError(t, err)
	assert.Equal(t, chainB, chainA)
	assert.True(t, validator.New(testutil.NewPoW(t, 2)).ValidChain(chainA))

	// Second round: equal length, nothing changes.
	resp, body = do(t, http.MethodGet, a.url+"/nodes/resolve", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Our chain is authoritative", body["message"])
}
