package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/liftedinit/powledger/internal/models"
	"github.com/liftedinit/powledger/internal/node"
)

const maxBodyBytes = 1 << 20

// Server exposes a node over HTTP.
type Server struct {
	node *node.Node
	ctx  context.Context
	http *http.Server
}

// New returns a server for n. Background work started by handlers, such as
// announcing mined blocks, is bound to ctx.
func New(ctx context.Context, addr string, n *node.Node) *Server {
	s := &Server{node: n, ctx: ctx}
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	return s
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /mine", s.mine)
	mux.HandleFunc("GET /chain", s.chain)
	mux.HandleFunc("POST /transactions/new", s.newTransaction)
	mux.HandleFunc("POST /nodes/register", s.registerNodes)
	mux.HandleFunc("GET /nodes/resolve", s.resolve)
	mux.HandleFunc("GET /nodes", s.listNodes)
	mux.HandleFunc("GET /node-id", s.nodeID)
	return mux
}

// ListenAndServe blocks until the server stops. A graceful shutdown is not an error.
func (s *Server) ListenAndServe() error {
	slog.Info("Node API listening", "address", s.http.Addr, "node", s.node.ID())
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("node API stopped: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

type transactionRequest struct {
	Sender    *string `json:"sender"`
	Recipient *string `json:"recipient"`
	Amount    *int64  `json:"amount"`
}

type registerRequest struct {
	Nodes []string `json:"nodes"`
}

type message struct {
	Message string `json:"message"`
}

type mineResponse struct {
	Message      string               `json:"message"`
	Index        int                  `json:"index"`
	Transactions []models.Transaction `json:"transactions"`
	Proof        uint64               `json:"proof"`
	PreviousHash string               `json:"previous_hash"`
}

type registerResponse struct {
	Message    string   `json:"message"`
	TotalNodes []string `json:"total_nodes"`
}

type resolveResponse struct {
	Message  string         `json:"message"`
	Replaced bool           `json:"replaced"`
	Chain    []models.Block `json:"chain"`
}

func (s *Server) mine(w http.ResponseWriter, r *http.Request) {
	block, err := s.node.Mine(r.Context())
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, node.ErrMiningAborted) {
			status = http.StatusConflict
		}
		writeError(w, status, err)
		return
	}

	go s.node.Announce(s.ctx)

	writeJSON(w, http.StatusOK, mineResponse{
		Message:      "New block forged",
		Index:        block.Index,
		Transactions: block.Transactions,
		Proof:        block.Proof,
		PreviousHash: block.PreviousHash,
	})
}

func (s *Server) chain(w http.ResponseWriter, r *http.Request) {
	chain, err := s.node.Ledger().Chain()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, models.ChainSnapshot{Chain: chain, Length: len(chain)})
}

func (s *Server) newTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, decodeStatus(err), fmt.Errorf("invalid transaction: %w", err))
		return
	}
	if req.Sender == nil || req.Recipient == nil || req.Amount == nil {
		writeError(w, http.StatusBadRequest, errors.New("missing values: sender, recipient and amount are required"))
		return
	}

	index, err := s.node.Ledger().NewTransaction(*req.Sender, *req.Recipient, *req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	slog.Debug("Transaction staged", "sender", *req.Sender, "recipient", *req.Recipient, "block", index)
	writeJSON(w, http.StatusCreated, message{Message: fmt.Sprintf("Transaction will be added to Block %d", index)})
}

func (s *Server) registerNodes(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, decodeStatus(err), fmt.Errorf("invalid node list: %w", err))
		return
	}
	if len(req.Nodes) == 0 {
		writeError(w, http.StatusBadRequest, errors.New("please supply a valid list of nodes"))
		return
	}

	added, err := s.node.Peers().RegisterAll(req.Nodes)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	for _, peer := range added {
		slog.Info("Registered peer", "address", peer)
	}

	writeJSON(w, http.StatusCreated, registerResponse{
		Message:    "New nodes have been added",
		TotalNodes: s.node.Peers().List(),
	})
}

func (s *Server) resolve(w http.ResponseWriter, r *http.Request) {
	replaced, err := s.node.Resolve(r.Context())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}

	chain, err := s.node.Ledger().Chain()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	resp := resolveResponse{Message: "Our chain is authoritative", Replaced: replaced, Chain: chain}
	if replaced {
		resp.Message = "Our chain was replaced"
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) listNodes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, registerResponse{Message: "Known nodes", TotalNodes: s.node.Peers().List()})
}

func (s *Server) nodeID(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"node_id": s.node.ID()})
}

// decodeJSON decodes a request body of at most maxBodyBytes into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	return json.NewDecoder(r.Body).Decode(v)
}

func decodeStatus(err error) int {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusBadRequest
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("Failed to write response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, message{Message: err.Error()})
}
