package client

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"

	"github.com/liftedinit/powledger/internal/models"
)

// NodeIDHeader identifies the calling node on peer requests.
const NodeIDHeader = "Node-Id"

var ErrMalformedSnapshot = errors.New("malformed chain snapshot")

// PeerClient talks to the HTTP API of other nodes.
type PeerClient struct {
	http *resty.Client
}

// NewPeerClient returns a client whose requests time out after timeout.
// A zero timeout disables the client side timeout; callers then rely on ctx.
func NewPeerClient(timeout time.Duration, nodeID string) *PeerClient {
	c := resty.New().
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")
	if nodeID != "" {
		c.SetHeader(NodeIDHeader, nodeID)
	}
	return &PeerClient{http: c}
}

// FetchChain retrieves the full chain reported by peer.
// Non-200 statuses and payloads whose length disagrees with the chain are errors.
func (c *PeerClient) FetchChain(ctx context.Context, peer string) (models.ChainSnapshot, error) {
	resp, err := c.http.R().SetContext(ctx).Get(peerURL(peer, "/chain"))
	if err != nil {
		return models.ChainSnapshot{}, errors.WithMessage(err, "failed to query peer chain")
	}
	if resp.StatusCode() != http.StatusOK {
		return models.ChainSnapshot{}, errors.Errorf("peer returned status %d", resp.StatusCode())
	}

	var snapshot models.ChainSnapshot
	if err := json.Unmarshal(resp.Body(), &snapshot); err != nil {
		return models.ChainSnapshot{}, errors.WithMessage(ErrMalformedSnapshot, err.Error())
	}
	if snapshot.Length != len(snapshot.Chain) {
		return models.ChainSnapshot{}, errors.WithMessagef(ErrMalformedSnapshot, "reported length %d, got %d blocks", snapshot.Length, len(snapshot.Chain))
	}
	return snapshot, nil
}

// TriggerResolve asks peer to run a resolution round.
func (c *PeerClient) TriggerResolve(ctx context.Context, peer string) error {
	resp, err := c.http.R().SetContext(ctx).Get(peerURL(peer, "/nodes/resolve"))
	if err != nil {
		return errors.WithMessage(err, "failed to trigger peer resolution")
	}
	if resp.IsError() {
		return errors.Errorf("peer returned status %d", resp.StatusCode())
	}
	return nil
}

func peerURL(peer, path string) string {
	return "http://" + peer + path
}
