package peers

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"slices"
	"strings"
	"sync"
)

var ErrInvalidAddress = errors.New("invalid peer address")

// Registry is the set of known peers, keyed by host:port.
type Registry struct {
	mu    sync.RWMutex
	self  string
	peers map[string]struct{}
}

// NewRegistry returns an empty registry. Registering self is a no-op;
// self may be empty. Loopback and unspecified hosts on the port of self
// are treated as self.
func NewRegistry(self string) *Registry {
	r := &Registry{peers: make(map[string]struct{})}
	if normalized, err := Normalize(self); err == nil {
		r.self = normalized
	}
	return r
}

// Register adds a peer. It reports whether the peer was not already known.
func (r *Registry) Register(address string) (bool, error) {
	added, err := r.RegisterAll([]string{address})
	if err != nil {
		return false, err
	}
	return len(added) > 0, nil
}

// RegisterAll adds every address, or none of them when one is invalid. It
// returns the peers that were not already known.
func (r *Registry) RegisterAll(addresses []string) ([]string, error) {
	normalized := make([]string, 0, len(addresses))
	for _, address := range addresses {
		peer, err := Normalize(address)
		if err != nil {
			return nil, err
		}
		normalized = append(normalized, peer)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var added []string
	for _, peer := range normalized {
		if r.isSelf(peer) {
			continue
		}
		if _, ok := r.peers[peer]; ok {
			continue
		}
		r.peers[peer] = struct{}{}
		added = append(added, peer)
	}
	return added, nil
}

// List returns the registered peers in sorted order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := make([]string, 0, len(r.peers))
	for peer := range r.peers {
		list = append(list, peer)
	}
	slices.Sort(list)
	return list
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.peers)
}

// Normalize reduces "http://host:port/path" or "host:port" to "host:port".
func Normalize(address string) (string, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return "", fmt.Errorf("%w: empty address", ErrInvalidAddress)
	}
	if !strings.Contains(address, "://") {
		address = "http://" + address
	}

	u, err := url.Parse(address)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidAddress, err)
	}
	if u.Hostname() == "" {
		return "", fmt.Errorf("%w: missing host in %q", ErrInvalidAddress, address)
	}
	return u.Host, nil
}

func (r *Registry) isSelf(peer string) bool {
	if r.self == "" {
		return false
	}
	if peer == r.self {
		return true
	}

	selfHost, selfPort, err := net.SplitHostPort(r.self)
	if err != nil {
		return false
	}
	host, port, err := net.SplitHostPort(peer)
	if err != nil || port != selfPort {
		return false
	}
	return isLocalHost(selfHost) && isLocalHost(host)
}

func isLocalHost(host string) bool {
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && (ip.IsLoopback() || ip.IsUnspecified())
}
