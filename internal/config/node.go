package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/liftedinit/powledger/internal/peers"
	"github.com/liftedinit/powledger/internal/pow"
)

type NodeConfig struct {
	Listen           string
	NodeID           string
	Difficulty       int
	Peers            []string
	PeerTimeout      time.Duration
	MaxConcurrency   int
	ResolveInterval  time.Duration
	EnablePrometheus bool
	PrometheusAddr   string
}

func (c NodeConfig) Validate() error {
	if c.Listen == "" {
		return fmt.Errorf("missing listen address")
	}
	if c.Difficulty < 1 || c.Difficulty > pow.MaxDifficulty {
		return fmt.Errorf("difficulty must be between 1 and %d, got %d", pow.MaxDifficulty, c.Difficulty)
	}
	if c.PeerTimeout <= 0 {
		return fmt.Errorf("peer timeout must be positive")
	}
	if c.MaxConcurrency <= 0 {
		return fmt.Errorf("max concurrency must be positive")
	}
	if c.ResolveInterval < 0 {
		return fmt.Errorf("resolve interval cannot be negative")
	}
	if c.EnablePrometheus && c.PrometheusAddr == "" {
		return fmt.Errorf("missing Prometheus address")
	}
	for _, peer := range c.Peers {
		if _, err := peers.Normalize(peer); err != nil {
			return fmt.Errorf("invalid peer %q: %w", peer, err)
		}
	}
	return nil
}

func LoadNodeConfigFromCLI() NodeConfig {
	return NodeConfig{
		Listen:           viper.GetString("listen"),
		NodeID:           viper.GetString("node-id"),
		Difficulty:       viper.GetInt("difficulty"),
		Peers:            viper.GetStringSlice("peers"),
		PeerTimeout:      viper.GetDuration("peer-timeout"),
		MaxConcurrency:   viper.GetInt("max-concurrency"),
		ResolveInterval:  viper.GetDuration("resolve-interval"),
		EnablePrometheus: viper.GetBool("enable-prometheus"),
		PrometheusAddr:   viper.GetString("prometheus-addr"),
	}
}
