package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/liftedinit/powledger/internal/pow"
)

type DumpConfig struct {
	Output     string
	MaxRetries uint
	Timeout    time.Duration
	SkipVerify bool
	Difficulty int
}

func (c DumpConfig) Validate() error {
	if c.Output == "" {
		return fmt.Errorf("missing output directory")
	}
	if c.MaxRetries == 0 {
		return fmt.Errorf("max retries must be at least 1")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if !c.SkipVerify && (c.Difficulty < 1 || c.Difficulty > pow.MaxDifficulty) {
		return fmt.Errorf("difficulty must be between 1 and %d, got %d", pow.MaxDifficulty, c.Difficulty)
	}
	return nil
}

func LoadDumpConfigFromCLI() DumpConfig {
	return DumpConfig{
		Output:     viper.GetString("out"),
		MaxRetries: viper.GetUint("max-retries"),
		Timeout:    viper.GetDuration("timeout"),
		SkipVerify: viper.GetBool("skip-verify"),
		Difficulty: viper.GetInt("difficulty"),
	}
}
