package utils

import (
	"fmt"
	"os"
	"path/filepath"
)

// SetupOutputDirectories creates out and the given subdirectories. It refuses
// to write into a directory that already holds files.
func SetupOutputDirectories(out string, subdirs ...string) error {
	entries, err := os.ReadDir(out)
	if err == nil && len(entries) > 0 {
		return fmt.Errorf("directory '%s' already exists and is not empty", out)
	}
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to inspect output directory: %w", err)
	}

	if err := os.MkdirAll(out, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	for _, dir := range subdirs {
		if err := os.MkdirAll(filepath.Join(out, dir), 0755); err != nil {
			return fmt.Errorf("failed to create %s directory: %w", dir, err)
		}
	}

	return nil
}
