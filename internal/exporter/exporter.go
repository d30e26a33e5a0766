package exporter

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/liftedinit/powledger/internal/hasher"
	"github.com/liftedinit/powledger/internal/models"
	"github.com/liftedinit/powledger/internal/output"
)

// ExportTSV converts a JSON dump found in inputDir into TSV files written to
// outputDir. Blocks are exported in index order. It returns the number of
// blocks exported.
func ExportTSV(ctx context.Context, inputDir, outputDir string) (n int, err error) {
	blocks, err := readBlocks(filepath.Join(inputDir, "block"))
	if err != nil {
		return 0, err
	}

	outputHandler, err := output.NewTSVOutputHandler(outputDir)
	if err != nil {
		return 0, fmt.Errorf("failed to create TSV output handler: %w", err)
	}
	defer func() {
		if cerr := outputHandler.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close TSV output: %w", cerr)
		}
	}()

	for _, block := range blocks {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		hash, err := hasher.Hash(block)
		if err != nil {
			return n, fmt.Errorf("failed to hash block %d: %w", block.Index, err)
		}
		if err := outputHandler.WriteBlock(ctx, block, hash); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

func readBlocks(blocksDir string) ([]models.Block, error) {
	entries, err := os.ReadDir(blocksDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read blocks directory: %w", err)
	}

	var blocks []models.Block
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, "block_") || !strings.HasSuffix(name, ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(blocksDir, name))
		if err != nil {
			return nil, fmt.Errorf("failed to read block file '%s': %w", name, err)
		}

		var block models.Block
		if err := json.Unmarshal(data, &block); err != nil {
			return nil, fmt.Errorf("failed to parse block file '%s': %w", name, err)
		}
		blocks = append(blocks, block)
	}

	slices.SortFunc(blocks, func(a, b models.Block) int {
		return a.Index - b.Index
	})
	return blocks, nil
}
