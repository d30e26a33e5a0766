package output

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/liftedinit/powledger/internal/hasher"
	"github.com/liftedinit/powledger/internal/models"
	"github.com/liftedinit/powledger/internal/utils"
)

const (
	blocksDir = "block"
	txsDir    = "txs"
)

type JSONOutputHandler struct {
	blockDir string
	txDir    string
}

func NewJSONOutputHandler(outDir string) (*JSONOutputHandler, error) {
	if err := utils.SetupOutputDirectories(outDir, blocksDir, txsDir); err != nil {
		return nil, err
	}

	return &JSONOutputHandler{
		blockDir: filepath.Join(outDir, blocksDir),
		txDir:    filepath.Join(outDir, txsDir),
	}, nil
}

// WriteBlock writes the canonical block encoding to block/block_<index>.json
// and each transaction to txs/tx_<index>_<position>.json.
func (h *JSONOutputHandler) WriteBlock(ctx context.Context, block models.Block, hash string) error {
	data, err := hasher.Canonical(block)
	if err != nil {
		return err
	}

	fileName := fmt.Sprintf("block_%010d.json", block.Index)
	if err := os.WriteFile(filepath.Join(h.blockDir, fileName), data, 0644); err != nil {
		return fmt.Errorf("failed to write block %d: %w", block.Index, err)
	}

	for i, tx := range block.Transactions {
		txData, err := json.Marshal(tx)
		if err != nil {
			return fmt.Errorf("failed to serialize transaction %d of block %d: %w", i, block.Index, err)
		}
		fileName := fmt.Sprintf("tx_%010d_%04d.json", block.Index, i)
		if err := os.WriteFile(filepath.Join(h.txDir, fileName), txData, 0644); err != nil {
			return fmt.Errorf("failed to write transaction %d of block %d: %w", i, block.Index, err)
		}
	}
	return nil
}

func (h *JSONOutputHandler) Close() error {
	// No resources to close for file output
	return nil
}
