package output

import (
	"bufio"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/pkg/errors"

	"github.com/liftedinit/powledger/internal/models"
	"github.com/liftedinit/powledger/internal/utils"
)

type TSVOutputHandler struct {
	blockFile   *os.File
	txFile      *os.File
	blockWriter *bufio.Writer
	txWriter    *bufio.Writer
}

const (
	blocksTSV = "blocks.tsv"
	txsTSV    = "transactions.tsv"
)

var (
	blocksHeader = []string{"index", "hash", "previous_hash", "proof", "timestamp", "transactions"}
	txsHeader    = []string{"block", "position", "sender", "recipient", "amount"}
)

func NewTSVOutputHandler(outDir string) (*TSVOutputHandler, error) {
	if err := utils.SetupOutputDirectories(outDir); err != nil {
		return nil, err
	}

	blockFile, err := os.Create(filepath.Join(outDir, blocksTSV))
	if err != nil {
		return nil, errors.WithMessage(err, "failed to create blocks TSV file")
	}

	txFile, err := os.Create(filepath.Join(outDir, txsTSV))
	if err != nil {
		blockFile.Close()
		return nil, errors.WithMessage(err, "failed to create transactions TSV file")
	}

	h := &TSVOutputHandler{
		blockFile:   blockFile,
		txFile:      txFile,
		blockWriter: bufio.NewWriter(blockFile),
		txWriter:    bufio.NewWriter(txFile),
	}
	if err := writeRow(h.blockWriter, blocksHeader...); err != nil {
		return nil, errors.WithMessage(err, "failed to write blocks header")
	}
	if err := writeRow(h.txWriter, txsHeader...); err != nil {
		return nil, errors.WithMessage(err, "failed to write transactions header")
	}
	return h, nil
}

func (h *TSVOutputHandler) WriteBlock(ctx context.Context, block models.Block, hash string) error {
	index := strconv.Itoa(block.Index)
	err := writeRow(h.blockWriter,
		index,
		hash,
		block.PreviousHash,
		strconv.FormatUint(block.Proof, 10),
		strconv.FormatFloat(block.Timestamp, 'f', -1, 64),
		strconv.Itoa(len(block.Transactions)),
	)
	if err != nil {
		return errors.WithMessagef(err, "failed to write block %d", block.Index)
	}

	for i, tx := range block.Transactions {
		err := writeRow(h.txWriter, index, strconv.Itoa(i), tx.Sender, tx.Recipient, strconv.FormatInt(tx.Amount, 10))
		if err != nil {
			return errors.WithMessagef(err, "failed to write transaction %d of block %d", i, block.Index)
		}
	}
	return nil
}

func (h *TSVOutputHandler) Close() error {
	slog.Debug("Flushing TSV output")
	if err := h.blockWriter.Flush(); err != nil {
		return err
	}
	if err := h.txWriter.Flush(); err != nil {
		return err
	}
	if err := h.blockFile.Close(); err != nil {
		return err
	}
	if err := h.txFile.Close(); err != nil {
		return err
	}
	return nil
}

// writeRow writes tab separated fields. Tabs and newlines inside fields are
// replaced by spaces.
func writeRow(w *bufio.Writer, fields ...string) error {
	for i, field := range fields {
		if i > 0 {
			if err := w.WriteByte('\t'); err != nil {
				return err
			}
		}
		if _, err := w.WriteString(sanitize(field)); err != nil {
			return err
		}
	}
	return w.WriteByte('\n')
}

func sanitize(field string) string {
	out := []byte(field)
	for i, c := range out {
		if c == '\t' || c == '\n' || c == '\r' {
			out[i] = ' '
		}
	}
	return string(out)
}

