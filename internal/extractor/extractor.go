package extractor

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/schollz/progressbar/v3"

	"github.com/liftedinit/powledger/internal/hasher"
	"github.com/liftedinit/powledger/internal/models"
	"github.com/liftedinit/powledger/internal/output"
	"github.com/liftedinit/powledger/internal/utils"
	"github.com/liftedinit/powledger/internal/validator"
)

// SnapshotSource returns the chain held by a node.
type SnapshotSource interface {
	FetchChain(ctx context.Context, peer string) (models.ChainSnapshot, error)
}

type Options struct {
	MaxRetries uint
	// Validator checks the fetched chain before anything is written. Nil skips verification.
	Validator    *validator.ChainValidator
	ShowProgress bool
}

// Extract fetches the chain of the node at address and writes every block
// through outputHandler. It returns the number of blocks written.
func Extract(ctx context.Context, source SnapshotSource, address string, outputHandler output.OutputHandler, opts Options) (int, error) {
	slog.Info("Fetching chain", "node", address)
	snapshot, err := utils.Retry(ctx, "fetch chain", opts.MaxRetries, func(ctx context.Context) (models.ChainSnapshot, error) {
		return source.FetchChain(ctx, address)
	})
	if err != nil {
		return 0, fmt.Errorf("failed to fetch chain from %s: %w", address, err)
	}

	if opts.Validator != nil {
		if err := opts.Validator.Validate(snapshot.Chain); err != nil {
			return 0, fmt.Errorf("chain from %s is invalid: %w", address, err)
		}
		slog.Info("Chain verified", "length", snapshot.Length)
	}

	var bar *progressbar.ProgressBar
	if opts.ShowProgress && len(snapshot.Chain) > 1 {
		bar = progressbar.NewOptions(
			len(snapshot.Chain),
			progressbar.OptionClearOnFinish(),
			progressbar.OptionSetDescription("Writing blocks..."),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
			progressbar.OptionSetTheme(progressbar.Theme{
				Saucer:        "=",
				SaucerHead:    ">",
				SaucerPadding: " ",
				BarStart:      "[",
				BarEnd:        "]",
			}),
		)
		if err := bar.RenderBlank(); err != nil {
			return 0, fmt.Errorf("failed to render progress bar: %w", err)
		}
	}

	written, err := writeBlocks(ctx, snapshot.Chain, outputHandler, bar)
	if err != nil {
		return written, err
	}

	if bar != nil {
		if err := bar.Finish(); err != nil {
			return written, fmt.Errorf("failed to finish progress bar: %w", err)
		}
	}

	slog.Info("Chain extracted", "node", address, "blocks", written)
	return written, nil
}

func writeBlocks(ctx context.Context, chain []models.Block, outputHandler output.OutputHandler, bar *progressbar.ProgressBar) (int, error) {
	for i, block := range chain {
		if ctx.Err() != nil {
			slog.Info("Extraction cancelled by user")
			return i, ctx.Err()
		}

		hash, err := hasher.Hash(block)
		if err != nil {
			return i, fmt.Errorf("failed to hash block %d: %w", block.Index, err)
		}
		if err := outputHandler.WriteBlock(ctx, block, hash); err != nil {
			return i, fmt.Errorf("failed to write block %d: %w", block.Index, err)
		}

		if bar != nil {
			if err := bar.Add(1); err != nil {
				slog.Warn("Failed to update progress bar", "error", err)
			}
		}
	}
	return len(chain), nil
}
