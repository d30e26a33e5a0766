package output

import (
	"context"

	"github.com/liftedinit/powledger/internal/models"
)

// OutputHandler receives the blocks of a chain snapshot, in order.
type OutputHandler interface {
	WriteBlock(ctx context.Context, block models.Block, hash string) error
	Close() error
}
