package utils_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liftedinit/powledger/internal/utils"
)

func init() {
	utils.RetryBaseDelay = time.Millisecond
}

func TestRetry(t *testing.T) {
	calls := 0
	got, err := utils.Retry(context.Background(), "flaky", 3, func(context.Context) (int, error) {
		calls++
		if calls < 3 {
			return 0, errors.New("unavailable")
		}
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, got)
	assert.Equal(t, 3, calls)
}

func TestRetryExhausted(t *testing.T) {
	calls := 0
	_, err := utils.Retry(context.Background(), "broken", 2, func(context.Context) (string, error) {
		calls++
		return "", errors.New("unavailable")
	})
	assert.ErrorContains(t, err, "failed after 2 retries: unavailable")
	assert.Equal(t, 2, calls)
}

func TestRetryZeroAttempts(t *testing.T) {
	_, err := utils.Retry(context.Background(), "none", 0, func(context.Context) (int, error) {
		return 1, nil
	})
	assert.Error(t, err)
}

func TestRetryContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	_, err := utils.Retry(ctx, "cancelled", 5, func(context.Context) (int, error) {
		calls++
		cancel()
		return 0, errors.New("unavailable")
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestSetupOutputDirectories(t *testing.T) {
	out := filepath.Join(t.TempDir(), "out")
	require.NoError(t, utils.SetupOutputDirectories(out, "block", "txs"))
	assert.DirExists(t, filepath.Join(out, "block"))
	assert.DirExists(t, filepath.Join(out, "txs"))

	// Empty existing directories are reused.
	empty := t.TempDir()
	require.NoError(t, utils.SetupOutputDirectories(empty))

	require.NoError(t, os.WriteFile(filepath.Join(empty, "f"), nil, 0644))
	assert.Error(t, utils.SetupOutputDirectories(empty))
}
