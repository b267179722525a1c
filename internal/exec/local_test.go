package exec

import (
	"context"
	"testing"
	"time"

	"github.com/atlas-iot/aurora/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalRunner_CapturesStdout(t *testing.T) {
	res, err := NewLocalRunner().Run(context.Background(), "echo", "hello")

	require.NoError(t, err)
	assert.True(t, res.OK())
	assert.Equal(t, "hello\n", string(res.Stdout))
	assert.Empty(t, res.Stderr)
}

func TestLocalRunner_NonZeroExitIsNotAnError(t *testing.T) {
	res, err := NewLocalRunner().Run(context.Background(), "sh", "-c", "echo oops >&2; exit 42")

	require.NoError(t, err)
	assert.Equal(t, 42, res.ExitCode)
	assert.Equal(t, "oops\n", string(res.Stderr))
	assert.False(t, res.OK())
}

func TestLocalRunner_MissingProgram(t *testing.T) {
	res, err := NewLocalRunner().Run(context.Background(), "aurora-definitely-not-installed")

	require.Error(t, err)
	assert.Equal(t, -1, res.ExitCode)
	assert.True(t, IsNotFound(err))
	assert.True(t, errors.IsCode(err, errors.ErrExec))
	assert.Contains(t, err.Error(), "termux-api")
}

func TestLocalRunner_Timeout(t *testing.T) {
	start := time.Now()
	res, err := RunWithTimeout(context.Background(), NewLocalRunner(), 100*time.Millisecond, "sleep", "5")

	require.Error(t, err)
	assert.Less(t, time.Since(start), 3*time.Second)
	assert.Equal(t, -1, res.ExitCode)
	assert.True(t, errors.IsCode(err, errors.ErrExec))
	assert.Contains(t, err.Error(), "timed out")
	assert.False(t, IsNotFound(err))
}

func TestLocalRunner_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewLocalRunner().Run(ctx, "sleep", "5")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cancelled")
}
