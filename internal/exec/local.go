package exec

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"os/exec"
	"time"

	"github.com/atlas-iot/aurora/internal/errors"
)

// LocalRunner runs programs directly on this device, without a shell.
type LocalRunner struct {
	// WaitDelay bounds how long Run waits for output pipes after the process
	// is killed on timeout. Zero uses a short default.
	WaitDelay time.Duration
}

// NewLocalRunner returns a runner for local programs.
func NewLocalRunner() *LocalRunner {
	return &LocalRunner{}
}

// Run executes name with args and captures its output.
// Returns an ErrExec error when the program can't be started or ctx ends
// before it exits; a non-zero exit is reported through Result.ExitCode.
func (r *LocalRunner) Run(ctx context.Context, name string, args ...string) (Result, error) {
	var stdout, stderr bytes.Buffer

	command := exec.CommandContext(ctx, name, args...)
	command.Stdout = &stdout
	command.Stderr = &stderr
	command.WaitDelay = r.WaitDelay
	if command.WaitDelay == 0 {
		command.WaitDelay = 500 * time.Millisecond
	}

	start := time.Now()
	runErr := command.Run()
	res := Result{
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		Duration: time.Since(start),
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		res.ExitCode = -1
		if stderrors.Is(ctxErr, context.DeadlineExceeded) {
			return res, errors.WrapWithCode(ctxErr, errors.ErrExec,
				fmt.Sprintf("'%s' timed out after %s", name, res.Duration.Round(time.Millisecond)),
				"The tool may be waiting on a permission prompt on the device")
		}
		return res, errors.WrapWithCode(ctxErr, errors.ErrExec,
			fmt.Sprintf("'%s' was cancelled", name),
			"The agent is shutting down")
	}

	if runErr != nil {
		var exitErr *exec.ExitError
		if stderrors.As(runErr, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
			return res, nil
		}
		res.ExitCode = -1
		if stderrors.Is(runErr, exec.ErrNotFound) {
			return res, notFoundError(name)
		}
		return res, errors.WrapWithCode(runErr, errors.ErrExec,
			fmt.Sprintf("Couldn't run '%s'", name),
			"Make sure the command exists and is executable.")
	}

	return res, nil
}
