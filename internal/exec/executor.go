// Package exec runs the device's local helper tools (battery status,
// vibration, notifications, uptime/top fallbacks) with a bounded lifetime.
package exec

import (
	"context"
	stderrors "errors"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
	"time"

	"github.com/atlas-iot/aurora/internal/errors"
)

// Result is the captured outcome of one tool invocation.
type Result struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
	Duration time.Duration
}

// OK reports whether the tool exited zero.
func (r Result) OK() bool {
	return r.ExitCode == 0
}

// Runner runs an external program. Implementations must honor ctx: a
// cancelled or expired context ends the call with an ErrExec error.
//
// A non-zero exit is not an error; check Result.ExitCode or use Check.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (Result, error)
}

// RunWithTimeout runs name under a child context bounded by timeout.
// A timeout <= 0 means the parent context alone bounds the call.
func RunWithTimeout(ctx context.Context, r Runner, timeout time.Duration, name string, args ...string) (Result, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return r.Run(ctx, name, args...)
}

// commandNotFoundPatterns detect "command not found" output from shells and
// wrapper scripts. These require exit code 127.
var commandNotFoundPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)bash: (\S+): command not found`),
	regexp.MustCompile(`(?i)zsh: command not found: (\S+)`),
	regexp.MustCompile(`(?i)sh: \d+: (\S+): not found`),
	regexp.MustCompile(`(?i)(\S+): not found`),
	regexp.MustCompile(`(?i)(\S+): command not found`),
}

// IsCommandNotFound checks if the error output indicates a missing command.
// Returns the command name (if extractable) and whether it's a command-not-found error.
func IsCommandNotFound(stderr string, exitCode int) (string, bool) {
	if exitCode != 127 {
		return "", false
	}

	for _, pattern := range commandNotFoundPatterns {
		if matches := pattern.FindStringSubmatch(stderr); len(matches) > 1 {
			return strings.TrimSuffix(matches[1], ":"), true
		}
	}

	return "", true
}

// Check turns a finished invocation into an error when the tool did not
// exit cleanly. Missing tools get an install hint.
func Check(name string, res Result) error {
	if res.OK() {
		return nil
	}

	if missing, notFound := IsCommandNotFound(string(res.Stderr), res.ExitCode); notFound {
		if missing == "" {
			missing = name
		}
		return notFoundError(missing)
	}

	detail := strings.TrimSpace(string(res.Stderr))
	if detail == "" {
		detail = "no output on stderr"
	}
	return errors.New(errors.ErrExec,
		fmt.Sprintf("'%s' exited with code %d", name, res.ExitCode),
		detail)
}

func notFoundError(name string) error {
	suggestion := fmt.Sprintf(`'%s' wasn't found in PATH.

On Android the termux-* tools ship with the Termux:API package:
  pkg install termux-api

The matching Termux:API app must also be installed on the device.`, name)

	return errors.WrapWithCode(exec.ErrNotFound, errors.ErrExec,
		fmt.Sprintf("'%s' not found in PATH", name),
		suggestion)
}

// IsNotFound reports whether err came from a missing program.
func IsNotFound(err error) bool {
	return stderrors.Is(err, exec.ErrNotFound)
}
