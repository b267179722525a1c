// Package testing provides test doubles for the exec package.
package testing

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/atlas-iot/aurora/internal/errors"
	"github.com/atlas-iot/aurora/internal/exec"
)

// Response is one scripted outcome for a program.
type Response struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Err      error
	// Delay simulates a slow tool. The call ends early if ctx does.
	Delay time.Duration
}

// Call records one invocation.
type Call struct {
	Name string
	Args []string
}

// String renders the call as a command line.
func (c Call) String() string {
	return strings.TrimSpace(c.Name + " " + strings.Join(c.Args, " "))
}

// FakeRunner is a scripted exec.Runner. Responses for a program are consumed
// in order; the last one repeats. Programs without a script behave as if
// they were not installed (exit 127).
type FakeRunner struct {
	mu        sync.Mutex
	responses map[string][]Response
	calls     []Call
}

// NewFakeRunner creates a runner with no scripted programs.
func NewFakeRunner() *FakeRunner {
	return &FakeRunner{responses: make(map[string][]Response)}
}

// On scripts the responses for program name.
func (f *FakeRunner) On(name string, responses ...Response) *FakeRunner {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[name] = append(f.responses[name], responses...)
	return f
}

// OnOutput scripts a successful run printing stdout.
func (f *FakeRunner) OnOutput(name, stdout string) *FakeRunner {
	return f.On(name, Response{Stdout: stdout})
}

// Run implements exec.Runner.
func (f *FakeRunner) Run(ctx context.Context, name string, args ...string) (exec.Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, Call{Name: name, Args: append([]string(nil), args...)})
	queue, ok := f.responses[name]
	var resp Response
	if ok && len(queue) > 0 {
		resp = queue[0]
		if len(queue) > 1 {
			f.responses[name] = queue[1:]
		}
	} else {
		resp = Response{ExitCode: 127, Stderr: "sh: " + name + ": not found"}
	}
	f.mu.Unlock()

	if resp.Delay > 0 {
		timer := time.NewTimer(resp.Delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return exec.Result{ExitCode: -1}, errors.WrapWithCode(ctx.Err(), errors.ErrExec,
				"'"+name+"' timed out",
				"fake runner delay exceeded the context")
		}
	}

	res := exec.Result{
		Stdout:   []byte(resp.Stdout),
		Stderr:   []byte(resp.Stderr),
		ExitCode: resp.ExitCode,
		Duration: resp.Delay,
	}
	return res, resp.Err
}

// Calls returns a copy of every recorded invocation.
func (f *FakeRunner) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Call, len(f.calls))
	copy(out, f.calls)
	return out
}

// CallCount returns how many times name was invoked.
func (f *FakeRunner) CallCount(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c.Name == name {
			n++
		}
	}
	return n
}
