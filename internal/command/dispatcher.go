package command

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/atlas-iot/aurora/internal/actions"
	"github.com/atlas-iot/aurora/internal/errors"
	"github.com/atlas-iot/aurora/internal/logger"
	"golang.org/x/sync/semaphore"
)

// Defaults used when the dispatcher is built with zero values.
const (
	DefaultWorkers = 4
	DefaultTimeout = 5 * time.Second
)

// Dispatcher runs recognized commands on detached goroutines so the caller
// (the broker's receive path) never waits on an action.
//
// At most Workers actions run at once. A command arriving while every slot
// is busy is dropped with a warning rather than queued.
type Dispatcher struct {
	executor actions.Executor
	sem      *semaphore.Weighted
	workers  int64
	timeout  time.Duration
	log      logger.Logger
}

// NewDispatcher creates a dispatcher over executor. workers <= 0 and
// timeout <= 0 select the defaults; a nil log discards output.
func NewDispatcher(executor actions.Executor, workers int, timeout time.Duration, log logger.Logger) *Dispatcher {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if log == nil {
		log = logger.Noop()
	}
	return &Dispatcher{
		executor: executor,
		sem:      semaphore.NewWeighted(int64(workers)),
		workers:  int64(workers),
		timeout:  timeout,
		log:      log,
	}
}

// suggester is implemented by executors that can hint at near-miss action
// names.
type suggester interface {
	Suggest(action string) string
}

// Dispatch parses payload and starts the action in the background. It
// returns as soon as the action is scheduled or rejected. Problems are logged,
// never returned.
func (d *Dispatcher) Dispatch(payload []byte) {
	cmd, err := Parse(payload)
	if err != nil {
		d.log.Error("%s", errors.Summary(err))
		return
	}

	if !d.executor.Known(cmd.Action) {
		if s, ok := d.executor.(suggester); ok {
			d.log.Warn("ignoring unknown action %q. %s", cmd.Action, s.Suggest(cmd.Action))
		} else {
			d.log.Warn("ignoring unknown action %q", cmd.Action)
		}
		return
	}

	if !d.sem.TryAcquire(1) {
		d.log.Warn("dropping %q: %d actions already running", cmd.Action, d.workers)
		return
	}

	d.log.Debug("starting %q", cmd.Action)
	go d.run(cmd)
}

// run holds a worker slot until the action returns or its deadline passes.
// An action that outlives its deadline is abandoned and its slot freed.
func (d *Dispatcher) run(cmd Command) {
	defer d.sem.Release(1)

	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	start := time.Now()
	done := make(chan error, 1)
	go func() { done <- d.execute(ctx, cmd) }()

	var err error
	select {
	case err = <-done:
	case <-ctx.Done():
		err = ctx.Err()
	}
	elapsed := time.Since(start).Round(time.Millisecond)

	if err != nil {
		if stderrors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
			d.log.Error("action %q timed out after %s", cmd.Action, elapsed)
			return
		}
		d.log.Error("action %q failed after %s: %s", cmd.Action, elapsed, errors.Summary(err))
		return
	}
	d.log.Info("action %q done in %s", cmd.Action, elapsed)
}

// execute contains panics from an action so one bad handler can't take the
// agent down.
func (d *Dispatcher) execute(ctx context.Context, cmd Command) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return d.executor.Execute(ctx, cmd.Action, cmd.Params)
}

// Wait blocks until no action is running or ctx ends.
func (d *Dispatcher) Wait(ctx context.Context) error {
	if err := d.sem.Acquire(ctx, d.workers); err != nil {
		return err
	}
	d.sem.Release(d.workers)
	return nil
}
