package actions

import (
	"context"
	"strconv"
	"time"

	"github.com/atlas-iot/aurora/internal/exec"
)

// Action names handled by the Termux:API tools.
const (
	Vibrate      = "vibrate"
	Notification = "notification"
)

const (
	defaultVibrateMillis = 500
	defaultNotifyTitle   = "Aurora"
	defaultNotifyText    = "Notifica"
)

// RegisterTermux adds the vibrate and notification actions, run through
// runner with the Termux:API command-line tools.
//
//	{"action":"vibrate","duration_ms":800}
//	{"action":"notification","title":"Hi","text":"Door opened"}
func RegisterTermux(r *Registry, runner exec.Runner) {
	r.Register(Vibrate, Handler{
		Timeout: 2 * time.Second,
		Run: func(ctx context.Context, p Params) error {
			ms, err := p.Int("duration_ms", defaultVibrateMillis)
			if err != nil {
				return err
			}
			if ms <= 0 {
				ms = defaultVibrateMillis
			}
			return runTool(ctx, runner, "termux-vibrate", "-d", strconv.Itoa(ms))
		},
	})

	r.Register(Notification, Handler{
		Timeout: 3 * time.Second,
		Run: func(ctx context.Context, p Params) error {
			return runTool(ctx, runner, "termux-notification",
				"--title", p.String("title", defaultNotifyTitle),
				"--content", p.String("text", defaultNotifyText))
		},
	})
}

func runTool(ctx context.Context, runner exec.Runner, name string, args ...string) error {
	res, err := runner.Run(ctx, name, args...)
	if err != nil {
		return err
	}
	return exec.Check(name, res)
}
