package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/atlas-iot/aurora/internal/agent"
	"github.com/atlas-iot/aurora/internal/errors"
	"github.com/atlas-iot/aurora/internal/sensors"
	"github.com/atlas-iot/aurora/internal/ui"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

var watchInterval time.Duration

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Live view of local samples",
	Long: `Sample the device every interval and show the latest round with the
lines that would be published. Nothing is sent to the broker.

Examples:
  aurora watch
  aurora watch --interval 5s`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return watchCommand(cmd.Context())
	},
}

func init() {
	watchCmd.Flags().DurationVar(&watchInterval, "interval", 2*time.Second, "time between rounds")
	rootCmd.AddCommand(watchCmd)
}

func watchCommand(ctx context.Context) error {
	if !ui.IsTerminal(os.Stdout) {
		return errors.New(errors.ErrConfig,
			"watch needs an interactive terminal",
			"Use 'aurora sample --rounds N --all' for plain output")
	}
	if watchInterval <= 0 {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("--interval must be positive, got %s", watchInterval), "")
	}

	cfg := localConfig(os.Stderr)
	sampler := newSampler(cfg)
	title := "aurora"
	if id := cfg.DeviceID(); id != "" {
		title = "aurora · " + id
	}

	var round int64
	model := ui.NewWatchModel(ctx, title, watchInterval, func(ctx context.Context) ui.Snapshot {
		round++
		reading := sampler.Sample(ctx)
		return snapshotOf(reading, agent.BuildRound(reading, round))
	})

	if _, err := tea.NewProgram(model, tea.WithContext(ctx), tea.WithAltScreen()).Run(); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return errors.WrapWithCode(err, errors.ErrExec, "Watch view failed", "")
	}
	return nil
}

// snapshotOf turns a reading into watch view rows.
func snapshotOf(r sensors.Reading, round agent.Round) ui.Snapshot {
	snap := ui.Snapshot{
		Round: round.Iteration,
		Time:  r.Time,
		Lines: append([]string(nil), round.Telemetry...),
	}
	if round.Battery != "" {
		snap.Lines = append([]string{round.Battery}, snap.Lines...)
	}

	battery := ui.Metric{Name: "battery"}
	if r.Battery != nil && r.Battery.Percentage != nil {
		battery.Percent = r.Battery.Percentage
	}
	system := ui.Metric{Name: "uptime"}
	if r.Uptime != nil {
		system.Text = (time.Duration(*r.Uptime) * time.Second).String()
	}
	load := ui.Metric{Name: "load1"}
	if r.Load1 != nil {
		load.Text = fmt.Sprintf("%.2f", *r.Load1)
	}

	snap.Metrics = []ui.Metric{
		battery,
		{Name: "cpu", Percent: r.CPUActive},
		{Name: "memory", Percent: r.MemUsedPercent},
		{Name: "disk", Percent: r.DiskUsedPercent},
		system,
		load,
	}
	return snap
}
