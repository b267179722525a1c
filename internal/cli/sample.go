package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/atlas-iot/aurora/internal/agent"
	"github.com/atlas-iot/aurora/internal/config"
	"github.com/atlas-iot/aurora/internal/errors"
	"github.com/atlas-iot/aurora/internal/logger"
	"github.com/atlas-iot/aurora/internal/sensors"
	"github.com/atlas-iot/aurora/internal/ui"
	"github.com/spf13/cobra"
)

var (
	sampleRounds int
	sampleWait   time.Duration
	sampleAll    bool
)

// newSampler builds the sampler used by sample and watch. Tests replace it.
var newSampler = func(cfg *config.Config) agent.Sampler {
	return sensors.New(sensors.SettingsFromConfig(cfg),
		sensors.WithLogger(logger.NewEnvLogger("[sensors]")))
}

var sampleCmd = &cobra.Command{
	Use:   "sample",
	Short: "Take local sample rounds and print the encoded lines",
	Long: `Sample the device metrics without connecting to a broker and print the
line protocol that "aurora run" would publish.

CPU usage needs a baseline, so two rounds are taken by default and only
the last is printed.

Examples:
  aurora sample
  aurora sample --rounds 5 --all
  aurora sample --wait 3s`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return sampleCommand(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr())
	},
}

func init() {
	sampleCmd.Flags().IntVar(&sampleRounds, "rounds", 2, "number of rounds to take")
	sampleCmd.Flags().DurationVar(&sampleWait, "wait", time.Second, "pause between rounds")
	sampleCmd.Flags().BoolVar(&sampleAll, "all", false, "print every round, not just the last")
	rootCmd.AddCommand(sampleCmd)
}

// localConfig resolves config for commands that never touch the broker. A
// missing or incomplete config falls back to defaults with a warning.
func localConfig(stderr io.Writer) *config.Config {
	cfg, _, err := loadConfig()
	if err == nil {
		return cfg
	}
	ui.Warning(stderr, "using default sensor settings (%s)", errors.Summary(err))
	return &config.Config{}
}

func sampleCommand(ctx context.Context, stdout, stderr io.Writer) error {
	if sampleRounds < 1 {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("--rounds must be at least 1, got %d", sampleRounds), "")
	}

	cfg := localConfig(stderr)
	sampler := newSampler(cfg)

	for i := 1; i <= sampleRounds; i++ {
		reading := sampler.Sample(ctx)
		round := agent.BuildRound(reading, int64(i))

		if sampleAll || i == sampleRounds {
			if sampleAll {
				fmt.Fprintln(stdout, ui.Muted(fmt.Sprintf("# round %d", i)))
			}
			printRound(stdout, stderr, round)
		}

		if i < sampleRounds {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(sampleWait):
			}
		}
	}
	return nil
}

func printRound(w, stderr io.Writer, round agent.Round) {
	if round.Battery != "" {
		fmt.Fprintln(w, round.Battery)
	}
	for _, line := range round.Telemetry {
		fmt.Fprintln(w, line)
	}
	if round.Battery == "" && len(round.Telemetry) == 0 {
		ui.Warning(stderr, "round #%d produced no metrics", round.Iteration)
	}
}
