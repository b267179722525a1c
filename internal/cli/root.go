// Package cli implements the aurora command-line interface.
//
// Commands are thin cobra wrappers around the internal packages:
//
//	aurora [run]        - connect to the broker and start the agent
//	aurora sample       - take local sample rounds and print the lines
//	aurora watch        - live view of local samples
//	aurora config show  - print the resolved configuration
//	aurora init         - create config.yaml
//	aurora version      - print version information
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/atlas-iot/aurora/internal/config"
	"github.com/atlas-iot/aurora/internal/errors"
	"github.com/atlas-iot/aurora/internal/logger"
	"github.com/atlas-iot/aurora/internal/ui"
	"github.com/spf13/cobra"
)

// Global flags
var (
	configFlag   string
	envFileFlag  string
	logLevelFlag string
)

var rootCmd = &cobra.Command{
	Use:   "aurora",
	Short: "MQTT device agent",
	Long: `aurora samples device metrics (battery, CPU, memory, disk, uptime),
publishes them to an MQTT broker in line protocol, and runs commands
received on the device's command topic.

Running aurora with no subcommand is the same as "aurora run".`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCommand(cmd.Context())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFlag, "config", "", "config file (default: ./config.yaml, then ~/.config/aurora/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&envFileFlag, "env-file", "", "dotenv file to load before resolving config")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "debug, info, warn or error (overrides logging.level)")
}

// Execute runs the root command and returns the process exit status.
func Execute() int {
	ctx, cancel := signalContext(context.Background())
	defer cancel()

	ui.Setup(os.Stdout)
	return execute(ctx, os.Args[1:], os.Stderr)
}

func execute(ctx context.Context, args []string, stderr io.Writer) int {
	if args == nil {
		args = []string{}
	}
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(ctx)
	if err == nil {
		return errors.ExitOK
	}
	fmt.Fprint(stderr, ui.RenderError(err))
	return errors.ExitCode(err)
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigChan:
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigChan)
	}()
	return ctx, cancel
}

// loadConfig loads the dotenv file, finds the config file and resolves it.
// The returned path is empty when configuration came from the environment
// alone.
func loadConfig() (*config.Config, string, error) {
	if _, err := config.LoadEnvFile(envFileFlag); err != nil {
		return nil, "", err
	}
	path, err := config.Find(configFlag)
	if err != nil {
		return nil, "", err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, path, err
	}
	if err := applyLogLevel(cfg); err != nil {
		return nil, path, err
	}
	return cfg, path, nil
}

// applyLogLevel sets the process-wide log threshold from --log-level or the
// config.
func applyLogLevel(cfg *config.Config) error {
	name := cfg.Logging.Level
	if logLevelFlag != "" {
		name = logLevelFlag
	}
	level, ok := logger.ParseLevel(name)
	if !ok {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("Unknown log level %q", name),
			"Use debug, info, warn or error")
	}
	cfg.Logging.Level = name
	logger.SetLevel(level)
	return nil
}
