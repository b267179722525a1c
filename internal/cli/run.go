package cli

import (
	"context"
	"time"

	"github.com/atlas-iot/aurora/internal/actions"
	"github.com/atlas-iot/aurora/internal/agent"
	"github.com/atlas-iot/aurora/internal/broker"
	"github.com/atlas-iot/aurora/internal/command"
	"github.com/atlas-iot/aurora/internal/config"
	"github.com/atlas-iot/aurora/internal/exec"
	"github.com/atlas-iot/aurora/internal/lock"
	"github.com/atlas-iot/aurora/internal/logger"
	"github.com/atlas-iot/aurora/internal/sensors"
	"github.com/spf13/cobra"
)

// shutdownTimeout bounds the goodbye to the broker on exit.
const shutdownTimeout = 5 * time.Second

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Connect to the broker and start publishing telemetry",
	Long: `Start the agent: resolve configuration, take the single-instance lock,
connect to the broker and publish a sample round every sensors.interval
seconds until interrupted.

Exit status:
  0  interrupted (Ctrl+C / SIGTERM)
  2  configuration error
  3  another aurora instance holds the lock
  4  no broker connection within mqtt.connect_timeout`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCommand(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}

// runCommand validates config and loads TLS material, then locks, then
// connects. Nothing touches the lock or the network before the config is
// known good.
func runCommand(ctx context.Context) error {
	cfg, path, err := loadConfig()
	if err != nil {
		return err
	}
	log := logger.NewEnvLogger("[agent]")
	if path != "" {
		log.Info("config %s", path)
	}

	id := agent.NewIdentity(cfg.DeviceID())
	opts, err := broker.OptionsFromConfig(cfg, id.ConnectionID)
	if err != nil {
		return err
	}

	lk, err := lock.Acquire(cfg.Lock.Path, "aurora run")
	if err != nil {
		return err
	}
	defer lk.Release()
	logger.NewEnvLogger("[lock]").Debug("holding %s", lk.Path)

	return runAgent(ctx, cfg, id, opts, log)
}

func runAgent(ctx context.Context, cfg *config.Config, id agent.Identity, opts broker.Options, log logger.Logger) error {
	mgr := broker.NewManager(opts, logger.NewEnvLogger("[broker]"))
	if err := mgr.Connect(); err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := mgr.Close(closeCtx); err != nil {
			log.Warn("%v", err)
		}
	}()

	if err := mgr.AwaitConnection(ctx, cfg.StartupTimeout()); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}

	runner := exec.NewLocalRunner()
	sampler := sensors.New(sensors.SettingsFromConfig(cfg),
		sensors.WithRunner(runner),
		sensors.WithLogger(logger.NewEnvLogger("[sensors]")))

	a := agent.New(cfg, id, sampler, mgr, log)
	registry := actions.NewRegistry()
	actions.RegisterTermux(registry, runner)
	a.RegisterActions(registry)
	dispatcher := command.NewDispatcher(registry, cfg.Commands.Workers, cfg.CommandTimeout(),
		logger.NewEnvLogger("[command]"))

	log.Info("connection id %s, actions: %v", id.ConnectionID, registry.Names())
	return a.Run(ctx, dispatcher)
}
