package cli

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/atlas-iot/aurora/internal/config"
	"github.com/atlas-iot/aurora/internal/errors"
	"github.com/atlas-iot/aurora/internal/ui"
	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
)

// InitOptions holds options for the init command.
type InitOptions struct {
	Path           string // Where to write the config
	Overwrite      bool   // Overwrite existing config without asking
	NonInteractive bool   // Skip prompts, use flags only

	Broker   string
	Port     int
	ClientID string
	Username string
	Password string
	Interval int
}

var initOpts InitOptions

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create config.yaml",
	Long: `Create an aurora configuration file. Prompts for the broker and device
identity unless --non-interactive is given.

Examples:
  aurora init
  aurora init --force
  aurora init --non-interactive --broker mqtt.local --port 1883 --client-id phone-01`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return Init(initOpts, cmd.OutOrStdout())
	},
}

func init() {
	f := initCmd.Flags()
	f.StringVar(&initOpts.Path, "path", config.ConfigFileName, "file to write")
	f.BoolVar(&initOpts.Overwrite, "force", false, "overwrite an existing file")
	f.BoolVar(&initOpts.NonInteractive, "non-interactive", false, "don't prompt; take values from flags")
	f.StringVar(&initOpts.Broker, "broker", "", "broker host")
	f.IntVar(&initOpts.Port, "port", 1883, "broker port")
	f.StringVar(&initOpts.ClientID, "client-id", "", "device id (default: hostname)")
	f.StringVar(&initOpts.Username, "username", "", "broker username")
	f.StringVar(&initOpts.Password, "password", "", "broker password")
	f.IntVar(&initOpts.Interval, "interval", config.DefaultInterval, "seconds between sample rounds")
	rootCmd.AddCommand(initCmd)
}

// Init writes a new config file from opts, prompting for anything missing
// when interactive.
func Init(opts InitOptions, out io.Writer) error {
	if opts.Path == "" {
		opts.Path = config.ConfigFileName
	}
	path := config.ExpandTilde(opts.Path)

	if _, err := os.Stat(path); err == nil && !opts.Overwrite {
		if opts.NonInteractive {
			return errors.New(errors.ErrConfig,
				fmt.Sprintf("Config file already exists: %s", path),
				"Use --force to overwrite")
		}

		var overwrite bool
		form := huh.NewForm(
			huh.NewGroup(
				huh.NewConfirm().
					Title(fmt.Sprintf("%s already exists. Overwrite?", path)).
					Value(&overwrite),
			),
		)
		if err := form.Run(); err != nil {
			return errors.WrapWithCode(err, errors.ErrConfig,
				"Failed to get user input",
				"Try running with --force to overwrite")
		}
		if !overwrite {
			fmt.Fprintln(out, "Cancelled.")
			return nil
		}
	}

	if opts.ClientID == "" {
		if host, err := os.Hostname(); err == nil {
			opts.ClientID = host
		}
	}

	if !opts.NonInteractive {
		if err := promptInit(&opts); err != nil {
			return err
		}
	}

	cfg, err := buildInitConfig(opts)
	if err != nil {
		return err
	}
	if err := config.Write(path, cfg); err != nil {
		return err
	}

	ui.Success(out, "Wrote %s", path)
	fmt.Fprintf(out, "  telemetry: %s\n  commands:  %s\n", cfg.MQTT.Topics.Telemetry, cfg.MQTT.Topics.Commands)
	fmt.Fprintln(out, ui.Muted("  Start the agent with: aurora run"))
	return nil
}

func promptInit(opts *InitOptions) error {
	port := strconv.Itoa(opts.Port)
	interval := strconv.Itoa(opts.Interval)

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Broker host").
				Placeholder("mqtt.local").
				Value(&opts.Broker).
				Validate(required("broker host")),
			huh.NewInput().
				Title("Broker port").
				Value(&port).
				Validate(positiveInt("port")),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Device id").
				Description("Used in topic names, e.g. devices/<id>/telemetry").
				Value(&opts.ClientID).
				Validate(required("device id")),
			huh.NewInput().
				Title("Sample interval (seconds)").
				Value(&interval).
				Validate(positiveInt("interval")),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Username (optional)").
				Value(&opts.Username),
			huh.NewInput().
				Title("Password (optional)").
				EchoMode(huh.EchoModePassword).
				Value(&opts.Password),
		),
	)

	if err := form.Run(); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Failed to get user input",
			"Check terminal compatibility or use --non-interactive")
	}

	opts.Port, _ = strconv.Atoi(strings.TrimSpace(port))
	opts.Interval, _ = strconv.Atoi(strings.TrimSpace(interval))
	return nil
}

// buildInitConfig resolves opts the same way a config file would be, so
// defaults and validation match what run will see.
func buildInitConfig(opts InitOptions) (*config.Config, error) {
	mqtt := map[string]interface{}{
		"broker":    opts.Broker,
		"port":      opts.Port,
		"client_id": opts.ClientID,
	}
	if opts.Username != "" {
		mqtt["username"] = opts.Username
		mqtt["password"] = opts.Password
	}
	file := map[string]interface{}{
		"mqtt":    mqtt,
		"sensors": map[string]interface{}{"interval": opts.Interval},
	}
	return config.Resolve(file, map[string]string{})
}

func required(what string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", what)
		}
		return nil
	}
}

func positiveInt(what string) func(string) error {
	return func(s string) error {
		n, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil || n <= 0 {
			return fmt.Errorf("%s must be a positive number", what)
		}
		return nil
	}
}
