package cli

import (
	"fmt"
	"io"

	"github.com/atlas-iot/aurora/internal/config"
	"github.com/atlas-iot/aurora/internal/errors"
	"github.com/atlas-iot/aurora/internal/ui"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the resolved configuration",
	Long: `Resolve configuration exactly as "aurora run" would (config file, .env,
then AURORA_* environment overrides) and print the result as YAML.
The password is masked.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return configShowCommand(cmd.OutOrStdout())
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	rootCmd.AddCommand(configCmd)
}

func configShowCommand(w io.Writer) error {
	cfg, path, err := loadConfig()
	if err != nil {
		return err
	}

	data, err := config.Marshal(cfg.Redacted())
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig, "Couldn't render config", "")
	}

	source := "environment only"
	if path != "" {
		source = path
	}
	fmt.Fprintln(w, ui.Muted("# source: "+source))
	_, err = w.Write(data)
	return err
}
