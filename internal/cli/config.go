package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/lagprobe/internal/config"
)

// ConfigOptions holds flags for the config command.
type ConfigOptions struct {
	*RootOptions
	ConfigPath string
}

// NewConfigCommand creates the config command.
func NewConfigCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ConfigOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Long: `Print the configuration a measurement would use: defaults merged with
the --config profile. The text output is a valid YAML profile.

Examples:
  lagprobe config > profile.yaml
  lagprobe config --config profile.cue --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfig(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.ConfigPath, "config", "", "configuration profile (.yaml or .cue)")

	return cmd
}

func runConfig(opts *ConfigOptions, cmd *cobra.Command) error {
	cfg, err := config.Load(opts.ConfigPath, config.File{})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load configuration", err)
	}

	if opts.Format == "json" {
		out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
		return out.Success(cfg.File())
	}

	data, err := yaml.Marshal(cfg.File())
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to encode configuration", err)
	}
	fmt.Fprint(cmd.OutOrStdout(), string(data))
	return nil
}
