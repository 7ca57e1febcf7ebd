package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matzehuels/flowlines/pkg/config"
	"github.com/matzehuels/flowlines/pkg/flow"
)

// configCommand creates the configuration command.
func (c *CLI) configCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and validate configuration files",
	}

	cmd.AddCommand(c.configDefaultCommand())
	cmd.AddCommand(c.configValidateCommand())

	return cmd
}

// configDefaultCommand creates the "config default" subcommand.
func (c *CLI) configDefaultCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "default",
		Short: "Print the built-in configuration as TOML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return config.Default().Encode(cmd.OutOrStdout())
		},
	}
}

// configValidateCommand creates the "config validate" subcommand.
func (c *CLI) configValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [file]",
		Short: "Check a configuration file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(args[0])
			if err != nil {
				printError("%s is invalid", args[0])
				return err
			}

			printSuccess("%s is valid", args[0])
			for _, r := range flow.AllRoutes {
				printRoute(r, routeOf(cfg, r))
			}
			printKeyValue("tension", fmt.Sprintf("%g", cfg.Tension))
			printKeyValue("markers", fmt.Sprintf("%d per branch", cfg.Markers.PerBranch))
			printKeyValue("frame", cfg.Frame.Interval.String())
			return nil
		},
	}
}

func routeOf(cfg *config.Config, r flow.Route) config.Route {
	switch r {
	case flow.Left:
		return cfg.Routes.Left
	case flow.Right:
		return cfg.Routes.Right
	default:
		return cfg.Routes.Spine
	}
}
