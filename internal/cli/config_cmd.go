package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newConfigCmd(ctx *context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Work with hatchd configuration files",
	}
	cmd.AddCommand(newConfigCheckCmd(ctx))
	return cmd
}

func newConfigCheckCmd(ctx *context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Validate a hatchd configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.loadConfig()
			if err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), err)
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "launcher: %s\n", cfg.EffectiveLauncher())
			fmt.Fprintf(out, "keystore: %s\n", describeProcess(cfg.Keystore.Binary, cfg.Keystore.Image))
			fmt.Fprintf(out, "runtime: %s\n", describeProcess(cfg.Runtime.Binary, cfg.Runtime.Image))
			fmt.Fprintf(out, "startup timeout: %s\n", cfg.EffectiveStartupTimeout())
			fmt.Fprintf(out, "shutdown timeout: %s\n", cfg.EffectiveShutdownTimeout())
			return nil
		},
	}
	return cmd
}

func describeProcess(binary, image string) string {
	if binary != "" {
		return binary
	}
	return "image " + image
}
