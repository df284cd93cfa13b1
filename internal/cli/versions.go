package cli

import (
	stdcontext "context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

const versionProbeTimeout = 10 * time.Second

func newVersionsCmd(ctx *context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "versions",
		Short: "Report the versions of the supervised binaries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.loadConfig()
			if err != nil {
				return err
			}

			if cfg.EffectiveLauncher() != "process" {
				fmt.Fprintf(cmd.OutOrStdout(), "keystore: image %s\n", cfg.Keystore.Image)
				fmt.Fprintf(cmd.OutOrStdout(), "runtime: image %s\n", cfg.Runtime.Image)
				return nil
			}

			probes := []struct {
				name string
				path string
			}{
				{"keystore", cfg.Keystore.Binary},
				{"runtime", cfg.Runtime.Binary},
			}

			var failed bool
			for _, probe := range probes {
				version, err := binaryVersion(cmd.Context(), probe.path)
				if err != nil {
					failed = true
					fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", probe.name, err)
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", probe.name, version)
			}
			if failed {
				return fmt.Errorf("one or more version probes failed")
			}
			return nil
		},
	}

	return cmd
}

func binaryVersion(ctx stdcontext.Context, path string) (string, error) {
	ctx, cancel := stdcontext.WithTimeout(ctx, versionProbeTimeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, path, "--version").Output()
	if err != nil {
		return "", fmt.Errorf("probe %s: %w", path, err)
	}
	version := strings.TrimSpace(string(out))
	if version == "" {
		return "", fmt.Errorf("probe %s: empty version output", path)
	}
	return version, nil
}
