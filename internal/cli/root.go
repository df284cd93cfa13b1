// Package cli wires the hatchd command tree.
package cli

import (
	stdcontext "context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mlegge/hatchd/internal/config"
	"github.com/mlegge/hatchd/internal/launch"
	"github.com/mlegge/hatchd/internal/launch/docker"
	"github.com/mlegge/hatchd/internal/launch/process"
)

func NewRootCmd() *cobra.Command {
	root, _ := newRootCommand()
	return root
}

func newRootCommand() (*cobra.Command, *context) {
	var configFile string

	root := &cobra.Command{
		Use:   "hatchd",
		Short: "Supervise a keystore and its dependent runtime process",
	}

	root.PersistentFlags().
		StringVarP(&configFile, "config", "c", "hatchd.yaml", "Path to the hatchd configuration file")

	ctx := &context{configFile: &configFile}
	root.AddCommand(newRunCmd(ctx))
	root.AddCommand(newTuiCmd(ctx))
	root.AddCommand(newVersionsCmd(ctx))
	root.AddCommand(newConfigCmd(ctx))

	root.SilenceUsage = true
	root.SilenceErrors = true

	return root, ctx
}

// Execute runs the CLI entrypoint.
func Execute() {
	ctx, stop := signal.NotifyContext(stdcontext.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := NewRootCmd()
	root.SetContext(ctx)

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type context struct {
	configFile *string

	mu       sync.Mutex
	registry launch.Registry
}

func (c *context) loadConfig() (*config.Config, error) {
	return config.Load(*c.configFile)
}

func (c *context) launcherFor(cfg *config.Config) (launch.Launcher, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.registry == nil {
		c.registry = launch.Registry{
			"process": process.New(),
			"docker":  docker.New(),
		}
	}
	name := cfg.EffectiveLauncher()
	launcher, ok := c.registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown launcher %q", name)
	}
	return launcher, nil
}

// setLauncher overrides a registry entry. Used by tests to inject fakes.
func (c *context) setLauncher(name string, launcher launch.Launcher) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.registry == nil {
		c.registry = launch.Registry{
			"process": process.New(),
			"docker":  docker.New(),
		}
	}
	c.registry = c.registry.Clone()
	c.registry[name] = launcher
}
