package cli

import (
	stdcontext "context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mlegge/hatchd/internal/config"
	"github.com/mlegge/hatchd/internal/events"
	"github.com/mlegge/hatchd/internal/supervisor"
	"github.com/mlegge/hatchd/internal/tui"
)

func newTuiCmd(ctx *context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tui",
		Short: "Launch the interactive session view",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !isTerminal(cmd.OutOrStdout()) {
				return fmt.Errorf("tui requires an interactive terminal")
			}

			cfg, err := ctx.loadConfig()
			if err != nil {
				return err
			}
			launcher, err := ctx.launcherFor(cfg)
			if err != nil {
				return err
			}
			session := supervisor.NewSession(cfg, launcher)
			return runSessionTUI(cmd, cfg, session, tui.New())
		},
	}

	return cmd
}

func runSessionTUI(cmd *cobra.Command, cfg *config.Config, session *supervisor.Session, ui *tui.UI) error {
	ctx, cancel := stdcontext.WithCancel(cmd.Context())
	defer cancel()

	sink := ui.EventSink()
	unsubscribe := session.Events().Subscribe(func(evt events.Event) {
		// The UI lags behind under load rather than stalling the session.
		select {
		case sink <- evt:
		default:
		}
	})
	defer unsubscribe()

	if err := session.Start(ctx); err != nil {
		ui.Stop()
		return err
	}

	startupErr := make(chan error, 1)
	go func() {
		_, err := session.WaitReady(ctx)
		if err != nil && !errors.Is(err, stdcontext.Canceled) {
			startupErr <- err
			ui.Stop()
			return
		}
		startupErr <- nil
	}()

	runErr := ui.Run(ctx)
	ui.CloseEvents()
	cancel()

	shutdownErr := shutdownSession(cfg, session, cmd.ErrOrStderr())

	select {
	case err := <-startupErr:
		if err != nil {
			return errors.Join(err, shutdownErr)
		}
	default:
	}
	if runErr != nil {
		return errors.Join(runErr, shutdownErr)
	}
	return shutdownErr
}
