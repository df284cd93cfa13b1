package cli

import (
	stdcontext "context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/mlegge/hatchd/internal/api"
	httpapi "github.com/mlegge/hatchd/internal/api/http"
	"github.com/mlegge/hatchd/internal/cliutil"
	"github.com/mlegge/hatchd/internal/config"
	"github.com/mlegge/hatchd/internal/events"
	"github.com/mlegge/hatchd/internal/supervisor"
)

func newRunCmd(ctx *context) *cobra.Command {
	var forceJSON bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Launch the keystore and runtime and supervise them to exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.loadConfig()
			if err != nil {
				return err
			}
			launcher, err := ctx.launcherFor(cfg)
			if err != nil {
				return err
			}
			session := supervisor.NewSession(cfg, launcher)
			return runSession(cmd, cfg, session, forceJSON)
		},
	}

	cmd.Flags().BoolVar(&forceJSON, "json", false, "Emit events as JSON lines even on a terminal")

	return cmd
}

func runSession(cmd *cobra.Command, cfg *config.Config, session *supervisor.Session, forceJSON bool) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	errOut := cmd.ErrOrStderr()

	human := !forceJSON && isTerminal(out)
	var enc *json.Encoder
	if !human {
		enc = json.NewEncoder(out)
	}

	tracker := api.NewTracker(session.ID())
	runtimeExited := make(chan struct{})
	var exitOnce sync.Once

	unsubscribe := session.Events().Subscribe(func(evt events.Event) {
		tracker.Apply(evt)
		if human {
			fmt.Fprintln(out, cliutil.FormatEvent(evt))
		} else {
			cliutil.EncodeEvent(enc, errOut, evt)
		}
		if evt.Type == events.EventTypeRuntimeExited {
			exitOnce.Do(func() { close(runtimeExited) })
		}
	})
	defer unsubscribe()

	serverErr := make(chan error, 1)
	if cfg.StatusAddr != "" {
		srv, err := httpapi.NewServer(httpapi.Config{Addr: cfg.StatusAddr, Controller: tracker})
		if err != nil {
			return fmt.Errorf("status server: %w", err)
		}
		go func() { serverErr <- srv.Run(ctx) }()
	}

	if err := session.Start(ctx); err != nil {
		return err
	}

	ready, err := session.WaitReady(ctx)
	if err != nil {
		return errors.Join(err, shutdownSession(cfg, session, errOut))
	}
	if human {
		fmt.Fprintf(out, "session %s ready, app port %s\n", session.ID(), ready.Port)
	}

	select {
	case <-ctx.Done():
	case <-runtimeExited:
	case err := <-serverErr:
		if err != nil {
			fmt.Fprintf(errOut, "status server: %v\n", err)
		}
	}

	return shutdownSession(cfg, session, errOut)
}

// shutdownSession bounds the termination protocol slightly beyond the
// configured budget so the coordinator, not the context, decides the outcome.
func shutdownSession(cfg *config.Config, session *supervisor.Session, errOut io.Writer) error {
	ctx, cancel := stdcontext.WithTimeout(stdcontext.Background(), cfg.EffectiveShutdownTimeout()+time.Second)
	defer cancel()

	err := session.Shutdown(ctx)
	if errors.Is(err, supervisor.ErrShutdownTimeout) {
		fmt.Fprintln(errOut, "warning: shutdown budget exceeded, child processes may linger")
		return nil
	}
	return err
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}
