package supervisor

import (
	"context"
	"time"

	"vawter.tech/stopper"

	"github.com/mlegge/hatchd/internal/events"
	"github.com/mlegge/hatchd/internal/launch"
)

// KillFailureFunc reports a non-fatal termination failure for one process
// tree. Failures never change the exit path; they are surfaced and the
// coordinator keeps going.
type KillFailureFunc func(proc events.Process, err error)

// Coordinator tears down the supervised process trees. For each present
// handle it issues a recursive tree kill plus a redundant direct kill of the
// root (covering the window where the root exited between spawn and kill),
// then waits for the trees to be reaped under a fixed wall-clock budget.
// Reaching the budget abandons the wait; it does not guarantee the trees
// are gone.
type Coordinator struct {
	budget    time.Duration
	onFailure KillFailureFunc
}

// NewCoordinator constructs a coordinator with the given wait budget.
func NewCoordinator(budget time.Duration, onFailure KillFailureFunc) *Coordinator {
	if budget <= 0 {
		budget = 5 * time.Second
	}
	return &Coordinator{budget: budget, onFailure: onFailure}
}

// Shutdown terminates both trees concurrently. Either handle may be nil
// (startup never produced it); with no handles at all it returns
// immediately. The trees' reaping is tracked as one stopper task per tree
// joined under the budget, so a tree that ignores termination cannot hold
// the caller past the bound: the coordinator returns ErrShutdownTimeout and
// moves on.
func (c *Coordinator) Shutdown(ctx context.Context, keystore, runtime launch.Handle) error {
	type tree struct {
		proc   events.Process
		handle launch.Handle
	}
	var trees []tree
	if keystore != nil {
		trees = append(trees, tree{events.ProcessKeystore, keystore})
	}
	if runtime != nil {
		trees = append(trees, tree{events.ProcessRuntime, runtime})
	}
	if len(trees) == 0 {
		return nil
	}

	sctx := stopper.WithContext(ctx)
	for _, t := range trees {
		t := t
		sctx.Go(func(sctx *stopper.Context) error {
			if err := t.handle.KillTree(ctx); err != nil {
				c.reportFailure(t.proc, err)
			}
			if err := t.handle.Kill(); err != nil {
				c.reportFailure(t.proc, err)
			}
			select {
			case <-t.handle.Done():
			case <-sctx.Stopping():
			}
			return nil
		})
	}

	joined := make(chan struct{})
	go func() {
		_ = sctx.Wait()
		close(joined)
	}()

	timer := time.NewTimer(c.budget)
	defer timer.Stop()

	select {
	case <-joined:
		return nil
	case <-timer.C:
		sctx.Stop(0)
		<-joined
		return ErrShutdownTimeout
	case <-ctx.Done():
		sctx.Stop(0)
		<-joined
		return ctx.Err()
	}
}

func (c *Coordinator) reportFailure(proc events.Process, err error) {
	if c.onFailure != nil {
		c.onFailure(proc, err)
	}
}
