package supervisor

import "errors"

var (
	// ErrNotStarted is returned by WaitReady when Start was never called.
	ErrNotStarted = errors.New("session not started")

	// ErrStartupTimeout is returned by WaitReady when the configured
	// startup bound elapses before readiness and the app port were both
	// observed.
	ErrStartupTimeout = errors.New("startup timed out")

	// ErrExitedDuringStartup is returned by WaitReady when the runtime
	// process exits before startup completed; the missing conditions can
	// no longer arrive.
	ErrExitedDuringStartup = errors.New("runtime exited during startup")

	// ErrShutdownTimeout reports that the coordinator stopped waiting at
	// its budget. The process trees may or may not be gone; the guarantee
	// is only that waiting ended.
	ErrShutdownTimeout = errors.New("shutdown wait abandoned at budget")
)
