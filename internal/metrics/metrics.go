package metrics

import (
	"runtime"
	"runtime/debug"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registry = prometheus.NewRegistry()

	sessionReady = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "hatchd",
		Name:      "session_ready",
		Help:      "Whether the supervised session completed startup (1=ready, 0=not ready).",
	})

	stateSignals = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hatchd",
		Name:      "state_signals_total",
		Help:      "Total decoded lifecycle state signals, by state.",
	}, []string{"state"})

	processErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hatchd",
		Name:      "process_errors_total",
		Help:      "Total stream, child-reported, and termination errors, by process.",
	}, []string{"process"})

	shutdownDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "hatchd",
		Name:      "shutdown_duration_seconds",
		Help:      "Wall-clock duration of the shutdown coordinator in seconds.",
	})

	buildInfo = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "hatchd",
		Name:      "build_info",
		Help:      "Build metadata for the running hatchd binary.",
	}, []string{"go_version", "vcs", "vcs_revision", "vcs_time", "vcs_modified"})

	buildInfoOnce sync.Once
)

func init() {
	registry.MustRegister(sessionReady, stateSignals, processErrors, shutdownDuration, buildInfo)
}

// Registry returns the Prometheus registry containing all hatchd metrics.
func Registry() *prometheus.Registry {
	return registry
}

// SetSessionReady records whether startup has completed.
func SetSessionReady(ready bool) {
	value := 0.0
	if ready {
		value = 1.0
	}
	sessionReady.Set(value)
}

// ObserveStateSignal counts one decoded state-signal line.
func ObserveStateSignal(state string) {
	if state == "" {
		state = "unknown"
	}
	stateSignals.WithLabelValues(state).Inc()
}

// IncError counts one error event attributed to a process.
func IncError(process string) {
	if process == "" {
		process = "unknown"
	}
	processErrors.WithLabelValues(process).Inc()
}

// ObserveShutdownDuration records how long the shutdown coordinator ran.
func ObserveShutdownDuration(d time.Duration) {
	shutdownDuration.Observe(d.Seconds())
}

// EmitBuildInfo publishes build metadata about the running binary.
func EmitBuildInfo() {
	buildInfoOnce.Do(func() {
		labels := prometheus.Labels{
			"go_version":   runtime.Version(),
			"vcs":          "",
			"vcs_revision": "",
			"vcs_time":     "",
			"vcs_modified": "",
		}
		if info, ok := debug.ReadBuildInfo(); ok {
			if info.GoVersion != "" {
				labels["go_version"] = info.GoVersion
			}
			for _, setting := range info.Settings {
				switch setting.Key {
				case "vcs":
					labels["vcs"] = setting.Value
				case "vcs.revision":
					labels["vcs_revision"] = setting.Value
				case "vcs.time":
					labels["vcs_time"] = setting.Value
				case "vcs.modified":
					labels["vcs_modified"] = setting.Value
				}
			}
		}
		buildInfo.With(labels).Set(1)
	})
}
