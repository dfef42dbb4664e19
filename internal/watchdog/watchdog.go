// Package watchdog writes the liveness files an external supervisor
// watches: a per-loop activity token the supervisor reads to decide
// whether to restart the service, and a running/stopped flag reflecting
// current equipment power.
package watchdog

import (
	"fmt"
	"log/slog"
	"os"
)

const (
	defaultActivityPath = "/tmp/boxactivity"
	defaultRunningPath  = "/tmp/running"
)

// Watchdog is a thin, possibly-disabled liveness beacon. A disabled
// Watchdog (config key watchdog.enabled = false) makes every call a no-op,
// matching the original's ability to run without an external supervisor.
type Watchdog struct {
	enabled      bool
	logger       *slog.Logger
	activityPath string
	runningPath  string
}

func New(enabled bool, logger *slog.Logger) *Watchdog {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watchdog{
		enabled:      enabled,
		logger:       logger,
		activityPath: defaultActivityPath,
		runningPath:  defaultRunningPath,
	}
}

// Beat records token as the most recently active loop. Failures are
// logged, never propagated — a watchdog file write must never interrupt
// the FSM it's there to protect.
func (w *Watchdog) Beat(token string) {
	if !w.enabled {
		return
	}
	if err := os.WriteFile(w.activityPath, []byte(token), 0o644); err != nil {
		w.logger.Warn("watchdog: failed to write activity beacon", "token", token, "err", err)
	}
}

// SetRunning writes the literal "True"/"False" the external watchdog
// expects in /tmp/running.
func (w *Watchdog) SetRunning(running bool) {
	if !w.enabled {
		return
	}
	value := "False"
	if running {
		value = "True"
	}
	if err := os.WriteFile(w.runningPath, []byte(value), 0o644); err != nil {
		w.logger.Warn("watchdog: failed to write running flag", "err", err)
	}
}

func (w *Watchdog) String() string {
	return fmt.Sprintf("watchdog{enabled=%t}", w.enabled)
}
