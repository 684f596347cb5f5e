// Package reconcile holds the deployment reconciliation decision logic: one
// pass over live system state that installs, updates, reconfigures, or
// restarts the monitoring agent as needed, with a single reinstall-and-retry
// recovery when the service will not start.
package reconcile

import (
	"context"
	"fmt"

	"github.com/orbiqd/orbiqd-sentrykit/internal/pkg/agent"
	"github.com/orbiqd/orbiqd-sentrykit/internal/pkg/runlog"
)

// ServiceController observes and drives the agent service.
type ServiceController interface {
	Status(ctx context.Context) agent.ServiceRunState
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// Installer installs and removes the agent deployment.
type Installer interface {
	Installed(ctx context.Context) (bool, error)
	Install(ctx context.Context) error
	Remove(ctx context.Context) error
}

// VersionOracle decides whether an update is due.
type VersionOracle interface {
	UpdateRequired(ctx context.Context) bool
}

// Outcome is the single result of a reconciliation pass, together with the
// accumulated run log.
type Outcome struct {
	// OK reports whether the pass left the agent installed, current,
	// configured, and running.
	OK bool

	// Reason describes the terminal failure when OK is false.
	Reason string

	// RunID identifies the pass in the emitted run log.
	RunID string

	// Entries is the ordered run log of the pass.
	Entries []runlog.Entry
}

// Engine consumes the collaborators and produces one Outcome per
// invocation. Every query re-reads live state: a prior run may have been
// interrupted between any two actions, so nothing observed before a mutation
// is trusted after it.
type Engine struct {
	service   ServiceController
	installer Installer
	oracle    VersionOracle
	recorder  *runlog.Recorder
}

// NewEngine builds an Engine writing to the given recorder.
func NewEngine(service ServiceController, installer Installer, oracle VersionOracle, recorder *runlog.Recorder) *Engine {
	return &Engine{
		service:   service,
		installer: installer,
		oracle:    oracle,
		recorder:  recorder,
	}
}

// Reconcile runs the decision tree once and returns the outcome. The two
// top-level branches are "service running" and "service not running"; each
// independently re-derives whether the artifact exists and whether an update
// is due.
func (engine *Engine) Reconcile(ctx context.Context) Outcome {
	engine.recorder.Record("reconciliation started")

	state := engine.service.Status(ctx)
	engine.recorder.Record("service state: %s", state)

	var outcome Outcome
	if state.IsRunning() {
		outcome = engine.reconcileRunning(ctx)
	} else {
		outcome = engine.reconcileNotRunning(ctx)
	}

	if outcome.OK {
		engine.recorder.Record("reconciliation succeeded")
	} else {
		engine.recorder.Record("reconciliation failed: %s", outcome.Reason)
	}

	outcome.RunID = engine.recorder.RunID()
	outcome.Entries = engine.recorder.Entries()
	return outcome
}

// reconcileRunning handles the healthy branch: the service is up, so the
// only possible correction is an update.
func (engine *Engine) reconcileRunning(ctx context.Context) Outcome {
	if !engine.oracle.UpdateRequired(ctx) {
		engine.recorder.Record("agent running and up to date, nothing to do")
		return Outcome{OK: true}
	}

	engine.recorder.Record("update required, replacing running agent")

	if err := engine.service.Stop(ctx); err != nil {
		return engine.failure("stop before update failed: %v", err)
	}

	if err := engine.installer.Remove(ctx); err != nil {
		return engine.failure("removal before update failed: %v", err)
	}

	if err := engine.installer.Install(ctx); err != nil {
		return engine.failure("install failed: %v", err)
	}

	if err := engine.service.Start(ctx); err != nil {
		return engine.failure("start after update failed: %v", err)
	}

	engine.recorder.Record("agent updated and running")
	return Outcome{OK: true}
}

// reconcileNotRunning handles the degraded branch: install whatever is
// missing, update if due, then start, treating a start failure as a
// presumptively corrupted installation worth exactly one reinstall.
func (engine *Engine) reconcileNotRunning(ctx context.Context) Outcome {
	installed, err := engine.installer.Installed(ctx)
	if err != nil {
		return engine.failure("artifact check failed: %v", err)
	}

	if !installed {
		engine.recorder.Record("agent executable absent, installing")
		if err := engine.installer.Install(ctx); err != nil {
			return engine.failure("install failed: %v", err)
		}
	}

	// Re-derive: the install above, or an interrupted earlier run, may have
	// left any combination of artifact and registration behind.
	installed, err = engine.installer.Installed(ctx)
	if err != nil {
		return engine.failure("artifact re-check failed: %v", err)
	}
	if !installed {
		return engine.failure("agent executable still absent after install")
	}

	if engine.oracle.UpdateRequired(ctx) {
		engine.recorder.Record("update required before start")
		if err := engine.installer.Remove(ctx); err != nil {
			return engine.failure("removal before update failed: %v", err)
		}
		if err := engine.installer.Install(ctx); err != nil {
			return engine.failure("install failed: %v", err)
		}
	}

	if err := engine.service.Start(ctx); err == nil {
		engine.recorder.Record("agent running")
		return Outcome{OK: true}
	}

	// One recovery cycle: a registered service that will not start is
	// treated as a corrupted installation, not a transient fault.
	engine.recorder.Record("service would not start, reinstalling once")

	if err := engine.installer.Remove(ctx); err != nil {
		return engine.failure("removal during reinstall failed: %v", err)
	}
	if err := engine.installer.Install(ctx); err != nil {
		return engine.failure("reinstall failed: %v", err)
	}
	if err := engine.service.Start(ctx); err != nil {
		return engine.failure("service would not start after reinstall: %v", err)
	}

	engine.recorder.Record("agent running after reinstall")
	return Outcome{OK: true}
}

func (engine *Engine) failure(format string, args ...any) Outcome {
	reason := fmt.Sprintf(format, args...)
	engine.recorder.Record("%s", reason)
	return Outcome{OK: false, Reason: reason}
}
