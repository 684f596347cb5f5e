// Package service controls the agent's background service through systemd.
// Units are resolved by display-name substring on every query; nothing about
// the service is cached across steps, since install and uninstall actions
// change the registration out of band.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/orbiqd/orbiqd-sentrykit/internal/pkg/agent"
	"github.com/orbiqd/orbiqd-sentrykit/internal/pkg/process"
	"github.com/orbiqd/orbiqd-sentrykit/internal/pkg/runlog"
)

const defaultPollInterval = 500 * time.Millisecond

// Controller observes and drives the agent service state.
type Controller struct {
	runner      process.Runner
	displayName string
	wait        time.Duration
	poll        time.Duration
	recorder    *runlog.Recorder
}

// NewController builds a Controller resolving the service by displayName
// substring and waiting up to wait for start/stop transitions.
func NewController(runner process.Runner, displayName string, wait time.Duration, recorder *runlog.Recorder) *Controller {
	return &Controller{
		runner:      runner,
		displayName: displayName,
		wait:        wait,
		poll:        defaultPollInterval,
		recorder:    recorder,
	}
}

// Status derives the current run state. Absence of a matching unit yields
// ServiceNotRegistered; an ambiguous match is recorded and reported as
// ServiceNotRegistered as well, since no single unit can be acted on.
func (controller *Controller) Status(ctx context.Context) agent.ServiceRunState {
	unit, err := controller.resolveUnit(ctx)
	if err != nil {
		if errors.Is(err, agent.ErrServiceAmbiguous) {
			controller.recorder.Record("service lookup: %v", err)
		}
		return agent.ServiceNotRegistered
	}

	output, err := controller.runner.Run(ctx, "systemctl", "is-active", unit)
	// is-active exits non-zero for every state but active; the output text
	// still tells stopped apart from unknown.
	state := strings.TrimSpace(output)
	if err != nil && state == "" {
		return agent.ServiceNotRegistered
	}

	if state == "active" {
		return agent.ServiceRunning
	}

	return agent.ServiceStopped
}

// Start brings the service to the running state, waiting up to the
// configured bound. Already-running is a no-op. Returns
// agent.ErrServiceStartTimeout when the bound is missed.
func (controller *Controller) Start(ctx context.Context) error {
	if controller.Status(ctx).IsRunning() {
		return nil
	}

	unit, err := controller.resolveUnit(ctx)
	if err != nil {
		return fmt.Errorf("resolve unit for start: %w", err)
	}

	if output, err := controller.runner.Run(ctx, "systemctl", "start", unit); err != nil {
		controller.recorder.Record("systemctl start %s: %v (%s)", unit, err, strings.TrimSpace(output))
	}

	if controller.waitForState(ctx, agent.ServiceRunning) {
		return nil
	}

	return fmt.Errorf("%w: %s not running after %s", agent.ErrServiceStartTimeout, unit, controller.wait)
}

// Stop brings the service to a non-running state, waiting up to the
// configured bound. A lookup failure counts as already stopped. Returns
// agent.ErrServiceStopTimeout when the bound is missed.
func (controller *Controller) Stop(ctx context.Context) error {
	unit, err := controller.resolveUnit(ctx)
	if err != nil {
		// No resolvable unit is the desired stopped state.
		return nil
	}

	if !controller.Status(ctx).IsRunning() {
		return nil
	}

	if output, err := controller.runner.Run(ctx, "systemctl", "stop", unit); err != nil {
		controller.recorder.Record("systemctl stop %s: %v (%s)", unit, err, strings.TrimSpace(output))
	}

	if controller.waitForNotRunning(ctx) {
		return nil
	}

	return fmt.Errorf("%w: %s still running after %s", agent.ErrServiceStopTimeout, unit, controller.wait)
}

func (controller *Controller) waitForState(ctx context.Context, target agent.ServiceRunState) bool {
	return controller.pollUntil(ctx, func() bool {
		return controller.Status(ctx) == target
	})
}

func (controller *Controller) waitForNotRunning(ctx context.Context) bool {
	return controller.pollUntil(ctx, func() bool {
		return !controller.Status(ctx).IsRunning()
	})
}

func (controller *Controller) pollUntil(ctx context.Context, reached func() bool) bool {
	deadline := time.Now().Add(controller.wait)

	for {
		if reached() {
			return true
		}

		if time.Now().After(deadline) {
			return false
		}

		select {
		case <-ctx.Done():
			return false
		case <-time.After(controller.poll):
		}
	}
}

// resolveUnit finds the single unit whose name or description contains the
// configured display name. Returns agent.ErrServiceNotFound for no match and
// agent.ErrServiceAmbiguous for more than one; both are distinct observable
// states, the lookup-by-substring being a known fragile dependency.
func (controller *Controller) resolveUnit(ctx context.Context) (string, error) {
	output, err := controller.runner.Run(ctx, "systemctl", "list-units", "--all", "--type=service", "--no-legend", "--plain")
	if err != nil {
		return "", fmt.Errorf("list units: %w", err)
	}

	matches := matchUnits(output, controller.displayName)
	switch len(matches) {
	case 0:
		return "", fmt.Errorf("%w: no unit matches %q", agent.ErrServiceNotFound, controller.displayName)
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("%w: %q matches %s", agent.ErrServiceAmbiguous, controller.displayName, strings.Join(matches, ", "))
	}
}

// matchUnits scans systemctl list-units plain output for units whose name or
// description contains the pattern, case-insensitively.
func matchUnits(output string, pattern string) []string {
	loweredPattern := strings.ToLower(pattern)

	var matches []string
	for _, line := range strings.Split(output, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 4 {
			continue
		}

		unit := fields[0]
		description := strings.Join(fields[4:], " ")

		if strings.Contains(strings.ToLower(unit), loweredPattern) ||
			strings.Contains(strings.ToLower(description), loweredPattern) {
			matches = append(matches, unit)
		}
	}

	return matches
}
