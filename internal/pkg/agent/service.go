package agent

import "errors"

// ServiceRunState describes the observed state of the agent's background
// service. It is derived fresh on every query; install and uninstall actions
// mutate it out of band, so a value must never be reused across steps.
type ServiceRunState string

const (
	// ServiceRunning indicates the service is registered and active.
	ServiceRunning ServiceRunState = "running"

	// ServiceStopped indicates the service is registered but not active.
	ServiceStopped ServiceRunState = "stopped"

	// ServiceNotRegistered indicates no matching service is registered.
	ServiceNotRegistered ServiceRunState = "not-registered"
)

// IsRunning reports whether the state is ServiceRunning.
func (state ServiceRunState) IsRunning() bool {
	return state == ServiceRunning
}

var (
	// ErrServiceNotFound indicates no registered service matches the
	// configured display-name pattern.
	ErrServiceNotFound = errors.New("service not found")

	// ErrServiceAmbiguous indicates more than one registered service matches
	// the configured display-name pattern.
	ErrServiceAmbiguous = errors.New("service name pattern is ambiguous")

	// ErrServiceStartTimeout indicates the service did not reach the running
	// state within the transition wait bound.
	ErrServiceStartTimeout = errors.New("service start timed out")

	// ErrServiceStopTimeout indicates the service did not reach the stopped
	// state within the transition wait bound.
	ErrServiceStopTimeout = errors.New("service stop timed out")
)
