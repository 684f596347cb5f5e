package reconcile

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orbiqd/orbiqd-sentrykit/internal/pkg/agent"
	"github.com/orbiqd/orbiqd-sentrykit/internal/pkg/runlog"
)

// fakeSystem models the live host state the engine reconciles against:
// whether the artifact is on disk, whether the service runs, and whether the
// publisher has a newer version. Actions mutate it the way the real
// collaborators would.
type fakeSystem struct {
	installed bool
	running   bool
	updateDue bool

	// installLeavesRunning mirrors the real installer's contract of only
	// succeeding with the service observed running.
	installLeavesRunning bool

	startFailures int
	installErr    error
	removeErr     error
	stopErr       error

	actions []string
}

func newFakeSystem() *fakeSystem {
	return &fakeSystem{installLeavesRunning: true}
}

func (system *fakeSystem) Status(ctx context.Context) agent.ServiceRunState {
	switch {
	case system.running:
		return agent.ServiceRunning
	case system.installed:
		return agent.ServiceStopped
	default:
		return agent.ServiceNotRegistered
	}
}

func (system *fakeSystem) Start(ctx context.Context) error {
	system.actions = append(system.actions, "start")
	if system.running {
		return nil
	}
	if system.startFailures > 0 {
		system.startFailures--
		return agent.ErrServiceStartTimeout
	}
	system.running = true
	return nil
}

func (system *fakeSystem) Stop(ctx context.Context) error {
	system.actions = append(system.actions, "stop")
	if system.stopErr != nil {
		return system.stopErr
	}
	system.running = false
	return nil
}

func (system *fakeSystem) Installed(ctx context.Context) (bool, error) {
	return system.installed, nil
}

func (system *fakeSystem) Install(ctx context.Context) error {
	system.actions = append(system.actions, "install")
	if system.installErr != nil {
		return system.installErr
	}
	system.installed = true
	system.updateDue = false
	if system.installLeavesRunning {
		system.running = true
	}
	return nil
}

func (system *fakeSystem) Remove(ctx context.Context) error {
	system.actions = append(system.actions, "remove")
	if system.removeErr != nil {
		return system.removeErr
	}
	system.installed = false
	system.running = false
	return nil
}

func (system *fakeSystem) UpdateRequired(ctx context.Context) bool {
	return system.updateDue
}

func (system *fakeSystem) count(action string) int {
	count := 0
	for _, a := range system.actions {
		if a == action {
			count++
		}
	}
	return count
}

func reconcileOnce(system *fakeSystem) Outcome {
	engine := NewEngine(system, system, system, runlog.NewRecorder())
	return engine.Reconcile(context.Background())
}

func TestEngine_RunningAndCurrent_NoActions(t *testing.T) {
	system := newFakeSystem()
	system.installed = true
	system.running = true

	outcome := reconcileOnce(system)

	require.True(t, outcome.OK)
	assert.Empty(t, system.actions, "healthy state must not be touched")
	assert.NotEmpty(t, outcome.RunID)
	assert.NotEmpty(t, outcome.Entries)
}

func TestEngine_ArtifactAbsent_SingleInstall(t *testing.T) {
	system := newFakeSystem()

	outcome := reconcileOnce(system)

	require.True(t, outcome.OK)
	assert.Equal(t, 1, system.count("install"))
	assert.Zero(t, system.count("remove"))
	assert.True(t, system.running)
}

func TestEngine_ArtifactAbsent_InstallFails(t *testing.T) {
	system := newFakeSystem()
	system.installErr = agent.ErrNetworkUnavailable

	outcome := reconcileOnce(system)

	require.False(t, outcome.OK)
	assert.Contains(t, outcome.Reason, "install failed")
	assert.Equal(t, 1, system.count("install"), "no retry on install failure")
}

func TestEngine_InstalledButStopped_StartsService(t *testing.T) {
	system := newFakeSystem()
	system.installed = true

	outcome := reconcileOnce(system)

	require.True(t, outcome.OK)
	assert.Zero(t, system.count("install"))
	assert.Equal(t, 1, system.count("start"))
	assert.True(t, system.running)
}

func TestEngine_StartFailsOnce_ReinstallRecovers(t *testing.T) {
	system := newFakeSystem()
	system.installed = true
	system.startFailures = 1

	outcome := reconcileOnce(system)

	require.True(t, outcome.OK)
	assert.Equal(t, 1, system.count("remove"))
	assert.Equal(t, 1, system.count("install"))
	assert.True(t, system.running)

	reinstalls := 0
	for _, entry := range outcome.Entries {
		if strings.Contains(entry.Message, "reinstalling once") {
			reinstalls++
		}
	}
	assert.Equal(t, 1, reinstalls, "log must show exactly one reinstall cycle")
}

func TestEngine_StartFailsTwice_BoundedRetry(t *testing.T) {
	system := newFakeSystem()
	system.installed = true
	system.installLeavesRunning = false
	system.startFailures = 2

	outcome := reconcileOnce(system)

	require.False(t, outcome.OK)
	assert.Contains(t, outcome.Reason, "would not start after reinstall")
	assert.Equal(t, 1, system.count("install"), "exactly one reinstall attempt")
	assert.Equal(t, 2, system.count("start"), "no third start attempt")
}

func TestEngine_RunningWithUpdateDue_FullReplacement(t *testing.T) {
	system := newFakeSystem()
	system.installed = true
	system.running = true
	system.updateDue = true

	outcome := reconcileOnce(system)

	require.True(t, outcome.OK)
	assert.Equal(t, []string{"stop", "remove", "install", "start"}, system.actions)
	assert.True(t, system.running)
	assert.False(t, system.updateDue)
}

func TestEngine_RunningWithUpdateDue_RemoveFails(t *testing.T) {
	system := newFakeSystem()
	system.installed = true
	system.running = true
	system.updateDue = true
	system.removeErr = agent.ErrUninstallVerificationFailed

	outcome := reconcileOnce(system)

	require.False(t, outcome.OK)
	assert.Contains(t, outcome.Reason, "removal before update failed")
	assert.Zero(t, system.count("install"), "no install after failed removal")
}

func TestEngine_StoppedWithUpdateDue_ReplacesBeforeStart(t *testing.T) {
	system := newFakeSystem()
	system.installed = true
	system.updateDue = true

	outcome := reconcileOnce(system)

	require.True(t, outcome.OK)
	assert.Equal(t, 1, system.count("remove"))
	assert.Equal(t, 1, system.count("install"))
	assert.True(t, system.running)
}

func TestEngine_OutcomeCarriesOrderedLog(t *testing.T) {
	system := newFakeSystem()
	system.installed = true
	system.running = true

	outcome := reconcileOnce(system)

	require.NotEmpty(t, outcome.Entries)
	assert.Contains(t, outcome.Entries[0].Message, "reconciliation started")
	assert.Contains(t, outcome.Entries[len(outcome.Entries)-1].Message, "reconciliation succeeded")

	for i := 1; i < len(outcome.Entries); i++ {
		assert.False(t, outcome.Entries[i].At.Before(outcome.Entries[i-1].At))
	}
}

func TestEngine_InstallSucceedsButArtifactMissing(t *testing.T) {
	system := newFakeSystem()
	// Install reports success but leaves nothing behind; the re-derivation
	// must catch it instead of trusting the step's own result.
	brokenInstall := &vanishingInstaller{fakeSystem: system}

	engine := NewEngine(system, brokenInstall, system, runlog.NewRecorder())
	outcome := engine.Reconcile(context.Background())

	require.False(t, outcome.OK)
	assert.Contains(t, outcome.Reason, "still absent after install")
}

type vanishingInstaller struct {
	*fakeSystem
}

func (installer *vanishingInstaller) Install(ctx context.Context) error {
	installer.actions = append(installer.actions, "install")
	return nil
}

func TestEngine_ArtifactCheckErrorIsTerminal(t *testing.T) {
	system := newFakeSystem()
	failing := &failingInstaller{fakeSystem: system}

	engine := NewEngine(system, failing, system, runlog.NewRecorder())
	outcome := engine.Reconcile(context.Background())

	require.False(t, outcome.OK)
	assert.Contains(t, outcome.Reason, "artifact check failed")
}

type failingInstaller struct {
	*fakeSystem
}

func (installer *failingInstaller) Installed(ctx context.Context) (bool, error) {
	return false, errors.New("permission denied")
}
