package settings

import (
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orbiqd/orbiqd-sentrykit/internal/pkg/utils"
)

func TestLoad_DefaultsWhenFileMissing(t *testing.T) {
	loaded, err := Load(afero.NewMemMapFs(), "/etc/sentrykit/settings.yaml")
	require.NoError(t, err)

	assert.Equal(t, "Sentry Monitoring Agent", loaded.Agent.DisplayName)
	assert.Equal(t, "sentry-agent", loaded.Agent.ExecutableName)
	assert.Equal(t, "/usr/local/bin/sentry-agent", loaded.Agent.InstallPath)
	assert.Equal(t, "/etc/sentry-agent/agent.conf", loaded.Agent.ConfigPath)
	assert.Equal(t, "[sentry-agent]", loaded.Agent.ConfigMarker)
	assert.Equal(t, "/tmp/sentrykit", loaded.ScratchDir)
	assert.Equal(t, "sentrykit", loaded.SyslogTag)
	assert.Equal(t, utils.Duration(15*time.Second), loaded.ServiceWait)
	assert.Equal(t, utils.Duration(5*time.Minute), loaded.HTTPTimeout)
	assert.NotEmpty(t, loaded.Source.PackageURL)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	memFs := afero.NewMemMapFs()
	content := `
agent:
  displayName: Fleet Telemetry Agent
  installPath: /opt/fleet/bin/fleet-agent
source:
  packageUrl: https://mirror.internal/fleet-agent.tar.gz
serviceWait: 30s
`
	require.NoError(t, afero.WriteFile(memFs, "/etc/sentrykit/settings.yaml", []byte(content), 0o640))

	loaded, err := Load(memFs, "/etc/sentrykit/settings.yaml")
	require.NoError(t, err)

	assert.Equal(t, "Fleet Telemetry Agent", loaded.Agent.DisplayName)
	assert.Equal(t, "/opt/fleet/bin/fleet-agent", loaded.Agent.InstallPath)
	assert.Equal(t, "https://mirror.internal/fleet-agent.tar.gz", loaded.Source.PackageURL)
	assert.Equal(t, utils.Duration(30*time.Second), loaded.ServiceWait)

	// Untouched fields keep their defaults.
	assert.Equal(t, "sentry-agent", loaded.Agent.ExecutableName)
	assert.Equal(t, utils.Duration(5*time.Minute), loaded.HTTPTimeout)
}

func TestLoad_EnvOverridesWinLast(t *testing.T) {
	memFs := afero.NewMemMapFs()
	content := `
source:
  packageUrl: https://mirror.internal/fleet-agent.tar.gz
`
	require.NoError(t, afero.WriteFile(memFs, "/etc/sentrykit/settings.yaml", []byte(content), 0o640))

	t.Setenv("SENTRYKIT_PACKAGE_URL", "https://emergency.mirror/agent.tar.gz")
	t.Setenv("SENTRYKIT_SCRATCH_DIR", "/var/tmp/sentrykit")

	loaded, err := Load(memFs, "/etc/sentrykit/settings.yaml")
	require.NoError(t, err)

	assert.Equal(t, "https://emergency.mirror/agent.tar.gz", loaded.Source.PackageURL)
	assert.Equal(t, "/var/tmp/sentrykit", loaded.ScratchDir)
}

func TestLoad_InvalidYaml(t *testing.T) {
	memFs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(memFs, "/etc/sentrykit/settings.yaml", []byte("agent: [broken"), 0o640))

	_, err := Load(memFs, "/etc/sentrykit/settings.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse settings file")
}

func TestLoad_SettingsPathFromEnv(t *testing.T) {
	memFs := afero.NewMemMapFs()
	content := `
agent:
  displayName: Env Located Agent
`
	require.NoError(t, afero.WriteFile(memFs, "/custom/settings.yaml", []byte(content), 0o640))

	t.Setenv(envSettingsPath, "/custom/settings.yaml")

	loaded, err := Load(memFs, "")
	require.NoError(t, err)
	assert.Equal(t, "Env Located Agent", loaded.Agent.DisplayName)
}
