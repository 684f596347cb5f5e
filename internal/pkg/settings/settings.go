// Package settings loads the reconciler's settings file: which agent to
// manage, where its artifacts come from, and the wait bounds for service
// transitions.
package settings

import (
	"fmt"
	"os"
	"time"

	"github.com/iancoleman/strcase"
	"github.com/mcuadros/go-defaults"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/afero"
	"sigs.k8s.io/yaml"

	"github.com/orbiqd/orbiqd-sentrykit/internal/pkg/utils"
)

const (
	envSettingsPath = "SENTRYKIT_SETTINGS"

	defaultSettingsPath = "~/.orbiqd/sentrykit/settings.yaml"
)

// Settings is the full configuration of a reconciliation pass. Every field
// has a default; a missing settings file yields a fully usable value.
type Settings struct {
	Agent struct {
		// DisplayName is the substring used to resolve the agent's service
		// unit. Documentedly fragile: an ambiguous match is treated as not
		// registered.
		DisplayName string `json:"displayName" default:"Sentry Monitoring Agent"`

		// ExecutableName is the file name expected inside the package.
		ExecutableName string `json:"executableName" default:"sentry-agent"`

		// InstallPath is the canonical installed executable path.
		InstallPath string `json:"installPath" default:"/usr/local/bin/sentry-agent"`

		// ConfigPath is the on-disk location of the agent configuration.
		ConfigPath string `json:"configPath" default:"/etc/sentry-agent/agent.conf"`

		// ConfigMarker is the token whose presence counts as shallow
		// well-formedness of fetched configuration content.
		ConfigMarker string `json:"configMarker" default:"[sentry-agent]"`
	} `json:"agent"`

	Source struct {
		// PackageURL is the agent's distributable package.
		PackageURL string `json:"packageUrl" default:"https://downloads.orbiqd.dev/sentry-agent/sentry-agent-latest.tar.gz"`

		// ConfigURL is the desired configuration content.
		ConfigURL string `json:"configUrl" default:"https://config.orbiqd.dev/sentry-agent/agent.conf"`

		// ReleasePageURL is the publisher page scraped for the latest
		// publishable version.
		ReleasePageURL string `json:"releasePageUrl" default:"https://downloads.orbiqd.dev/sentry-agent/releases.html"`

		// ProbeURL is the connectivity probe target.
		ProbeURL string `json:"probeUrl" default:"https://downloads.orbiqd.dev/healthz"`
	} `json:"source"`

	// ScratchDir holds downloads and unpacked packages; removed on the
	// install success path.
	ScratchDir string `json:"scratchDir" default:"/tmp/sentrykit"`

	// LogFile receives the run log; empty disables the file sink.
	LogFile string `json:"logFile" default:"/var/log/sentrykit/run.log"`

	// SyslogTag is the fixed source identifier for the syslog sink.
	SyslogTag string `json:"syslogTag" default:"sentrykit"`

	// ServiceWait bounds start/stop transition waits.
	ServiceWait utils.Duration `json:"serviceWait"`

	// HTTPTimeout bounds every HTTP request.
	HTTPTimeout utils.Duration `json:"httpTimeout"`
}

// Load reads the settings file at path, falling back to the
// SENTRYKIT_SETTINGS environment variable and then the default location. A
// missing file is not an error; defaults apply. SENTRYKIT_* environment
// variables override individual source and path fields last.
func Load(fs afero.Fs, path string) (*Settings, error) {
	loaded := &Settings{}
	defaults.SetDefaults(loaded)

	resolved, err := resolvePath(path)
	if err != nil {
		return nil, err
	}

	exists, err := afero.Exists(fs, resolved)
	if err != nil {
		return nil, fmt.Errorf("stat settings file: %w", err)
	}

	if exists {
		content, err := afero.ReadFile(fs, resolved)
		if err != nil {
			return nil, fmt.Errorf("read settings file: %w", err)
		}

		if err := yaml.Unmarshal(content, loaded); err != nil {
			return nil, fmt.Errorf("parse settings file %s: %w", resolved, err)
		}
	}

	loaded.applyEnvOverrides()
	loaded.applyDurationDefaults()

	return loaded, nil
}

func resolvePath(path string) (string, error) {
	if path == "" {
		path = os.Getenv(envSettingsPath)
	}
	if path == "" {
		path = defaultSettingsPath
	}

	expanded, err := homedir.Expand(path)
	if err != nil {
		return "", fmt.Errorf("expand settings path: %w", err)
	}

	return expanded, nil
}

// applyEnvOverrides maps json field names to SENTRYKIT_* variables, e.g.
// packageUrl to SENTRYKIT_PACKAGE_URL.
func (settings *Settings) applyEnvOverrides() {
	overrides := map[string]*string{
		"displayName":    &settings.Agent.DisplayName,
		"executableName": &settings.Agent.ExecutableName,
		"installPath":    &settings.Agent.InstallPath,
		"configPath":     &settings.Agent.ConfigPath,
		"packageUrl":     &settings.Source.PackageURL,
		"configUrl":      &settings.Source.ConfigURL,
		"releasePageUrl": &settings.Source.ReleasePageURL,
		"probeUrl":       &settings.Source.ProbeURL,
		"scratchDir":     &settings.ScratchDir,
		"logFile":        &settings.LogFile,
	}

	for field, target := range overrides {
		envName := "SENTRYKIT_" + strcase.ToScreamingSnake(field)
		if value, ok := os.LookupEnv(envName); ok {
			*target = value
		}
	}
}

// applyDurationDefaults fills the duration fields the defaults library
// cannot express for the string-typed Duration.
func (settings *Settings) applyDurationDefaults() {
	if settings.ServiceWait <= 0 {
		settings.ServiceWait = utils.Duration(15 * time.Second)
	}
	if settings.HTTPTimeout <= 0 {
		settings.HTTPTimeout = utils.Duration(5 * time.Minute)
	}
}
