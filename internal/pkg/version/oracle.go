// Package version resolves the installed and latest publishable agent
// versions. Both queries degrade to the absent sentinel instead of failing:
// an unreadable version means "no update decision possible", not a broken
// run.
package version

import (
	"context"
	"regexp"
	"strings"

	"github.com/spf13/afero"

	"github.com/orbiqd/orbiqd-sentrykit/internal/pkg/agent"
	"github.com/orbiqd/orbiqd-sentrykit/internal/pkg/httpclient"
	"github.com/orbiqd/orbiqd-sentrykit/internal/pkg/process"
	"github.com/orbiqd/orbiqd-sentrykit/internal/pkg/runlog"
)

var versionPattern = regexp.MustCompile(`\d+\.\d+`)

// Oracle reports the installed and latest publishable agent versions.
type Oracle struct {
	fs             afero.Fs
	runner         process.Runner
	client         httpclient.Client
	executablePath string
	releasePageURL string
	recorder       *runlog.Recorder
}

// NewOracle builds an Oracle for the agent at executablePath, scraping
// releasePageURL for the latest publishable version.
func NewOracle(fs afero.Fs, runner process.Runner, client httpclient.Client, executablePath string, releasePageURL string, recorder *runlog.Recorder) *Oracle {
	return &Oracle{
		fs:             fs,
		runner:         runner,
		client:         client,
		executablePath: executablePath,
		releasePageURL: releasePageURL,
		recorder:       recorder,
	}
}

// Current returns the installed agent version from the executable's
// self-report, or the absent sentinel when the executable is missing or its
// output carries no parsable major.minor token.
func (oracle *Oracle) Current(ctx context.Context) agent.Version {
	exists, err := afero.Exists(oracle.fs, oracle.executablePath)
	if err != nil || !exists {
		return agent.AbsentVersion
	}

	output, err := oracle.runner.Run(ctx, oracle.executablePath, "--version")
	if err != nil {
		oracle.recorder.Record("version self-report failed: %v", err)
		return agent.AbsentVersion
	}

	return oracle.extract(output)
}

// Latest returns the latest publishable version scraped from the release
// page, or the absent sentinel on any network or parse failure. An absent
// latest version degrades to "no update available" rather than failing the
// run.
func (oracle *Oracle) Latest(ctx context.Context) agent.Version {
	content, err := oracle.client.Get(ctx, oracle.releasePageURL)
	if err != nil {
		oracle.recorder.Record("latest version lookup failed: %v", err)
		return agent.AbsentVersion
	}

	return oracle.extract(string(content))
}

// UpdateRequired reports whether the installed version orders strictly below
// the latest publishable version. Both values are recorded.
func (oracle *Oracle) UpdateRequired(ctx context.Context) bool {
	current := oracle.Current(ctx)
	latest := oracle.Latest(ctx)

	oracle.recorder.Record("installed version: %s, latest version: %s", current, latest)

	return current.Less(latest)
}

func (oracle *Oracle) extract(text string) agent.Version {
	token := versionPattern.FindString(text)
	if token == "" {
		oracle.recorder.Record("no major.minor token in %q", strings.TrimSpace(firstLine(text)))
		return agent.AbsentVersion
	}

	parsed, err := agent.ParseVersion(token)
	if err != nil {
		oracle.recorder.Record("unparsable version token %q: %v", token, err)
		return agent.AbsentVersion
	}

	return parsed
}

func firstLine(text string) string {
	if index := strings.IndexByte(text, '\n'); index >= 0 {
		return text[:index]
	}
	return text
}
