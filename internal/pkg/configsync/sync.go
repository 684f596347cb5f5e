// Package configsync reconciles the agent's on-disk configuration against
// the externally-sourced desired configuration.
package configsync

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/orbiqd/orbiqd-sentrykit/internal/pkg/agent"
	"github.com/orbiqd/orbiqd-sentrykit/internal/pkg/httpclient"
	"github.com/orbiqd/orbiqd-sentrykit/internal/pkg/netprobe"
	"github.com/orbiqd/orbiqd-sentrykit/internal/pkg/runlog"
)

// Synchronizer fetches the desired configuration and reconciles it against
// the on-disk copy.
type Synchronizer struct {
	fs        afero.Fs
	client    httpclient.Client
	probe     netprobe.Prober
	sourceURL string
	path      string
	marker    string
	recorder  *runlog.Recorder
}

// NewSynchronizer builds a Synchronizer. marker is the token whose presence
// in the fetched content counts as shallow well-formedness.
func NewSynchronizer(fs afero.Fs, client httpclient.Client, probe netprobe.Prober, sourceURL string, path string, marker string, recorder *runlog.Recorder) *Synchronizer {
	return &Synchronizer{
		fs:        fs,
		client:    client,
		probe:     probe,
		sourceURL: sourceURL,
		path:      path,
		marker:    marker,
		recorder:  recorder,
	}
}

// Path returns the on-disk location the desired configuration reconciles to.
func (synchronizer *Synchronizer) Path() string {
	return synchronizer.path
}

// FetchDesired retrieves the desired configuration content. Connectivity is
// required. Content that fails the shallow validity check is recorded but
// still returned; the caller decides whether to persist it.
func (synchronizer *Synchronizer) FetchDesired(ctx context.Context) (agent.ConfigDocument, error) {
	if !synchronizer.probe.Available(ctx) {
		return agent.ConfigDocument{}, fmt.Errorf("%w: %w", agent.ErrConfigFetchFailed, agent.ErrNetworkUnavailable)
	}

	content, err := synchronizer.client.Get(ctx, synchronizer.sourceURL)
	if err != nil {
		synchronizer.recorder.Record("config fetch from %s failed: %v", synchronizer.sourceURL, err)
		return agent.ConfigDocument{}, fmt.Errorf("%w: %w", agent.ErrConfigFetchFailed, err)
	}

	document := agent.ConfigDocument{
		Content:    content,
		WellFormed: strings.Contains(string(content), synchronizer.marker),
	}

	if !document.WellFormed {
		synchronizer.recorder.Record("fetched config does not look like agent config (marker %q missing), using it anyway", synchronizer.marker)
	}

	return document, nil
}

// Reconcile writes the desired content to the configured path only when the
// on-disk copy is absent or differs byte-for-byte. Returns whether a write
// happened. Identical content is never an error.
func (synchronizer *Synchronizer) Reconcile(ctx context.Context, desired agent.ConfigDocument) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	exists, err := afero.Exists(synchronizer.fs, synchronizer.path)
	if err != nil {
		return false, fmt.Errorf("%w: stat %s: %w", agent.ErrConfigWriteFailed, synchronizer.path, err)
	}

	if exists {
		existing, err := afero.ReadFile(synchronizer.fs, synchronizer.path)
		if err != nil {
			return false, fmt.Errorf("%w: read %s: %w", agent.ErrConfigWriteFailed, synchronizer.path, err)
		}

		if desired.Equal(agent.ConfigDocument{Content: existing}) {
			synchronizer.recorder.Record("config at %s already matches desired content", synchronizer.path)
			return false, nil
		}
	}

	if err := synchronizer.fs.MkdirAll(filepath.Dir(synchronizer.path), 0o750); err != nil {
		return false, fmt.Errorf("%w: create config directory: %w", agent.ErrConfigWriteFailed, err)
	}

	if err := afero.WriteFile(synchronizer.fs, synchronizer.path, desired.Content, 0o640); err != nil {
		return false, fmt.Errorf("%w: write %s: %w", agent.ErrConfigWriteFailed, synchronizer.path, err)
	}

	synchronizer.recorder.Record("config written to %s (%d bytes)", synchronizer.path, len(desired.Content))

	return true, nil
}
