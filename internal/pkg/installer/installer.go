// Package installer fetches, places, and registers the agent's distributable
// package, and tears the installation back down. Every mutation is verified
// by re-reading the filesystem or service state rather than trusting the
// action's own result.
package installer

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/orbiqd/orbiqd-sentrykit/internal/pkg/agent"
	"github.com/orbiqd/orbiqd-sentrykit/internal/pkg/archive"
	"github.com/orbiqd/orbiqd-sentrykit/internal/pkg/httpclient"
	"github.com/orbiqd/orbiqd-sentrykit/internal/pkg/netprobe"
	"github.com/orbiqd/orbiqd-sentrykit/internal/pkg/process"
	"github.com/orbiqd/orbiqd-sentrykit/internal/pkg/runlog"
)

// ServiceController is the slice of service control the installer needs:
// verifying the post-install state and stopping before removal.
type ServiceController interface {
	Status(ctx context.Context) agent.ServiceRunState
	Stop(ctx context.Context) error
}

// ConfigSynchronizer obtains and persists the desired agent configuration.
type ConfigSynchronizer interface {
	FetchDesired(ctx context.Context) (agent.ConfigDocument, error)
	Reconcile(ctx context.Context, desired agent.ConfigDocument) (bool, error)
	Path() string
}

// Deps carries the installer's collaborators and settings.
type Deps struct {
	Fs        afero.Fs
	Client    httpclient.Client
	Probe     netprobe.Prober
	Extractor archive.Extractor
	Runner    process.Runner
	Service   ServiceController
	Config    ConfigSynchronizer

	PackageURL     string
	ScratchDir     string
	ExecutableName string
	InstallPath    string

	Recorder *runlog.Recorder
}

// Installer performs full install and removal of the agent.
type Installer struct {
	deps Deps
}

// NewInstaller builds an Installer.
func NewInstaller(deps Deps) *Installer {
	return &Installer{deps: deps}
}

// Installed reports whether the canonical agent executable exists on disk.
// Registration state is deliberately not consulted; the engine re-derives
// the two independently.
func (installer *Installer) Installed(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	return afero.Exists(installer.deps.Fs, installer.deps.InstallPath)
}

// Install performs the full installation: download, extract, place the
// executable, persist the configuration, run the agent's self-registration,
// and verify the service is running. Each step failure is terminal for the
// install; the caller decides whether to retry.
func (installer *Installer) Install(ctx context.Context) error {
	deps := installer.deps

	if !deps.Probe.Available(ctx) {
		deps.Recorder.Record("install aborted: no outbound connectivity")
		return fmt.Errorf("%w: cannot download agent package", agent.ErrNetworkUnavailable)
	}

	archivePath, err := installer.fetchPackage(ctx)
	if err != nil {
		return err
	}

	executableSource, err := installer.extractPackage(ctx, archivePath)
	if err != nil {
		return err
	}

	if err := installer.placeExecutable(executableSource); err != nil {
		return err
	}

	document, err := deps.Config.FetchDesired(ctx)
	if err != nil {
		return err
	}

	if _, err := deps.Config.Reconcile(ctx, document); err != nil {
		return err
	}

	deps.Recorder.Record("running agent self-registration")
	if output, err := deps.Runner.Run(ctx, deps.InstallPath, "install", "--config", deps.Config.Path()); err != nil {
		deps.Recorder.Record("self-registration reported: %v (%s)", err, output)
	}

	if !deps.Service.Status(ctx).IsRunning() {
		return fmt.Errorf("agent service not running after install")
	}

	if err := deps.Fs.RemoveAll(deps.ScratchDir); err != nil {
		deps.Recorder.Record("scratch cleanup failed: %v", err)
	}

	deps.Recorder.Record("install completed, service running")

	return nil
}

// Remove stops the service, runs the agent's self-unregistration, and
// deletes the installed executable, verifying its absence afterward.
func (installer *Installer) Remove(ctx context.Context) error {
	deps := installer.deps

	installed, err := installer.Installed(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", agent.ErrUninstallVerificationFailed, err)
	}
	if !installed {
		return fmt.Errorf("%w: executable missing prior to unregistration", agent.ErrUninstallVerificationFailed)
	}

	if deps.Service.Status(ctx).IsRunning() {
		if err := deps.Service.Stop(ctx); err != nil {
			return err
		}
	}

	deps.Recorder.Record("running agent self-unregistration")
	if output, err := deps.Runner.Run(ctx, deps.InstallPath, "uninstall"); err != nil {
		deps.Recorder.Record("self-unregistration reported: %v (%s)", err, output)
	}

	if err := deps.Fs.Remove(deps.InstallPath); err != nil {
		deps.Recorder.Record("delete %s: %v", deps.InstallPath, err)
	}

	stillThere, err := afero.Exists(deps.Fs, deps.InstallPath)
	if err != nil {
		return fmt.Errorf("%w: %w", agent.ErrUninstallVerificationFailed, err)
	}
	if stillThere {
		return fmt.Errorf("%w: executable still present after removal", agent.ErrUninstallVerificationFailed)
	}

	deps.Recorder.Record("removal completed")

	return nil
}

// fetchPackage downloads the distributable package to the scratch location,
// skipping the download when an earlier run already left it there.
func (installer *Installer) fetchPackage(ctx context.Context) (string, error) {
	deps := installer.deps

	archivePath := filepath.Join(deps.ScratchDir, packageFileName(deps.PackageURL))

	exists, err := afero.Exists(deps.Fs, archivePath)
	if err != nil {
		return "", fmt.Errorf("%w: stat scratch package: %w", agent.ErrDownloadFailed, err)
	}

	if exists {
		deps.Recorder.Record("package already present at %s, skipping download", archivePath)
		return archivePath, nil
	}

	deps.Recorder.Record("downloading %s", deps.PackageURL)
	if err := deps.Client.GetFile(ctx, deps.PackageURL, archivePath); err != nil {
		return "", fmt.Errorf("%w: %w", agent.ErrDownloadFailed, err)
	}

	return archivePath, nil
}

// extractPackage unpacks the archive and locates the agent executable inside
// the unpacked tree.
func (installer *Installer) extractPackage(ctx context.Context, archivePath string) (string, error) {
	deps := installer.deps

	unpackDir := filepath.Join(deps.ScratchDir, "unpacked")
	if err := deps.Extractor.Extract(ctx, archivePath, unpackDir); err != nil {
		return "", fmt.Errorf("%w: %w", agent.ErrExtractFailed, err)
	}

	var located string
	err := afero.Walk(deps.Fs, unpackDir, func(walkPath string, info os.FileInfo, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if located == "" && !info.IsDir() && filepath.Base(walkPath) == deps.ExecutableName {
			located = walkPath
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: scan unpacked tree: %w", agent.ErrExtractFailed, err)
	}

	if located == "" {
		return "", fmt.Errorf("%w: %s not found in package", agent.ErrExtractFailed, deps.ExecutableName)
	}

	return located, nil
}

// placeExecutable copies the executable to its canonical path and verifies
// the copy landed.
func (installer *Installer) placeExecutable(sourcePath string) error {
	deps := installer.deps

	source, err := deps.Fs.Open(sourcePath)
	if err != nil {
		return fmt.Errorf("%w: open %s: %w", agent.ErrCopyFailed, sourcePath, err)
	}
	defer func() {
		_ = source.Close()
	}()

	if err := deps.Fs.MkdirAll(filepath.Dir(deps.InstallPath), 0o750); err != nil {
		return fmt.Errorf("%w: create install directory: %w", agent.ErrCopyFailed, err)
	}

	destination, err := deps.Fs.Create(deps.InstallPath)
	if err != nil {
		return fmt.Errorf("%w: create %s: %w", agent.ErrCopyFailed, deps.InstallPath, err)
	}

	if _, err := io.Copy(destination, source); err != nil {
		_ = destination.Close()
		return fmt.Errorf("%w: copy to %s: %w", agent.ErrCopyFailed, deps.InstallPath, err)
	}

	if err := destination.Close(); err != nil {
		return fmt.Errorf("%w: close %s: %w", agent.ErrCopyFailed, deps.InstallPath, err)
	}

	if err := deps.Fs.Chmod(deps.InstallPath, 0o755); err != nil {
		return fmt.Errorf("%w: chmod %s: %w", agent.ErrCopyFailed, deps.InstallPath, err)
	}

	landed, err := afero.Exists(deps.Fs, deps.InstallPath)
	if err != nil || !landed {
		return fmt.Errorf("%w: %s missing after copy", agent.ErrCopyFailed, deps.InstallPath)
	}

	deps.Recorder.Record("executable placed at %s", deps.InstallPath)

	return nil
}

// packageFileName derives the scratch file name from the package URL,
// falling back to a fixed name when the URL has no usable path component.
func packageFileName(packageURL string) string {
	parsed, err := url.Parse(packageURL)
	if err != nil || path.Base(parsed.Path) == "." || path.Base(parsed.Path) == "/" {
		return "agent-package.tar.gz"
	}
	return path.Base(parsed.Path)
}
