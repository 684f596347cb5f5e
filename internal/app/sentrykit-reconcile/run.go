package sentrykitreconcile

import (
	"context"
	"log/slog"

	"github.com/spf13/afero"

	"github.com/orbiqd/orbiqd-sentrykit/internal/pkg/archive"
	"github.com/orbiqd/orbiqd-sentrykit/internal/pkg/configsync"
	"github.com/orbiqd/orbiqd-sentrykit/internal/pkg/httpclient"
	"github.com/orbiqd/orbiqd-sentrykit/internal/pkg/installer"
	"github.com/orbiqd/orbiqd-sentrykit/internal/pkg/netprobe"
	"github.com/orbiqd/orbiqd-sentrykit/internal/pkg/process"
	"github.com/orbiqd/orbiqd-sentrykit/internal/pkg/reconcile"
	"github.com/orbiqd/orbiqd-sentrykit/internal/pkg/runlog"
	"github.com/orbiqd/orbiqd-sentrykit/internal/pkg/service"
	"github.com/orbiqd/orbiqd-sentrykit/internal/pkg/settings"
	"github.com/orbiqd/orbiqd-sentrykit/internal/pkg/version"
)

// RunCmd runs one reconciliation pass. The pass is fire-and-forget for the
// scheduler: both success and failure complete the process normally, and the
// outcome is visible only through the emitted run log.
type RunCmd struct{}

func (command *RunCmd) Run(ctx context.Context, loaded *settings.Settings, fs afero.Fs, runner process.Runner) error {
	recorder := runlog.NewRecorder()
	components := buildComponents(loaded, fs, runner, recorder)

	slog.Info("Starting reconciliation pass.", slog.String("runId", recorder.RunID()))

	outcome := components.engine.Reconcile(ctx)

	sinks := []runlog.Sink{runlog.NewSyslogSink(runner, loaded.SyslogTag)}
	if loaded.LogFile != "" {
		sinks = append(sinks, runlog.NewFileSink(fs, loaded.LogFile))
	}
	runlog.EmitAll(ctx, recorder, sinks...)

	if outcome.OK {
		slog.Info("Reconciliation pass succeeded.", slog.String("runId", outcome.RunID))
	} else {
		slog.Error("Reconciliation pass failed.",
			slog.String("runId", outcome.RunID),
			slog.String("reason", outcome.Reason))
	}

	// The scheduler does not branch on exit codes; a completed pass always
	// signals ordinary completion.
	return nil
}

// components bundles the wired collaborators of one pass.
type components struct {
	engine     *reconcile.Engine
	controller *service.Controller
	oracle     *version.Oracle
}

func buildComponents(loaded *settings.Settings, fs afero.Fs, runner process.Runner, recorder *runlog.Recorder) components {
	client := httpclient.NewHTTPClient(loaded.HTTPTimeout.AsDuration(), fs)
	probe := netprobe.NewProbe(client, loaded.Source.ProbeURL, recorder)

	controller := service.NewController(runner, loaded.Agent.DisplayName, loaded.ServiceWait.AsDuration(), recorder)

	oracle := version.NewOracle(fs, runner, client, loaded.Agent.InstallPath, loaded.Source.ReleasePageURL, recorder)

	synchronizer := configsync.NewSynchronizer(fs, client, probe,
		loaded.Source.ConfigURL, loaded.Agent.ConfigPath, loaded.Agent.ConfigMarker, recorder)

	agentInstaller := installer.NewInstaller(installer.Deps{
		Fs:             fs,
		Client:         client,
		Probe:          probe,
		Extractor:      archive.NewTarGzExtractor(fs),
		Runner:         runner,
		Service:        controller,
		Config:         synchronizer,
		PackageURL:     loaded.Source.PackageURL,
		ScratchDir:     loaded.ScratchDir,
		ExecutableName: loaded.Agent.ExecutableName,
		InstallPath:    loaded.Agent.InstallPath,
		Recorder:       recorder,
	})

	return components{
		engine:     reconcile.NewEngine(controller, agentInstaller, oracle, recorder),
		controller: controller,
		oracle:     oracle,
	}
}
