package sentrykitreconcile

import (
	"context"
	"log/slog"

	"github.com/spf13/afero"

	"github.com/orbiqd/orbiqd-sentrykit/internal/pkg/process"
	"github.com/orbiqd/orbiqd-sentrykit/internal/pkg/runlog"
	"github.com/orbiqd/orbiqd-sentrykit/internal/pkg/settings"
)

// StatusCmd reports the observable deployment state without mutating
// anything: service state, installed version, latest publishable version.
type StatusCmd struct{}

func (command *StatusCmd) Run(ctx context.Context, loaded *settings.Settings, fs afero.Fs, runner process.Runner) error {
	recorder := runlog.NewRecorder()
	components := buildComponents(loaded, fs, runner, recorder)

	state := components.controller.Status(ctx)
	current := components.oracle.Current(ctx)
	latest := components.oracle.Latest(ctx)

	slog.Info("Deployment state.",
		slog.String("serviceState", string(state)),
		slog.String("installedVersion", current.String()),
		slog.String("latestVersion", latest.String()),
		slog.Bool("updateRequired", current.Less(latest)),
	)

	return nil
}
