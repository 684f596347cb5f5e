package sentrykitreconcile

import "github.com/orbiqd/orbiqd-sentrykit/internal/pkg/cli"

type Command struct {
	Log      cli.LogConfig `embed:"" prefix:"log-"`
	Settings string        `help:"Path to settings file." type:"path"`

	Run    RunCmd    `cmd:"" help:"Run one reconciliation pass"`
	Status StatusCmd `cmd:"" help:"Report deployment state without acting"`
}
