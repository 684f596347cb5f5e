package main

import (
	"context"
	"log/slog"

	"github.com/alecthomas/kong"
	"github.com/spf13/afero"

	sentrykitreconcile "github.com/orbiqd/orbiqd-sentrykit/internal/app/sentrykit-reconcile"
	"github.com/orbiqd/orbiqd-sentrykit/internal/pkg/cli"
	"github.com/orbiqd/orbiqd-sentrykit/internal/pkg/process"
	"github.com/orbiqd/orbiqd-sentrykit/internal/pkg/settings"
)

func main() {
	var command sentrykitreconcile.Command

	parser := kong.Parse(&command,
		kong.Name("sentrykit-reconcile"),
		kong.Description("Single-pass self-healing deployment reconciler for the Sentry monitoring agent."),
		kong.UsageOnError(),
	)

	logger, err := cli.CreateLoggerFromConfig(command.Log)
	parser.FatalIfErrorf(err)
	slog.SetDefault(logger)

	fs := afero.NewOsFs()

	loaded, err := settings.Load(fs, command.Settings)
	parser.FatalIfErrorf(err)

	ctx := context.Background()

	err = parser.Run(
		kong.BindTo(ctx, (*context.Context)(nil)),
		kong.BindTo(fs, (*afero.Fs)(nil)),
		kong.BindTo(process.NewExecRunner(), (*process.Runner)(nil)),
		loaded,
	)
	parser.FatalIfErrorf(err)
}
