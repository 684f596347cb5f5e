// agent-mock is a stand-in for the Sentry monitoring agent used in manual
// testing: it self-reports a version and fakes the install/uninstall
// self-registration routine.
package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"
)

var CLI struct {
	Version bool   `help:"Print version information and exit."`
	Config  string `help:"Config path for the install subcommand."`

	// Allow the install/uninstall verbs and any extra args the reconciler
	// passes along.
	Extra []string `arg:"" optional:""`
}

func main() {
	ctx := kong.Parse(&CLI)

	if CLI.Version {
		fmt.Println("sentry-agent 15.0 (mock)")
		ctx.Exit(0)
	}

	if len(CLI.Extra) == 0 {
		fmt.Fprintln(os.Stderr, "expected a subcommand: install or uninstall")
		ctx.Exit(1)
	}

	switch CLI.Extra[0] {
	case "install":
		if CLI.Config == "" {
			fmt.Fprintln(os.Stderr, "install requires --config")
			ctx.Exit(1)
		}
		if _, err := os.Stat(CLI.Config); err != nil {
			fmt.Fprintf(os.Stderr, "config not readable: %v\n", err)
			ctx.Exit(1)
		}
		fmt.Printf("registered sentry-agent service with config %s\n", CLI.Config)
	case "uninstall":
		fmt.Println("unregistered sentry-agent service")
	default:
		fmt.Fprintf(os.Stderr, "unknown subcommand: %s\n", CLI.Extra[0])
		ctx.Exit(1)
	}

	ctx.Exit(0)
}
