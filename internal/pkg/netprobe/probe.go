// Package netprobe reports whether outbound connectivity is usable before
// any step that needs the network is attempted.
package netprobe

import (
	"context"
	"net"
	"net/url"

	"github.com/orbiqd/orbiqd-sentrykit/internal/pkg/httpclient"
	"github.com/orbiqd/orbiqd-sentrykit/internal/pkg/runlog"
)

// Prober reports whether outbound connectivity is usable.
type Prober interface {
	Available(ctx context.Context) bool
}

// HostResolver resolves a host name to addresses.
type HostResolver interface {
	LookupHost(ctx context.Context, host string) ([]string, error)
}

// Probe checks name resolution and reachability against a configured probe
// URL. A failed probe is recorded, never an error: callers fail fast on
// false.
type Probe struct {
	client   httpclient.Client
	resolver HostResolver
	probeURL string
	recorder *runlog.Recorder
}

// NewProbe builds a Probe using the default system resolver.
func NewProbe(client httpclient.Client, probeURL string, recorder *runlog.Recorder) *Probe {
	return &Probe{
		client:   client,
		resolver: net.DefaultResolver,
		probeURL: probeURL,
		recorder: recorder,
	}
}

// Available reports whether the probe host resolves and answers.
func (probe *Probe) Available(ctx context.Context) bool {
	parsed, err := url.Parse(probe.probeURL)
	if err != nil || parsed.Hostname() == "" {
		probe.recorder.Record("network probe: invalid probe url %q", probe.probeURL)
		return false
	}

	if _, err := probe.resolver.LookupHost(ctx, parsed.Hostname()); err != nil {
		probe.recorder.Record("network probe: name resolution for %s failed: %v", parsed.Hostname(), err)
		return false
	}

	if _, err := probe.client.Get(ctx, probe.probeURL); err != nil {
		probe.recorder.Record("network probe: %s unreachable: %v", probe.probeURL, err)
		return false
	}

	return true
}
