//go:build !mdns

package discovery

import (
	"context"
	"errors"
	"log/slog"
)

// Available reports whether mDNS support is compiled in.
const Available = false

// ErrUnavailable is returned by Scan when the binary lacks mDNS support.
var ErrUnavailable = errors.New("mdns support not compiled in (build with -tags mdns)")

// Noop stands in for the mDNS discoverer in default builds.
type Noop struct {
	logger *slog.Logger
}

// New returns the no-op discoverer.
func New(logger *slog.Logger) Discoverer {
	return &Noop{logger: logger}
}

// Advertise logs that advertising is unavailable and returns immediately.
func (n *Noop) Advertise(_ context.Context, instance string, _ int, _ map[string]string) error {
	n.logger.Warn("mdns requested but not compiled in; instance not advertised", "instance", instance)
	return nil
}

// Scan always fails with ErrUnavailable.
func (n *Noop) Scan(context.Context) ([]Instance, error) {
	return nil, ErrUnavailable
}
