//go:build mdns

package discovery

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/grandcat/zeroconf"
)

// Available reports whether mDNS support is compiled in.
const Available = true

const scanTimeout = 3 * time.Second

// MDNS implements Discoverer with grandcat/zeroconf.
type MDNS struct {
	logger *slog.Logger
}

// New returns the mDNS discoverer.
func New(logger *slog.Logger) Discoverer {
	return &MDNS{logger: logger}
}

// Advertise registers instance under ServiceType until ctx is done.
func (d *MDNS) Advertise(ctx context.Context, instance string, port int, metadata map[string]string) error {
	server, err := zeroconf.Register(instance, ServiceType, Domain, port, encodeTXT(metadata), nil)
	if err != nil {
		return fmt.Errorf("mdns register: %w", err)
	}
	d.logger.Info("mdns advertising", "instance", instance, "service", ServiceType, "port", port)

	<-ctx.Done()
	server.Shutdown()
	return nil
}

// Scan browses for other instances for a few seconds or until ctx is done.
func (d *MDNS) Scan(ctx context.Context) ([]Instance, error) {
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("mdns resolver: %w", err)
	}

	scanCtx, cancel := context.WithTimeout(ctx, scanTimeout)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry)
	var found []Instance
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for entry := range entries {
			inst := toInstance(entry)
			found = append(found, inst)
			d.logger.Debug("mdns discovered instance", "name", inst.Name, "address", inst.Address)
		}
	}()

	if err := resolver.Browse(scanCtx, ServiceType, Domain, entries); err != nil {
		cancel()
		wg.Wait()
		return nil, fmt.Errorf("mdns browse: %w", err)
	}

	<-scanCtx.Done()
	wg.Wait()
	return found, nil
}

func toInstance(entry *zeroconf.ServiceEntry) Instance {
	var address string
	switch {
	case len(entry.AddrIPv4) > 0:
		address = net.JoinHostPort(entry.AddrIPv4[0].String(), strconv.Itoa(entry.Port))
	case len(entry.AddrIPv6) > 0:
		address = net.JoinHostPort(entry.AddrIPv6[0].String(), strconv.Itoa(entry.Port))
	}
	meta := decodeTXT(entry.Text)
	return Instance{
		Name:     entry.ServiceRecord.Instance,
		Address:  address,
		Version:  meta["version"],
		Metadata: meta,
	}
}
