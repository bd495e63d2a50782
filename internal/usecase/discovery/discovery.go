// Package discovery advertises and finds filedeck instances on the local
// network over mDNS/DNS-SD.
package discovery

import (
	"context"
	"sort"
	"strings"
)

const (
	ServiceType = "_filedeck._tcp"
	Domain      = "local."
)

// Instance is a filedeck server seen on the network.
type Instance struct {
	Name     string            `json:"name"`
	Address  string            `json:"address"`
	Version  string            `json:"version,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Discoverer advertises this server and scans for others.
type Discoverer interface {
	// Advertise blocks until ctx is cancelled.
	Advertise(ctx context.Context, instance string, port int, metadata map[string]string) error
	Scan(ctx context.Context) ([]Instance, error)
}

func encodeTXT(metadata map[string]string) []string {
	txt := make([]string, 0, len(metadata))
	for k, v := range metadata {
		txt = append(txt, k+"="+v)
	}
	sort.Strings(txt)
	return txt
}

func decodeTXT(txt []string) map[string]string {
	m := make(map[string]string, len(txt))
	for _, t := range txt {
		if k, v, ok := strings.Cut(t, "="); ok && k != "" {
			m[k] = v
		}
	}
	return m
}
