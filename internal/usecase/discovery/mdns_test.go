//go:build mdns

package discovery

import (
	"net"
	"testing"

	"github.com/grandcat/zeroconf"
	"github.com/stretchr/testify/assert"
)

func TestToInstance(t *testing.T) {
	entry := zeroconf.NewServiceEntry("lab-box", ServiceType, Domain)
	entry.Port = 8000
	entry.Text = []string{"version=0.3.0", "backend=file"}
	entry.AddrIPv4 = append(entry.AddrIPv4, net.IPv4(192, 168, 1, 10))

	inst := toInstance(entry)
	assert.Equal(t, "lab-box", inst.Name)
	assert.Equal(t, "192.168.1.10:8000", inst.Address)
	assert.Equal(t, "0.3.0", inst.Version)
	assert.Equal(t, "file", inst.Metadata["backend"])
}

func TestToInstanceIPv6(t *testing.T) {
	entry := zeroconf.NewServiceEntry("v6", ServiceType, Domain)
	entry.Port = 9000
	entry.AddrIPv6 = append(entry.AddrIPv6, net.ParseIP("fe80::1"))

	assert.Equal(t, "[fe80::1]:9000", toInstance(entry).Address)
}

func TestAvailable(t *testing.T) {
	assert.True(t, Available)
}
