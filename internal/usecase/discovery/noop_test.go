//go:build !mdns

package discovery

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"filedeck/internal/infra/logger"
)

func TestNoopDiscoverer(t *testing.T) {
	assert.False(t, Available)
	d := New(logger.Discard())

	assert.NoError(t, d.Advertise(context.Background(), "filedeck", 8000, nil))
	_, err := d.Scan(context.Background())
	assert.ErrorIs(t, err, ErrUnavailable)
}
