package gateway

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"filedeck/internal/domain"
)

type brokenBody struct{}

func (brokenBody) Read([]byte) (int, error) { return 0, io.ErrUnexpectedEOF }

func TestReadBody(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/files/move", bytes.NewBufferString(`{"a":1}`))
		body, err := readBody(httptest.NewRecorder(), r)
		require.NoError(t, err)
		assert.Equal(t, `{"a":1}`, string(body))
	})

	t.Run("too large", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/config", bytes.NewReader(make([]byte, maxBodyBytes+1)))
		_, err := readBody(httptest.NewRecorder(), r)
		require.Error(t, err)
		assert.True(t, errors.Is(err, domain.ErrLimitReached))
		assert.Equal(t, http.StatusRequestEntityTooLarge, statusFor(err))
	})

	t.Run("aborted", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/files/rename", brokenBody{})
		_, err := readBody(httptest.NewRecorder(), r)
		require.Error(t, err)
		assert.True(t, errors.Is(err, domain.ErrInvalidInput))
		assert.False(t, errors.Is(err, domain.ErrLimitReached))
		assert.Equal(t, http.StatusBadRequest, statusFor(err))
	})
}
