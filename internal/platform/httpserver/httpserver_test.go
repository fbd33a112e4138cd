package httpserver

import (
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNew(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		s := New(":8080", http.NotFoundHandler())
		assert.Equal(t, ":8080", s.Addr)
		assert.Equal(t, 5*time.Second, s.ReadHeaderTimeout)
		assert.Equal(t, 15*time.Second, s.ReadTimeout)
		assert.Nil(t, s.ErrorLog)
	})

	t.Run("options", func(t *testing.T) {
		s := New(":8080", http.NotFoundHandler(),
			WithTimeouts(time.Second, 0),
			WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		)
		assert.Equal(t, time.Second, s.ReadTimeout)
		assert.Equal(t, 30*time.Second, s.WriteTimeout, "zero keeps the default")
		assert.NotNil(t, s.ErrorLog)
	})
}
