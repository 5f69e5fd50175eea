// AngelaMos | 2026
// server_test.go

package server

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/templates/go-auth-api/internal/config"
	"github.com/carterperez-dev/templates/go-auth-api/internal/health"
)

func newTestServer(h *health.Handler) *Server {
	return New(Config{
		ServerConfig: config.ServerConfig{
			Host:         "127.0.0.1",
			Port:         0,
			ReadTimeout:  time.Second,
			WriteTimeout: time.Second,
			IdleTimeout:  time.Second,
		},
		HealthHandler: h,
		Logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

func TestNew(t *testing.T) {
	s := newTestServer(nil)
	assert.Equal(t, "127.0.0.1:0", s.Addr())

	s.Router().Get("/ping", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	rec := httptest.NewRecorder()
	s.http.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestStartShutdown(t *testing.T) {
	h := health.NewHandler()
	s := newTestServer(h)

	done := make(chan error, 1)
	go func() { done <- s.Start() }()

	// Give ListenAndServe a moment before shutting down.
	time.Sleep(50 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.Shutdown(ctx, 10*time.Millisecond))

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after Shutdown")
	}

	rec := httptest.NewRecorder()
	h.Readiness(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestShutdown_ContextCanceledDuringDrain(t *testing.T) {
	s := newTestServer(nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, s.Shutdown(ctx, time.Minute), context.Canceled)
}
