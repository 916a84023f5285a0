package http

import (
	"context"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pingHandler struct{}

func (pingHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/ping", func(c echo.Context) error { return c.String(http.StatusOK, "pong") })
}

func freePort(t *testing.T) (net.Listener, int) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	return ln, ln.Addr().(*net.TCPAddr).Port
}

func TestServerStartReportsBindError(t *testing.T) {
	ln, port := freePort(t)
	defer ln.Close()

	srv, err := NewServer(pingHandler{}, ServerConfig{Host: "127.0.0.1", Port: port})
	require.NoError(t, err)
	require.Error(t, srv.Start())
}

func TestServerDefaults(t *testing.T) {
	srv, err := NewServer(nil, ServerConfig{})
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:8000", srv.Addr())
	assert.Equal(t, 10*time.Second, srv.config.ReadTimeout)
	assert.Zero(t, srv.config.WriteTimeout)
}

func TestServerServesAndStops(t *testing.T) {
	ln, port := freePort(t)
	require.NoError(t, ln.Close())

	srv, err := NewServer(pingHandler{}, ServerConfig{Host: "127.0.0.1", Port: port, MetricsPath: "/metrics"})
	require.NoError(t, err)
	require.NoError(t, srv.Start())

	res, err := http.Get("http://" + srv.Addr() + "/ping")
	require.NoError(t, err)
	body, _ := io.ReadAll(res.Body)
	res.Body.Close()
	assert.Equal(t, "pong", string(body))

	res, err = http.Get("http://" + srv.Addr() + "/metrics")
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, srv.Stop(ctx))
}
