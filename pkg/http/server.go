package http

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/creasty/defaults"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"StockPulse/pkg/http/middleware"
	applogger "StockPulse/pkg/logger"
)

// Handler registers its routes on the server's echo instance.
type Handler interface {
	RegisterRoutes(e *echo.Echo)
}

// ServerConfig fields left zero take their default tag. WriteTimeout has no default:
// zero leaves fragment streams unbounded. MetricsPath empty serves no metrics.
type ServerConfig struct {
	Host            string        `default:"0.0.0.0"`
	Port            int           `default:"8000"`
	ReadTimeout     time.Duration `default:"10s"`
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration `default:"10s"`
	SlowThreshold   time.Duration
	CORSOrigins     []string
	MetricsPath     string
	Logger          *applogger.Logger
	// Middleware runs after recovery, logging, metrics and CORS.
	Middleware []echo.MiddlewareFunc
}

type Server struct {
	echo   *echo.Echo
	config ServerConfig
	logger *applogger.Logger
}

func NewServer(handler Handler, cfg ServerConfig) (*Server, error) {
	if err := defaults.Set(&cfg); err != nil {
		return nil, fmt.Errorf("server defaults: %w", err)
	}
	if cfg.Logger == nil {
		cfg.Logger = applogger.NewNop()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Server.ReadTimeout = cfg.ReadTimeout
	e.Server.WriteTimeout = cfg.WriteTimeout

	e.Use(
		middleware.Recover(cfg.Logger),
		middleware.RequestLogging(cfg.Logger),
		middleware.Metrics(cfg.Logger, cfg.SlowThreshold),
		middleware.CORS(cfg.CORSOrigins),
	)
	e.Use(cfg.Middleware...)

	if handler != nil {
		handler.RegisterRoutes(e)
	}
	if cfg.MetricsPath != "" {
		e.GET(cfg.MetricsPath, echo.WrapHandler(promhttp.Handler()))
	}
	return &Server{echo: e, config: cfg, logger: cfg.Logger}, nil
}

// Start binds the listen address and serves in the background. Bind errors are
// returned; later serve errors are logged.
func (s *Server) Start() error {
	addr := s.Addr()
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	s.echo.Listener = ln

	go func() {
		s.logger.Info("http server listening", applogger.String("addr", ln.Addr().String()))
		if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server error", applogger.Error(err))
		}
	}()
	return nil
}

// Stop drains in-flight requests. Without a deadline on ctx, ShutdownTimeout bounds it.
func (s *Server) Stop(ctx context.Context) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.ShutdownTimeout)
		defer cancel()
	}
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	s.logger.Info("http server stopped")
	return nil
}

func (s *Server) Addr() string {
	return net.JoinHostPort(s.config.Host, strconv.Itoa(s.config.Port))
}

func (s *Server) Echo() *echo.Echo { return s.echo }
