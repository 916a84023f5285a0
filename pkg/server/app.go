package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"

	"StockPulse/internal/service/ratelimit"
	"StockPulse/internal/usecase"
	pkgch "StockPulse/pkg/clickhouse"
	"StockPulse/pkg/config"
	xhttp "StockPulse/pkg/http"
	pkgkafka "StockPulse/pkg/kafka"
	applogger "StockPulse/pkg/logger"
)

// Components are the optional long-running parts of the service. Nil fields are skipped.
type Components struct {
	HTTPHandler xhttp.Handler
	Limiter     *ratelimit.Limiter
	Consumer    *pkgkafka.Consumer
	ScanHandler pkgkafka.MessageHandler
	Scans       *usecase.ScheduledScans
	Producer    *pkgkafka.Producer
	ClickHouse  *pkgch.Client
}

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	logger     *applogger.Logger
	c          Components
	httpServer *xhttp.Server
}

// New creates a new App instance with all dependencies.
func New(cfg *config.Config, logger *applogger.Logger, c Components) *App {
	if logger == nil {
		logger = applogger.NewNop()
	}
	return &App{cfg: cfg, logger: logger, c: c}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return a.RunContext(ctx)
}

// RunContext starts every component and blocks until ctx is done, then shuts down.
func (a *App) RunContext(ctx context.Context) error {
	if err := a.start(); err != nil {
		_ = a.shutdown()
		return err
	}
	<-ctx.Done()
	a.logger.Info("shutdown signal received")
	return a.shutdown()
}

func (a *App) start() error {
	l := a.logger

	// Ship repeated warnings and errors to kafka
	if a.c.Producer != nil && a.cfg.Log.Collector.Enabled {
		l.AddCollector(&applogger.CollectionConfig{
			TimeInterval:   a.cfg.Log.Collector.Interval,
			CountThreshold: a.cfg.Log.Collector.CountThreshold,
			Topic:          a.cfg.Kafka.LogTopic,
			Publisher:      a.c.Producer,
		})
		l.Info("log collector enabled", applogger.String("topic", a.cfg.Kafka.LogTopic))
	}

	var mw []echo.MiddlewareFunc
	if a.c.Limiter != nil {
		mw = append(mw, a.c.Limiter.Middleware())
	}
	metricsPath := ""
	if a.cfg.Metrics.Enabled {
		metricsPath = a.cfg.Metrics.Path
	}
	srv, err := xhttp.NewServer(a.c.HTTPHandler, xhttp.ServerConfig{
		Port:            a.cfg.Server.Port,
		ReadTimeout:     a.cfg.Server.ReadTimeout,
		WriteTimeout:    a.cfg.Server.WriteTimeout,
		ShutdownTimeout: a.cfg.Server.ShutdownTimeout,
		SlowThreshold:   a.cfg.Metrics.SlowThreshold,
		CORSOrigins:     a.cfg.Server.CORSOrigins,
		MetricsPath:     metricsPath,
		Logger:          l,
		Middleware:      mw,
	})
	if err != nil {
		return err
	}
	a.httpServer = srv

	// Start consumer if configured
	if a.c.Consumer != nil && a.c.ScanHandler != nil {
		a.c.Consumer.RegisterHandler(a.c.ScanHandler)
		if err := a.c.Consumer.Start(); err != nil {
			l.Error("kafka consumer error", applogger.Error(err))
			return err
		}
		l.Info("kafka consumer started", applogger.String("topic", a.c.ScanHandler.Topic()))
	}

	if a.c.Scans != nil {
		if err := a.c.Scans.Start(); err != nil {
			l.Error("scan scheduler error", applogger.Error(err))
			return err
		}
	}

	// Start HTTP server
	if err := a.httpServer.Start(); err != nil {
		l.Error("http server start error", applogger.Error(err))
		return err
	}
	return nil
}

// shutdown stops intake first, then flushes sinks and closes clients.
func (a *App) shutdown() error {
	l := a.logger
	ctx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout())
	defer cancel()

	if a.httpServer != nil {
		if err := a.httpServer.Stop(ctx); err != nil {
			l.Error("http shutdown error", applogger.Error(err))
		}
	}

	if a.c.Scans != nil {
		if err := a.c.Scans.Stop(ctx); err != nil {
			l.Warn("scan scheduler stop error", applogger.Error(err))
		}
	}

	if a.c.Consumer != nil {
		if err := a.c.Consumer.Stop(ctx); err != nil {
			l.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}

	// flush collected logs before the producer goes away
	l.RemoveCollector()

	if a.c.Producer != nil {
		if err := a.c.Producer.Close(); err != nil {
			l.Warn("kafka producer close error", applogger.Error(err))
		}
	}

	if a.c.ClickHouse != nil {
		if err := a.c.ClickHouse.Close(); err != nil {
			l.Warn("clickhouse close error", applogger.Error(err))
		}
	}

	l.Info("shutdown complete")
	return nil
}

func (a *App) shutdownTimeout() time.Duration {
	if a.cfg.Server.ShutdownTimeout > 0 {
		return a.cfg.Server.ShutdownTimeout
	}
	return 15 * time.Second
}
